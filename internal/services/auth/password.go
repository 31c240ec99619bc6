// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MinPasswordLength is the shortest password accepted, in characters.
	MinPasswordLength = 6
	// MaxPasswordBytes is the input limit of bcrypt.
	MaxPasswordBytes = 72
)

// PasswordProblem is one rule a password breaks.
type PasswordProblem struct {
	Rule    string
	Message string
}

// PasswordError lists every rule a password breaks, in policy order.
type PasswordError struct {
	Problems []PasswordProblem
}

func (e *PasswordError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Message
	}
	return strings.Join(msgs, " ")
}

// PasswordRule inspects a password. personal holds the owner's name and
// mailbox so rules can reject passwords derived from them.
type PasswordRule func(password string, personal []string) *PasswordProblem

// PasswordPolicy is an ordered set of rules.
type PasswordPolicy []PasswordRule

// DefaultPasswordPolicy returns the rules applied whenever a password is set.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength(MinPasswordLength),
		MaxBytes(MaxPasswordBytes),
		NotNumeric(),
		NotPersonal(0.7),
	}
}

// Check runs every rule and returns a *PasswordError when any fails.
func (p PasswordPolicy) Check(password string, personal ...string) error {
	var problems []PasswordProblem
	for _, rule := range p {
		if problem := rule(password, personal); problem != nil {
			problems = append(problems, *problem)
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return &PasswordError{Problems: problems}
}

// MinLength requires at least n characters.
func MinLength(n int) PasswordRule {
	return func(password string, _ []string) *PasswordProblem {
		if utf8.RuneCountInString(password) >= n {
			return nil
		}
		return &PasswordProblem{"min_length", fmt.Sprintf("Password must be at least %d characters long.", n)}
	}
}

// MaxBytes caps the encoded length. bcrypt ignores everything past 72 bytes.
func MaxBytes(n int) PasswordRule {
	return func(password string, _ []string) *PasswordProblem {
		if len(password) <= n {
			return nil
		}
		return &PasswordProblem{"max_length", fmt.Sprintf("Password cannot be longer than %d bytes.", n)}
	}
}

// NotNumeric rejects passwords made of digits only.
func NotNumeric() PasswordRule {
	return func(password string, _ []string) *PasswordProblem {
		if password == "" || strings.IndexFunc(password, func(r rune) bool { return !unicode.IsDigit(r) }) >= 0 {
			return nil
		}
		return &PasswordProblem{"numeric", "Password cannot be entirely numeric."}
	}
}

// minPersonalLength keeps one or two letter names from matching everything.
const minPersonalLength = 3

// NotPersonal rejects passwords that contain, are contained in, or share
// more than threshold of their characters with the owner's personal data.
func NotPersonal(threshold float64) PasswordRule {
	return func(password string, personal []string) *PasswordProblem {
		pw := strings.ToLower(password)
		for _, value := range personal {
			value = strings.ToLower(strings.TrimSpace(value))
			if len(value) < minPersonalLength {
				continue
			}
			if strings.Contains(pw, value) ||
				(len(pw) >= minPersonalLength && strings.Contains(value, pw)) ||
				overlap(pw, value) > threshold {
				return &PasswordProblem{"personal", "Password is too similar to your personal information."}
			}
		}
		return nil
	}
}

// overlap is the longest common subsequence of a and b relative to the
// longer of the two.
func overlap(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}

	row := make([]int, len(b)+1)
	for i := 0; i < len(a); i++ {
		diag := 0
		for j := 1; j <= len(b); j++ {
			up := row[j]
			if a[i] == b[j-1] {
				row[j] = diag + 1
			} else {
				row[j] = max(row[j], row[j-1])
			}
			diag = up
		}
	}
	return float64(row[len(b)]) / float64(max(len(a), len(b)))
}
