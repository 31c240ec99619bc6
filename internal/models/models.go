// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/vinovest/sqlx/types"
)

// ErrEmptyDocument is returned when a JSON document column holds no content.
var ErrEmptyDocument = errors.New("document must not be empty")

// Document is a JSON value stored as text. Infographic design state and
// style are kept opaque; only well-formedness is checked.
type Document types.JSONText

// Validate reports whether the document is a non-empty JSON object or array.
func (d Document) Validate() error {
	trimmed := bytes.TrimSpace(d)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ErrEmptyDocument
	}
	if !json.Valid(trimmed) {
		return errors.New("document is not valid JSON")
	}
	switch trimmed[0] {
	case '{':
		if bytes.Equal(bytes.Join(bytes.Fields(trimmed), nil), []byte("{}")) {
			return ErrEmptyDocument
		}
	case '[':
		if bytes.Equal(bytes.Join(bytes.Fields(trimmed), nil), []byte("[]")) {
			return ErrEmptyDocument
		}
	default:
		return errors.New("document must be a JSON object or array")
	}
	return nil
}

// MarshalJSON emits the raw document, or {} when unset.
func (d Document) MarshalJSON() ([]byte, error) {
	return types.JSONText(d).MarshalJSON()
}

// UnmarshalJSON keeps a copy of the raw document.
func (d *Document) UnmarshalJSON(data []byte) error {
	return (*types.JSONText)(d).UnmarshalJSON(data)
}

// Value implements driver.Valuer. The columns are text, so the validated
// bytes are handed to the driver as a string.
func (d Document) Value() (driver.Value, error) {
	v, err := types.JSONText(d).Value()
	if err != nil {
		return nil, err
	}
	if b, ok := v.([]byte); ok {
		return string(b), nil
	}
	return v, nil
}

// Scan implements sql.Scanner.
func (d *Document) Scan(src any) error {
	return (*types.JSONText)(d).Scan(src)
}

// StringList is a list of strings stored as a JSON array.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode([]string(l)); err != nil {
		return nil, err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = StringList{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("models.StringList: cannot scan %T", src)
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	if out == nil {
		out = []string{}
	}
	*l = out
	return nil
}
