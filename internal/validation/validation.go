// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package validation plugs go-playground/validator into echo and turns
// validation failures into readable messages.
package validation

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"codeberg.org/oliverandrich/infographic-api/internal/models"
	"github.com/go-playground/validator"
)

var phonePattern = regexp.MustCompile(`^\+?[1-9]\d{0,15}$`)

// Validator implements echo.Validator.
type Validator struct {
	v *validator.Validate
}

// New returns a validator with the custom "phone" and "document" rules
// registered. Field names in errors use the JSON names.
func New() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("document", func(fl validator.FieldLevel) bool {
		doc, ok := fl.Field().Interface().(models.Document)
		return ok && doc.Validate() == nil
	})
	return &Validator{v: v}
}

// Validate implements echo.Validator.
func (cv *Validator) Validate(i any) error {
	return cv.v.Struct(i)
}

// Messages formats each violation as a sentence.
func Messages(errs validator.ValidationErrors) []string {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		field := err.Field()
		switch err.ActualTag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("Please provide %s", field))
		case "email":
			msgs = append(msgs, "Please provide a valid email")
		case "phone":
			msgs = append(msgs, "Please provide a valid phone number")
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s characters", field, err.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s cannot be more than %s characters", field, err.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(err.Param(), " ", ", ")))
		case "eqfield":
			msgs = append(msgs, fmt.Sprintf("%s must match %s", field, lowerFirst(err.Param())))
		case "document":
			msgs = append(msgs, fmt.Sprintf("%s must be a non-empty JSON object or array", field))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is not valid", field))
		}
	}
	return msgs
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
