// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"codeberg.org/oliverandrich/infographic-api/internal/repository"
	"codeberg.org/oliverandrich/infographic-api/internal/services/token"
	"codeberg.org/oliverandrich/infographic-api/internal/validation"
	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

const genericMessage = "Something went very wrong!"

// Normalize maps any error onto the taxonomy. Known infrastructure
// failures become operational errors with client-facing messages;
// everything else becomes a non-operational 500.
func Normalize(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}

	// echo's binder wraps decoding errors in an HTTPError.
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return &Error{
			Status:      http.StatusBadRequest,
			Message:     fmt.Sprintf("Invalid %s: %s", field, typeErr.Value),
			Operational: true,
			Err:         err,
		}
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return &Error{Status: http.StatusBadRequest, Message: "Invalid JSON body", Operational: true, Err: err}
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		msg, ok := httpErr.Message.(string)
		if !ok {
			msg = http.StatusText(httpErr.Code)
		}
		return &Error{Status: httpErr.Code, Message: msg, Operational: httpErr.Code < 500, Err: err}
	}

	var dup *repository.DuplicateError
	if errors.As(err, &dup) {
		value := dup.Field
		if dup.Value != "" {
			value = fmt.Sprintf("%q", dup.Value)
		}
		conflict := Conflict(fmt.Sprintf("Duplicate field value: %s. Please use another value!", value))
		conflict.Err = err
		return conflict
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return &Error{
			Status:      http.StatusBadRequest,
			Message:     "Invalid input data. " + strings.Join(validation.Messages(verrs), ". "),
			Operational: true,
			Err:         err,
		}
	}

	switch {
	case errors.Is(err, repository.ErrNotFound):
		return &Error{Status: http.StatusNotFound, Message: "No document found with that ID", Operational: true, Err: err}
	case errors.Is(err, token.ErrTokenExpired):
		return &Error{Status: http.StatusUnauthorized, Message: "Your token has expired! Please log in again.", Operational: true, Err: err}
	case errors.Is(err, token.ErrInvalidToken):
		return &Error{Status: http.StatusUnauthorized, Message: "Invalid token. Please log in again!", Operational: true, Err: err}
	}

	return Internal(err)
}

type errorDetail struct {
	StatusCode    int    `json:"statusCode"`
	Status        string `json:"status"`
	IsOperational bool   `json:"isOperational"`
	Message       string `json:"message"`
	Cause         string `json:"cause,omitempty"`
}

type devBody struct {
	Status  string      `json:"status"`
	Error   errorDetail `json:"error"`
	Message string      `json:"message"`
	Stack   []string    `json:"stack"`
}

type prodBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// NewHandler returns the echo error handler. Every error produced anywhere
// in the request pipeline ends up here. In production only operational
// messages are shown; development responses include the full error chain.
func NewHandler(production bool, logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		appErr := Normalize(err)
		if errors.Is(err, echo.ErrNotFound) {
			appErr = NotFound(fmt.Sprintf("Can't find %s on this server!", c.Request().RequestURI))
		}

		if !appErr.Operational {
			logger.Error("request_failed",
				"method", c.Request().Method,
				"uri", c.Request().RequestURI,
				"status", appErr.Status,
				"error", err,
			)
		}

		var (
			status = appErr.Status
			body   any
		)
		switch {
		case !production:
			body = devBody{
				Status: appErr.StatusClass(),
				Error: errorDetail{
					StatusCode:    appErr.Status,
					Status:        appErr.StatusClass(),
					IsOperational: appErr.Operational,
					Message:       appErr.Error(),
					Cause:         causeOf(appErr),
				},
				Message: appErr.Error(),
				Stack:   chain(err),
			}
		case appErr.Operational:
			body = prodBody{Status: appErr.StatusClass(), Message: appErr.Error()}
		default:
			status = http.StatusInternalServerError
			body = prodBody{Status: "error", Message: genericMessage}
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			logger.Error("error_response_failed", "error", err)
		}
	}
}

func causeOf(e *Error) string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// chain lists the messages of err and every error it wraps.
func chain(err error) []string {
	var out []string
	for err != nil {
		out = append(out, fmt.Sprintf("%T: %v", err, err))
		err = errors.Unwrap(err)
	}
	return out
}
