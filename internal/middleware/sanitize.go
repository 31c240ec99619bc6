// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
)

var markupEscaper = strings.NewReplacer("<", "&lt;", ">", "&gt;")

// Sanitize neutralizes markup in every string of a JSON request body and
// in query values, and drops keys starting with "$" from both. Bodies that
// are not valid JSON pass through unchanged for the binder to reject.
func Sanitize() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			if req.URL.RawQuery != "" {
				req.URL.RawQuery = sanitizeQuery(req.URL.Query()).Encode()
			}

			if req.Body != nil && req.Body != http.NoBody && isJSON(req.Header.Get(echo.HeaderContentType)) {
				body, err := io.ReadAll(req.Body)
				if err != nil {
					return err
				}
				body = sanitizeBody(body)
				req.Body = io.NopCloser(bytes.NewReader(body))
				req.ContentLength = int64(len(body))
			}

			return next(c)
		}
	}
}

func isJSON(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), echo.MIMEApplicationJSON)
}

func sanitizeQuery(q url.Values) url.Values {
	clean := make(url.Values, len(q))
	for key, values := range q {
		if strings.HasPrefix(key, "$") {
			continue
		}
		for _, v := range values {
			clean.Add(key, markupEscaper.Replace(v))
		}
	}
	return clean
}

func sanitizeBody(body []byte) []byte {
	if len(bytes.TrimSpace(body)) == 0 {
		return body
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return body
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(sanitizeValue(v)); err != nil {
		return body
	}
	return buf.Bytes()
}

func sanitizeValue(v any) any {
	switch t := v.(type) {
	case string:
		return markupEscaper.Replace(t)
	case []any:
		for i := range t {
			t[i] = sanitizeValue(t[i])
		}
		return t
	case map[string]any:
		for key, val := range t {
			if strings.HasPrefix(key, "$") {
				delete(t, key)
				continue
			}
			t[key] = sanitizeValue(val)
		}
		return t
	default:
		return v
	}
}
