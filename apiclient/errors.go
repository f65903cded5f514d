package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	apperrors "github.com/jrsteele09/go-anon-client/internal/errors"
)

var (
	ErrInvalidCredentials = apperrors.ErrInvalidCredentials
	ErrValidation         = apperrors.ErrValidation
	ErrNotFound           = apperrors.ErrNotFound
	ErrServerError        = apperrors.ErrServerError
	ErrUnreachable        = apperrors.ErrUnreachable
	ErrInvalidResponse    = apperrors.ErrInvalidResponse
)

// APIError describes a failed call. NoResponse separates "nothing came back"
// (network, DNS, TLS, timeout) from "the server answered with an error status".
type APIError struct {
	Method     string
	Path       string
	Status     int             // Zero when NoResponse is set
	Body       json.RawMessage // Raw server error body, if any
	NoResponse bool
	Err        error // Transport error, or the body read error of a response that was cut short
}

func (e *APIError) Error() string {
	if e.NoResponse {
		return fmt.Sprintf("%s %s: no response: %v", e.Method, e.Path, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s: status %d: %v", e.Method, e.Path, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Message())
}

// Unwrap exposes both the classification sentinel and the transport error
func (e *APIError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind()}
	}
	return []error{e.Kind(), e.Err}
}

// Kind maps the failure onto the client error taxonomy
func (e *APIError) Kind() error {
	if e.NoResponse {
		return ErrUnreachable
	}
	switch {
	case e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden:
		return ErrInvalidCredentials
	case e.Status == http.StatusNotFound:
		return ErrNotFound
	case e.Status >= 500:
		return ErrServerError
	case e.Status < http.StatusBadRequest:
		return ErrInvalidResponse
	default:
		return ErrValidation
	}
}

// Message extracts a human readable message from a structured error body so it can be
// shown verbatim. It understands {"detail": ...}, {"error": ...}, {"message": ...} and
// field error maps such as {"username": ["already taken"]}.
func (e *APIError) Message() string {
	if len(e.Body) == 0 {
		return http.StatusText(e.Status)
	}

	var body map[string]any
	if err := json.Unmarshal(e.Body, &body); err != nil {
		return strings.TrimSpace(string(e.Body))
	}

	for _, key := range []string{"detail", "error", "message", "non_field_errors"} {
		if msg := flatten(body[key]); msg != "" {
			return msg
		}
	}

	keys := make([]string, 0, len(body))
	for k := range body {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if msg := flatten(body[k]); msg != "" {
			return k + ": " + msg
		}
	}
	return http.StatusText(e.Status)
}

func flatten(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			if s := flatten(p); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	default:
		return ""
	}
}

// IsNoResponse reports whether err came from a request that never got an answer
func IsNoResponse(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.NoResponse
}

// StatusCode returns the HTTP status carried by err, or zero
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// UserMessage renders err the way it should be shown to a user
func UserMessage(err error) string {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.NoResponse:
		return "Could not reach the server. Check your connection and try again."
	case errors.As(err, &apiErr) && apiErr.Kind() == ErrServerError:
		return "Something went wrong on our side. Please try again."
	case errors.As(err, &apiErr) && apiErr.Kind() == ErrInvalidResponse:
		return "The server sent an incomplete response. Please try again."
	case errors.As(err, &apiErr):
		return apiErr.Message()
	default:
		return err.Error()
	}
}
