// Package types defines the error taxonomy shared by the resolver, the
// Salesforce client, and the tool surfaces.
package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ──────────────────────────────────────────────────────────────────────────────
// ToolError: what every failed tool call is reduced to
// ──────────────────────────────────────────────────────────────────────────────

// ErrorKind classifies a failure so callers can branch without matching text.
type ErrorKind string

const (
	KindConfig     ErrorKind = "config"     // missing or incomplete credentials, unknown object type
	KindAuth       ErrorKind = "auth"       // login rejected, expired session
	KindRemote     ErrorKind = "remote"     // Salesforce rejected or failed the call
	KindValidation ErrorKind = "validation" // malformed caller input
)

type ToolError struct {
	Kind    ErrorKind
	Code    string // Salesforce errorCode, when known
	Status  int    // HTTP status of the remote call, when known
	Message string
	Cause   error
}

func (e *ToolError) Error() string {
	if e.Message == "" && e.Cause != nil {
		return e.Cause.Error()
	}
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ToolError) Unwrap() error { return e.Cause }

// KindOf returns the kind of the first ToolError in err's chain. Errors
// outside the taxonomy are reported as remote failures.
func KindOf(err error) ErrorKind {
	var te *ToolError
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindRemote
}

func ErrConfig(format string, args ...any) *ToolError {
	return &ToolError{Kind: KindConfig, Message: fmt.Sprintf(format, args...)}
}

// WrapConfig returns a config error carrying cause.
func WrapConfig(cause error, msg string) *ToolError {
	return &ToolError{Kind: KindConfig, Message: msg, Cause: cause}
}

// WrapAuth returns an auth error carrying cause.
func WrapAuth(cause error, msg string) *ToolError {
	return &ToolError{Kind: KindAuth, Message: msg, Cause: cause}
}

func ErrRemote(status int, code, msg string) *ToolError {
	kind := KindRemote
	if status == http.StatusUnauthorized {
		kind = KindAuth
	}
	return &ToolError{Kind: kind, Status: status, Code: code, Message: msg}
}

// ──────────────────────────────────────────────────────────────────────────────
// Validation error (returned during argument parsing)
// ──────────────────────────────────────────────────────────────────────────────

type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

// ErrValidation wraps a field-level failure into the taxonomy.
func ErrValidation(field, reason string) *ToolError {
	return &ToolError{Kind: KindValidation, Cause: &ValidationError{Field: field, Reason: reason}}
}

// ──────────────────────────────────────────────────────────────────────────────
// APIError: structured error returned by the HTTP connector itself
// ──────────────────────────────────────────────────────────────────────────────

type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	Details   any    `json:"details,omitempty"`
	HTTPCode  int    `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// WriteJSON writes the error as JSON to the response writer.
func (e *APIError) WriteJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.HTTPCode)
	_ = json.NewEncoder(w).Encode(e)
}

func ErrBadRequest(msg string) *APIError {
	return &APIError{Code: "BAD_REQUEST", Message: msg, HTTPCode: http.StatusBadRequest}
}

func ErrUnauthorized(msg string) *APIError {
	return &APIError{Code: "UNAUTHORIZED", Message: msg, HTTPCode: http.StatusUnauthorized}
}

func ErrNotFound(msg string) *APIError {
	return &APIError{Code: "NOT_FOUND", Message: msg, HTTPCode: http.StatusNotFound}
}

func ErrRateLimited() *APIError {
	return &APIError{Code: "RATE_LIMITED", Message: "too many requests", Retryable: true, HTTPCode: http.StatusTooManyRequests}
}

func ErrForbidden(msg string) *APIError {
	return &APIError{Code: "FORBIDDEN", Message: msg, HTTPCode: http.StatusForbidden}
}

func ErrInternal(msg string) *APIError {
	return &APIError{Code: "INTERNAL", Message: msg, HTTPCode: http.StatusInternalServerError}
}
