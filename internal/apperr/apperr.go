// Package apperr carries the failure taxonomy shared by the session and
// relationship surfaces: every operation reports one of five kinds, and each
// kind maps to a stable HTTP status class.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure for status mapping and client handling.
type Kind int

const (
	// KindUnknown covers errors that carry no explicit classification.
	KindUnknown Kind = iota
	// KindValidation marks malformed or missing input.
	KindValidation
	// KindAuth marks bad credentials or invalid, expired, or stale tokens.
	KindAuth
	// KindConflict marks duplicate-key collisions such as a taken username.
	KindConflict
	// KindNotFound marks an absent target or identity.
	KindNotFound
	// KindUpstream marks hasher, issuer, store, or upload failures.
	KindUpstream
)

// Error is the tagged failure returned across component boundaries.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

// Error renders the dotted code plus the human-readable message.
func (failure *Error) Error() string {
	if failure.Err != nil {
		return fmt.Sprintf("%s: %s: %v", failure.Code, failure.Message, failure.Err)
	}
	return fmt.Sprintf("%s: %s", failure.Code, failure.Message)
}

// Unwrap exposes the wrapped cause.
func (failure *Error) Unwrap() error {
	return failure.Err
}

// Validation builds a KindValidation error.
func Validation(code string, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

// Auth builds a KindAuth error.
func Auth(code string, message string) *Error {
	return &Error{Kind: KindAuth, Code: code, Message: message}
}

// Conflict builds a KindConflict error.
func Conflict(code string, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

// NotFound builds a KindNotFound error.
func NotFound(code string, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

// Upstream builds a KindUpstream error wrapping the internal cause. The cause
// is never rendered to clients, only to operators through logs.
func Upstream(code string, message string, cause error) *Error {
	return &Error{Kind: KindUpstream, Code: code, Message: message, Err: cause}
}

// KindOf extracts the classification from an error chain.
func KindOf(err error) Kind {
	var failure *Error
	if errors.As(err, &failure) {
		return failure.Kind
	}
	return KindUnknown
}

// CodeOf extracts the dotted code from an error chain, empty when untagged.
func CodeOf(err error) string {
	var failure *Error
	if errors.As(err, &failure) {
		return failure.Code
	}
	return ""
}

// MessageOf extracts the client-safe message; untagged errors fall back to a
// generic phrase so internal detail never leaks outward.
func MessageOf(err error) string {
	var failure *Error
	if errors.As(err, &failure) {
		return failure.Message
	}
	return "internal error"
}

// HTTPStatus maps a classified error to its status class.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
