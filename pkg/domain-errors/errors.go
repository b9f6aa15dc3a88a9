// Package domainerrors defines the stable error vocabulary returned to
// callers. Services translate infrastructure sentinels into these codes so
// transport layers never leak raw storage errors.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeNotFound          Code = "not_found"
	CodeDuplicateIdentity Code = "duplicate_identity"
	CodeDuplicateVote     Code = "duplicate_vote"
	CodeUnverified        Code = "unverified"
	CodeInvalidToken      Code = "invalid_token"
	CodeChallengeFailed   Code = "challenge_failed"
	CodeBadRequest        Code = "bad_request"
	CodeDeliveryError     Code = "delivery_error"
	CodeConflict          Code = "conflict"
	CodeUnauthorized      Code = "unauthorized"
	CodeForbidden         Code = "forbidden"
	CodeTooManyRequests   Code = "too_many_requests"
	CodeTimeout           Code = "timeout"
	CodeInternal          Code = "internal"
)

// Error carries a stable code plus a human-readable message. The wrapped
// cause, if any, stays internal.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err or anything it wraps carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the domain code from err, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the caller-safe message for err.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}

// ToHTTPStatus maps domain codes onto HTTP status codes for the transport
// layer's error envelope.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeDuplicateIdentity, CodeDuplicateVote, CodeConflict:
		return http.StatusConflict
	case CodeInvalidToken, CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnverified, CodeChallengeFailed:
		return http.StatusForbidden
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
