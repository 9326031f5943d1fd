package mpcerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a failure class of the signing engine. Codes are part of
// the API contract and are returned verbatim to clients.
type Code string

const (
	CodeUnknownSession     Code = "UNKNOWN_SESSION"
	CodeSessionClosed      Code = "SESSION_CLOSED"
	CodeUnauthorizedSigner Code = "UNAUTHORIZED_SIGNER"
	CodeDuplicateParty     Code = "DUPLICATE_PARTY"
	CodeSessionFull        Code = "SESSION_FULL"
	CodeAlreadySigned      Code = "ALREADY_SIGNED"
	CodeUnknownHash        Code = "UNKNOWN_HASH"
	CodeInvalidRequest     Code = "INVALID_REQUEST"
	CodeVersionConflict    Code = "VERSION_CONFLICT"
	CodeAggregationFailure Code = "AGGREGATION_FAILURE"
	CodeNonceExhaustion    Code = "NONCE_EXHAUSTION"
)

// Error is a code-carrying error. Two Errors match under errors.Is when
// their codes are equal, so callers can branch on sentinel values like
// mpcerr.ErrVersionConflict without caring about the message.
type Error struct {
	Code Code
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.msg == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.msg)
}

func (e *Error) Unwrap() error { return e.err }

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// Sentinels for errors.Is checks.
var (
	ErrUnknownSession     = &Error{Code: CodeUnknownSession}
	ErrSessionClosed      = &Error{Code: CodeSessionClosed}
	ErrUnauthorizedSigner = &Error{Code: CodeUnauthorizedSigner}
	ErrDuplicateParty     = &Error{Code: CodeDuplicateParty}
	ErrSessionFull        = &Error{Code: CodeSessionFull}
	ErrAlreadySigned      = &Error{Code: CodeAlreadySigned}
	ErrUnknownHash        = &Error{Code: CodeUnknownHash}
	ErrInvalidRequest     = &Error{Code: CodeInvalidRequest}
	ErrVersionConflict    = &Error{Code: CodeVersionConflict}
	ErrAggregationFailure = &Error{Code: CodeAggregationFailure}
	ErrNonceExhaustion    = &Error{Code: CodeNonceExhaustion}
)

// New builds an Error with a formatted message.
func New(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code to an underlying error.
func Wrap(code Code, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, msg: err.Error(), err: err}
}

// CodeOf extracts the code from err, or "" if err carries none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HTTPStatus maps a failure code to the status the API reports.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeUnknownSession, CodeUnknownHash:
		return http.StatusNotFound
	case CodeInvalidRequest:
		return http.StatusBadRequest
	case CodeUnauthorizedSigner:
		return http.StatusForbidden
	case CodeVersionConflict, CodeDuplicateParty, CodeSessionFull,
		CodeAlreadySigned, CodeSessionClosed:
		return http.StatusConflict
	case CodeAggregationFailure, CodeNonceExhaustion:
		return http.StatusUnprocessableEntity
	case "":
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
