package entity

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a stable, machine-readable error class mapped to HTTP statuses.
type Code string

const (
	// CodeValidation marks a malformed request; the message is safe to surface
	// verbatim to the user.
	CodeValidation Code = "validation"
	// CodeUpstreamUnavailable marks a third-party API that is down or
	// rate-limited; surfaced as a generic retry-suggesting message.
	CodeUpstreamUnavailable Code = "upstream_unavailable"
	// CodeUpstreamDataInvalid marks a schema mismatch from the AI or a data
	// provider. Callers treat it as an empty result, not a crash.
	CodeUpstreamDataInvalid Code = "upstream_data_invalid"
	// CodeNotFound marks a missing persisted record.
	CodeNotFound Code = "not_found"
	// CodeUserRejected marks a wallet signature prompt the user declined.
	CodeUserRejected Code = "user_rejected"
	// CodeGasEstimation marks a failed gas estimate for a single asset.
	CodeGasEstimation Code = "gas_estimation"
	// CodeInsufficientGas marks a balance too small to cover margin-adjusted
	// gas; it halts a deployment run.
	CodeInsufficientGas Code = "insufficient_gas"
	// CodeInternal is everything else.
	CodeInternal Code = "internal"
)

// Error is a typed service error carrying a stable code.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError creates a typed error without a cause.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError creates a typed error wrapping a cause.
func WrapError(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// AsError extracts a typed error from an error chain.
func AsError(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code Code) bool {
	if e, ok := AsError(err); ok {
		return e.Code == code
	}
	return false
}

// HTTPStatus maps an error chain to a response status: validation 400,
// not found 404, upstream unavailable 502, everything else 500.
func HTTPStatus(err error) int {
	e, ok := AsError(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch e.Code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
