package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Stable error codes exposed on the HTTP surface.
const (
	CodePersonaNotFound      = "persona_not_found"
	CodePersonaExists        = "persona_exists"
	CodeIdentityLocked       = "identity_locked"
	CodePersonaExpired       = "persona_expired"
	CodeConfirmationMismatch = "confirmation_mismatch"
	CodeUpstreamUnavailable  = "upstream_unavailable"
	CodeValidationFailed     = "validation_failed"
	CodeRateLimited          = "rate_limited"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func NotFound(err error) *Error {
	return New(http.StatusNotFound, CodePersonaNotFound, err)
}

func AlreadyExists(err error) *Error {
	return New(http.StatusBadRequest, CodePersonaExists, err)
}

func IdentityLocked(err error) *Error {
	return New(http.StatusBadRequest, CodeIdentityLocked, err)
}

func Expired(err error) *Error {
	return New(http.StatusGone, CodePersonaExpired, err)
}

func ConfirmationMismatch(err error) *Error {
	return New(http.StatusBadRequest, CodeConfirmationMismatch, err)
}

func Upstream(err error) *Error {
	return New(http.StatusBadGateway, CodeUpstreamUnavailable, err)
}

func Validation(err error) *Error {
	return New(http.StatusBadRequest, CodeValidationFailed, err)
}

// From extracts an *Error from err's chain, or wraps err as a 500.
func From(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return New(http.StatusInternalServerError, "internal_error", err)
}
