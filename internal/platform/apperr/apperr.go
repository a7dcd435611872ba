// Package apperr defines the error kinds surfaced by the sharing subsystem.
//
// Every failure carries exactly one Kind so callers (HTTP handlers, the CLI)
// can map it to a user-facing message without string matching.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an error for callers.
type Kind string

const (
	KindInvalidCodeFormat   Kind = "invalid_code_format"
	KindDoctorNotFound      Kind = "doctor_not_found"
	KindAlreadyShared       Kind = "already_shared"
	KindGrantNotFound       Kind = "grant_not_found"
	KindNotAuthorized       Kind = "not_authorized"
	KindInvalidReference    Kind = "invalid_reference"
	KindGenerationExhausted Kind = "generation_exhausted"
	KindStoreUnavailable    Kind = "store_unavailable"
	KindInvalidInput        Kind = "invalid_input"
	KindNotFound            Kind = "not_found"
	KindInternal            Kind = "internal"
)

// Error is a classified error. Msg is safe to show to end users.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// Is matches on Kind so wrapped sentinels compare equal with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New returns an error of the given kind with a custom message.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

var (
	ErrInvalidCodeFormat   = &Error{Kind: KindInvalidCodeFormat, Msg: "doctor code has an invalid format"}
	ErrDoctorNotFound      = &Error{Kind: KindDoctorNotFound, Msg: "no doctor found for this code"}
	ErrAlreadyShared       = &Error{Kind: KindAlreadyShared, Msg: "profile is already shared with this doctor"}
	ErrGrantNotFound       = &Error{Kind: KindGrantNotFound, Msg: "no sharing grant exists for this doctor"}
	ErrNotAuthorized       = &Error{Kind: KindNotAuthorized, Msg: "not authorized to access this patient"}
	ErrInvalidReference    = &Error{Kind: KindInvalidReference, Msg: "share reference is malformed"}
	ErrGenerationExhausted = &Error{Kind: KindGenerationExhausted, Msg: "could not generate a unique doctor code"}
	ErrStoreUnavailable    = &Error{Kind: KindStoreUnavailable, Msg: "data store is unavailable, try again"}
	ErrInvalidInput        = &Error{Kind: KindInvalidInput, Msg: "invalid input"}
	ErrNotFound            = &Error{Kind: KindNotFound, Msg: "not found"}
)

// KindOf returns the Kind of the first classified error in err's chain,
// or KindInternal when none is present.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the user-facing message for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return "internal server error"
}

// HTTPStatus maps an error to the response status used by the API.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInvalidCodeFormat, KindInvalidReference, KindInvalidInput:
		return http.StatusBadRequest
	case KindDoctorNotFound, KindGrantNotFound, KindNotFound:
		return http.StatusNotFound
	case KindAlreadyShared:
		return http.StatusConflict
	case KindNotAuthorized:
		return http.StatusForbidden
	case KindGenerationExhausted, KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the caller should retry the action with backoff.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindGenerationExhausted, KindStoreUnavailable:
		return true
	}
	return false
}
