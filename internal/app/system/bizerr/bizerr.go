// internal/app/system/bizerr/bizerr.go

// Package bizerr defines the typed, recoverable business outcomes the
// group-buy services return. Every rejected initiate/join/admin action
// maps to exactly one Kind so callers can render a specific message.
// Anything outside this taxonomy (storage connectivity, driver errors)
// is an infrastructure fault and passes through untyped.
package bizerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind enumerates the business-error taxonomy.
type Kind int

const (
	// KindUnknown marks errors that are not business errors.
	KindUnknown Kind = iota
	KindNotFound
	KindValidation
	KindActivityExpired
	KindGroupExpired
	KindGroupFull
	KindAlreadyJoined
	KindParticipationLimit
	KindInvalidTransition
)

// String returns a stable machine-readable code for the kind.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation_error"
	case KindActivityExpired:
		return "activity_expired"
	case KindGroupExpired:
		return "group_expired"
	case KindGroupFull:
		return "group_full"
	case KindAlreadyJoined:
		return "already_joined"
	case KindParticipationLimit:
		return "participation_limit_exceeded"
	case KindInvalidTransition:
		return "invalid_state_transition"
	}
	return "unknown"
}

// HTTPStatus maps the kind to the status code the API layer responds with.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindActivityExpired, KindGroupExpired, KindGroupFull,
		KindAlreadyJoined, KindParticipationLimit, KindInvalidTransition:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// Error is a business error with a caller-facing message.
type Error struct {
	Kind Kind
	Msg  string
	Err  error // optional underlying cause
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match two business errors by kind.
func (e *Error) Is(target error) bool {
	var be *Error
	if errors.As(target, &be) {
		return be.Kind == e.Kind
	}
	return false
}

// New constructs a business error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf constructs a business error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the business kind from err, or KindUnknown when err
// is nil or not a business error.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given business kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
