// Package apierr classifies failures reported to API clients.
//
// Every handled failure carries a Kind, which selects the HTTP status, and a
// stable Reason string, which is what clients see in {"error": reason}.
package apierr

import (
	"errors"
	"net/http"
)

// Kind is the class of a failure.
type Kind int

const (
	Internal Kind = iota
	Unauthorized
	Validation
	NotFound
	Conflict
	FolderHasNoContent
	PipelineFailure
)

func (k Kind) String() string {
	switch k {
	case Unauthorized:
		return "unauthorized"
	case Validation:
		return "validation"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case FolderHasNoContent:
		return "folder_has_no_content"
	case PipelineFailure:
		return "pipeline_failure"
	default:
		return "internal"
	}
}

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	switch k {
	case Unauthorized:
		return http.StatusUnauthorized
	case Validation, Conflict, FolderHasNoContent:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Stable reason strings.
const (
	ReasonUnauthorized       = "Unauthorized"
	ReasonMissingName        = "Missing name"
	ReasonMissingType        = "Missing type"
	ReasonMissingData        = "Missing data"
	ReasonParentNotFound     = "Parent not found"
	ReasonParentNotAFolder   = "Parent is not a folder"
	ReasonMissingEmail       = "Missing email"
	ReasonMissingPassword    = "Missing password"
	ReasonInvalidData        = "Invalid data"
	ReasonNotFound           = "Not found"
	ReasonAlreadyExists      = "Already exist"
	ReasonFolderHasNoContent = "A folder doesn't have content"
	ReasonInternal           = "Internal server error"
)

// Error is a classified failure.
type Error struct {
	Kind   Kind
	Reason string
	Err    error // underlying cause, never shown to clients
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same kind and reason, so the
// package-level values below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Reason == t.Reason
}

// New returns an error of the given kind and reason.
func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// Wrap attaches a cause to a classified error.
func Wrap(kind Kind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

var (
	ErrUnauthorized       = New(Unauthorized, ReasonUnauthorized)
	ErrMissingName        = New(Validation, ReasonMissingName)
	ErrMissingType        = New(Validation, ReasonMissingType)
	ErrMissingData        = New(Validation, ReasonMissingData)
	ErrInvalidData        = New(Validation, ReasonInvalidData)
	ErrParentNotFound     = New(Validation, ReasonParentNotFound)
	ErrParentNotAFolder   = New(Validation, ReasonParentNotAFolder)
	ErrMissingEmail       = New(Validation, ReasonMissingEmail)
	ErrMissingPassword    = New(Validation, ReasonMissingPassword)
	ErrNotFound           = New(NotFound, ReasonNotFound)
	ErrAlreadyExists      = New(Conflict, ReasonAlreadyExists)
	ErrFolderHasNoContent = New(FolderHasNoContent, ReasonFolderHasNoContent)
)

// From classifies err. Anything that is not an *Error is Internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(Internal, ReasonInternal, err)
}

// KindOf returns the kind of err, or Internal.
func KindOf(err error) Kind {
	return From(err).Kind
}
