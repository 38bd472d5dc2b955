// Package perrors classifies Planyard failures into a small set of kinds that
// callers can branch on with errors.Is and that map onto HTTP statuses.
package perrors

import (
	"errors"
	"fmt"
	"net/http"

	"gorm.io/gorm"
)

// Kind is a sentinel identifying a class of failure.
type Kind struct {
	Code   string
	Status int
}

func (k *Kind) Error() string { return k.Code }

var (
	ErrValidation          = &Kind{"validation_error", http.StatusBadRequest}
	ErrNotFound            = &Kind{"not_found", http.StatusNotFound}
	ErrDuplicateAssignment = &Kind{"duplicate_assignment", http.StatusConflict}
	ErrUniquenessConflict  = &Kind{"uniqueness_conflict", http.StatusConflict}
	ErrPersistence         = &Kind{"persistence_error", http.StatusInternalServerError}
	ErrDataCorruption      = &Kind{"data_corruption", http.StatusInternalServerError}
	ErrPermissionDenied    = &Kind{"permission_denied", http.StatusForbidden}
	ErrUnauthorized        = &Kind{"unauthorized", http.StatusUnauthorized}
)

// Err carries a Kind together with a human-readable message and an optional
// underlying cause.
type Err struct {
	Kind    *Kind
	Message string
	Cause   error
}

func (e *Err) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Is reports a match against the error's Kind.
func (e *Err) Is(target error) bool {
	k, ok := target.(*Kind)
	return ok && k == e.Kind
}

func (e *Err) Unwrap() error { return e.Cause }

// New builds an Err of the given kind with a formatted message.
func New(kind *Kind, format string, args ...any) error {
	return &Err{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Err of the given kind around cause.
func Wrap(kind *Kind, cause error, format string, args ...any) error {
	return &Err{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func Validation(format string, args ...any) error {
	return New(ErrValidation, format, args...)
}

func NotFound(format string, args ...any) error {
	return New(ErrNotFound, format, args...)
}

func PermissionDenied(format string, args ...any) error {
	return New(ErrPermissionDenied, format, args...)
}

// Persistence classifies a storage error. Record-not-found and duplicate-key
// errors from gorm are mapped to their own kinds; everything else is a
// PersistenceError.
func Persistence(err error, format string, args ...any) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return Wrap(ErrNotFound, err, format, args...)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return Wrap(ErrUniquenessConflict, err, format, args...)
	}
	var pe *Err
	if errors.As(err, &pe) {
		return err
	}
	return Wrap(ErrPersistence, err, format, args...)
}

// KindOf returns the Kind of err, or ErrPersistence for unclassified errors.
func KindOf(err error) *Kind {
	var pe *Err
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ErrPersistence
}

// Status returns the HTTP status associated with err.
func Status(err error) int {
	return KindOf(err).Status
}
