package service

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/odvcencio/songlist/internal/database"
)

// Error kinds. Every error returned for a caller mistake wraps exactly one of
// these; anything else is a store or infrastructure failure.
var (
	ErrValidation      = errors.New("validation error")
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrConflict        = errors.New("conflict")
	ErrUnsupported     = errors.New("unsupported")
)

// Error is a classified failure carrying a message fit for the caller.
type Error struct {
	kind error
	msg  string
}

func (e *Error) Error() string { return e.msg }
func (e *Error) Unwrap() error { return e.kind }

func newError(kind error, format string, args ...any) error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// classify maps store sentinels onto error kinds. what names the entity the
// caller addressed.
func classify(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return newError(ErrNotFound, "%s not found", what)
	case errors.Is(err, database.ErrDuplicate):
		return newError(ErrConflict, "%s already exists", what)
	case errors.Is(err, database.ErrReference):
		return newError(ErrNotFound, "referenced record not found")
	}
	return fmt.Errorf("%s: %w", what, err)
}
