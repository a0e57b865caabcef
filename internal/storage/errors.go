package storage

import (
	"errors"
	"fmt"
	"os"
)

// ErrNotFound is returned when a referenced task file or directory entry
// does not exist.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned when input is rejected before any file is touched.
var ErrValidation = errors.New("validation failed")

// IOError wraps an unexpected filesystem failure with the operation and path
// that produced it.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// wrapFSError classifies a filesystem error. Missing files become ErrNotFound;
// anything else becomes an *IOError.
func wrapFSError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s %s: %w", op, path, ErrNotFound)
	}
	return &IOError{Op: op, Path: path, Err: err}
}

// validationErrorf builds an error wrapping ErrValidation.
func validationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
