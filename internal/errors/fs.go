package errors

import (
	"context"
	"errors"
	"io/fs"
	"syscall"
)

// MapFSError maps filesystem and context errors to AppError instances.
// It handles:
// - fs.ErrNotExist → NotFound
// - fs.ErrExist → Conflict
// - ENOSPC → Unavailable
// - context.DeadlineExceeded → Timeout
// - context.Canceled → Canceled
// Anything else becomes Internal. AppErrors pass through unchanged.
func MapFSError(err error, message string) error {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return err
	}

	switch {
	case errors.Is(err, fs.ErrNotExist):
		return Wrap(err, ErrCodeNotFound, message)
	case errors.Is(err, fs.ErrExist):
		return Wrap(err, ErrCodeConflict, message)
	case errors.Is(err, syscall.ENOSPC):
		return Wrap(err, ErrCodeUnavailable, message)
	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(err, ErrCodeTimeout, message)
	case errors.Is(err, context.Canceled):
		return Wrap(err, ErrCodeCanceled, message)
	default:
		return Wrap(err, ErrCodeInternal, message)
	}
}
