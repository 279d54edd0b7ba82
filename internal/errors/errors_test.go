package errors

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "error without cause",
			err:  &AppError{Code: ErrCodeNotFound, Message: "Job not found"},
			want: "Job not found",
		},
		{
			name: "error with cause",
			err: &AppError{
				Code:    ErrCodeInternal,
				Message: "failed to save upload",
				Cause:   errors.New("disk quota exceeded"),
			},
			want: "failed to save upload: disk quota exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		code ErrorCode
		msg  string
		is   func(error) bool
	}{
		{"not found", NotFoundf("Job %s not found", "abc"), ErrCodeNotFound, "Job abc not found", IsNotFound},
		{"validation", Validation("No files uploaded"), ErrCodeValidation, "No files uploaded", IsValidation},
		{"not found no args", NotFoundf("Job not found"), ErrCodeNotFound, "Job not found", IsNotFound},
		{"validation field", ValidationField("files", "No files"), ErrCodeValidation, "No files", IsValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.msg, tt.err.Message)
			assert.True(t, tt.is(tt.err))
			assert.Equal(t, tt.code, GetCode(fmt.Errorf("outer: %w", tt.err)))
		})
	}

	t.Run("formatted codes", func(t *testing.T) {
		conflict := Conflictf("job %s: illegal transition", "a")
		assert.Equal(t, ErrCodeConflict, conflict.Code)
		assert.Equal(t, "job a: illegal transition", conflict.Message)

		busy := Unavailablef("queue full (%d)", 3)
		assert.Equal(t, ErrCodeUnavailable, busy.Code)
		assert.Equal(t, "queue full (3)", busy.Message)
		assert.False(t, IsNotFound(busy))
	})
}

func TestValidationField(t *testing.T) {
	err := ValidationField("category", "Unsupported category")
	assert.Equal(t, "category", GetField(err))
	assert.Empty(t, GetField(errors.New("plain")))
	assert.Empty(t, GetCode(errors.New("plain")))
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrCodeInternal, "x"))

	cause := errors.New("root")
	err := Wrap(cause, ErrCodeInternal, "Failed to queue job")
	require.ErrorIs(t, err, cause)
	assert.Equal(t, "Failed to queue job: root", err.Error())
	assert.Equal(t, ErrCodeInternal, GetCode(err))
}

func TestMapFSError(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want ErrorCode
	}{
		{"not exist", fs.ErrNotExist, ErrCodeNotFound},
		{"wrapped not exist", &fs.PathError{Op: "open", Path: "/x", Err: fs.ErrNotExist}, ErrCodeNotFound},
		{"exist", fs.ErrExist, ErrCodeConflict},
		{"deadline", context.DeadlineExceeded, ErrCodeTimeout},
		{"canceled", context.Canceled, ErrCodeCanceled},
		{"other", errors.New("eio"), ErrCodeInternal},
		{"app error passthrough", Validation("bad"), ErrCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetCode(MapFSError(tt.in, "op failed")))
		})
	}

	assert.NoError(t, MapFSError(nil, "x"))
}
