package errors

import (
	"context"
	goerrors "errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/converti/converti-api/internal/domain/model"
	apperrors "github.com/converti/converti-api/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"app error", apperrors.NotFoundf("Job x not found"), "not_found"},
		{"wrapped app error", fmt.Errorf("outer: %w", apperrors.Unavailablef("busy")), "unavailable"},
		{"conversion", model.NewConversionError("bad input"), "conversion"},
		{"canceled", fmt.Errorf("x: %w", context.Canceled), "canceled"},
		{"queue full", model.ErrQueueFull, "queue_full"},
		{"path error", &fs.PathError{Op: "open", Path: "/x", Err: fs.ErrPermission}, "errors_errorstring"},
		{"plain", goerrors.New("boom"), "errors_errorstring"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
