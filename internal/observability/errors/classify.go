// Package errors derives low-cardinality error classes for metric tags.
package errors

import (
	"context"
	goerrors "errors"
	"reflect"
	"strings"

	"github.com/converti/converti-api/internal/domain/model"
	apperrors "github.com/converti/converti-api/internal/errors"
)

// Classify returns a short class name for err, or "" when err is nil.
// Application errors report their code and declared conversion failures
// report "conversion". Anything else falls back to the innermost type name.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	if code := apperrors.GetCode(err); code != "" {
		return string(code)
	}
	var convErr *model.ConversionError
	if goerrors.As(err, &convErr) {
		return "conversion"
	}
	switch {
	case goerrors.Is(err, context.Canceled):
		return "canceled"
	case goerrors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case goerrors.Is(err, model.ErrQueueFull):
		return "queue_full"
	}

	for {
		inner := goerrors.Unwrap(err)
		if inner == nil {
			break
		}
		err = inner
	}

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}
	name := strings.ReplaceAll(strings.ToLower(t.String()), ".", "_")
	if name == "" {
		return "unknown"
	}
	return name
}
