package model

import (
	"fmt"
	"strings"
)

// Category identifies a conversion domain. The set is closed.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type Category string

const (
	// CategoryImages converts raster images.
	CategoryImages Category = "images"
	// CategoryAudio converts audio files.
	CategoryAudio Category = "audio"
	// CategoryVideo converts video files.
	CategoryVideo Category = "video"
	// CategoryDocuments converts text documents.
	CategoryDocuments Category = "documents"
)

// Categories returns every known category in a stable order.
func Categories() []Category {
	return []Category{CategoryImages, CategoryAudio, CategoryVideo, CategoryDocuments}
}

// Valid returns true if the Category is one of the known variants.
func (c Category) Valid() bool {
	switch c {
	case CategoryImages, CategoryAudio, CategoryVideo, CategoryDocuments:
		return true
	default:
		return false
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(text []byte) error {
	v := Category(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid category: %q", v)
	}
	*c = v
	return nil
}

// ConversionRequest describes one file conversion handed to a capability.
type ConversionRequest struct {
	Category     Category
	SourcePath   string
	OutputPath   string
	TargetFormat string
}

// ConversionError is a declared conversion failure. Its message is shown to users.
type ConversionError struct {
	Message string
	Cause   error
}

// NewConversionError builds a ConversionError with a formatted message.
func NewConversionError(format string, args ...any) *ConversionError {
	return &ConversionError{Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *ConversionError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *ConversionError) Unwrap() error {
	return e.Cause
}
