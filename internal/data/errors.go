package data

import "errors"

// Shared sentinel errors for the data layer.
var (
	ErrJobIDRequired   = errors.New("job id is required")
	ErrInvalidFileName = errors.New("invalid file name")
	ErrNoArchiveInputs = errors.New("no files to archive")
)
