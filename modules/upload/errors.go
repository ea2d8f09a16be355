package upload

import "errors"

// Sentinel errors for upload operations.
var (
	// ErrFileTooLarge is returned when an upload exceeds the configured size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrStorageUnavailable is returned when the upload directory cannot be used.
	ErrStorageUnavailable = errors.New("upload storage unavailable")

	// ErrWriteFailed is returned when the file could not be written to disk.
	ErrWriteFailed = errors.New("failed to write file")
)
