package content

import "errors"

var (
	// ErrNotFound is returned when a referenced entity id does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation is returned for malformed or missing required input.
	ErrValidation = errors.New("validation rejected")
	// ErrStorageUnavailable is returned when the backing store cannot be reached.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrUpload is returned when a photo could not be written to blob storage.
	ErrUpload = errors.New("upload failed")
)
