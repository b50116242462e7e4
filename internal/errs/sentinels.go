// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"fmt"
)

// Common sentinels across pipeline/repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates missing or malformed input; the caller corrects it and resubmits.
	ErrValidation = errors.New("validation")

	// ErrUnsupportedFormat indicates an image that cannot be encoded for the generation service.
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrGeneration indicates the generation service rejected the call.
	ErrGeneration = errors.New("generation failed")

	// ErrEmptyResult indicates the generation call succeeded but carried no image.
	ErrEmptyResult = errors.New("no image generated in the response")

	// ErrUnauthorized indicates failed authentication or a missing session.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (username or email taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrCapacity indicates the storage backend ran out of space.
	ErrCapacity = errors.New("storage full")

	// ErrMissingCredential indicates the generation service credential is not configured.
	ErrMissingCredential = errors.New("missing generation service credential")
)

// UnsupportedFormatError reports the declared MIME type of an image that could not be converted.
type UnsupportedFormatError struct {
	MIMEType string
	Err      error
}

func (e *UnsupportedFormatError) Error() string {
	typ := e.MIMEType
	if typ == "" {
		typ = "unknown"
	}
	msg := fmt.Sprintf("failed to process image format: %s; please upload a standard image format (JPEG, PNG)", typ)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the decoder error.
func (e *UnsupportedFormatError) Unwrap() error { return e.Err }

// Is matches ErrUnsupportedFormat.
func (e *UnsupportedFormatError) Is(target error) bool { return target == ErrUnsupportedFormat }

// Validation wraps ErrValidation with a field-specific message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
