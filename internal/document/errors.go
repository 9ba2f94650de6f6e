package document

import (
	"errors"
	"fmt"
)

// Gateway errors. Every error returned by Service wraps exactly one of these
// together with the underlying cause.
var (
	// ErrNotFound is returned by Download when the key does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrInvalidInput is returned for empty or malformed keys, filenames and streams.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStoreUnavailable is returned when the object store cannot serve a read,
	// delete, list or presign request.
	ErrStoreUnavailable = errors.New("object store unavailable")
	// ErrStoreWrite is returned when an upload did not complete.
	ErrStoreWrite = errors.New("failed to store document")
)

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func notFound(err error) error {
	return fmt.Errorf("%w: %w", ErrNotFound, err)
}

func storeUnavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

func storeWrite(err error) error {
	return fmt.Errorf("%w: %w", ErrStoreWrite, err)
}
