// Package storage defines the interface for object storage operations.
// Swap implementations by changing the concrete type injected at startup:
// the MinIO implementation works with any S3-compatible provider, the S3
// implementation uses the AWS SDK, and the memory implementation serves
// local development and tests.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrObjectNotFound is returned by Download when the key does not exist in the bucket.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
}

// Storage is the interface for storing and retrieving objects in a single bucket.
type Storage interface {
	// Upload streams data to the store under the given key.
	// size is the exact byte count, or -1 if unknown.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	// Download returns the object content. The caller must close the reader.
	// Returns ErrObjectNotFound if the key does not exist.
	Download(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Delete removes an object identified by key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// List returns every object in the bucket ordered by key.
	List(ctx context.Context) ([]ObjectInfo, error)
	// PresignedURL returns a URL granting read access to key until expiry elapses.
	PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	// Bucket returns the configured bucket name.
	Bucket() string
}
