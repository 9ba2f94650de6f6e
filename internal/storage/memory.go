package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"
)

var _ Storage = (*MemoryStorage)(nil)

// MemoryStorage keeps objects in process memory. It is meant for local
// development and tests; nothing survives a restart.
type MemoryStorage struct {
	bucket  string
	baseURL string
	now     func() time.Time

	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data        []byte
	contentType string
}

// NewMemoryStorage creates an empty in-memory bucket. Presigned URLs are built
// under baseURL, e.g. "memory://documents".
func NewMemoryStorage(bucket, baseURL string) *MemoryStorage {
	if baseURL == "" {
		baseURL = "memory://" + bucket
	}
	return &MemoryStorage{
		bucket:  bucket,
		baseURL: baseURL,
		now:     time.Now,
		objects: make(map[string]memoryObject),
	}
}

// Upload reads the full stream before storing it, so a failed read leaves
// nothing behind.
func (s *MemoryStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("put object %q: %w", key, err)
	}
	if size >= 0 && int64(len(data)) != size {
		return fmt.Errorf("put object %q: read %d bytes, expected %d", key, len(data), size)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("put object %q: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = memoryObject{data: data, contentType: contentType}
	return nil
}

// Download returns the stored bytes, or ErrObjectNotFound.
func (s *MemoryStorage) Download(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, ObjectInfo{}, fmt.Errorf("get object %q: %w", key, ErrObjectNotFound)
	}
	info := ObjectInfo{Key: key, Size: int64(len(obj.data)), ContentType: obj.contentType}
	return io.NopCloser(bytes.NewReader(obj.data)), info, nil
}

// Delete removes key. Missing keys are ignored.
func (s *MemoryStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

// List returns every stored object sorted by key.
func (s *MemoryStorage) List(ctx context.Context) ([]ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	objects := make([]ObjectInfo, 0, len(s.objects))
	for key, obj := range s.objects {
		objects = append(objects, ObjectInfo{Key: key, Size: int64(len(obj.data)), ContentType: obj.contentType})
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

// PresignedURL returns an unsigned URL carrying the S3-style X-Amz-Date and
// X-Amz-Expires parameters.
func (s *MemoryStorage) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	q := url.Values{}
	q.Set("X-Amz-Date", s.now().UTC().Format("20060102T150405Z"))
	q.Set("X-Amz-Expires", strconv.FormatInt(int64(expiry/time.Second), 10))
	return s.baseURL + "/" + url.PathEscape(key) + "?" + q.Encode(), nil
}

// Bucket returns the configured bucket name.
func (s *MemoryStorage) Bucket() string {
	return s.bucket
}
