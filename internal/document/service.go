// Package document implements the object gateway: list, upload, download,
// delete and presign over a single object-storage bucket.
package document

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/radif/docgateway/internal/storage"
)

// DefaultPresignExpiry is the lifetime of a presigned link when none is configured.
const DefaultPresignExpiry = 24 * time.Hour

// maxKeyLen is the S3 object key limit in bytes.
const maxKeyLen = 1024

var validate = validator.New(validator.WithRequiredStructEnabled())

// UploadParams describes one uploaded file.
type UploadParams struct {
	// Filename is the client-supplied name. Only its base name is kept, as a
	// readable suffix of the generated key.
	Filename string `validate:"required"`
	// Content is read exactly once.
	Content io.Reader
	// Size is the content length in bytes, or -1 if unknown.
	Size        int64 `validate:"gte=-1"`
	ContentType string
}

// Download is a fully buffered object.
type Download struct {
	Key         string
	Data        []byte
	ContentType string
}

// Size returns the number of bytes in the object.
func (d *Download) Size() int64 {
	return int64(len(d.Data))
}

// PresignedLink is a signed URL and the instant it stops working.
type PresignedLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Service is the object gateway. It holds no mutable state; every call is a
// single delegation to the store.
type Service struct {
	store         storage.Storage
	presignExpiry time.Duration
	now           func() time.Time
}

// NewService creates a gateway over store. A non-positive presignExpiry
// selects DefaultPresignExpiry.
func NewService(store storage.Storage, presignExpiry time.Duration) *Service {
	if presignExpiry <= 0 {
		presignExpiry = DefaultPresignExpiry
	}
	return &Service{
		store:         store,
		presignExpiry: presignExpiry,
		now:           time.Now,
	}
}

// List returns every key in the bucket in store order.
func (s *Service) List(ctx context.Context) ([]string, error) {
	objects, err := s.store.List(ctx)
	if err != nil {
		return nil, storeUnavailable(err)
	}

	keys := make([]string, 0, len(objects))
	for _, obj := range objects {
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// Upload stores the content under a freshly generated key and returns it.
func (s *Service) Upload(ctx context.Context, params UploadParams) (string, error) {
	if err := validate.Struct(params); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			field := strings.ToLower(verrs[0].Field())
			if verrs[0].Tag() == "required" {
				return "", invalidInput("%s is required", field)
			}
			return "", invalidInput("%s is invalid", field)
		}
		return "", invalidInput("%v", err)
	}
	if params.Content == nil {
		return "", invalidInput("content is required")
	}

	name := sanitizeFilename(params.Filename)
	if name == "" {
		return "", invalidInput("filename %q has no usable characters", params.Filename)
	}

	key := uuid.NewString() + name
	if len(key) > maxKeyLen {
		return "", invalidInput("filename is too long")
	}

	if err := s.store.Upload(ctx, key, params.Content, params.Size, params.ContentType); err != nil {
		return "", storeWrite(err)
	}

	slog.InfoContext(ctx, "document uploaded", "key", key, "bucket", s.store.Bucket())
	return key, nil
}

// Download reads the whole object at key into memory.
func (s *Service) Download(ctx context.Context, key string) (*Download, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	rc, info, err := s.store.Download(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, notFound(err)
		}
		return nil, storeUnavailable(err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, storeUnavailable(err)
	}

	return &Download{Key: key, Data: data, ContentType: info.ContentType}, nil
}

// Delete removes the object at key. A missing key is not an error.
func (s *Service) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	if err := s.store.Delete(ctx, key); err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil
		}
		return storeUnavailable(err)
	}

	slog.InfoContext(ctx, "document deleted", "key", key, "bucket", s.store.Bucket())
	return nil
}

// PresignedURL returns a read link for key valid for the configured expiry.
// The key is not checked for existence.
func (s *Service) PresignedURL(ctx context.Context, key string) (*PresignedLink, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	expiresAt := s.now().Add(s.presignExpiry)
	u, err := s.store.PresignedURL(ctx, key, s.presignExpiry)
	if err != nil {
		return nil, storeUnavailable(err)
	}

	return &PresignedLink{URL: u, ExpiresAt: expiresAt}, nil
}

func validateKey(key string) error {
	if err := validate.Var(key, "required"); err != nil {
		return invalidInput("key is required")
	}
	if len(key) > maxKeyLen {
		return invalidInput("key is longer than %d bytes", maxKeyLen)
	}
	return nil
}

// sanitizeFilename keeps the base name of a client filename and drops quotes
// and control characters, so the resulting key is a single path segment that
// can be quoted in a Content-Disposition header.
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.Map(func(r rune) rune {
		if r == '"' || unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "." || name == ".." {
		return ""
	}
	return name
}
