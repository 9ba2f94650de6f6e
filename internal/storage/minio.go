package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var _ Storage = (*MinioStorage)(nil)

// MinioConfig configures a MinioStorage.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	// Region is used for request signing. Setting it avoids a bucket-location
	// lookup before every presign.
	Region string
	UseSSL bool
	// CreateBucket creates the bucket at startup when it does not exist.
	CreateBucket bool
}

// MinioStorage implements Storage using a MinIO (or any S3-compatible) backend.
type MinioStorage struct {
	client *minio.Client
	bucket string
}

// NewMinioStorage creates a MinIO client and, when cfg.CreateBucket is set,
// ensures the bucket exists.
func NewMinioStorage(ctx context.Context, cfg MinioConfig) (*MinioStorage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	s := &MinioStorage{client: client, bucket: cfg.Bucket}
	if cfg.CreateBucket {
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// EnsureBucket creates the bucket if it does not already exist.
func (s *MinioStorage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %q: %w", s.bucket, err)
	}
	slog.Info("storage: created bucket", "bucket", s.bucket)
	return nil
}

// Upload streams reader to MinIO under key. Pass size -1 if the length is
// unknown; MinIO then buffers the stream in parts.
func (s *MinioStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put object %q: %w", key, err)
	}
	return nil
}

// Download opens the object at key. GetObject is lazy, so the object is
// stat'ed first to surface a missing key before any bytes are read.
func (s *MinioStorage) Download(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, ObjectInfo{}, s.classify(key, err)
	}

	stat, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, ObjectInfo{}, s.classify(key, err)
	}

	return obj, ObjectInfo{Key: stat.Key, Size: stat.Size, ContentType: stat.ContentType}, nil
}

// Delete removes the object at key from the bucket.
func (s *MinioStorage) Delete(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil && !isMinioNotFound(err) {
		return fmt.Errorf("remove object %q: %w", key, err)
	}
	return nil
}

// List walks the whole bucket. The client follows continuation tokens
// internally, so every page is returned.
func (s *MinioStorage) List(ctx context.Context) ([]ObjectInfo, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var objects []ObjectInfo
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list objects: %w", obj.Err)
		}
		objects = append(objects, ObjectInfo{Key: obj.Key, Size: obj.Size, ContentType: obj.ContentType})
	}
	return objects, nil
}

// PresignedURL returns a SigV4 presigned GET URL for key.
func (s *MinioStorage) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign object %q: %w", key, err)
	}
	return u.String(), nil
}

// Bucket returns the configured bucket name.
func (s *MinioStorage) Bucket() string {
	return s.bucket
}

func (s *MinioStorage) classify(key string, err error) error {
	if isMinioNotFound(err) {
		return fmt.Errorf("get object %q: %w", key, ErrObjectNotFound)
	}
	return fmt.Errorf("get object %q: %w", key, err)
}

func isMinioNotFound(err error) bool {
	if errors.Is(err, ErrObjectNotFound) {
		return true
	}
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
