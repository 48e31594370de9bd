package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// ErrTooLarge is returned when an upload exceeds the configured size
// limit.
var ErrTooLarge = errors.New("platform: upload too large")

// Storage uploads design assets to the platform's object store. The
// store speaks the S3 protocol, so the client is a plain S3 client
// pointed at the platform's storage endpoint.
//
// Example:
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	store := platform.NewStorage(s3.NewFromConfig(cfg), "designs", 50<<20)
//	key, err := store.Upload(ctx, "design.png", "image/png", size, file)
type Storage struct {
	client    *s3.Client
	bucket    string
	prefix    string
	maxSize   int64
	urlExpiry time.Duration
}

// NewStorage creates a storage client for the given bucket.
// maxSize of 0 means no limit.
func NewStorage(client *s3.Client, bucket string, maxSize int64) *Storage {
	return &Storage{
		client:    client,
		bucket:    bucket,
		prefix:    "designs/",
		maxSize:   maxSize,
		urlExpiry: 24 * time.Hour,
	}
}

// WithPrefix sets the object key prefix. Default: "designs/".
func (s *Storage) WithPrefix(prefix string) *Storage {
	s.prefix = prefix
	return s
}

// WithURLExpiry sets how long download URLs stay valid.
func (s *Storage) WithURLExpiry(d time.Duration) *Storage {
	s.urlExpiry = d
	return s
}

// Upload stores the content and returns the object key. The key embeds
// a random component so concurrent uploads of the same filename cannot
// collide.
func (s *Storage) Upload(ctx context.Context, filename, contentType string, size int64, r io.Reader) (string, error) {
	if s.maxSize > 0 && size > s.maxSize {
		return "", fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, size, s.maxSize)
	}

	key := s.prefix + uuid.NewString() + "/" + filename

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          r,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return "", &PlatformError{Op: "storage_upload", Err: err}
	}
	return key, nil
}

// PresignedURL returns a time-limited download URL for an object key.
func (s *Storage) PresignedURL(ctx context.Context, key string) (string, error) {
	presigner := s3.NewPresignClient(s.client)
	out, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.urlExpiry))
	if err != nil {
		return "", &PlatformError{Op: "storage_presign", Err: err}
	}
	return out.URL, nil
}

// Delete removes an object.
func (s *Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return &PlatformError{Op: "storage_delete", Err: err}
	}
	return nil
}
