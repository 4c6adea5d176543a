package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config holds the S3-compatible object store settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Expiry    time.Duration
}

// Service wraps an S3-compatible object store. The rest of the system only
// sees three capabilities: presigned upload, presigned download, and an
// existence probe by bucket key.
type Service struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

// Upload carries everything a client needs to POST a file directly to the
// object store.
type Upload struct {
	UploadURL string            `json:"upload_url"`
	Fields    map[string]string `json:"fields"`
	BucketKey string            `json:"bucket_key"`
}

func NewService(cfg Config) (*Service, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: create client: %w", err)
	}

	expiry := cfg.Expiry
	if expiry <= 0 {
		expiry = time.Hour
	}

	return &Service{
		client: client,
		bucket: cfg.Bucket,
		expiry: expiry,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (s *Service) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("storage: check bucket: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("storage: create bucket: %w", err)
		}
	}
	return nil
}

// Exists reports whether an object is present under the bucket key. A
// missing key is not an error; anything else is surfaced.
func (s *Service) Exists(ctx context.Context, bucketKey string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, bucketKey, minio.StatObjectOptions{})
	if err != nil {
		var resp minio.ErrorResponse
		if errors.As(err, &resp) && (resp.Code == "NoSuchKey" || resp.StatusCode == 404) {
			return false, nil
		}
		return false, fmt.Errorf("storage: stat object: %w", err)
	}
	return true, nil
}

// PresignedUpload builds a time-limited POST policy so clients upload
// straight to the object store, pinned to the declared content type.
func (s *Service) PresignedUpload(ctx context.Context, bucketKey, contentType string) (Upload, error) {
	policy := minio.NewPostPolicy()
	if err := policy.SetBucket(s.bucket); err != nil {
		return Upload{}, fmt.Errorf("storage: set policy bucket: %w", err)
	}
	if err := policy.SetKey(bucketKey); err != nil {
		return Upload{}, fmt.Errorf("storage: set policy key: %w", err)
	}
	if err := policy.SetContentType(contentType); err != nil {
		return Upload{}, fmt.Errorf("storage: set policy content type: %w", err)
	}
	if err := policy.SetExpires(time.Now().UTC().Add(s.expiry)); err != nil {
		return Upload{}, fmt.Errorf("storage: set policy expiry: %w", err)
	}
	// 10 GiB cap, same as the bucket-side limit.
	if err := policy.SetContentLengthRange(1, 10*1024*1024*1024); err != nil {
		return Upload{}, fmt.Errorf("storage: set policy length range: %w", err)
	}

	uploadURL, formData, err := s.client.PresignedPostPolicy(ctx, policy)
	if err != nil {
		return Upload{}, fmt.Errorf("storage: presign upload: %w", err)
	}

	return Upload{
		UploadURL: uploadURL.String(),
		Fields:    formData,
		BucketKey: bucketKey,
	}, nil
}

// PresignedDownload produces a time-limited GET URL for the object.
func (s *Service) PresignedDownload(ctx context.Context, bucketKey string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, bucketKey, s.expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("storage: presign download: %w", err)
	}
	return u.String(), nil
}
