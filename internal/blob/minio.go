package blob

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	mclient "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinioConfig struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
}

// MinioBackend stores blobs as objects in one S3 compatible bucket.
type MinioBackend struct {
	client *mclient.Client
	bucket string
}

// NewMinioBackend accepts an endpoint with or without scheme; https selects
// TLS. The bucket must already exist.
func NewMinioBackend(ctx context.Context, cfg MinioConfig) (*MinioBackend, error) {
	endpoint := cfg.Endpoint
	secure := strings.HasPrefix(endpoint, "https://")

	if u, err := url.Parse(endpoint); err == nil && u.Scheme != "" && u.Host != "" {
		endpoint = u.Host
		secure = u.Scheme == "https"
	}

	client, err := mclient.New(endpoint, &mclient.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %q does not exist", cfg.Bucket)
	}

	return &MinioBackend{client: client, bucket: cfg.Bucket}, nil
}

func (m *MinioBackend) Put(ctx context.Context, key string, src io.Reader, size int64, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, src, size, mclient.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=31536000, immutable",
	})
	if err != nil {
		return fmt.Errorf("putting object %q: %w", key, err)
	}
	return nil
}

func (m *MinioBackend) Open(ctx context.Context, key string) (*Object, error) {
	info, err := m.client.StatObject(ctx, m.bucket, key, mclient.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("stat object %q: %w", key, err)
	}

	obj, err := m.client.GetObject(ctx, m.bucket, key, mclient.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("getting object %q: %w", key, err)
	}

	contentType := info.ContentType
	if contentType == "" {
		contentType = contentTypeForKey(key)
	}
	return &Object{
		Body:        obj,
		Size:        info.Size,
		ContentType: contentType,
	}, nil
}

func (m *MinioBackend) Delete(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, key, mclient.RemoveObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return ErrNotFound
		}
		return fmt.Errorf("removing object %q: %w", key, err)
	}
	return nil
}

func isNoSuchKey(err error) bool {
	resp := mclient.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}
