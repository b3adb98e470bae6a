package client

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/zgsm-ai/chat-proxy/internal/config"
)

// ImageStore offloads generated images and returns a URL for them
type ImageStore interface {
	PutImage(ctx context.Context, name string, data []byte, contentType string) (string, error)
}

// MinioImageStore uploads images to an S3-compatible bucket
type MinioImageStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewMinioImageStore returns nil, nil when no endpoint is configured
func NewMinioImageStore(c config.ObjectStoreConfig) (*MinioImageStore, error) {
	if c.Endpoint == "" {
		return nil, nil
	}
	mc, err := minio.New(c.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.AccessKey, c.SecretKey, ""),
		Secure: c.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	publicURL := strings.TrimRight(c.PublicURL, "/")
	if publicURL == "" {
		publicURL = strings.TrimRight(mc.EndpointURL().String(), "/")
	}
	return &MinioImageStore{client: mc, bucket: c.Bucket, publicURL: publicURL}, nil
}

func (s *MinioImageStore) PutImage(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("upload image %s: %w", name, err)
	}
	return fmt.Sprintf("%s/%s/%s", s.publicURL, s.bucket, name), nil
}
