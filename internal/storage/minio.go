package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinIOStore uploads media to an S3-compatible bucket. The bucket is
// created on first use when it does not exist.
type MinIOStore struct {
	client *minio.Client
	cfg    MinIOConfig
}

func NewMinIOStore(cfg MinIOConfig) (*MinIOStore, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required when DESIGNX_STORAGE_BACKEND=minio")
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		cfg.Bucket = "designx-media"
	}
	return &MinIOStore{client: client, cfg: cfg}, nil
}

func (m *MinIOStore) Put(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) (string, string, error) {
	exists, err := m.client.BucketExists(ctx, m.cfg.Bucket)
	if err != nil {
		return "", "", err
	}
	if !exists {
		if err := m.client.MakeBucket(ctx, m.cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return "", "", err
		}
	}
	objectName = strings.TrimLeft(objectName, "/")
	if _, err := m.client.PutObject(ctx, m.cfg.Bucket, objectName, r, size, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return "", "", err
	}
	scheme := "http"
	if m.cfg.UseSSL {
		scheme = "https"
	}
	url := fmt.Sprintf("%s://%s/%s/%s", scheme, m.cfg.Endpoint, m.cfg.Bucket, objectName)
	return m.cfg.Bucket + "/" + objectName, url, nil
}
