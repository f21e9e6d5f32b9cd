package docs

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hubenschmidt/go-docsrag/core"
)

// ObjectConfig locates documents in an S3-compatible bucket.
type ObjectConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Region          string
	Bucket          string
	Prefix          string
	Extension       string
}

// ObjectSource reads documents stored as <prefix><id><extension>.
type ObjectSource struct {
	client *minio.Client
	cfg    ObjectConfig
}

func NewObjectSource(cfg ObjectConfig) (*ObjectSource, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint cannot be empty")
	}
	if cfg.Extension == "" {
		cfg.Extension = ".mdx"
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &ObjectSource{client: client, cfg: cfg}, nil
}

// Key returns the object key for id.
func (s *ObjectSource) Key(id string) string {
	return s.cfg.Prefix + id + s.cfg.Extension
}

func (s *ObjectSource) Fetch(ctx context.Context, id string) (string, error) {
	key := s.Key(id)
	obj, err := s.client.GetObject(ctx, s.cfg.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("get object %s: %w", key, err)
	}
	defer obj.Close()

	// GetObject is lazy; Stat surfaces a missing key.
	info, err := obj.Stat()
	if err != nil {
		if minio.ToErrorResponse(err).StatusCode == http.StatusNotFound {
			return "", fmt.Errorf("%w: %s/%s", core.ErrNotFound, s.cfg.Bucket, key)
		}
		return "", fmt.Errorf("stat object %s: %w", key, err)
	}
	if info.Size > maxDocumentBytes {
		return "", fmt.Errorf("document %s exceeds %d bytes", id, maxDocumentBytes)
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return "", fmt.Errorf("read object %s: %w", key, err)
	}
	return string(data), nil
}
