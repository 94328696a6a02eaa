package alerting

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/argus-video/argus/internal/logger"
)

// S3Options configures optional object-storage replication of alert
// images.
type S3Options struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// ImageStore persists annotated alert images to the local image
// directory and, when configured, mirrors them to S3-compatible
// storage. Upload failures are logged and never fail the alert.
type ImageStore struct {
	dir    string
	log    *logger.Logger
	s3     *minio.Client
	bucket string
}

// NewImageStore prepares the local directory and the optional S3
// client.
func NewImageStore(dir string, s3opts S3Options, log *logger.Logger) (*ImageStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}
	s := &ImageStore{dir: dir, log: log}

	if s3opts.Enabled {
		client, err := minio.New(s3opts.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(s3opts.AccessKey, s3opts.SecretKey, ""),
			Secure: s3opts.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("create s3 client: %w", err)
		}
		s.s3 = client
		s.bucket = s3opts.Bucket
	}
	return s, nil
}

// Save writes the JPEG bytes under a timestamped name and returns the
// relative path recorded on the alert.
func (s *ImageStore) Save(ctx context.Context, taskID int64, class string, data []byte) (string, error) {
	name := fmt.Sprintf("task%d_%s_%s.jpg", taskID, class, time.Now().Format("20060102_150405.000"))
	full := filepath.Join(s.dir, name)
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write alert image: %w", err)
	}

	if s.s3 != nil {
		if _, err := s.s3.PutObject(ctx, s.bucket, name,
			bytes.NewReader(data), int64(len(data)),
			minio.PutObjectOptions{ContentType: "image/jpeg"}); err != nil {
			s.log.Warn("alert image upload failed", "object", name, "error", err)
		}
	}
	return name, nil
}

// Path resolves a stored image name to its local path.
func (s *ImageStore) Path(name string) string {
	return filepath.Join(s.dir, filepath.Base(name))
}
