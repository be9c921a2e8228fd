package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"

	"github.com/courseportal/portal/internal/ids"
)

// Archive keeps copies of uploaded Zoom logs and generated exports.
type Archive interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
}

type MinIOArchive struct {
	client *minio.Client
	bucket string
	region string
	logger zerolog.Logger

	ensureMu      sync.Mutex
	bucketEnsured bool
}

func NewMinIOArchive(endpoint, accessKey, secretKey, bucket, region string, useSSL bool, logger zerolog.Logger) (*MinIOArchive, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	logger.Info().
		Str("endpoint", endpoint).
		Str("bucket", bucket).
		Bool("ssl", useSSL).
		Msg("MinIO archive configured")

	return &MinIOArchive{
		client: client,
		bucket: bucket,
		region: region,
		logger: logger,
	}, nil
}

// ensureBucket creates the bucket on first use. Failures are not cached so a
// later call retries.
func (a *MinIOArchive) ensureBucket(ctx context.Context) error {
	a.ensureMu.Lock()
	defer a.ensureMu.Unlock()
	if a.bucketEnsured {
		return nil
	}

	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("minio not ready: %w", err)
	}
	if !exists {
		if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{Region: a.region}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", a.bucket, err)
		}
		a.logger.Info().Str("bucket", a.bucket).Msg("Created new bucket")
	}

	a.bucketEnsured = true
	return nil
}

func (a *MinIOArchive) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	if err := a.ensureBucket(ctx); err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	info, err := a.client.PutObject(ctx, a.bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}

	a.logger.Debug().
		Str("bucket", a.bucket).
		Str("key", key).
		Str("etag", info.ETag).
		Int64("size", info.Size).
		Msg("Object archived")

	return nil
}

// Ping checks that the archive endpoint answers.
func (a *MinIOArchive) Ping(ctx context.Context) error {
	_, err := a.client.BucketExists(ctx, a.bucket)
	return err
}

// Key builds an object key under prefix/YYYY/MM/DD/ with a sortable unique
// prefix on the file name.
func Key(prefix, filename string, at time.Time) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "upload"
	}
	return path.Join(prefix, at.UTC().Format("2006/01/02"), ids.New()+"-"+name)
}
