// Package export stores dashboard reports in a local directory or in
// S3-compatible object storage. When no bucket is configured reports are
// written to the local directory and pre-signed URLs are unavailable.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hyperengineering/portfolio/internal/config"
)

// ErrNotConfigured is returned when object storage is not configured.
var ErrNotConfigured = errors.New("report storage not configured")

// Uploader stores reports and generates download URLs.
type Uploader interface {
	// Upload stores data under name and returns where it was written.
	Upload(ctx context.Context, name string, data []byte) (string, error)

	// PresignedURL returns a pre-signed URL for downloading the report.
	// Returns ErrNotConfigured when object storage is not configured.
	PresignedURL(ctx context.Context, name string) (url string, expiry time.Time, err error)
}

// s3Client defines the minimal minio.Client operations used by S3Uploader.
// This interface enables testing with mock implementations.
type s3Client interface {
	PutObject(ctx context.Context, bucket, objectName string, data []byte, contentType string) error
	PresignedGetObject(ctx context.Context, bucket, objectName string, expiry time.Duration) (*url.URL, error)
}

// minioClientWrapper wraps *minio.Client to satisfy the s3Client interface.
type minioClientWrapper struct {
	client *minio.Client
}

func (w *minioClientWrapper) PutObject(ctx context.Context, bucket, objectName string, data []byte, contentType string) error {
	_, err := w.client.PutObject(ctx, bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

func (w *minioClientWrapper) PresignedGetObject(ctx context.Context, bucket, objectName string, expiry time.Duration) (*url.URL, error) {
	return w.client.PresignedGetObject(ctx, bucket, objectName, expiry, nil)
}

// S3Uploader stores reports in S3-compatible storage.
type S3Uploader struct {
	client    s3Client
	bucket    string
	urlExpiry time.Duration
}

// Upload puts the report at reports/{name}.
func (u *S3Uploader) Upload(ctx context.Context, name string, data []byte) (string, error) {
	key := objectKey(name)
	if err := u.client.PutObject(ctx, u.bucket, key, data, "application/json"); err != nil {
		return "", fmt.Errorf("upload report to S3: %w", err)
	}
	return "s3://" + u.bucket + "/" + key, nil
}

// PresignedURL returns a pre-signed GET URL for the report.
func (u *S3Uploader) PresignedURL(ctx context.Context, name string) (string, time.Time, error) {
	presigned, err := u.client.PresignedGetObject(ctx, u.bucket, objectKey(name), u.urlExpiry)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate pre-signed URL: %w", err)
	}
	expiry := time.Now().Add(u.urlExpiry)
	return presigned.String(), expiry, nil
}

// FileUploader writes reports to a local directory.
type FileUploader struct {
	dir string
}

// NewFileUploader creates an uploader rooted at dir.
func NewFileUploader(dir string) *FileUploader {
	return &FileUploader{dir: dir}
}

// Upload writes the report atomically to {dir}/{name}.
func (u *FileUploader) Upload(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if name == "" || strings.Contains(name, "..") || filepath.IsAbs(name) {
		return "", fmt.Errorf("invalid report name %q", name)
	}

	path := filepath.Join(u.dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create report directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// PresignedURL returns ErrNotConfigured; local reports have no download URL.
func (u *FileUploader) PresignedURL(ctx context.Context, name string) (string, time.Time, error) {
	return "", time.Time{}, ErrNotConfigured
}

// NewUploader creates the appropriate Uploader based on configuration.
// Returns a FileUploader when bucket is empty, S3Uploader otherwise.
func NewUploader(cfg config.ExportConfig) (Uploader, error) {
	if cfg.Bucket == "" {
		return NewFileUploader(cfg.Dir), nil
	}

	useSSL := true
	if cfg.UseSSL != nil {
		useSSL = *cfg.UseSSL
	}
	endpoint := stripScheme(cfg.Endpoint, &useSSL)

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 client: %w", err)
	}

	return &S3Uploader{
		client:    &minioClientWrapper{client: client},
		bucket:    cfg.Bucket,
		urlExpiry: time.Duration(cfg.URLExpiry),
	}, nil
}

// stripScheme removes an http:// or https:// prefix from endpoint, which
// minio expects as host[:port], and sets useSSL to match the scheme.
func stripScheme(endpoint string, useSSL *bool) string {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		*useSSL = true
		return strings.TrimPrefix(endpoint, "https://")
	case strings.HasPrefix(endpoint, "http://"):
		*useSSL = false
		return strings.TrimPrefix(endpoint, "http://")
	default:
		return endpoint
	}
}

// objectKey returns the S3 object key for a report.
// Convention: reports/{name}
func objectKey(name string) string {
	return "reports/" + name
}
