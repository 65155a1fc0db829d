// Package backup uploads disk image files to S3-compatible object
// storage, so a virtual disk can be archived off the host it lives on.
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/vdiskfs/vdiskfs/internal/logger"
)

// S3API is the subset of the S3 client the uploader needs.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader pushes image files to one bucket under a key prefix.
type Uploader struct {
	client    S3API
	bucket    string
	keyPrefix string
}

// UploaderConfig carries the assembled client and target location.
type UploaderConfig struct {
	Client    S3API
	Bucket    string
	KeyPrefix string
}

// NewUploader validates the configuration and returns an uploader.
func NewUploader(cfg UploaderConfig) (*Uploader, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("backup uploader: client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("backup uploader: bucket is required")
	}
	return &Uploader{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
	}, nil
}

// objectKey builds a timestamped key so repeated backups never clobber
// each other.
func (u *Uploader) objectKey(imagePath string, now time.Time) string {
	base := filepath.Base(imagePath)
	key := fmt.Sprintf("%s-%s", base, now.UTC().Format("20060102T150405Z"))
	if u.keyPrefix != "" {
		return u.keyPrefix + "/" + key
	}
	return key
}

// Upload stores the file at imagePath as one S3 object and returns the
// object key.
func (u *Uploader) Upload(ctx context.Context, imagePath string) (string, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return "", fmt.Errorf("failed to open image for backup: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat image for backup: %w", err)
	}

	key := u.objectKey(imagePath, time.Now())
	contentLength := info.Size()
	contentType := "application/octet-stream"

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &u.bucket,
		Key:           &key,
		Body:          f,
		ContentLength: &contentLength,
		ContentType:   &contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload image to S3: %w", err)
	}

	logger.Info("Backed up %s to s3://%s/%s (%d bytes)", imagePath, u.bucket, key, contentLength)
	return key, nil
}
