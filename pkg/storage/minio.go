package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// MinIOConfig holds connection settings for an S3-compatible MinIO server.
type MinIOConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	// PublicBaseURL overrides the scheme://endpoint/bucket prefix of object URLs.
	PublicBaseURL string
}

// MinIO stores media in a MinIO bucket.
type MinIO struct {
	client      *minio.Client
	cfg         MinIOConfig
	thumbnailer Thumbnailer
	logger      *zap.Logger
}

// NewMinIO connects to MinIO and creates the bucket when it does not exist yet.
func NewMinIO(ctx context.Context, cfg MinIOConfig, thumbnailer Thumbnailer, logger *zap.Logger) (*MinIO, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
		logger.Info("minio bucket created", zap.String("bucket", cfg.Bucket))
	}

	return &MinIO{client: client, cfg: cfg, thumbnailer: thumbnailer, logger: logger}, nil
}

// Name implements Adapter.
func (m *MinIO) Name() string { return "minio" }

// ObjectURL returns the direct URL of an object.
func (m *MinIO) ObjectURL(key string) string {
	if m.cfg.PublicBaseURL != "" {
		return strings.TrimRight(m.cfg.PublicBaseURL, "/") + "/" + key
	}
	scheme := "http"
	if m.cfg.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, m.cfg.Endpoint, m.cfg.Bucket, key)
}

// Store uploads the original and, for videos, a generated thumbnail.
func (m *MinIO) Store(ctx context.Context, obj Object) (*Stored, error) {
	name := NewObjectName(obj.Filename, obj.ContentType)
	key := MediaKey(name)
	if err := m.put(ctx, key, obj.ContentType, obj.Body); err != nil {
		return nil, err
	}
	stored := &Stored{URL: m.ObjectURL(key), Key: key}

	if m.thumbnailer != nil && IsVideo(obj.ContentType) {
		thumb, err := thumbnailFromBytes(ctx, m.thumbnailer, obj.Body, ExtensionFor(obj.Filename, obj.ContentType))
		if err != nil {
			m.logger.Warn("thumbnail generation failed", zap.String("key", key), zap.Error(err))
			return stored, nil
		}
		thumbKey := ThumbnailKeyFor(name)
		if err := m.put(ctx, thumbKey, "image/jpeg", thumb); err != nil {
			m.logger.Warn("thumbnail upload failed", zap.String("key", thumbKey), zap.Error(err))
			return stored, nil
		}
		stored.ThumbnailKey = thumbKey
		stored.ThumbnailURL = m.ObjectURL(thumbKey)
	}
	return stored, nil
}

func (m *MinIO) put(ctx context.Context, key, contentType string, body []byte) error {
	_, err := m.client.PutObject(ctx, m.cfg.Bucket, key, bytes.NewReader(body), int64(len(body)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("%w: minio put %s: %v", ErrUpstream, key, err)
	}
	return nil
}

// Remove deletes the original and its thumbnail, if any.
func (m *MinIO) Remove(ctx context.Context, ref Ref) error {
	return removeKeys(func(key string) error {
		if err := m.client.RemoveObject(ctx, m.cfg.Bucket, key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("%w: minio remove %s: %v", ErrUpstream, key, err)
		}
		return nil
	}, ref.Key, ref.ThumbnailKey)
}
