// Package app builds the runtime components selected by configuration. It is shared by the server and worker binaries.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aura-media/gallery/config"
	"github.com/aura-media/gallery/pkg/storage"
)

// NewStorage returns the adapter named by STORAGE_BACKEND.
func NewStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Adapter, error) {
	var thumbnailer storage.Thumbnailer
	if cfg.Storage.Thumbnails {
		thumbnailer = storage.NewFFmpegThumbnailer(cfg.Storage.FFmpegBin, cfg.Storage.FFprobeBin, logger)
	}

	switch cfg.Storage.Backend {
	case config.StorageS3:
		s3, err := storage.NewS3(ctx, storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			Bucket:          cfg.AWS.Bucket,
			Endpoint:        cfg.AWS.Endpoint,
			PublicBaseURL:   cfg.AWS.PublicBaseURL,
			UsePathStyle:    cfg.AWS.UsePathStyle,
		}, thumbnailer, logger)
		if err != nil {
			return nil, err
		}
		if err := s3.HeadBucket(ctx); err != nil {
			logger.Warn("s3 bucket not reachable yet", zap.String("bucket", cfg.AWS.Bucket), zap.Error(err))
		}
		return s3, nil
	case config.StorageMinIO:
		return storage.NewMinIO(ctx, storage.MinIOConfig{
			Endpoint:        cfg.MinIO.Endpoint,
			AccessKeyID:     cfg.MinIO.AccessKey,
			SecretAccessKey: cfg.MinIO.SecretKey,
			Bucket:          cfg.MinIO.Bucket,
			UseSSL:          cfg.MinIO.UseSSL,
			PublicBaseURL:   cfg.MinIO.PublicURL,
		}, thumbnailer, logger)
	case config.StorageRemote:
		return storage.NewRemote(storage.RemoteConfig{
			BaseURL: cfg.Remote.BaseURL,
			APIKey:  cfg.Remote.APIKey,
			Timeout: time.Duration(cfg.Remote.TimeoutSec) * time.Second,
		}, logger)
	case config.StorageLocal:
		return storage.NewLocal(storage.LocalConfig{
			Dir:           cfg.Storage.LocalDir,
			PublicBaseURL: cfg.Server.PublicBaseURL,
		}, thumbnailer, logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
