package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

// S3Config holds S3 client configuration.
type S3Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	// Endpoint overrides the AWS endpoint for S3-compatible services; PublicBaseURL overrides object URLs.
	Endpoint      string
	PublicBaseURL string
	UsePathStyle  bool
}

// S3 stores media as public-read objects in a single bucket.
type S3 struct {
	client      *s3.Client
	uploader    *manager.Uploader
	cfg         S3Config
	thumbnailer Thumbnailer
	logger      *zap.Logger
}

// NewS3 creates an S3 adapter using credentials from config or the environment (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY).
// thumbnailer may be nil, in which case videos are stored without a preview.
func NewS3(ctx context.Context, cfg S3Config, thumbnailer Thumbnailer, logger *zap.Logger) (*S3, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	accessKey := cfg.AccessKeyID
	secretKey := cfg.SecretAccessKey
	if accessKey == "" || secretKey == "" {
		accessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		secretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey, secretKey, "",
		)))
		logger.Info("S3 client using static credentials", zap.String("region", cfg.Region), zap.String("bucket", cfg.Bucket))
	} else {
		logger.Warn("S3 client using default credential chain (AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY not set)")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 5 * 1024 * 1024
	})
	return &S3{
		client:      client,
		uploader:    uploader,
		cfg:         cfg,
		thumbnailer: thumbnailer,
		logger:      logger,
	}, nil
}

// Name implements Adapter.
func (s *S3) Name() string { return "s3" }

// PublicObjectURL returns the public URL for an object (no signing; the bucket is expected to be public).
func (s *S3) PublicObjectURL(key string) string {
	if s.cfg.PublicBaseURL != "" {
		return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, key)
}

// Store uploads the original and, for videos, a generated thumbnail.
func (s *S3) Store(ctx context.Context, obj Object) (*Stored, error) {
	name := NewObjectName(obj.Filename, obj.ContentType)
	key := MediaKey(name)
	if err := s.upload(ctx, key, obj.ContentType, obj.Body); err != nil {
		return nil, err
	}
	stored := &Stored{URL: s.PublicObjectURL(key), Key: key}

	if s.thumbnailer != nil && IsVideo(obj.ContentType) {
		thumb, err := thumbnailFromBytes(ctx, s.thumbnailer, obj.Body, ExtensionFor(obj.Filename, obj.ContentType))
		if err != nil {
			s.logger.Warn("thumbnail generation failed", zap.String("key", key), zap.Error(err))
			return stored, nil
		}
		thumbKey := ThumbnailKeyFor(name)
		if err := s.upload(ctx, thumbKey, "image/jpeg", thumb); err != nil {
			s.logger.Warn("thumbnail upload failed", zap.String("key", thumbKey), zap.Error(err))
			return stored, nil
		}
		stored.ThumbnailKey = thumbKey
		stored.ThumbnailURL = s.PublicObjectURL(thumbKey)
	}
	return stored, nil
}

func (s *S3) upload(ctx context.Context, key, contentType string, body []byte) error {
	contentLength := int64(len(body))
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: &contentLength,
		ACL:           types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return fmt.Errorf("%w: s3 upload %s: %v", ErrUpstream, key, err)
	}
	return nil
}

// Remove deletes the original and its thumbnail, if any.
func (s *S3) Remove(ctx context.Context, ref Ref) error {
	return removeKeys(func(key string) error {
		return s.DeleteObject(ctx, key)
	}, ref.Key, ref.ThumbnailKey)
}

// DeleteObject removes an object from the bucket.
func (s *S3) DeleteObject(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("%w: s3 delete %s: %v", ErrUpstream, key, err)
	}
	return nil
}

// HeadBucket checks that the bucket is reachable with the configured credentials.
func (s *S3) HeadBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.cfg.Bucket)})
	if err != nil {
		return fmt.Errorf("%w: head bucket: %v", ErrUpstream, err)
	}
	return nil
}
