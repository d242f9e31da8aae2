package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Backend names accepted by the *_BACKEND variables.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"

	StorageS3     = "s3"
	StorageMinIO  = "minio"
	StorageRemote = "remote"
	StorageLocal  = "local"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Catalog  CatalogConfig
	Storage  StorageConfig
	AWS      AWSConfig
	MinIO    MinIOConfig
	Remote   RemoteConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Cleanup  CleanupConfig
	Realtime RealtimeConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
	MaxUploadMB        int
	PublicBaseURL      string // used to build local storage URLs
}

// MaxUploadBytes returns the upload limit in bytes.
func (c ServerConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// CatalogConfig selects where media records live.
type CatalogConfig struct {
	Backend     string // memory or postgres
	DatabaseURL string
}

// StorageConfig selects the storage backend and thumbnail tooling.
type StorageConfig struct {
	Backend    string // s3, minio, remote or local
	Thumbnails bool
	FFmpegBin  string
	FFprobeBin string
	LocalDir   string
}

// AWSConfig holds AWS credentials and the media bucket.
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Endpoint        string // optional, for S3-compatible gateways
	PublicBaseURL   string // optional CDN in front of the bucket
	UsePathStyle    bool
}

// MinIOConfig holds the S3-compatible MinIO connection.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

// RemoteConfig holds the remote file-hosting API connection.
type RemoteConfig struct {
	BaseURL    string
	APIKey     string
	TimeoutSec int
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AuthConfig holds the access gate settings.
type AuthConfig struct {
	Enabled         bool
	AdminPassword   string
	AdminPassHash   string
	JWTSecret       string
	SessionTTLHours int
	SessionBackend  string // memory or redis
}

// SessionTTL returns the lifetime of a login session.
func (c AuthConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

// CleanupConfig selects deferred storage cleanup.
type CleanupConfig struct {
	Queue string // empty for inline cleanup, or redis
}

// RealtimeConfig toggles the WebSocket event feed.
type RealtimeConfig struct {
	Enabled     bool
	RedisBridge bool // fan events out across instances via Redis pub/sub
}

// NeedsRedis reports whether any configured component uses Redis.
func (c *Config) NeedsRedis() bool {
	return c.Cleanup.Queue == BackendRedis ||
		(c.Auth.Enabled && c.Auth.SessionBackend == BackendRedis) ||
		(c.Realtime.Enabled && c.Realtime.RedisBridge)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "3001"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 60),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 60),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			MaxUploadMB:        getEnvInt("MAX_UPLOAD_MB", 100),
			PublicBaseURL:      getEnv("PUBLIC_BASE_URL", "http://localhost:3001"),
		},
		Catalog: CatalogConfig{
			Backend:     strings.ToLower(getEnv("CATALOG_BACKEND", BackendMemory)),
			DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/gallery?sslmode=disable"),
		},
		Storage: StorageConfig{
			Backend:    strings.ToLower(getEnv("STORAGE_BACKEND", StorageLocal)),
			Thumbnails: getEnvBool("THUMBNAILS", true),
			FFmpegBin:  getEnv("FFMPEG_BIN", "ffmpeg"),
			FFprobeBin: getEnv("FFPROBE_BIN", "ffprobe"),
			LocalDir:   getEnv("LOCAL_STORAGE_DIR", "./uploads"),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Bucket:          getEnv("AWS_S3_BUCKET", "gallery-media"),
			Endpoint:        getEnv("AWS_S3_ENDPOINT", ""),
			PublicBaseURL:   getEnv("AWS_S3_PUBLIC_URL", ""),
			UsePathStyle:    getEnvBool("AWS_S3_PATH_STYLE", false),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey: getEnv("MINIO_SECRET_KEY", "minioadmin"),
			Bucket:    getEnv("MINIO_BUCKET", "gallery"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
			PublicURL: getEnv("MINIO_PUBLIC_URL", ""),
		},
		Remote: RemoteConfig{
			BaseURL:    getEnv("REMOTE_STORAGE_URL", ""),
			APIKey:     getEnv("REMOTE_STORAGE_API_KEY", ""),
			TimeoutSec: getEnvInt("REMOTE_STORAGE_TIMEOUT_SEC", 60),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			Enabled:         getEnvBool("AUTH_ENABLED", false),
			AdminPassword:   getEnv("ADMIN_PASSWORD", ""),
			AdminPassHash:   getEnv("ADMIN_PASSWORD_HASH", ""),
			JWTSecret:       getEnv("JWT_SECRET", ""),
			SessionTTLHours: getEnvInt("SESSION_TTL_HOURS", 24),
			SessionBackend:  strings.ToLower(getEnv("SESSION_BACKEND", BackendMemory)),
		},
		Cleanup: CleanupConfig{
			Queue: strings.ToLower(getEnv("CLEANUP_QUEUE", "")),
		},
		Realtime: RealtimeConfig{
			Enabled:     getEnvBool("REALTIME_ENABLED", true),
			RedisBridge: getEnvBool("REALTIME_REDIS", false),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unknown backends and incomplete auth settings.
func (c *Config) Validate() error {
	var errs []error
	switch c.Catalog.Backend {
	case BackendMemory, BackendPostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown CATALOG_BACKEND %q", c.Catalog.Backend))
	}
	switch c.Storage.Backend {
	case StorageS3, StorageMinIO, StorageLocal:
	case StorageRemote:
		if c.Remote.BaseURL == "" {
			errs = append(errs, errors.New("REMOTE_STORAGE_URL is required for the remote backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend))
	}
	switch c.Cleanup.Queue {
	case "", BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown CLEANUP_QUEUE %q", c.Cleanup.Queue))
	}
	if c.Server.MaxUploadMB <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_MB must be positive"))
	}
	if c.Auth.Enabled {
		if c.Auth.AdminPassword == "" && c.Auth.AdminPassHash == "" {
			errs = append(errs, errors.New("ADMIN_PASSWORD or ADMIN_PASSWORD_HASH is required when AUTH_ENABLED"))
		}
		if c.Auth.JWTSecret == "" {
			errs = append(errs, errors.New("JWT_SECRET is required when AUTH_ENABLED"))
		}
		if c.Auth.SessionTTLHours <= 0 {
			errs = append(errs, errors.New("SESSION_TTL_HOURS must be positive"))
		}
		switch c.Auth.SessionBackend {
		case BackendMemory, BackendRedis:
		default:
			errs = append(errs, fmt.Errorf("unknown SESSION_BACKEND %q", c.Auth.SessionBackend))
		}
	}
	return errors.Join(errs...)
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
