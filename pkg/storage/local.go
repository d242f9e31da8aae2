package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// LocalURLPrefix is the HTTP path under which the local directory is served.
const LocalURLPrefix = "/uploads"

// LocalConfig configures disk storage.
type LocalConfig struct {
	Dir string
	// PublicBaseURL is prepended to LocalURLPrefix, e.g. http://localhost:3001.
	PublicBaseURL string
}

// Local writes media to a directory on disk and renders video thumbnails next to them.
type Local struct {
	cfg         LocalConfig
	thumbnailer Thumbnailer
	logger      *zap.Logger
}

// NewLocal prepares the storage directories.
func NewLocal(cfg LocalConfig, thumbnailer Thumbnailer, logger *zap.Logger) (*Local, error) {
	if cfg.Dir == "" {
		return nil, errors.New("local storage dir is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, dir := range []string{cfg.Dir, filepath.Join(cfg.Dir, FolderThumbnails)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	return &Local{cfg: cfg, thumbnailer: thumbnailer, logger: logger}, nil
}

// Name implements Adapter.
func (l *Local) Name() string { return "local" }

// Dir returns the root directory, for serving it over HTTP.
func (l *Local) Dir() string { return l.cfg.Dir }

// FileURL returns the public URL of a stored key.
func (l *Local) FileURL(key string) string {
	return l.cfg.PublicBaseURL + path.Join(LocalURLPrefix, key)
}

// Store writes the original, syncs it, and for videos renders a thumbnail.
func (l *Local) Store(ctx context.Context, obj Object) (*Stored, error) {
	name := NewObjectName(obj.Filename, obj.ContentType)
	if err := l.writeFile(name, obj.Body); err != nil {
		return nil, err
	}
	stored := &Stored{URL: l.FileURL(name), Key: name}

	if l.thumbnailer != nil && IsVideo(obj.ContentType) {
		thumb, err := l.thumbnailer.Thumbnail(ctx, filepath.Join(l.cfg.Dir, name))
		if err != nil {
			l.logger.Warn("thumbnail generation failed", zap.String("file", name), zap.Error(err))
			return stored, nil
		}
		thumbKey := ThumbnailKeyFor(name)
		if err := l.writeFile(thumbKey, thumb); err != nil {
			l.logger.Warn("thumbnail write failed", zap.String("file", thumbKey), zap.Error(err))
			return stored, nil
		}
		stored.ThumbnailKey = thumbKey
		stored.ThumbnailURL = l.FileURL(thumbKey)
	}
	return stored, nil
}

// writeFile writes to a temp file in the target directory and renames it into place.
func (l *Local) writeFile(key string, body []byte) error {
	target := filepath.Join(l.cfg.Dir, filepath.FromSlash(key))
	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", ErrUpstream, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write %s: %v", ErrUpstream, key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: sync %s: %v", ErrUpstream, key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", ErrUpstream, key, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("%w: rename %s: %v", ErrUpstream, key, err)
	}
	return nil
}

// Remove deletes the original and its thumbnail. Missing files are not an error.
func (l *Local) Remove(_ context.Context, ref Ref) error {
	return removeKeys(func(key string) error {
		clean := filepath.Clean(filepath.FromSlash(key))
		if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
			return fmt.Errorf("%w: invalid key %q", ErrUpstream, key)
		}
		err := os.Remove(filepath.Join(l.cfg.Dir, clean))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: remove %s: %v", ErrUpstream, key, err)
		}
		return nil
	}, ref.Key, ref.ThumbnailKey)
}
