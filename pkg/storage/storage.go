// Package storage persists uploaded media bytes in one of several interchangeable backends.
package storage

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const (
	// FolderMedia is the key prefix for uploaded originals.
	FolderMedia = "media"
	// FolderThumbnails is the key prefix for generated video thumbnails.
	FolderThumbnails = "thumbnails"

	octetStream = "application/octet-stream"
)

// ErrUpstream wraps every failure reported by a storage backend.
var ErrUpstream = errors.New("storage backend failed")

// removeKeys calls remove for every non-empty key and joins the failures.
func removeKeys(remove func(key string) error, keys ...string) error {
	var errs []error
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := remove(key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Object is an uploaded file ready to be stored.
type Object struct {
	Body        []byte
	ContentType string
	Filename    string
}

// Stored describes where an object ended up.
type Stored struct {
	URL          string
	Key          string
	ThumbnailURL string
	ThumbnailKey string
}

// Ref identifies a stored object for removal.
type Ref struct {
	Key          string
	ThumbnailKey string
	// MediaType is "image" or "video"; some backends address the two differently.
	MediaType string
}

// Adapter is a storage backend. Store must not return until the object is durable.
type Adapter interface {
	Store(ctx context.Context, obj Object) (*Stored, error)
	Remove(ctx context.Context, ref Ref) error
	Name() string
}

// DetectContentType returns the declared type unless it is missing or generic, in which case the bytes decide.
func DetectContentType(declared string, body []byte) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && !strings.EqualFold(declared, octetStream) {
		return declared
	}
	detected := mimetype.Detect(body).String()
	if i := strings.IndexByte(detected, ';'); i >= 0 {
		detected = detected[:i]
	}
	return detected
}

// ExtensionFor picks the file extension from the filename, falling back to the content type.
func ExtensionFor(filename, contentType string) string {
	if ext := strings.ToLower(path.Ext(filename)); ext != "" {
		return ext
	}
	if m := mimetype.Lookup(contentType); m != nil {
		return m.Extension()
	}
	return ""
}

// NewObjectName returns a collision-free object name keeping the original extension.
func NewObjectName(filename, contentType string) string {
	return uuid.New().String() + ExtensionFor(filename, contentType)
}

// MediaKey returns the object key for an original: media/{name}.
func MediaKey(name string) string {
	return path.Join(FolderMedia, name)
}

// ThumbnailKeyFor returns the thumbnail key belonging to an original: thumbnails/{base}.jpg.
func ThumbnailKeyFor(name string) string {
	base := strings.TrimSuffix(path.Base(name), path.Ext(name))
	return path.Join(FolderThumbnails, base+".jpg")
}

// IsVideo reports whether the content type should get a thumbnail.
func IsVideo(contentType string) bool {
	return !strings.HasPrefix(strings.ToLower(contentType), "image/")
}
