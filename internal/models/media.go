package models

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// MediaType is the derived kind of an uploaded item.
type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

// ErrValidation marks request input that cannot be turned into a record.
var ErrValidation = errors.New("validation failed")

// Media is one uploaded gallery item.
type Media struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Filename    string    `json:"filename"`
	Type        MediaType `json:"type"`
	Tags        []string  `json:"tags"`
	UploadDate  time.Time `json:"uploadDate"`
	URL         string    `json:"url"`
	Thumbnail   *string   `json:"thumbnail"`
	// StorageKey identifies the stored object for the adapter that wrote it.
	StorageKey   string `json:"-"`
	ThumbnailKey string `json:"-"`
}

// UploadDateLayout is the wire format of uploadDate: UTC with exactly three fractional digits.
const UploadDateLayout = "2006-01-02T15:04:05.000Z07:00"

// MarshalJSON writes uploadDate in UploadDateLayout.
func (m Media) MarshalJSON() ([]byte, error) {
	type plain Media
	return json.Marshal(struct {
		plain
		UploadDate string `json:"uploadDate"`
	}{plain: plain(m), UploadDate: m.UploadDate.UTC().Format(UploadDateLayout)})
}

// MediaUpdate carries the editable fields. Empty values mean "keep existing".
type MediaUpdate struct {
	Title       string
	Description string
	Tags        []string
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (m *Media) Clone() *Media {
	if m == nil {
		return nil
	}
	cp := *m
	cp.Tags = append(make([]string, 0, len(m.Tags)), m.Tags...)
	if m.Thumbnail != nil {
		t := *m.Thumbnail
		cp.Thumbnail = &t
	}
	return &cp
}

// Apply merges u into m following the falsy-means-no-op rule.
func (m *Media) Apply(u MediaUpdate) {
	if u.Title != "" {
		m.Title = u.Title
	}
	if u.Description != "" {
		m.Description = u.Description
	}
	if len(u.Tags) > 0 {
		m.Tags = append(make([]string, 0, len(u.Tags)), u.Tags...)
	}
}

// MediaTypeFor derives the media type from a MIME type: image/* is an image, anything else a video.
func MediaTypeFor(contentType string) MediaType {
	if strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return MediaTypeImage
	}
	return MediaTypeVideo
}

// ParseTags splits a comma-separated tag string, trimming entries and dropping empty ones.
func ParseTags(s string) []string {
	tags := make([]string, 0)
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
