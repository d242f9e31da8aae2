package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")

func TestDetectContentType(t *testing.T) {
	assert.Equal(t, "video/mp4", DetectContentType("video/mp4", pngHeader))
	assert.Equal(t, "image/png", DetectContentType("", pngHeader))
	assert.Equal(t, "image/png", DetectContentType("application/octet-stream", pngHeader))
	assert.Equal(t, "text/plain", DetectContentType("", []byte("hello world")))
}

func TestExtensionFor(t *testing.T) {
	assert.Equal(t, ".jpg", ExtensionFor("Photo.JPG", "image/jpeg"))
	assert.Equal(t, ".png", ExtensionFor("noext", "image/png"))
	assert.Equal(t, "", ExtensionFor("noext", "application/x-unknown-thing"))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "media/abc.mp4", MediaKey("abc.mp4"))
	assert.Equal(t, "thumbnails/abc.jpg", ThumbnailKeyFor("abc.mp4"))
	name := NewObjectName("clip.MP4", "video/mp4")
	assert.True(t, strings.HasSuffix(name, ".mp4"))
	assert.NotEqual(t, name, NewObjectName("clip.MP4", "video/mp4"))
}

func TestParseProbeDuration(t *testing.T) {
	d, err := parseProbeDuration([]byte(`{"format": {"duration": "12.500000"}}`))
	require.NoError(t, err)
	assert.InDelta(t, 12.5, d, 0.0001)

	_, err = parseProbeDuration([]byte(`{"format": {}}`))
	require.ErrorIs(t, err, ErrNoDuration)

	_, err = parseProbeDuration([]byte(`not json`))
	require.Error(t, err)
}

func TestFFmpegThumbnailerRejectsEmptyPath(t *testing.T) {
	th := NewFFmpegThumbnailer("", "", nil)
	_, err := th.Thumbnail(context.Background(), " ")
	require.Error(t, err)
}

type fakeThumbnailer struct {
	out   []byte
	err   error
	paths []string
}

func (f *fakeThumbnailer) Thumbnail(_ context.Context, videoPath string) ([]byte, error) {
	f.paths = append(f.paths, videoPath)
	return f.out, f.err
}

func TestLocal_StoreAndRemoveImage(t *testing.T) {
	dir := t.TempDir()
	th := &fakeThumbnailer{out: []byte("jpeg")}
	l, err := NewLocal(LocalConfig{Dir: dir, PublicBaseURL: "http://localhost:3001/"}, th, nil)
	require.NoError(t, err)

	stored, err := l.Store(context.Background(), Object{Body: pngHeader, ContentType: "image/png", Filename: "a.png"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored.URL, "http://localhost:3001/uploads/"))
	assert.Empty(t, stored.ThumbnailURL)
	assert.Empty(t, th.paths, "images get no thumbnail")

	got, err := os.ReadFile(filepath.Join(dir, stored.Key))
	require.NoError(t, err)
	assert.Equal(t, pngHeader, got)

	require.NoError(t, l.Remove(context.Background(), Ref{Key: stored.Key}))
	_, err = os.Stat(filepath.Join(dir, stored.Key))
	assert.True(t, os.IsNotExist(err))

	// removing twice is fine
	require.NoError(t, l.Remove(context.Background(), Ref{Key: stored.Key}))
}

func TestLocal_VideoThumbnail(t *testing.T) {
	dir := t.TempDir()
	th := &fakeThumbnailer{out: []byte("jpeg-bytes")}
	l, err := NewLocal(LocalConfig{Dir: dir}, th, nil)
	require.NoError(t, err)

	stored, err := l.Store(context.Background(), Object{Body: []byte("video"), ContentType: "video/mp4", Filename: "clip.mp4"})
	require.NoError(t, err)
	require.Len(t, th.paths, 1)
	assert.Equal(t, filepath.Join(dir, stored.Key), th.paths[0])
	assert.Equal(t, ThumbnailKeyFor(stored.Key), stored.ThumbnailKey)
	assert.Equal(t, "/uploads/"+stored.ThumbnailKey, stored.ThumbnailURL)

	thumb, err := os.ReadFile(filepath.Join(dir, stored.ThumbnailKey))
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), thumb)

	require.NoError(t, l.Remove(context.Background(), Ref{Key: stored.Key, ThumbnailKey: stored.ThumbnailKey}))
	_, err = os.Stat(filepath.Join(dir, stored.ThumbnailKey))
	assert.True(t, os.IsNotExist(err))
}

func TestLocal_ThumbnailFailureKeepsUpload(t *testing.T) {
	th := &fakeThumbnailer{err: errors.New("no ffmpeg")}
	l, err := NewLocal(LocalConfig{Dir: t.TempDir()}, th, nil)
	require.NoError(t, err)

	stored, err := l.Store(context.Background(), Object{Body: []byte("video"), ContentType: "video/mp4", Filename: "clip.mp4"})
	require.NoError(t, err)
	assert.NotEmpty(t, stored.URL)
	assert.Empty(t, stored.ThumbnailURL)
}

func TestLocal_RemoveRejectsTraversal(t *testing.T) {
	l, err := NewLocal(LocalConfig{Dir: t.TempDir()}, nil, nil)
	require.NoError(t, err)
	err = l.Remove(context.Background(), Ref{Key: "../etc/passwd"})
	require.ErrorIs(t, err, ErrUpstream)
}

func TestLocal_RemoveAttemptsThumbnailAfterFailure(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLocal(LocalConfig{Dir: dir}, nil, nil)
	require.NoError(t, err)
	thumb := filepath.Join(dir, FolderThumbnails, "a.jpg")
	require.NoError(t, os.MkdirAll(filepath.Dir(thumb), 0o755))
	require.NoError(t, os.WriteFile(thumb, []byte("jpg"), 0o644))

	err = l.Remove(context.Background(), Ref{Key: "../outside.mp4", ThumbnailKey: FolderThumbnails + "/a.jpg"})
	require.ErrorIs(t, err, ErrUpstream)
	assert.NoFileExists(t, thumb)
}

func TestRemoveKeys_JoinsFailures(t *testing.T) {
	var tried []string
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	err := removeKeys(func(key string) error {
		tried = append(tried, key)
		if key == "a" {
			return errA
		}
		return errB
	}, "a", "", "b")
	assert.Equal(t, []string{"a", "b"}, tried)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)

	assert.NoError(t, removeKeys(func(string) error { return nil }, "a"))
}

func TestRemote_StoreAndRemove(t *testing.T) {
	var deleted string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		switch r.Method {
		case http.MethodPost:
			assert.Equal(t, "/files", r.URL.Path)
			file, header, err := r.FormFile("file")
			if !assert.NoError(t, err) {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			defer file.Close()
			body, _ := io.ReadAll(file)
			assert.Equal(t, "clip.mp4", header.Filename)
			assert.Equal(t, "video-bytes", string(body))
			_ = json.NewEncoder(w).Encode(map[string]string{
				"id":           "abc123",
				"url":          "https://files.example/abc123.mp4",
				"thumbnailUrl": "https://files.example/abc123.jpg",
			})
		case http.MethodDelete:
			deleted = r.URL.Path + "?" + r.URL.RawQuery
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	r, err := NewRemote(RemoteConfig{BaseURL: srv.URL + "/", APIKey: "secret"}, nil)
	require.NoError(t, err)

	stored, err := r.Store(context.Background(), Object{Body: []byte("video-bytes"), ContentType: "video/mp4", Filename: "clip.mp4"})
	require.NoError(t, err)
	assert.Equal(t, "abc123", stored.Key)
	assert.Equal(t, "https://files.example/abc123.mp4", stored.URL)
	assert.Equal(t, "https://files.example/abc123.jpg", stored.ThumbnailURL)

	require.NoError(t, r.Remove(context.Background(), Ref{Key: "abc123", MediaType: "video"}))
	assert.Equal(t, "/files/abc123?resource_type=video", deleted)
}

func TestRemote_UpstreamErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		http.Error(w, "quota exceeded", http.StatusInsufficientStorage)
	}))
	defer srv.Close()

	r, err := NewRemote(RemoteConfig{BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	_, err = r.Store(context.Background(), Object{Body: pngHeader, ContentType: "image/png", Filename: "a.png"})
	require.ErrorIs(t, err, ErrUpstream)
	assert.Contains(t, err.Error(), "quota exceeded")

	// already gone counts as removed
	require.NoError(t, r.Remove(context.Background(), Ref{Key: "x"}))
}

func TestNewRemote_InvalidURL(t *testing.T) {
	_, err := NewRemote(RemoteConfig{BaseURL: "::not a url"}, nil)
	require.Error(t, err)
}
