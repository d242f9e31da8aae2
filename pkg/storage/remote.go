package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// RemoteConfig points at a remote file-hosting API.
type RemoteConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// remoteUploadResponse is what the hosting API returns for an upload.
type remoteUploadResponse struct {
	ID           string `json:"id"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnailUrl"`
}

// Remote uploads media to a file-hosting API with multipart POST {base}/files and deletes with DELETE {base}/files/{id}.
type Remote struct {
	client *http.Client
	cfg    RemoteConfig
	logger *zap.Logger
}

// NewRemote creates a remote API adapter.
func NewRemote(cfg RemoteConfig, logger *zap.Logger) (*Remote, error) {
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid remote storage url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Remote{client: &http.Client{Timeout: cfg.Timeout}, cfg: cfg, logger: logger}, nil
}

// Name implements Adapter.
func (r *Remote) Name() string { return "remote" }

// Store posts the file and returns the hosted URL; the hosting API generates video previews itself.
func (r *Remote) Store(ctx context.Context, obj Object) (*Stored, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, obj.Filename))
	h.Set("Content-Type", obj.ContentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("create multipart part: %w", err)
	}
	if _, err := part.Write(obj.Body); err != nil {
		return nil, fmt.Errorf("write multipart body: %w", err)
	}
	_ = w.WriteField("resource_type", "auto")
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.BaseURL+"/files", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	r.authorize(req)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: remote upload: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: remote upload status %d: %s", ErrUpstream, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out remoteUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode remote response: %v", ErrUpstream, err)
	}
	if out.URL == "" || out.ID == "" {
		return nil, fmt.Errorf("%w: remote response missing url or id", ErrUpstream)
	}
	stored := &Stored{URL: out.URL, Key: out.ID}
	if IsVideo(obj.ContentType) {
		stored.ThumbnailURL = out.ThumbnailURL
	}
	return stored, nil
}

// Remove deletes the hosted file; the API removes derived previews with it.
func (r *Remote) Remove(ctx context.Context, ref Ref) error {
	u := r.cfg.BaseURL + "/files/" + url.PathEscape(ref.Key)
	if ref.MediaType != "" {
		u += "?resource_type=" + url.QueryEscape(ref.MediaType)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	r.authorize(req)

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: remote delete: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		r.logger.Debug("remote file already gone", zap.String("id", ref.Key))
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: remote delete status %d", ErrUpstream, resp.StatusCode)
	}
	return nil
}

func (r *Remote) authorize(req *http.Request) {
	if r.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)
	}
}
