package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const (
	// ThumbnailWidth and ThumbnailHeight are the fixed output resolution.
	ThumbnailWidth  = 320
	ThumbnailHeight = 240
)

// ErrNoDuration is returned when the probe cannot report a usable duration.
var ErrNoDuration = errors.New("video duration unavailable")

// Thumbnailer renders a JPEG preview frame for a video file on disk.
type Thumbnailer interface {
	Thumbnail(ctx context.Context, videoPath string) ([]byte, error)
}

// FFmpegThumbnailer samples the frame at 50% of the video duration using ffprobe and ffmpeg.
type FFmpegThumbnailer struct {
	FFmpegBin  string
	FFprobeBin string
	logger     *zap.Logger
}

// NewFFmpegThumbnailer creates a thumbnailer; empty binary paths resolve through $PATH.
func NewFFmpegThumbnailer(ffmpegBin, ffprobeBin string, logger *zap.Logger) *FFmpegThumbnailer {
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	if ffprobeBin == "" {
		ffprobeBin = "ffprobe"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FFmpegThumbnailer{FFmpegBin: ffmpegBin, FFprobeBin: ffprobeBin, logger: logger}
}

// Thumbnail extracts one frame at the midpoint of the video, scaled to ThumbnailWidth x ThumbnailHeight.
func (t *FFmpegThumbnailer) Thumbnail(ctx context.Context, videoPath string) ([]byte, error) {
	if strings.TrimSpace(videoPath) == "" {
		return nil, errors.New("video path is required")
	}
	duration, err := t.probeDuration(ctx, videoPath)
	if err != nil {
		return nil, err
	}

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-ss", strconv.FormatFloat(duration/2, 'f', 3, 64),
		"-i", videoPath,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=%d:%d", ThumbnailWidth, ThumbnailHeight),
		"-f", "image2", "-c:v", "mjpeg",
		"pipe:1",
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.FFmpegBin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, errors.New("ffmpeg produced no frame")
	}
	t.logger.Debug("thumbnail generated", zap.String("path", videoPath), zap.Float64("duration_sec", duration))
	return stdout.Bytes(), nil
}

func (t *FFmpegThumbnailer) probeDuration(ctx context.Context, videoPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, t.FFprobeBin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		videoPath,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	return parseProbeDuration(out)
}

func parseProbeDuration(payload []byte) (float64, error) {
	var probe struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return 0, fmt.Errorf("decode ffprobe output: %w", err)
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(probe.Format.Duration), 64)
	if err != nil || d <= 0 {
		return 0, ErrNoDuration
	}
	return d, nil
}

// thumbnailFromBytes spills an in-memory video to a temp file so the thumbnailer can seek in it.
func thumbnailFromBytes(ctx context.Context, t Thumbnailer, body []byte, ext string) ([]byte, error) {
	f, err := os.CreateTemp("", "gallery-thumb-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(body); err != nil {
		f.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}
	return t.Thumbnail(ctx, f.Name())
}
