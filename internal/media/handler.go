package media

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-media/gallery/internal/catalog"
	"github.com/aura-media/gallery/internal/models"
	"github.com/aura-media/gallery/internal/query"
	"github.com/aura-media/gallery/pkg/response"
	"github.com/aura-media/gallery/pkg/storage"
)

const (
	// FormFileField is the multipart field the gallery frontend sends the file in.
	FormFileField = "mediaFile"
	// FormFileFallback is accepted when FormFileField is absent.
	FormFileFallback = "file"
)

// Handler serves the /api/upload and /api/media endpoints.
type Handler struct {
	svc            *Service
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewHandler creates a media handler. maxUploadBytes <= 0 disables the size limit.
func NewHandler(svc *Service, maxUploadBytes int64, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, maxUploadBytes: maxUploadBytes, logger: logger}
}

// RegisterRoutes mounts the media routes. guard, when non-nil, protects the write routes.
func (h *Handler) RegisterRoutes(api *gin.RouterGroup, guard gin.HandlerFunc) {
	write := []gin.HandlerFunc{}
	if guard != nil {
		write = append(write, guard)
	}
	api.GET("/media", h.List)
	api.GET("/media/:id", h.Get)
	api.POST("/upload", append(write, h.Upload)...)
	api.PUT("/media/:id", append(write, h.Update)...)
	api.DELETE("/media/:id", append(write, h.Delete)...)
}

// UpdateRequest is the body of PUT /api/media/:id. Tags are comma-separated.
type UpdateRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Tags        string `json:"tags"`
}

// Upload handles POST /api/upload.
func (h *Handler) Upload(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}
	fh, err := h.formFile(c)
	if err != nil {
		if isTooLarge(err) {
			response.TooLarge(c, "file too large")
			return
		}
		response.BadRequest(c, "no file uploaded")
		return
	}
	body, err := readFormFile(fh)
	if err != nil {
		if isTooLarge(err) {
			response.TooLarge(c, "file too large")
			return
		}
		h.logger.Warn("read uploaded file", zap.String("filename", fh.Filename), zap.Error(err))
		response.BadRequest(c, "could not read uploaded file")
		return
	}

	rec, err := h.svc.Upload(c.Request.Context(), UploadInput{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Body:        body,
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Tags:        c.PostForm("tags"),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Created(c, rec)
}

// List handles GET /api/media.
func (h *Handler) List(c *gin.Context) {
	result, err := h.svc.List(c.Request.Context(), query.ParseParams(c.Request.URL.Query()))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, result)
}

// Get handles GET /api/media/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	rec, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, rec)
}

// Update handles PUT /api/media/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	// An empty body is an update that changes nothing.
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(c, "invalid request body")
		return
	}
	rec, err := h.svc.Edit(c.Request.Context(), id, models.MediaUpdate{
		Title:       req.Title,
		Description: req.Description,
		Tags:        models.ParseTags(req.Tags),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, rec)
}

// Delete handles DELETE /api/media/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	response.OKMessage(c, "Media deleted")
}

func (h *Handler) formFile(c *gin.Context) (*multipart.FileHeader, error) {
	fh, err := c.FormFile(FormFileField)
	if err == nil {
		return fh, nil
	}
	if errors.Is(err, http.ErrMissingFile) {
		return c.FormFile(FormFileFallback)
	}
	return nil, err
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// isTooLarge reports whether err came from the upload size limit. The multipart
// reader does not always wrap it, so the message is checked as well.
func isTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large")
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid media id")
		return 0, false
	}
	return id, true
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		response.NotFound(c, "media not found")
	case errors.Is(err, models.ErrValidation):
		response.BadRequest(c, err.Error())
	case errors.Is(err, storage.ErrUpstream):
		h.logger.Error("storage backend failed", zap.Error(err))
		response.Internal(c, "upload failed")
	default:
		h.logger.Error("media request failed", zap.String("path", c.FullPath()), zap.Error(err))
		response.Internal(c, "internal error")
	}
}
