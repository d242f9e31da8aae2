// Package media ties the catalog, the query engine and the storage backend into the gallery's operations.
package media

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aura-media/gallery/internal/catalog"
	"github.com/aura-media/gallery/internal/models"
	"github.com/aura-media/gallery/internal/query"
	"github.com/aura-media/gallery/internal/realtime"
	"github.com/aura-media/gallery/pkg/queue"
	"github.com/aura-media/gallery/pkg/storage"
)

// CleanupQueue defers removal of stored objects to the cleanup worker.
type CleanupQueue interface {
	EnqueueCleanup(ctx context.Context, payload queue.CleanupPayload) error
}

// EventPublisher pushes media change events to live viewers.
type EventPublisher interface {
	Publish(ctx context.Context, event string, payload interface{})
}

// UploadInput is one uploaded file plus its optional form fields.
type UploadInput struct {
	Filename    string
	ContentType string
	Body        []byte
	Title       string
	Description string
	Tags        string
}

// DeletedEvent is the payload of media_deleted.
type DeletedEvent struct {
	ID int64 `json:"id"`
}

// Service implements upload, edit, delete and browse over a catalog and a storage backend.
type Service struct {
	store   catalog.Store
	adapter storage.Adapter
	cleanup CleanupQueue
	events  EventPublisher
	now     func() time.Time
	logger  *zap.Logger
}

// NewService creates a media service. Storage cleanup runs inline until a queue is attached.
func NewService(store catalog.Store, adapter storage.Adapter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, adapter: adapter, now: time.Now, logger: logger}
}

// WithCleanupQueue routes storage cleanup through q.
func (s *Service) WithCleanupQueue(q CleanupQueue) *Service {
	s.cleanup = q
	return s
}

// WithEvents publishes media changes through p.
func (s *Service) WithEvents(p EventPublisher) *Service {
	s.events = p
	return s
}

// Upload stores the file and then records it. A storage failure leaves the catalog untouched.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*models.Media, error) {
	if len(in.Body) == 0 {
		return nil, fmt.Errorf("%w: empty file", models.ErrValidation)
	}
	contentType := storage.DetectContentType(in.ContentType, in.Body)
	mediaType := models.MediaTypeFor(contentType)

	stored, err := s.adapter.Store(ctx, storage.Object{
		Body:        in.Body,
		ContentType: contentType,
		Filename:    in.Filename,
	})
	if err != nil {
		uploadsTotal.WithLabelValues(string(mediaType), "failed").Inc()
		if !errors.Is(err, storage.ErrUpstream) {
			err = fmt.Errorf("%w: %v", storage.ErrUpstream, err)
		}
		return nil, err
	}

	title := in.Title
	if title == "" {
		title = in.Filename
	}
	rec := &models.Media{
		Title:        title,
		Description:  in.Description,
		Filename:     in.Filename,
		Type:         mediaType,
		Tags:         models.ParseTags(in.Tags),
		UploadDate:   s.now().UTC().Truncate(time.Millisecond),
		URL:          stored.URL,
		StorageKey:   stored.Key,
		ThumbnailKey: stored.ThumbnailKey,
	}
	if mediaType == models.MediaTypeVideo && stored.ThumbnailURL != "" {
		thumb := stored.ThumbnailURL
		rec.Thumbnail = &thumb
	}

	created, err := s.store.Create(ctx, rec)
	if err != nil {
		// The bytes are already stored; release them so they are not orphaned.
		s.releaseStorage(ctx, rec)
		uploadsTotal.WithLabelValues(string(mediaType), "failed").Inc()
		return nil, fmt.Errorf("create media record: %w", err)
	}
	uploadsTotal.WithLabelValues(string(mediaType), "ok").Inc()
	s.logger.Info("media uploaded",
		zap.Int64("id", created.ID),
		zap.String("type", string(created.Type)),
		zap.String("backend", s.adapter.Name()),
		zap.Int("bytes", len(in.Body)))
	s.publish(ctx, realtime.EventMediaCreated, created)
	return created, nil
}

// Get returns one record.
func (s *Service) Get(ctx context.Context, id int64) (*models.Media, error) {
	return s.store.Get(ctx, id)
}

// Edit changes title, description and tags. Empty values keep the current ones.
func (s *Service) Edit(ctx context.Context, id int64, u models.MediaUpdate) (*models.Media, error) {
	updated, err := s.store.Update(ctx, id, u)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, realtime.EventMediaUpdated, updated)
	return updated, nil
}

// Delete removes the record, then releases its stored object. Storage failures are logged only.
func (s *Service) Delete(ctx context.Context, id int64) error {
	rec, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.logger.Info("media deleted", zap.Int64("id", id))
	s.releaseStorage(ctx, rec)
	s.publish(ctx, realtime.EventMediaDeleted, DeletedEvent{ID: id})
	return nil
}

// List filters, sorts and paginates the catalog.
func (s *Service) List(ctx context.Context, p query.Params) (query.Result, error) {
	records, err := s.store.List(ctx)
	if err != nil {
		return query.Result{}, err
	}
	return query.Run(records, p), nil
}

func (s *Service) releaseStorage(ctx context.Context, rec *models.Media) {
	if rec.StorageKey == "" {
		return
	}
	// The client may be gone by now; cleanup still runs.
	ctx = context.WithoutCancel(ctx)
	if s.cleanup != nil {
		err := s.cleanup.EnqueueCleanup(ctx, queue.CleanupPayload{
			MediaID:      rec.ID,
			Backend:      s.adapter.Name(),
			Key:          rec.StorageKey,
			ThumbnailKey: rec.ThumbnailKey,
			MediaType:    string(rec.Type),
		})
		if err == nil {
			return
		}
		s.logger.Warn("enqueue cleanup failed, removing inline", zap.Int64("id", rec.ID), zap.Error(err))
	}
	ref := storage.Ref{Key: rec.StorageKey, ThumbnailKey: rec.ThumbnailKey, MediaType: string(rec.Type)}
	if err := s.adapter.Remove(ctx, ref); err != nil {
		cleanupFailures.Inc()
		s.logger.Error("storage cleanup failed",
			zap.Int64("id", rec.ID), zap.String("key", rec.StorageKey), zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, event string, payload interface{}) {
	if s.events != nil {
		s.events.Publish(ctx, event, payload)
	}
}
