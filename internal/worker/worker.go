package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aura-media/gallery/pkg/queue"
	"github.com/aura-media/gallery/pkg/storage"
)

// JobQueue is the part of queue.Queue the processor needs.
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// CleanupProcessor removes stored objects of deleted media records, retrying failures through the queue.
type CleanupProcessor struct {
	adapter storage.Adapter
	queue   JobQueue
	backoff time.Duration
	logger  *zap.Logger
}

// NewCleanupProcessor creates a cleanup processor for one storage backend.
func NewCleanupProcessor(adapter storage.Adapter, q JobQueue, logger *zap.Logger) *CleanupProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CleanupProcessor{adapter: adapter, queue: q, backoff: queue.RetryBackoff, logger: logger}
}

// Process executes one cleanup job.
func (p *CleanupProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeStorageCleanup {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.CleanupPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if payload.Backend != "" && payload.Backend != p.adapter.Name() {
		p.logger.Warn("cleanup job for another backend skipped",
			zap.String("job_id", job.ID), zap.String("backend", payload.Backend))
		return nil
	}

	ref := storage.Ref{Key: payload.Key, ThumbnailKey: payload.ThumbnailKey, MediaType: payload.MediaType}
	if err := p.adapter.Remove(ctx, ref); err != nil {
		return fmt.Errorf("remove stored object: %w", err)
	}
	p.logger.Info("stored object removed", zap.Int64("media_id", payload.MediaID), zap.String("key", payload.Key))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *CleanupProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("cleanup worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			// Re-enqueue even when shutdown cancelled ctx mid-job.
			if reErr := p.queue.Retry(context.WithoutCancel(ctx), job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *CleanupProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
