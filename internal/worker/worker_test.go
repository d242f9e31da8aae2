package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aura-media/gallery/pkg/queue"
	"github.com/aura-media/gallery/pkg/storage"
)

type adapterMock struct {
	mock.Mock
	removes atomic.Int32
}

func (m *adapterMock) Store(ctx context.Context, obj storage.Object) (*storage.Stored, error) {
	args := m.Called(ctx, obj)
	if v := args.Get(0); v != nil {
		return v.(*storage.Stored), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *adapterMock) Remove(ctx context.Context, ref storage.Ref) error {
	defer m.removes.Add(1)
	return m.Called(ctx, ref).Error(0)
}

func (m *adapterMock) Name() string { return "local" }

// memQueue mimics queue.Queue semantics without Redis.
type memQueue struct {
	mu   sync.Mutex
	jobs []*queue.Job
	dlq  []*queue.Job
}

func (q *memQueue) Dequeue(ctx context.Context) (*queue.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		time.Sleep(time.Millisecond)
		return nil, nil
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, nil
}

func (q *memQueue) Retry(ctx context.Context, job *queue.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	job.Attempt++
	if job.Attempt >= queue.MaxRetries {
		q.dlq = append(q.dlq, job)
		return nil
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *memQueue) snapshot() (pending, dead int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs), len(q.dlq)
}

func cleanupJob(t *testing.T, backend string) *queue.Job {
	t.Helper()
	job, err := queue.NewJob(queue.JobTypeStorageCleanup, queue.CleanupPayload{
		MediaID: 7, Backend: backend, Key: "media/a.mp4", ThumbnailKey: "thumbnails/a.jpg", MediaType: "video",
	})
	require.NoError(t, err)
	return job
}

func TestProcess_RemovesObject(t *testing.T) {
	adapter := new(adapterMock)
	adapter.On("Remove", mock.Anything, storage.Ref{Key: "media/a.mp4", ThumbnailKey: "thumbnails/a.jpg", MediaType: "video"}).
		Return(nil).Once()
	p := NewCleanupProcessor(adapter, &memQueue{}, nil)

	require.NoError(t, p.Process(context.Background(), cleanupJob(t, "local")))
	adapter.AssertExpectations(t)
}

func TestProcess_SkipsOtherBackend(t *testing.T) {
	adapter := new(adapterMock)
	p := NewCleanupProcessor(adapter, &memQueue{}, nil)

	require.NoError(t, p.Process(context.Background(), cleanupJob(t, "s3")))
	adapter.AssertNotCalled(t, "Remove", mock.Anything, mock.Anything)
}

func TestProcess_UnknownJobType(t *testing.T) {
	p := NewCleanupProcessor(new(adapterMock), &memQueue{}, nil)
	err := p.Process(context.Background(), &queue.Job{ID: "x", Type: "mystery"})
	require.Error(t, err)
}

func TestRun_RetriesThenDeadLetters(t *testing.T) {
	adapter := new(adapterMock)
	adapter.On("Remove", mock.Anything, mock.Anything).Return(errors.New("bucket unreachable"))

	q := &memQueue{jobs: []*queue.Job{cleanupJob(t, "local")}}
	p := NewCleanupProcessor(adapter, q, nil)
	p.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		pending, dead := q.snapshot()
		return pending == 0 && dead == 1
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done

	adapter.AssertNumberOfCalls(t, "Remove", queue.MaxRetries)
}

func TestRun_SucceedsWithoutRetry(t *testing.T) {
	adapter := new(adapterMock)
	adapter.On("Remove", mock.Anything, mock.Anything).Return(nil)

	q := &memQueue{jobs: []*queue.Job{cleanupJob(t, "local"), cleanupJob(t, "")}}
	p := NewCleanupProcessor(adapter, q, nil)
	p.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		pending, _ := q.snapshot()
		return pending == 0 && adapter.removes.Load() == 2
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done

	_, dead := q.snapshot()
	assert.Zero(t, dead)
}

func TestRun_ShutdownMidJobKeepsJobQueued(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	adapter := new(adapterMock)
	adapter.On("Remove", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(errors.New("interrupted"))

	q := &memQueue{jobs: []*queue.Job{cleanupJob(t, "local")}}
	p := NewCleanupProcessor(adapter, q, nil)
	p.backoff = time.Hour

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}

	pending, dead := q.snapshot()
	assert.Equal(t, 1, pending)
	assert.Zero(t, dead)
	adapter.AssertNumberOfCalls(t, "Remove", 1)
}
