package media

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-media/gallery/internal/catalog"
	"github.com/aura-media/gallery/internal/models"
	"github.com/aura-media/gallery/internal/query"
	"github.com/aura-media/gallery/internal/realtime"
	"github.com/aura-media/gallery/pkg/queue"
	"github.com/aura-media/gallery/pkg/storage"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

// fakeAdapter records calls and fails on demand.
type fakeAdapter struct {
	mu        sync.Mutex
	storeErr  error
	removeErr error
	thumbnail bool
	stored    int
	removed   []storage.Ref
}

func (f *fakeAdapter) Store(_ context.Context, obj storage.Object) (*storage.Stored, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.storeErr != nil {
		return nil, f.storeErr
	}
	f.stored++
	name := fmt.Sprintf("obj-%d", f.stored)
	out := &storage.Stored{URL: "https://cdn.example/" + name, Key: name}
	if f.thumbnail && storage.IsVideo(obj.ContentType) {
		out.ThumbnailKey = "thumbnails/" + name + ".jpg"
		out.ThumbnailURL = "https://cdn.example/thumbnails/" + name + ".jpg"
	}
	return out, nil
}

func (f *fakeAdapter) Remove(_ context.Context, ref storage.Ref) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, ref)
	return f.removeErr
}

func (f *fakeAdapter) Name() string { return "fake" }

type fakeCleanup struct {
	err      error
	payloads []queue.CleanupPayload
}

func (f *fakeCleanup) EnqueueCleanup(_ context.Context, p queue.CleanupPayload) error {
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, p)
	return nil
}

type recordedEvent struct {
	name    string
	payload interface{}
}

type fakeEvents struct {
	events []recordedEvent
}

func (f *fakeEvents) Publish(_ context.Context, event string, payload interface{}) {
	f.events = append(f.events, recordedEvent{event, payload})
}

// steppingClock returns strictly increasing times one second apart.
func steppingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func newTestService(adapter storage.Adapter) (*Service, *catalog.MemoryStore) {
	store := catalog.NewMemoryStore()
	svc := NewService(store, adapter, nil)
	svc.now = steppingClock()
	return svc, store
}

func TestUpload_Image(t *testing.T) {
	svc, _ := newTestService(&fakeAdapter{thumbnail: true})
	rec, err := svc.Upload(context.Background(), UploadInput{
		Filename: "cat.png", Body: pngHeader, Tags: " pets, ,cute ",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.ID)
	assert.Equal(t, "cat.png", rec.Title)
	assert.Equal(t, models.MediaTypeImage, rec.Type)
	assert.Equal(t, []string{"pets", "cute"}, rec.Tags)
	assert.Nil(t, rec.Thumbnail)
	assert.Equal(t, "https://cdn.example/obj-1", rec.URL)
	assert.Equal(t, time.UTC, rec.UploadDate.Location())
}

func TestUpload_VideoThumbnail(t *testing.T) {
	svc, _ := newTestService(&fakeAdapter{thumbnail: true})
	rec, err := svc.Upload(context.Background(), UploadInput{
		Filename: "clip.mp4", ContentType: "video/mp4", Body: []byte("....ftypisom"), Title: "Clip",
	})
	require.NoError(t, err)
	assert.Equal(t, models.MediaTypeVideo, rec.Type)
	assert.Equal(t, "Clip", rec.Title)
	require.NotNil(t, rec.Thumbnail)
	assert.Equal(t, "https://cdn.example/thumbnails/obj-1.jpg", *rec.Thumbnail)
	assert.Empty(t, rec.Tags)
	assert.NotNil(t, rec.Tags)
}

func TestUpload_StorageFailureCreatesNothing(t *testing.T) {
	svc, store := newTestService(&fakeAdapter{storeErr: errors.New("bucket gone")})
	_, err := svc.Upload(context.Background(), UploadInput{Filename: "a.png", Body: pngHeader})
	require.ErrorIs(t, err, storage.ErrUpstream)

	all, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestUpload_EmptyFile(t *testing.T) {
	svc, _ := newTestService(&fakeAdapter{})
	_, err := svc.Upload(context.Background(), UploadInput{Filename: "a.png"})
	require.ErrorIs(t, err, models.ErrValidation)
}

func TestDelete_RemovesRecordEvenIfStorageFails(t *testing.T) {
	adapter := &fakeAdapter{removeErr: errors.New("network down")}
	svc, store := newTestService(adapter)
	rec, err := svc.Upload(context.Background(), UploadInput{Filename: "a.png", Body: pngHeader})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), rec.ID))
	_, err = store.Get(context.Background(), rec.ID)
	require.ErrorIs(t, err, catalog.ErrNotFound)
	require.Len(t, adapter.removed, 1)
	assert.Equal(t, "obj-1", adapter.removed[0].Key)
	assert.Equal(t, "image", adapter.removed[0].MediaType)

	require.ErrorIs(t, svc.Delete(context.Background(), rec.ID), catalog.ErrNotFound)
}

func TestDelete_EnqueuesCleanup(t *testing.T) {
	adapter := &fakeAdapter{}
	cleanup := &fakeCleanup{}
	svc, _ := newTestService(adapter)
	svc.WithCleanupQueue(cleanup)

	rec, err := svc.Upload(context.Background(), UploadInput{Filename: "a.png", Body: pngHeader})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(context.Background(), rec.ID))

	require.Len(t, cleanup.payloads, 1)
	assert.Equal(t, queue.CleanupPayload{MediaID: rec.ID, Backend: "fake", Key: "obj-1", MediaType: "image"}, cleanup.payloads[0])
	assert.Empty(t, adapter.removed)
}

func TestDelete_QueueDownFallsBackInline(t *testing.T) {
	adapter := &fakeAdapter{}
	svc, _ := newTestService(adapter)
	svc.WithCleanupQueue(&fakeCleanup{err: errors.New("redis down")})

	rec, err := svc.Upload(context.Background(), UploadInput{Filename: "a.png", Body: pngHeader})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(context.Background(), rec.ID))
	assert.Len(t, adapter.removed, 1)
}

func TestEdit_FalsyKeepsFields(t *testing.T) {
	svc, _ := newTestService(&fakeAdapter{})
	rec, err := svc.Upload(context.Background(), UploadInput{
		Filename: "a.png", Body: pngHeader, Title: "Old", Description: "desc", Tags: "x,y",
	})
	require.NoError(t, err)

	updated, err := svc.Edit(context.Background(), rec.ID, models.MediaUpdate{Title: "New"})
	require.NoError(t, err)
	assert.Equal(t, "New", updated.Title)
	assert.Equal(t, "desc", updated.Description)
	assert.Equal(t, []string{"x", "y"}, updated.Tags)
	assert.Equal(t, rec.UploadDate, updated.UploadDate)
	assert.Equal(t, rec.URL, updated.URL)

	_, err = svc.Edit(context.Background(), 99, models.MediaUpdate{Title: "x"})
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestEvents(t *testing.T) {
	events := &fakeEvents{}
	svc, _ := newTestService(&fakeAdapter{})
	svc.WithEvents(events)

	rec, err := svc.Upload(context.Background(), UploadInput{Filename: "a.png", Body: pngHeader})
	require.NoError(t, err)
	_, err = svc.Edit(context.Background(), rec.ID, models.MediaUpdate{Title: "b"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(context.Background(), rec.ID))

	require.Len(t, events.events, 3)
	assert.Equal(t, realtime.EventMediaCreated, events.events[0].name)
	assert.Equal(t, realtime.EventMediaUpdated, events.events[1].name)
	assert.Equal(t, realtime.EventMediaDeleted, events.events[2].name)
	assert.Equal(t, DeletedEvent{ID: rec.ID}, events.events[2].payload)
}

func TestList_NewestFirst(t *testing.T) {
	svc, _ := newTestService(&fakeAdapter{})
	for i := 0; i < 3; i++ {
		_, err := svc.Upload(context.Background(), UploadInput{Filename: fmt.Sprintf("%d.png", i), Body: pngHeader})
		require.NoError(t, err)
	}
	res, err := svc.List(context.Background(), query.Params{})
	require.NoError(t, err)
	require.Equal(t, 3, res.Total)
	assert.Equal(t, []int64{3, 2, 1}, []int64{res.Media[0].ID, res.Media[1].ID, res.Media[2].ID})
}
