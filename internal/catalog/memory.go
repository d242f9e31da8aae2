package catalog

import (
	"context"
	"sync"

	"github.com/aura-media/gallery/internal/models"
)

// MemoryStore keeps records in process memory for the lifetime of the server.
type MemoryStore struct {
	mu     sync.RWMutex
	items  []*models.Media
	nextID int64
}

// NewMemoryStore creates an empty in-memory catalog.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

// Create assigns the next id and appends a copy of m.
func (s *MemoryStore) Create(ctx context.Context, m *models.Media) (*models.Media, error) {
	if m == nil {
		return nil, models.ErrValidation
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cp := m.Clone()
	if cp.Tags == nil {
		cp.Tags = []string{}
	}

	s.mu.Lock()
	cp.ID = s.nextID
	s.nextID++
	s.items = append(s.items, cp)
	s.mu.Unlock()

	return cp.Clone(), nil
}

// Get returns the record with the given id.
func (s *MemoryStore) Get(ctx context.Context, id int64) (*models.Media, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return nil, ErrNotFound
	}
	return s.items[i].Clone(), nil
}

// Update applies u to the record with the given id.
func (s *MemoryStore) Update(ctx context.Context, id int64, u models.MediaUpdate) (*models.Media, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return nil, ErrNotFound
	}
	s.items[i].Apply(u)
	return s.items[i].Clone(), nil
}

// Delete removes and returns the record with the given id.
func (s *MemoryStore) Delete(ctx context.Context, id int64) (*models.Media, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return nil, ErrNotFound
	}
	removed := s.items[i]
	s.items = append(s.items[:i], s.items[i+1:]...)
	return removed, nil
}

// List returns copies of all records in insertion order.
func (s *MemoryStore) List(ctx context.Context) ([]*models.Media, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Media, 0, len(s.items))
	for _, m := range s.items {
		out = append(out, m.Clone())
	}
	return out, nil
}

// indexOf must be called with mu held. Ids are appended in increasing order.
func (s *MemoryStore) indexOf(id int64) int {
	lo, hi := 0, len(s.items)
	for lo < hi {
		mid := (lo + hi) / 2
		switch {
		case s.items[mid].ID == id:
			return mid
		case s.items[mid].ID < id:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return -1
}
