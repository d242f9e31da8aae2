// Package catalog holds the authoritative set of media records.
package catalog

import (
	"context"
	"errors"

	"github.com/aura-media/gallery/internal/models"
)

// ErrNotFound is returned when no record has the requested id.
var ErrNotFound = errors.New("media not found")

// Store is the media catalog. Ids are assigned by the store, start at 1 and are never reused.
type Store interface {
	Create(ctx context.Context, m *models.Media) (*models.Media, error)
	Get(ctx context.Context, id int64) (*models.Media, error)
	Update(ctx context.Context, id int64, u models.MediaUpdate) (*models.Media, error)
	Delete(ctx context.Context, id int64) (*models.Media, error)
	// List returns every record in insertion order.
	List(ctx context.Context) ([]*models.Media, error)
}
