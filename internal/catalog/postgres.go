package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-media/gallery/internal/models"
)

const mediaColumns = `id, title, description, filename, media_type, tags, upload_date, url, thumbnail, storage_key, thumbnail_key`

// PostgresStore persists the catalog in PostgreSQL. The BIGSERIAL id keeps ids monotonic and never reused.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a catalog backed by the media table.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Create inserts m and returns the stored row.
func (s *PostgresStore) Create(ctx context.Context, m *models.Media) (*models.Media, error) {
	if m == nil {
		return nil, models.ErrValidation
	}
	tags := m.Tags
	if tags == nil {
		tags = []string{}
	}
	const q = `INSERT INTO media (title, description, filename, media_type, tags, upload_date, url, thumbnail, storage_key, thumbnail_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + mediaColumns
	row := s.pool.QueryRow(ctx, q, m.Title, m.Description, m.Filename, string(m.Type), tags,
		m.UploadDate, m.URL, m.Thumbnail, m.StorageKey, m.ThumbnailKey)
	out, err := scanMedia(row)
	if err != nil {
		return nil, fmt.Errorf("insert media: %w", err)
	}
	return out, nil
}

// Get returns the row with the given id.
func (s *PostgresStore) Get(ctx context.Context, id int64) (*models.Media, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+mediaColumns+` FROM media WHERE id = $1`, id)
	return notFound(scanMedia(row))
}

// Update applies the non-empty fields of u in a single statement.
func (s *PostgresStore) Update(ctx context.Context, id int64, u models.MediaUpdate) (*models.Media, error) {
	tags := u.Tags
	if tags == nil {
		tags = []string{}
	}
	const q = `UPDATE media SET
		title = COALESCE(NULLIF($2, ''), title),
		description = COALESCE(NULLIF($3, ''), description),
		tags = CASE WHEN cardinality($4::text[]) > 0 THEN $4::text[] ELSE tags END
		WHERE id = $1
		RETURNING ` + mediaColumns
	return notFound(scanMedia(s.pool.QueryRow(ctx, q, id, u.Title, u.Description, tags)))
}

// Delete removes the row and returns what was stored.
func (s *PostgresStore) Delete(ctx context.Context, id int64) (*models.Media, error) {
	row := s.pool.QueryRow(ctx, `DELETE FROM media WHERE id = $1 RETURNING `+mediaColumns, id)
	return notFound(scanMedia(row))
}

// List returns all rows ordered by id, which is insertion order.
func (s *PostgresStore) List(ctx context.Context) ([]*models.Media, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+mediaColumns+` FROM media ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	defer rows.Close()

	list := make([]*models.Media, 0)
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

func scanMedia(row pgx.Row) (*models.Media, error) {
	var m models.Media
	var mediaType string
	if err := row.Scan(&m.ID, &m.Title, &m.Description, &m.Filename, &mediaType, &m.Tags,
		&m.UploadDate, &m.URL, &m.Thumbnail, &m.StorageKey, &m.ThumbnailKey); err != nil {
		return nil, err
	}
	m.Type = models.MediaType(mediaType)
	m.UploadDate = m.UploadDate.UTC()
	if m.Tags == nil {
		m.Tags = []string{}
	}
	return &m, nil
}

func notFound(m *models.Media, err error) (*models.Media, error) {
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return m, err
}
