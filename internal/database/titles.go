package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dharun-dev/streamvault/internal/models"
)

type TitleStore struct {
	db *sql.DB
}

func NewTitleStore(db *sql.DB) *TitleStore {
	return &TitleStore{db: db}
}

// Insert adds a new title to the catalog. The (title, year) pair is unique;
// a conflicting insert surfaces as an error so the merge engine can re-read.
func (s *TitleStore) Insert(ctx context.Context, title *models.Title) error {
	query := `
		INSERT INTO titles (id, title, year, type, poster, background)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	err := s.db.QueryRowContext(
		ctx, query,
		title.ID, title.Title, title.Year, title.Type, title.Poster, title.Background,
	).Scan(&title.CreatedAt, &title.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert title: %w", err)
	}

	return nil
}

// GetByID retrieves a title by its canonical id. Returns (nil, nil) when the
// title does not exist.
func (s *TitleStore) GetByID(ctx context.Context, id string) (*models.Title, error) {
	query := `
		SELECT id, title, year, type, poster, background, created_at, updated_at
		FROM titles
		WHERE id = $1
	`

	title, err := scanTitle(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get title %s: %w", id, err)
	}

	return title, nil
}

// GetByNameYear retrieves a title by exact (title, year) match. A nil year
// matches only titles stored without a year.
func (s *TitleStore) GetByNameYear(ctx context.Context, name string, year *int) (*models.Title, error) {
	query := `
		SELECT id, title, year, type, poster, background, created_at, updated_at
		FROM titles
		WHERE title = $1 AND year IS NOT DISTINCT FROM $2
	`

	title, err := scanTitle(s.db.QueryRowContext(ctx, query, name, year))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get title %q: %w", name, err)
	}

	return title, nil
}

// ListByCatalog returns titles of the given media type that own at least one
// release carrying the catalog tag, ordered newest-release-first.
func (s *TitleStore) ListByCatalog(ctx context.Context, mediaType, catalog string, skip, limit int) ([]*models.Title, error) {
	query := `
		SELECT t.id, t.title, t.year, t.type, t.poster, t.background, t.created_at, t.updated_at
		FROM titles t
		JOIN releases r ON r.title_id = t.id
		WHERE t.type = $1 AND r.catalogs @> jsonb_build_array($2::text)
		GROUP BY t.id
		ORDER BY MAX(r.created_at) DESC
		OFFSET $3 LIMIT $4
	`

	rows, err := s.db.QueryContext(ctx, query, mediaType, catalog, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list titles: %w", err)
	}
	defer rows.Close()

	return collectTitles(rows)
}

// Search runs a full-text match against title names for the media type.
func (s *TitleStore) Search(ctx context.Context, mediaType, search string) ([]*models.Title, error) {
	query := `
		SELECT id, title, year, type, poster, background, created_at, updated_at
		FROM titles
		WHERE type = $1
		  AND to_tsvector('simple', title) @@ plainto_tsquery('simple', $2)
		ORDER BY updated_at DESC
		LIMIT 50
	`

	rows, err := s.db.QueryContext(ctx, query, mediaType, search)
	if err != nil {
		return nil, fmt.Errorf("failed to search titles: %w", err)
	}
	defer rows.Close()

	return collectTitles(rows)
}

// Touch bumps updated_at; called when a merge attaches a new release.
func (s *TitleStore) Touch(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE titles SET updated_at = CURRENT_TIMESTAMP WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to touch title %s: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTitle(row rowScanner) (*models.Title, error) {
	title := &models.Title{}
	var year sql.NullInt64

	err := row.Scan(
		&title.ID, &title.Title, &year, &title.Type,
		&title.Poster, &title.Background, &title.CreatedAt, &title.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if year.Valid {
		y := int(year.Int64)
		title.Year = &y
	}

	return title, nil
}

func collectTitles(rows *sql.Rows) ([]*models.Title, error) {
	var titles []*models.Title
	for rows.Next() {
		title, err := scanTitle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan title: %w", err)
		}
		titles = append(titles, title)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate titles: %w", err)
	}
	return titles, nil
}
