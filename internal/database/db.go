package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/dharun-dev/streamvault/internal/models"
)

// Connect creates a new database connection.
func Connect(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Store bundles the title and release stores behind the surface the catalog
// engines consume. All lookup methods return (nil, nil) when no row matches.
type Store struct {
	Titles   *TitleStore
	Releases *ReleaseStore
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		Titles:   NewTitleStore(db),
		Releases: NewReleaseStore(db),
	}
}

func (s *Store) TitleByID(ctx context.Context, id string) (*models.Title, error) {
	return s.Titles.GetByID(ctx, id)
}

func (s *Store) TitleByNameYear(ctx context.Context, title string, year *int) (*models.Title, error) {
	return s.Titles.GetByNameYear(ctx, title, year)
}

func (s *Store) InsertTitle(ctx context.Context, title *models.Title) error {
	return s.Titles.Insert(ctx, title)
}

func (s *Store) TitlesByCatalog(ctx context.Context, mediaType, catalog string, skip, limit int) ([]*models.Title, error) {
	return s.Titles.ListByCatalog(ctx, mediaType, catalog, skip, limit)
}

func (s *Store) SearchTitles(ctx context.Context, mediaType, query string) ([]*models.Title, error) {
	return s.Titles.Search(ctx, mediaType, query)
}

func (s *Store) TouchTitle(ctx context.Context, id string) error {
	return s.Titles.Touch(ctx, id)
}

func (s *Store) InsertRelease(ctx context.Context, release *models.ReleaseRecord) (bool, error) {
	return s.Releases.Insert(ctx, release)
}

func (s *Store) ReleaseByHash(ctx context.Context, infoHash string) (*models.ReleaseRecord, error) {
	return s.Releases.GetByHash(ctx, infoHash)
}

func (s *Store) ReleasesByTitle(ctx context.Context, titleID string) ([]*models.ReleaseRecord, error) {
	return s.Releases.ListByTitle(ctx, titleID)
}
