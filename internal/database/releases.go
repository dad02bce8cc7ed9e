package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dharun-dev/streamvault/internal/models"
)

type ReleaseStore struct {
	db *sql.DB
}

func NewReleaseStore(db *sql.DB) *ReleaseStore {
	return &ReleaseStore{db: db}
}

// Insert adds a release keyed by its info hash. Returns false when a release
// with the same hash already exists; racing writers for the same hash are
// resolved by the primary key, so the second writer always observes false.
func (s *ReleaseStore) Insert(ctx context.Context, release *models.ReleaseRecord) (bool, error) {
	announceJSON, err := json.Marshal(release.Announce)
	if err != nil {
		return false, fmt.Errorf("failed to marshal announce list: %w", err)
	}
	languagesJSON, err := json.Marshal(release.Languages)
	if err != nil {
		return false, fmt.Errorf("failed to marshal languages: %w", err)
	}
	catalogsJSON, err := json.Marshal(release.Catalogs)
	if err != nil {
		return false, fmt.Errorf("failed to marshal catalogs: %w", err)
	}

	var seasonJSON []byte
	if release.Season != nil {
		seasonJSON, err = json.Marshal(release.Season)
		if err != nil {
			return false, fmt.Errorf("failed to marshal season: %w", err)
		}
	}

	query := `
		INSERT INTO releases (
			info_hash, title_id, name, size_bytes, announce, languages,
			resolution, codec, quality, audio, encoder, source, catalogs,
			filename, file_index, season, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (info_hash) DO NOTHING
	`

	result, err := s.db.ExecContext(
		ctx, query,
		release.InfoHash, release.TitleID, release.Name, release.SizeBytes,
		announceJSON, languagesJSON, release.Resolution, release.Codec,
		release.Quality, release.Audio, release.Encoder, release.Source,
		catalogsJSON, release.Filename, release.FileIndex, seasonJSON,
		release.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert release: %w", err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}

	return inserted > 0, nil
}

// GetByHash retrieves a release by its info hash. Returns (nil, nil) when the
// hash is unknown.
func (s *ReleaseStore) GetByHash(ctx context.Context, infoHash string) (*models.ReleaseRecord, error) {
	query := `
		SELECT info_hash, title_id, name, size_bytes, announce, languages,
			resolution, codec, quality, audio, encoder, source, catalogs,
			filename, file_index, season, created_at
		FROM releases
		WHERE info_hash = $1
	`

	release, err := scanRelease(s.db.QueryRowContext(ctx, query, infoHash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get release %s: %w", infoHash, err)
	}

	return release, nil
}

// ListByTitle returns every release of a title in discovery order.
func (s *ReleaseStore) ListByTitle(ctx context.Context, titleID string) ([]*models.ReleaseRecord, error) {
	query := `
		SELECT info_hash, title_id, name, size_bytes, announce, languages,
			resolution, codec, quality, audio, encoder, source, catalogs,
			filename, file_index, season, created_at
		FROM releases
		WHERE title_id = $1
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, titleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list releases: %w", err)
	}
	defer rows.Close()

	var releases []*models.ReleaseRecord
	for rows.Next() {
		release, err := scanRelease(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan release: %w", err)
		}
		releases = append(releases, release)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate releases: %w", err)
	}

	return releases, nil
}

func scanRelease(row rowScanner) (*models.ReleaseRecord, error) {
	release := &models.ReleaseRecord{}
	var (
		announceJSON  []byte
		languagesJSON []byte
		catalogsJSON  []byte
		seasonJSON    []byte
		fileIndex     sql.NullInt64
	)

	err := row.Scan(
		&release.InfoHash, &release.TitleID, &release.Name, &release.SizeBytes,
		&announceJSON, &languagesJSON, &release.Resolution, &release.Codec,
		&release.Quality, &release.Audio, &release.Encoder, &release.Source,
		&catalogsJSON, &release.Filename, &fileIndex, &seasonJSON,
		&release.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(announceJSON, &release.Announce); err != nil {
		return nil, fmt.Errorf("failed to unmarshal announce list: %w", err)
	}
	if err := json.Unmarshal(languagesJSON, &release.Languages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal languages: %w", err)
	}
	if err := json.Unmarshal(catalogsJSON, &release.Catalogs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal catalogs: %w", err)
	}
	if len(seasonJSON) > 0 {
		release.Season = &models.SeasonInfo{}
		if err := json.Unmarshal(seasonJSON, release.Season); err != nil {
			return nil, fmt.Errorf("failed to unmarshal season: %w", err)
		}
	}
	if fileIndex.Valid {
		idx := int(fileIndex.Int64)
		release.FileIndex = &idx
	}

	return release, nil
}
