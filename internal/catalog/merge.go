// Package catalog owns the persistent movie/series catalog: the merge
// engine on the ingestion path and the query engine on the request path.
package catalog

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dharun-dev/streamvault/internal/metadata"
	"github.com/dharun-dev/streamvault/internal/models"
)

// Store is the catalog persistence surface. Lookup methods return (nil, nil)
// when no record matches.
type Store interface {
	TitleByID(ctx context.Context, id string) (*models.Title, error)
	TitleByNameYear(ctx context.Context, title string, year *int) (*models.Title, error)
	InsertTitle(ctx context.Context, title *models.Title) error
	TouchTitle(ctx context.Context, id string) error
	TitlesByCatalog(ctx context.Context, mediaType, catalog string, skip, limit int) ([]*models.Title, error)
	SearchTitles(ctx context.Context, mediaType, query string) ([]*models.Title, error)
	InsertRelease(ctx context.Context, release *models.ReleaseRecord) (bool, error)
	ReleaseByHash(ctx context.Context, infoHash string) (*models.ReleaseRecord, error)
	ReleasesByTitle(ctx context.Context, titleID string) ([]*models.ReleaseRecord, error)
}

// MergeOutcome reports what a merge did.
type MergeOutcome int

const (
	MergeCreatedTitle MergeOutcome = iota
	MergeUpdatedTitle
	MergeDuplicateRelease
	MergeNoOp
)

func (o MergeOutcome) String() string {
	switch o {
	case MergeCreatedTitle:
		return "created title"
	case MergeUpdatedTitle:
		return "updated title"
	case MergeDuplicateRelease:
		return "duplicate release"
	case MergeNoOp:
		return "no-op"
	default:
		return "unknown"
	}
}

// Merger idempotently upserts release drafts into the catalog.
type Merger struct {
	store  Store
	finder metadata.Finder // nil disables identity lookup
	// each identity lookup runs under its own deadline
	lookupTimeout time.Duration
}

func NewMerger(store Store, finder metadata.Finder) *Merger {
	return &Merger{
		store:         store,
		finder:        finder,
		lookupTimeout: 10 * time.Second,
	}
}

// Merge resolves or creates the draft's parent title, then attaches the
// draft as a release unless its info hash is already known. Identity lookup
// is consulted only on first discovery of a (title, year) pair; an existing
// title's id, poster, and background are never replaced afterwards.
func (m *Merger) Merge(ctx context.Context, draft *models.ReleaseDraft, mediaType string) (MergeOutcome, error) {
	if draft.Torrent == nil {
		return MergeNoOp, fmt.Errorf("draft %q carries no torrent metadata", draft.Title)
	}

	// Re-discovery of a known hash is a no-op before any title work: the
	// hash is globally unique and must never move between titles.
	existing, err := m.store.ReleaseByHash(ctx, draft.Torrent.InfoHash)
	if err != nil {
		return MergeNoOp, err
	}

	title, err := m.store.TitleByNameYear(ctx, draft.Title, draft.Year)
	if err != nil {
		return MergeNoOp, err
	}

	if existing != nil {
		if title != nil && existing.TitleID == title.ID {
			log.Printf("[Merger] Release %s already exists for %q", existing.InfoHash, title.Title)
			return MergeDuplicateRelease, nil
		}
		log.Printf("[Merger] Release %s already attached to title %s, skipping re-attachment", existing.InfoHash, existing.TitleID)
		return MergeNoOp, nil
	}

	outcome := MergeUpdatedTitle
	if title == nil {
		var known bool
		title, known, err = m.resolveNewTitle(ctx, draft, mediaType)
		if err != nil {
			return MergeNoOp, err
		}
		if !known {
			if err := m.store.InsertTitle(ctx, title); err != nil {
				// Lost a race creating the same (title, year); the winner's
				// row is authoritative, so re-read and attach to it.
				winner, readErr := m.store.TitleByNameYear(ctx, draft.Title, draft.Year)
				if readErr != nil || winner == nil {
					return MergeNoOp, fmt.Errorf("failed to create title %q: %w", title.Title, err)
				}
				title = winner
			} else {
				log.Printf("[Merger] Added %s %q (%s)", title.Type, title.Title, title.ID)
				outcome = MergeCreatedTitle
			}
		}
	}

	release := buildRelease(draft, title.ID, mediaType)
	inserted, err := m.store.InsertRelease(ctx, release)
	if err != nil {
		return MergeNoOp, fmt.Errorf("failed to attach release to %q: %w", title.Title, err)
	}
	if !inserted {
		// Lost a race against a concurrent merge for the same hash.
		log.Printf("[Merger] Release %s already exists for %q", release.InfoHash, title.Title)
		return MergeDuplicateRelease, nil
	}

	if outcome == MergeUpdatedTitle {
		if err := m.store.TouchTitle(ctx, title.ID); err != nil {
			log.Printf("[Merger] Failed to touch title %s: %v", title.ID, err)
		}
	}

	log.Printf("[Merger] Updated %s %q with release %s", title.Type, title.Title, release.InfoHash)
	return outcome, nil
}

// resolveNewTitle consults the identity-lookup collaborator for a canonical
// id. A lookup miss falls back to a locally synthesized opaque id; the
// synthesized id is stable for the life of the title. known reports that an
// already-stored aggregate was found under the canonical id.
func (m *Merger) resolveNewTitle(ctx context.Context, draft *models.ReleaseDraft, mediaType string) (*models.Title, bool, error) {
	poster := draft.Poster
	background := draft.Poster
	var id string

	if m.finder != nil {
		lookupCtx, cancel := context.WithTimeout(ctx, m.lookupTimeout)
		result, err := m.finder.Lookup(lookupCtx, draft.Title, draft.Year)
		cancel()
		if err != nil {
			// A failed lookup degrades to local synthesis, same as a miss.
			log.Printf("[Merger] Identity lookup for %q failed: %v", draft.Title, err)
		} else if result != nil {
			// The same real-world title may have been discovered before
			// under a slightly different local key; reuse that aggregate.
			stored, err := m.store.TitleByID(ctx, result.ID)
			if err != nil {
				return nil, false, err
			}
			if stored != nil {
				return stored, true, nil
			}
			id = result.ID
			if result.Poster != "" {
				poster = result.Poster
			}
			if result.Background != "" {
				background = result.Background
			}
		}
	}

	if id == "" {
		id = "mf" + strings.ReplaceAll(uuid.NewString(), "-", "")
	}

	return &models.Title{
		ID:         id,
		Title:      draft.Title,
		Year:       draft.Year,
		Type:       mediaType,
		Poster:     poster,
		Background: background,
	}, false, nil
}

func buildRelease(draft *models.ReleaseDraft, titleID, mediaType string) *models.ReleaseRecord {
	languages := draft.Languages
	if len(languages) == 0 {
		languages = []string{draft.ScrapeLanguage}
	}

	createdAt := draft.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	release := &models.ReleaseRecord{
		InfoHash:   draft.Torrent.InfoHash,
		TitleID:    titleID,
		Name:       draft.Torrent.Name,
		SizeBytes:  draft.Torrent.TotalSize,
		Announce:   draft.Torrent.AnnounceList,
		Languages:  languages,
		Resolution: draft.Resolution,
		Codec:      draft.Codec,
		Quality:    draft.Quality,
		Audio:      draft.Audio,
		Encoder:    draft.Encoder,
		Source:     draft.Source,
		Catalogs:   CatalogTags(draft.Catalog, languages),
		CreatedAt:  createdAt,
	}

	if mediaType == models.MediaTypeSeries {
		season := &models.SeasonInfo{SeasonNumber: draft.Season}
		for _, file := range draft.Torrent.Files {
			if file.Episode <= 0 {
				continue
			}
			season.Episodes = append(season.Episodes, models.EpisodeInfo{
				EpisodeNumber: file.Episode,
				Filename:      file.Filename,
				Size:          file.Size,
				FileIndex:     file.Index,
			})
		}
		release.Season = season
	} else if largest, ok := draft.Torrent.LargestFile(); ok {
		idx := largest.Index
		release.Filename = largest.Filename
		release.FileIndex = &idx
	}

	return release
}

// CatalogTags derives the browsable catalog tags for a release: the crawl
// target's own tag plus one per detected language, sharing the target's
// media-type suffix.
func CatalogTags(base string, languages []string) []string {
	tags := []string{base}

	parts := strings.SplitN(base, "_", 2)
	if len(parts) != 2 {
		return tags
	}
	suffix := parts[1]

	seen := map[string]struct{}{base: {}}
	for _, lang := range languages {
		tag := strings.ToLower(strings.TrimSpace(lang)) + "_" + suffix
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}

	return tags
}
