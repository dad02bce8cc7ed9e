package catalog

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dharun-dev/streamvault/internal/models"
)

// MetaPreview is the compact catalog listing item.
type MetaPreview struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Name   string `json:"name"`
	Poster string `json:"poster,omitempty"`
}

// Video is one playable episode of a series meta.
type Video struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Season   int       `json:"season"`
	Episode  int       `json:"episode"`
	Released time.Time `json:"released"`
}

// Meta is the full detail object for one title.
type Meta struct {
	ID         string  `json:"id"`
	Type       string  `json:"type"`
	Name       string  `json:"name"`
	Year       *int    `json:"year,omitempty"`
	Poster     string  `json:"poster,omitempty"`
	Background string  `json:"background,omitempty"`
	Videos     []Video `json:"videos,omitempty"`
}

// StreamEntry is one playable release, flattened for the requested video.
type StreamEntry struct {
	Name       string   `json:"name"`
	InfoHash   string   `json:"infoHash"`
	FileIndex  *int     `json:"fileIdx,omitempty"`
	Filename   string   `json:"filename,omitempty"`
	SizeBytes  int64    `json:"size,omitempty"`
	Resolution string   `json:"resolution,omitempty"`
	Quality    string   `json:"quality,omitempty"`
	Languages  []string `json:"languages,omitempty"`
	Announce   []string `json:"announce,omitempty"`
	Source     string   `json:"source"`
}

// Query serves the read side of the catalog.
type Query struct {
	store Store
	// hostURL is the public base every poster link is rewritten onto, so
	// clients never hit the scraped origin directly.
	hostURL string
}

func NewQuery(store Store, hostURL string) *Query {
	return &Query{store: store, hostURL: hostURL}
}

// ListCatalog returns one catalog page ordered by most recent release
// activity. An unknown catalog or an out-of-range skip yields an empty page.
func (q *Query) ListCatalog(ctx context.Context, mediaType, catalog string, skip, limit int) ([]MetaPreview, error) {
	titles, err := q.store.TitlesByCatalog(ctx, mediaType, catalog, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog %s: %w", catalog, err)
	}
	return q.previews(titles), nil
}

// Search returns catalog previews matching the query text.
func (q *Query) Search(ctx context.Context, mediaType, query string) ([]MetaPreview, error) {
	titles, err := q.store.SearchTitles(ctx, mediaType, query)
	if err != nil {
		return nil, fmt.Errorf("search for %q failed: %w", query, err)
	}
	return q.previews(titles), nil
}

// GetMeta returns the full meta for a title, or nil when the id is unknown.
// Series metas enumerate one video per distinct (season, episode) across all
// releases, in release discovery order.
func (q *Query) GetMeta(ctx context.Context, mediaType, id string) (*Meta, error) {
	title, err := q.store.TitleByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if title == nil || title.Type != mediaType {
		return nil, nil
	}

	meta := &Meta{
		ID:         title.ID,
		Type:       title.Type,
		Name:       title.Title,
		Year:       title.Year,
		Poster:     q.PosterURL(title.Type, title.ID),
		Background: q.PosterURL(title.Type, title.ID),
	}

	if title.Type == models.MediaTypeSeries {
		releases, err := q.store.ReleasesByTitle(ctx, title.ID)
		if err != nil {
			return nil, err
		}
		meta.Videos = seriesVideos(title.ID, releases)
	}

	return meta, nil
}

// GetStreams returns the playable releases for one video. For movies season
// and episode are ignored; for series only releases carrying that exact
// episode qualify, and the entry is narrowed to the episode's file.
func (q *Query) GetStreams(ctx context.Context, mediaType, id string, season, episode int) ([]StreamEntry, error) {
	title, err := q.store.TitleByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if title == nil || title.Type != mediaType {
		return nil, nil
	}

	releases, err := q.store.ReleasesByTitle(ctx, title.ID)
	if err != nil {
		return nil, err
	}

	var streams []StreamEntry
	for _, release := range releases {
		entry := StreamEntry{
			Name:       release.Name,
			InfoHash:   release.InfoHash,
			FileIndex:  release.FileIndex,
			Filename:   release.Filename,
			SizeBytes:  release.SizeBytes,
			Resolution: release.Resolution,
			Quality:    release.Quality,
			Languages:  release.Languages,
			Announce:   release.Announce,
			Source:     release.Source,
		}

		if mediaType == models.MediaTypeSeries {
			ep := release.Episode(season, episode)
			if ep == nil {
				continue
			}
			idx := ep.FileIndex
			entry.FileIndex = &idx
			entry.Filename = ep.Filename
			entry.SizeBytes = ep.Size
		}

		streams = append(streams, entry)
	}

	return streams, nil
}

// ReleaseByHash returns the stored release for an info hash, or nil when the
// hash is unknown.
func (q *Query) ReleaseByHash(ctx context.Context, infoHash string) (*models.ReleaseRecord, error) {
	return q.store.ReleaseByHash(ctx, infoHash)
}

// TitlePoster returns the stored upstream poster for a title, for the poster
// proxy endpoint. Empty when the title is unknown or has no poster.
func (q *Query) TitlePoster(ctx context.Context, mediaType, id string) (string, error) {
	title, err := q.store.TitleByID(ctx, id)
	if err != nil {
		return "", err
	}
	if title == nil || title.Type != mediaType {
		return "", nil
	}
	return title.Poster, nil
}

// PosterURL rewrites a title's poster onto the serving host.
func (q *Query) PosterURL(mediaType, id string) string {
	return fmt.Sprintf("%s/poster/%s/%s.jpg", q.hostURL, mediaType, id)
}

func (q *Query) previews(titles []*models.Title) []MetaPreview {
	previews := make([]MetaPreview, 0, len(titles))
	for _, t := range titles {
		previews = append(previews, MetaPreview{
			ID:     t.ID,
			Type:   t.Type,
			Name:   t.Title,
			Poster: q.PosterURL(t.Type, t.ID),
		})
	}
	return previews
}

// seriesVideos flattens release season info into distinct videos. The first
// release to carry an episode wins its Released timestamp; within the final
// list videos are ordered by season then episode.
func seriesVideos(titleID string, releases []*models.ReleaseRecord) []Video {
	seen := make(map[string]struct{})
	var videos []Video

	for _, release := range releases {
		if release.Season == nil {
			continue
		}
		season := release.Season.SeasonNumber
		if season <= 0 {
			continue
		}
		for _, ep := range release.Season.Episodes {
			if ep.EpisodeNumber <= 0 {
				continue
			}
			id := fmt.Sprintf("%s:%d:%d", titleID, season, ep.EpisodeNumber)
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			videos = append(videos, Video{
				ID:       id,
				Name:     fmt.Sprintf("S%d EP%d", season, ep.EpisodeNumber),
				Season:   season,
				Episode:  ep.EpisodeNumber,
				Released: release.CreatedAt,
			})
		}
	}

	sort.Slice(videos, func(i, j int) bool {
		if videos[i].Season != videos[j].Season {
			return videos[i].Season < videos[j].Season
		}
		return videos[i].Episode < videos[j].Episode
	})

	return videos
}
