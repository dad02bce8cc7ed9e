package models

import "time"

const (
	MediaTypeMovie  = "movie"
	MediaTypeSeries = "series"
)

// Title is one catalog aggregate: a movie or a series, independent of how
// many releases exist for it. ID is either an externally issued identifier
// (e.g. an IMDb id) or a locally synthesized "mf..." id.
type Title struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Year       *int      `json:"year,omitempty"`
	Type       string    `json:"type"`
	Poster     string    `json:"poster"`
	Background string    `json:"background"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// EpisodeInfo describes one episode file inside a series release.
type EpisodeInfo struct {
	EpisodeNumber int    `json:"episode_number"`
	Filename      string `json:"filename"`
	Size          int64  `json:"size"`
	FileIndex     int    `json:"file_index"`
}

// SeasonInfo is present only on series releases.
type SeasonInfo struct {
	SeasonNumber int           `json:"season_number"`
	Episodes     []EpisodeInfo `json:"episodes"`
}

// ReleaseRecord is one distinct torrent. InfoHash is the primary key and the
// dedup key: the same physical torrent never appears under two titles.
type ReleaseRecord struct {
	InfoHash   string      `json:"info_hash"`
	TitleID    string      `json:"title_id"`
	Name       string      `json:"name"`
	SizeBytes  int64       `json:"size_bytes"`
	Announce   []string    `json:"announce"`
	Languages  []string    `json:"languages"`
	Resolution string      `json:"resolution,omitempty"`
	Codec      string      `json:"codec,omitempty"`
	Quality    string      `json:"quality,omitempty"`
	Audio      string      `json:"audio,omitempty"`
	Encoder    string      `json:"encoder,omitempty"`
	Source     string      `json:"source"`
	Catalogs   []string    `json:"catalogs"`
	Filename   string      `json:"filename,omitempty"`
	FileIndex  *int        `json:"file_index,omitempty"`
	Season     *SeasonInfo `json:"season,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Episode returns the episode entry for (season, episode), or nil.
func (r *ReleaseRecord) Episode(season, episode int) *EpisodeInfo {
	if r.Season == nil || r.Season.SeasonNumber != season {
		return nil
	}
	for i := range r.Season.Episodes {
		if r.Season.Episodes[i].EpisodeNumber == episode {
			return &r.Season.Episodes[i]
		}
	}
	return nil
}

// HasCatalog reports whether the release carries the given catalog tag.
func (r *ReleaseRecord) HasCatalog(catalog string) bool {
	for _, c := range r.Catalogs {
		if c == catalog {
			return true
		}
	}
	return false
}

// TorrentFile is one file inside a parsed torrent. Episode is 0 when no
// episode number could be detected from the filename.
type TorrentFile struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Index    int    `json:"index"`
	Episode  int    `json:"episode,omitempty"`
}

// TorrentMetadata is the structured description of a raw torrent file, as
// produced by the torrent extraction collaborator.
type TorrentMetadata struct {
	InfoHash     string        `json:"info_hash"`
	Name         string        `json:"name"`
	TotalSize    int64         `json:"total_size"`
	AnnounceList []string      `json:"announce_list"`
	Files        []TorrentFile `json:"files"`
}

// LargestFile returns the biggest payload file; the main movie file by
// convention. ok is false for an empty file list.
func (t *TorrentMetadata) LargestFile() (TorrentFile, bool) {
	if len(t.Files) == 0 {
		return TorrentFile{}, false
	}
	largest := t.Files[0]
	for _, f := range t.Files[1:] {
		if f.Size > largest.Size {
			largest = f
		}
	}
	return largest, true
}

// ReleaseDraft is an unmerged candidate release produced by extraction.
// Optional scrape-derived fields are left empty when the page or the release
// name did not carry them.
type ReleaseDraft struct {
	Title          string
	Year           *int
	Poster         string
	CreatedAt      time.Time
	Catalog        string // language_mediatype from the crawl target
	ScrapeLanguage string
	Languages      []string // explicit per-release tags, when present
	Resolution     string
	Codec          string
	Quality        string
	Audio          string
	Encoder        string
	Source         string
	Season         int // series only, from the crawl context
	Torrent        *TorrentMetadata
}
