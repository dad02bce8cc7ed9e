package scraper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharun-dev/streamvault/internal/models"
)

func TestExtractPageWithoutTorrents(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.pages["https://forum.test/topic/1-entry/"] = []byte(`<html><body>
		<div data-commenttype="forums"><img src="https://forum.test/poster.jpg"></div>
		<p>links removed by moderator</p>
	</body></html>`)

	extractor := NewExtractor(testProfile(), fetcher, &fakeTorrents{})

	drafts, err := extractor.Extract(
		context.Background(),
		EntryHandle{URL: "https://forum.test/topic/1-entry/"},
		CrawlContext{Language: "tamil", MediaType: "hdrip", Season: 1},
	)
	require.NoError(t, err)
	assert.Empty(t, drafts)
}

func TestExtractSkipsBrokenTorrent(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.pages["https://forum.test/topic/1-entry/"] = []byte(`<html><body>
		<div data-commenttype="forums"><img src="https://forum.test/poster.jpg"></div>
		<time datetime="2024-03-01T10:00:00Z"></time>
		<a data-fileext="torrent" href="https://forum.test/files/good.torrent">good</a>
		<a data-fileext="torrent" href="https://forum.test/files/gone.torrent">gone</a>
	</body></html>`)

	torrents := &fakeTorrents{metaByURL: map[string]*models.TorrentMetadata{
		"https://forum.test/files/good.torrent": {
			InfoHash:  "good-hash",
			Name:      "Vada Chennai (2018) Tamil 1080p WEB-DL",
			TotalSize: 2000,
			Files:     []models.TorrentFile{{Filename: "movie.mkv", Size: 2000, Index: 0}},
		},
	}}

	extractor := NewExtractor(testProfile(), fetcher, torrents)

	drafts, err := extractor.Extract(
		context.Background(),
		EntryHandle{URL: "https://forum.test/topic/1-entry/"},
		CrawlContext{Language: "tamil", MediaType: "hdrip", Season: 1},
	)
	require.NoError(t, err)
	require.Len(t, drafts, 1)

	draft := drafts[0]
	assert.Equal(t, "good-hash", draft.Torrent.InfoHash)
	assert.Equal(t, "https://forum.test/poster.jpg", draft.Poster)
	assert.Equal(t, "tamil_hdrip", draft.Catalog)
	assert.Equal(t, "Tamil", draft.ScrapeLanguage)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), draft.CreatedAt)
	require.NotNil(t, draft.Year)
	assert.Equal(t, 2018, *draft.Year)
	assert.NotEmpty(t, draft.Title)
}

func TestDraftFromTorrentFallsBackToRawName(t *testing.T) {
	meta := &models.TorrentMetadata{InfoHash: "x", Name: "...."}
	draft := draftFromTorrent(meta, CrawlContext{Language: "tamil", MediaType: "hdrip"})
	assert.NotEmpty(t, draft.Title)
}

func TestParsePublishTime(t *testing.T) {
	parsed := parsePublishTime("2024-03-01T10:00:00Z")
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), parsed)

	// unparseable stamps degrade to now rather than zero
	assert.False(t, parsePublishTime("yesterday").IsZero())
	assert.False(t, parsePublishTime("").IsZero())
}
