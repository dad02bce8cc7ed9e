package scraper

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharun-dev/streamvault/internal/catalog"
	"github.com/dharun-dev/streamvault/internal/models"
)

type fakeFetcher struct {
	pages map[string][]byte
	errs  map[string]error
	calls []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		pages: make(map[string][]byte),
		errs:  make(map[string]error),
	}
}

func (f *fakeFetcher) Fetch(_ context.Context, pageURL string) ([]byte, error) {
	f.calls = append(f.calls, pageURL)
	if err, ok := f.errs[pageURL]; ok {
		return nil, err
	}
	if body, ok := f.pages[pageURL]; ok {
		return body, nil
	}
	return nil, fmt.Errorf("no fixture for %s", pageURL)
}

func (f *fakeFetcher) Close() {}

type fakeTorrents struct {
	metaByURL map[string]*models.TorrentMetadata
}

func (f *fakeTorrents) Extract(_ context.Context, torrentURL string) (*models.TorrentMetadata, error) {
	if meta, ok := f.metaByURL[torrentURL]; ok {
		return meta, nil
	}
	return nil, fmt.Errorf("no torrent fixture for %s", torrentURL)
}

type fakeMerger struct {
	drafts     []*models.ReleaseDraft
	mediaTypes []string
}

func (f *fakeMerger) Merge(_ context.Context, draft *models.ReleaseDraft, mediaType string) (catalog.MergeOutcome, error) {
	f.drafts = append(f.drafts, draft)
	f.mediaTypes = append(f.mediaTypes, mediaType)
	return catalog.MergeCreatedTitle, nil
}

func detailPage(torrentURL string) []byte {
	return []byte(fmt.Sprintf(`<html><body>
		<div data-commenttype="forums"><img src="https://forum.test/poster.jpg"></div>
		<time datetime="2024-03-01T10:00:00Z"></time>
		<a data-fileext="torrent" href="%s">download</a>
	</body></html>`, torrentURL))
}

func newTestCrawler(fetcher *fakeFetcher, torrents *fakeTorrents, merger *fakeMerger) *Crawler {
	c := New(testProfile(), fetcher, torrents, merger)
	c.pageDelay = func() time.Duration { return 0 }
	return c
}

// wireEntries registers detail pages and torrent fixtures for topic URLs
// 1..n, skipping the indexes listed in broken.
func wireEntries(fetcher *fakeFetcher, torrents *fakeTorrents, n int, broken ...int) {
	skip := make(map[int]bool)
	for _, b := range broken {
		skip[b] = true
	}
	for i := 1; i <= n; i++ {
		topicURL := fmt.Sprintf("https://forum.test/topic/%d-entry/", i)
		if skip[i] {
			fetcher.errs[topicURL] = fmt.Errorf("connection reset")
			continue
		}
		torrentURL := fmt.Sprintf("https://forum.test/files/t%d.torrent", i)
		fetcher.pages[topicURL] = detailPage(torrentURL)
		torrents.metaByURL[torrentURL] = &models.TorrentMetadata{
			InfoHash:  fmt.Sprintf("hash-%d", i),
			Name:      fmt.Sprintf("Test Movie %d (2024) 1080p WEB-DL", i),
			TotalSize: 1000,
			Files:     []models.TorrentFile{{Filename: "movie.mkv", Size: 1000, Index: 0}},
		}
	}
}

func TestCrawlCategorySkipsFailedEntries(t *testing.T) {
	fetcher := newFakeFetcher()
	torrents := &fakeTorrents{metaByURL: make(map[string]*models.TorrentMetadata)}
	merger := &fakeMerger{}
	crawler := newTestCrawler(fetcher, torrents, merger)

	fetcher.pages[crawler.profile.ForumPageURL("11-movies", 1)] = categoryPage(5)
	wireEntries(fetcher, torrents, 5, 3)

	err := crawler.CrawlCategory(context.Background(), "tamil", "hdrip", 1, 1)
	require.NoError(t, err)

	// entry 3 failed, the other four still merged
	require.Len(t, merger.drafts, 4)
	for _, mt := range merger.mediaTypes {
		assert.Equal(t, models.MediaTypeMovie, mt)
	}
	assert.Equal(t, "tamil_hdrip", merger.drafts[0].Catalog)
	assert.Equal(t, "https://forum.test/poster.jpg", merger.drafts[0].Poster)
}

func TestCrawlCategoryUnknownTarget(t *testing.T) {
	crawler := newTestCrawler(newFakeFetcher(), &fakeTorrents{}, &fakeMerger{})

	err := crawler.CrawlCategory(context.Background(), "french", "hdrip", 1, 1)
	assert.Error(t, err)
}

func TestCrawlCategoryAbortsWhenBlocked(t *testing.T) {
	fetcher := newFakeFetcher()
	merger := &fakeMerger{}
	crawler := newTestCrawler(fetcher, &fakeTorrents{}, merger)

	pageURL := crawler.profile.ForumPageURL("11-movies", 1)
	fetcher.errs[pageURL] = fmt.Errorf("%s returned 403: %w", pageURL, ErrBlocked)

	err := crawler.CrawlCategory(context.Background(), "tamil", "hdrip", 1, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBlocked))
	assert.Empty(t, merger.drafts)
}

func TestCrawlSearchPaginates(t *testing.T) {
	fetcher := newFakeFetcher()
	torrents := &fakeTorrents{metaByURL: make(map[string]*models.TorrentMetadata)}
	merger := &fakeMerger{}
	crawler := newTestCrawler(fetcher, torrents, merger)

	// 57 results at 25 per page means three pages total
	fetcher.pages[crawler.profile.SearchPageURL("vada", 1)] = searchPage(57, "11-movies")
	fetcher.pages[crawler.profile.SearchPageURL("vada", 2)] = searchPage(57, "19-series")
	fetcher.pages[crawler.profile.SearchPageURL("vada", 3)] = searchPage(57)

	// both hits resolve to the same fixture topic
	torrentURL := "https://forum.test/files/hit.torrent"
	fetcher.pages["https://forum.test/topic/1-hit/"] = detailPage(torrentURL)
	torrents.metaByURL[torrentURL] = &models.TorrentMetadata{
		InfoHash:  "hash-hit",
		Name:      "Test Movie (2024) 1080p WEB-DL",
		TotalSize: 1000,
		Files:     []models.TorrentFile{{Filename: "movie.mkv", Size: 1000, Index: 0}},
	}

	err := crawler.CrawlSearch(context.Background(), "vada")
	require.NoError(t, err)

	var searchFetches int
	for _, call := range fetcher.calls {
		if call == crawler.profile.SearchPageURL("vada", 1) ||
			call == crawler.profile.SearchPageURL("vada", 2) ||
			call == crawler.profile.SearchPageURL("vada", 3) {
			searchFetches++
		}
	}
	assert.Equal(t, 3, searchFetches)

	// one movie hit, one series hit, each routed through the section table
	require.Len(t, merger.drafts, 2)
	assert.ElementsMatch(t, []string{models.MediaTypeMovie, models.MediaTypeSeries}, merger.mediaTypes)
}

func TestCrawlSearchDropsUnknownForum(t *testing.T) {
	fetcher := newFakeFetcher()
	merger := &fakeMerger{}
	crawler := newTestCrawler(fetcher, &fakeTorrents{}, merger)

	fetcher.pages[crawler.profile.SearchPageURL("vada", 1)] = searchPage(1, "99-unknown-section")

	err := crawler.CrawlSearch(context.Background(), "vada")
	require.NoError(t, err)
	assert.Empty(t, merger.drafts)
}

func TestRunSweepContinuesAfterTargetFailure(t *testing.T) {
	fetcher := newFakeFetcher()
	torrents := &fakeTorrents{metaByURL: make(map[string]*models.TorrentMetadata)}
	merger := &fakeMerger{}
	crawler := newTestCrawler(fetcher, torrents, merger)

	// hdrip section blocked, series section healthy
	hdripURL := crawler.profile.ForumPageURL("11-movies", 1)
	fetcher.errs[hdripURL] = fmt.Errorf("%s returned 403: %w", hdripURL, ErrBlocked)

	seriesURL := crawler.profile.ForumPageURL("19-series", 1)
	fetcher.pages[seriesURL] = categoryPage(1)
	wireEntries(fetcher, torrents, 1)

	err := crawler.RunSweep(context.Background(), 1, 1)
	require.NoError(t, err)
	require.Len(t, merger.drafts, 1)
	assert.Equal(t, models.MediaTypeSeries, merger.mediaTypes[0])
}

func TestRunSweepStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	crawler := newTestCrawler(newFakeFetcher(), &fakeTorrents{}, &fakeMerger{})
	err := crawler.RunSweep(ctx, 1, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
