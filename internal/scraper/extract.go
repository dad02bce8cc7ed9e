package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/moistari/rls"

	"github.com/dharun-dev/streamvault/internal/models"
)

// TorrentExtractor is the torrent-metadata collaborator.
type TorrentExtractor interface {
	Extract(ctx context.Context, torrentURL string) (*models.TorrentMetadata, error)
}

// CrawlContext carries the (language, media-type) of the crawl target and
// the season number series drafts are filed under.
type CrawlContext struct {
	Language  string
	MediaType string
	Season    int
}

// Extractor visits one entry's detail page and yields zero or more release
// drafts, one per discovered torrent file.
type Extractor struct {
	fetcher  Fetcher
	torrents TorrentExtractor
	profile  *Profile
	// each torrent download/parse runs under its own deadline so a stalled
	// collaborator cannot block the rest of the crawl
	torrentTimeout time.Duration
}

func NewExtractor(profile *Profile, fetcher Fetcher, torrents TorrentExtractor) *Extractor {
	return &Extractor{
		fetcher:        fetcher,
		torrents:       torrents,
		profile:        profile,
		torrentTimeout: 60 * time.Second,
	}
}

// Extract fetches the detail page behind handle and builds a draft per
// torrent reference. A failing torrent reference is logged and skipped;
// sibling references on the same page still produce drafts.
func (e *Extractor) Extract(ctx context.Context, handle EntryHandle, cc CrawlContext) ([]*models.ReleaseDraft, error) {
	body, err := e.fetcher.Fetch(ctx, handle.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch entry page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse entry page %s: %w", handle.URL, err)
	}

	poster := doc.Find(e.profile.PosterSelector).First().AttrOr(e.profile.PosterAttr, "")
	createdAt := parsePublishTime(doc.Find(e.profile.TimeSelector).First().AttrOr("datetime", ""))

	var torrentURLs []string
	doc.Find(e.profile.TorrentSelector).Each(func(_ int, link *goquery.Selection) {
		if href, ok := link.Attr("href"); ok && href != "" {
			torrentURLs = append(torrentURLs, href)
		}
	})

	if len(torrentURLs) == 0 {
		log.Printf("[Extractor] No torrents found for %s", handle.URL)
		return nil, nil
	}

	season := cc.Season
	if season <= 0 {
		season = 1
	}

	var drafts []*models.ReleaseDraft
	for _, torrentURL := range torrentURLs {
		tctx, cancel := context.WithTimeout(ctx, e.torrentTimeout)
		meta, err := e.torrents.Extract(tctx, torrentURL)
		cancel()
		if err != nil {
			log.Printf("[Extractor] Skipping torrent %s: %v", torrentURL, err)
			continue
		}

		draft := draftFromTorrent(meta, cc)
		draft.Poster = poster
		draft.CreatedAt = createdAt
		draft.Source = e.profile.Name
		draft.Season = season
		drafts = append(drafts, draft)
	}

	return drafts, nil
}

// draftFromTorrent derives title, year, and best-effort quality tags from
// the torrent name.
func draftFromTorrent(meta *models.TorrentMetadata, cc CrawlContext) *models.ReleaseDraft {
	release := rls.ParseString(meta.Name)

	draft := &models.ReleaseDraft{
		Title:          strings.TrimSpace(release.Title),
		Catalog:        cc.Language + "_" + cc.MediaType,
		ScrapeLanguage: titleCase(cc.Language),
		Resolution:     release.Resolution,
		Codec:          strings.Join(release.Codec, " "),
		Quality:        release.Source,
		Audio:          strings.Join(release.Audio, " "),
		Encoder:        release.Group,
		Torrent:        meta,
	}

	if draft.Title == "" {
		draft.Title = meta.Name
	}
	if release.Year > 0 {
		year := release.Year
		draft.Year = &year
	}
	for _, lang := range release.Language {
		draft.Languages = append(draft.Languages, titleCase(lang))
	}

	return draft
}

func parsePublishTime(value string) time.Time {
	if value != "" {
		if t, err := time.Parse(time.RFC3339, value); err == nil {
			return t
		}
	}
	return time.Now()
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
