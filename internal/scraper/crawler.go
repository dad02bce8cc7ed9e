package scraper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/dharun-dev/streamvault/internal/catalog"
	"github.com/dharun-dev/streamvault/internal/models"
)

// Merger is the catalog merge engine as the crawler sees it.
type Merger interface {
	Merge(ctx context.Context, draft *models.ReleaseDraft, mediaType string) (catalog.MergeOutcome, error)
}

// Crawler drives one source profile: fetch pages, parse entry handles,
// extract drafts, and hand every draft to the merge engine immediately so a
// crash mid-crawl loses only unprocessed pages.
type Crawler struct {
	profile   *Profile
	fetcher   Fetcher
	extractor *Extractor
	merger    Merger

	// pageDelay paces search pagination; randomized politeness, not a
	// correctness requirement. Injectable for tests.
	pageDelay func() time.Duration
}

func New(profile *Profile, fetcher Fetcher, torrents TorrentExtractor, merger Merger) *Crawler {
	return &Crawler{
		profile:   profile,
		fetcher:   fetcher,
		extractor: NewExtractor(profile, fetcher, torrents),
		merger:    merger,
		pageDelay: func() time.Duration {
			return time.Duration(2+rand.Intn(4)) * time.Second
		},
	}
}

// Name identifies the crawler by its source profile.
func (c *Crawler) Name() string {
	return c.profile.Name
}

// CrawlCategory walks the forum sections of one (language, media-type)
// target over the page range [startPage, startPage+pages). A blocked
// transport aborts the target; every other failure is logged and skipped.
func (c *Crawler) CrawlCategory(ctx context.Context, language, mediaType string, startPage, pages int) error {
	sectionIDs := c.profile.SectionIDs(language, mediaType)
	if len(sectionIDs) == 0 {
		return fmt.Errorf("unsupported crawl target %s_%s for %s", language, mediaType, c.profile.Name)
	}

	cc := CrawlContext{Language: language, MediaType: mediaType, Season: 1}

	for _, sectionID := range sectionIDs {
		for page := startPage; page < startPage+pages; page++ {
			if err := ctx.Err(); err != nil {
				return err
			}

			pageURL := c.profile.ForumPageURL(sectionID, page)
			log.Printf("[Crawler] %s: crawling %s", c.profile.Name, pageURL)

			body, err := c.fetcher.Fetch(ctx, pageURL)
			if err != nil {
				if errors.Is(err, ErrBlocked) {
					return fmt.Errorf("crawl of %s_%s aborted: %w", language, mediaType, err)
				}
				log.Printf("[Crawler] Failed to fetch %s: %v", pageURL, err)
				continue
			}

			handles := ParseCategory(body, c.profile)
			if len(handles) == 0 {
				log.Printf("[Crawler] No entries on %s", pageURL)
				continue
			}

			c.processHandles(ctx, handles, cc)
		}
	}

	log.Printf("[Crawler] %s: crawl completed for %s_%s", c.profile.Name, language, mediaType)
	return nil
}

// CrawlSearch crawls every results page for a keyword. Hits are routed back
// to (language, media-type) through the profile's section table; a hit from
// an unrecognized section is dropped with a warning.
func (c *Crawler) CrawlSearch(ctx context.Context, keyword string) error {
	body, err := c.fetcher.Fetch(ctx, c.profile.SearchPageURL(keyword, 1))
	if err != nil {
		return fmt.Errorf("search crawl for %q failed: %w", keyword, err)
	}

	handles, total := ParseSearch(body, c.profile)
	log.Printf("[Crawler] %s: found %d results for %q", c.profile.Name, total, keyword)

	if total > c.profile.SearchPageSize {
		pageCount := (total + c.profile.SearchPageSize - 1) / c.profile.SearchPageSize
		log.Printf("[Crawler] %s: found %d pages for %q", c.profile.Name, pageCount, keyword)

		for page := 2; page <= pageCount; page++ {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.pageDelay()):
			}

			body, err := c.fetcher.Fetch(ctx, c.profile.SearchPageURL(keyword, page))
			if err != nil {
				log.Printf("[Crawler] Failed to fetch search page %d for %q: %v", page, keyword, err)
				continue
			}
			pageHandles, _ := ParseSearch(body, c.profile)
			handles = append(handles, pageHandles...)
		}
	}

	table := c.profile.SectionTable()
	for _, handle := range handles {
		if err := ctx.Err(); err != nil {
			return err
		}

		section, ok := table[handle.ForumID]
		if !ok {
			log.Printf("[Crawler] Unsupported forum %q for %s, dropping hit", handle.ForumID, handle.URL)
			continue
		}

		cc := CrawlContext{Language: section.Language, MediaType: section.MediaType, Season: 1}
		c.processHandles(ctx, []EntryHandle{handle}, cc)
	}

	return nil
}

// RunSweep crawls every (language, media-type) combination of the profile
// sequentially. A failed target is logged and the sweep proceeds to the
// next; re-running over overlapping content is safe because the merge
// engine's dedup key makes it idempotent.
func (c *Crawler) RunSweep(ctx context.Context, startPage, pages int) error {
	for _, target := range c.profile.Targets() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.CrawlCategory(ctx, target.Language, target.MediaType, startPage, pages); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			log.Printf("[Crawler] %s: target %s_%s failed: %v", c.profile.Name, target.Language, target.MediaType, err)
		}
	}
	return nil
}

func (c *Crawler) processHandles(ctx context.Context, handles []EntryHandle, cc CrawlContext) {
	for _, handle := range handles {
		if ctx.Err() != nil {
			return
		}

		drafts, err := c.extractor.Extract(ctx, handle, cc)
		if err != nil {
			log.Printf("[Crawler] Failed to extract %s: %v", handle.URL, err)
			continue
		}

		for _, draft := range drafts {
			outcome, err := c.merger.Merge(ctx, draft, mediaTypeFor(cc.MediaType))
			if err != nil {
				log.Printf("[Crawler] Failed to merge %s: %v", draft.Title, err)
				continue
			}
			log.Printf("[Crawler] %s %q (%s)", outcome, draft.Title, draft.Catalog)
		}
	}
}

// mediaTypeFor maps a forum media type onto the catalog discriminant: only
// the series sections produce series aggregates, everything else is a movie
// variant (hdrip, tcrip, dubbed, old).
func mediaTypeFor(forumMediaType string) string {
	if forumMediaType == SeriesMediaType {
		return models.MediaTypeSeries
	}
	return models.MediaTypeMovie
}
