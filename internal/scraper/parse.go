package scraper

import (
	"bytes"
	"regexp"
	"strconv"

	"github.com/PuerkitoBio/goquery"
)

// EntryHandle points at one candidate entry's detail page. ForumID is set
// only for search-origin handles, where it recovers the (language,
// media-type) without another fetch.
type EntryHandle struct {
	URL     string
	ForumID string
}

var (
	forumIDPattern = regexp.MustCompile(`forums/forum/([^/]+)/`)
	numberPattern  = regexp.MustCompile(`\d+`)
)

// ParseCategory extracts entry handles from a forum category page, in page
// order. Malformed or unexpected markup yields an empty result; the crawl
// treats that as end-of-content for the page.
func ParseCategory(body []byte, profile *Profile) []EntryHandle {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	var handles []EntryHandle
	doc.Find(profile.RowSelector).Each(func(_ int, row *goquery.Selection) {
		href, ok := row.Find("a").First().Attr("href")
		if !ok || href == "" {
			return
		}
		handles = append(handles, EntryHandle{URL: href})
	})

	return handles
}

// ParseSearch extracts entry handles and the reported total result count
// from a search results page. total is 0 when the page carries no count.
func ParseSearch(body []byte, profile *Profile) (handles []EntryHandle, total int) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, 0
	}

	area := doc.Find(profile.SearchResultsSelector).First()
	if area.Length() == 0 {
		return nil, 0
	}

	if match := numberPattern.FindString(area.Find("p").First().Text()); match != "" {
		total, _ = strconv.Atoi(match)
	}

	area.Find(profile.SearchRowSelector).Each(func(_ int, row *goquery.Selection) {
		href, ok := row.Find(profile.SearchLinkSelector).First().Attr("href")
		if !ok || href == "" {
			return
		}

		handle := EntryHandle{URL: href}
		row.Find("a[href*='forums/forum/']").EachWithBreak(func(_ int, link *goquery.Selection) bool {
			forumHref, _ := link.Attr("href")
			if m := forumIDPattern.FindStringSubmatch(forumHref); m != nil {
				handle.ForumID = m[1]
				return false
			}
			return true
		})

		handles = append(handles, handle)
	})

	return handles, total
}
