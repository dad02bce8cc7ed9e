package scraper

import (
	"fmt"
	"net/url"
)

// Section is the (language, media-type) pair a forum section maps to.
type Section struct {
	Language  string
	MediaType string
}

// ForumSection binds one forum section id to its section.
type ForumSection struct {
	Language  string
	MediaType string
	ID        string
}

// CrawlTarget drives one category crawl. Not persisted.
type CrawlTarget struct {
	Language  string
	MediaType string
}

// Profile describes one source forum as data: base URL, section table, page
// markup selectors, and search page size. Both supported forums run the same
// invision board software, so the selector sets differ only in how the
// poster image is referenced.
type Profile struct {
	Name           string
	BaseURL        string
	Sections       []ForumSection
	SearchPageSize int

	RowSelector           string
	SearchResultsSelector string
	SearchRowSelector     string
	SearchLinkSelector    string
	PosterSelector        string
	PosterAttr            string
	TimeSelector          string
	TorrentSelector       string
}

// SeriesMediaType is the media type whose releases carry season structure.
const SeriesMediaType = "series"

func (p *Profile) ForumPageURL(sectionID string, page int) string {
	return fmt.Sprintf("%s/index.php?/forums/forum/%s/page/%d/", p.BaseURL, sectionID, page)
}

func (p *Profile) SearchPageURL(keyword string, page int) string {
	return fmt.Sprintf(
		"%s/index.php?/search/&q=%s&type=forums_topic&page=%d&search_and_or=or&search_in=titles&sortby=relevancy",
		p.BaseURL, url.QueryEscape(keyword), page,
	)
}

// SectionIDs returns the forum section ids for a (language, media-type)
// target, in profile order.
func (p *Profile) SectionIDs(language, mediaType string) []string {
	var ids []string
	for _, s := range p.Sections {
		if s.Language == language && s.MediaType == mediaType {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// SectionTable maps every known forum section id back to its (language,
// media-type), used to classify search hits without re-fetching.
func (p *Profile) SectionTable() map[string]Section {
	table := make(map[string]Section, len(p.Sections))
	for _, s := range p.Sections {
		table[s.ID] = Section{Language: s.Language, MediaType: s.MediaType}
	}
	return table
}

// Targets returns every distinct (language, media-type) combination in
// profile order; a full sweep iterates these sequentially.
func (p *Profile) Targets() []CrawlTarget {
	seen := make(map[CrawlTarget]struct{})
	var targets []CrawlTarget
	for _, s := range p.Sections {
		t := CrawlTarget{Language: s.Language, MediaType: s.MediaType}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		targets = append(targets, t)
	}
	return targets
}

// Profiles returns the built-in source profiles keyed by config name.
func Profiles() map[string]*Profile {
	return map[string]*Profile{
		"tamilmv":       TamilMV(),
		"tamilblasters": TamilBlasters(),
	}
}

// TamilMV is the profile for the 1tamilmv forum.
func TamilMV() *Profile {
	return &Profile{
		Name:           "TamilMV",
		BaseURL:        "https://www.1tamilmv.prof",
		SearchPageSize: 25,

		RowSelector:           "li[data-rowid]",
		SearchResultsSelector: "div[data-role='resultsArea']",
		SearchRowSelector:     "li[data-role='activityItem']",
		SearchLinkSelector:    "a[data-linktype='link']",
		PosterSelector:        "div[data-commenttype='forums'] img",
		PosterAttr:            "src",
		TimeSelector:          "time",
		TorrentSelector:       "a[data-fileext='torrent']",

		Sections: []ForumSection{
			{"tamil", "hdrip", "11-web-hd-itunes-hd-bluray"},
			{"tamil", "hdrip", "12-hd-rips-dvd-rips-br-rips"},
			{"tamil", "hdrip", "14-hdtv-sdtv-hdtv-rips"},
			{"tamil", "tcrip", "10-predvd-dvdscr-cam-tc"},
			{"tamil", "dubbed", "17-hollywood-movies-in-multi-audios"},
			{"tamil", "series", "19-web-series-tv-shows"},
			{"malayalam", "hdrip", "36-web-hd-itunes-hd-bluray"},
			{"malayalam", "hdrip", "37-hd-rips-dvd-rips-br-rips"},
			{"malayalam", "hdrip", "39-hdtv-sdtv-hdtv-rips"},
			{"malayalam", "tcrip", "35-predvd-dvdscr-cam-tc"},
			{"malayalam", "dubbed", "42-malayalam-dubbed-subtitled-movies"},
			{"malayalam", "series", "44-web-series-tv-shows"},
			{"telugu", "tcrip", "23-predvd-dvdscr-cam-tc"},
			{"telugu", "hdrip", "24-web-hd-itunes-hd-bluray"},
			{"telugu", "hdrip", "25-hd-rips-dvd-rips-br-rips"},
			{"telugu", "hdrip", "27-hdtv-sdtv-hdtv-rips"},
			{"telugu", "dubbed", "31-telugu-dubbed-movies"},
			{"telugu", "series", "33-web-series-tv-shows"},
			{"hindi", "tcrip", "57-predvd-dvdscr-cam-tc"},
			{"hindi", "hdrip", "58-web-hd-itunes-hd-bluray"},
			{"hindi", "hdrip", "59-hd-rips-dvd-rips-br-rips"},
			{"hindi", "hdrip", "61-hdtv-sdtv-hdtv-rips"},
			{"hindi", "dubbed", "64-hindi-dubbed-movies"},
			{"hindi", "series", "66-web-series-tv-shows"},
			{"kannada", "tcrip", "68-predvd-dvdscr-cam-tc"},
			{"kannada", "hdrip", "69-web-hd-itunes-hd-bluray"},
			{"kannada", "hdrip", "70-hd-rips-dvd-rips-br-rips"},
			{"kannada", "hdrip", "72-hdtv-sdtv-hdtv-rips"},
			{"kannada", "dubbed", "75-watch-kannada-movies-online"},
			{"kannada", "series", "77-web-series-tv-shows"},
			{"english", "tcrip", "46-predvd-dvdscr-cam-tc"},
			{"english", "hdrip", "49-web-hd-itunes-hd-bluray"},
			{"english", "hdrip", "50-hd-rips-dvd-rips-br-rips"},
			{"english", "series", "55-web-series-tv-shows"},
		},
	}
}

// TamilBlasters is the profile for the 1tamilblasters forum. Poster images
// there are lazy-loaded, so the reference lives in data-src.
func TamilBlasters() *Profile {
	return &Profile{
		Name:           "TamilBlasters",
		BaseURL:        "https://www.1tamilblasters.cfd",
		SearchPageSize: 25,

		RowSelector:           "li[data-rowid]",
		SearchResultsSelector: "div[data-role='resultsArea']",
		SearchRowSelector:     "li[data-role='activityItem']",
		SearchLinkSelector:    "a[data-linktype='link']",
		PosterSelector:        "div[data-commenttype='forums'] img[data-src]",
		PosterAttr:            "data-src",
		TimeSelector:          "time",
		TorrentSelector:       "a[data-fileext='torrent']",

		Sections: []ForumSection{
			{"tamil", "hdrip", "7-tamil-new-movies-hdrips-bdrips-dvdrips-hdtv"},
			{"tamil", "tcrip", "8-tamil-new-movies-tcrip-dvdscr-hdcam-predvd"},
			{"tamil", "dubbed", "9-tamil-dubbed-movies-bdrips-hdrips-dvdscr-hdcam-in-multi-audios"},
			{"tamil", "series", "63-tamil-new-web-series-tv-shows"},
			{"tamil", "old", "56-tamil-old-mid-movies-bdrips-hdrips-dvdrips-hdtv"},
			{"malayalam", "tcrip", "75-malayalam-new-movies-tcrip-dvdscr-hdcam-predvd"},
			{"malayalam", "hdrip", "74-malayalam-new-movies-hdrips-bdrips-dvdrips-hdtv"},
			{"malayalam", "dubbed", "76-malayalam-dubbed-movies-bdrips-hdrips-dvdscr-hdcam"},
			{"malayalam", "series", "98-malayalam-new-web-series-tv-shows"},
			{"malayalam", "old", "77-malayalam-old-mid-movies-bdrips-hdrips-dvdrips"},
			{"telugu", "tcrip", "79-telugu-new-movies-tcrip-dvdscr-hdcam-predvd"},
			{"telugu", "hdrip", "78-telugu-new-movies-hdrips-bdrips-dvdrips-hdtv"},
			{"telugu", "dubbed", "80-telugu-dubbed-movies-bdrips-hdrips-dvdscr-hdcam"},
			{"telugu", "series", "96-telugu-new-web-series-tv-shows"},
			{"telugu", "old", "81-telugu-old-mid-movies-bdrips-hdrips-dvdrips"},
			{"hindi", "tcrip", "87-hindi-new-movies-tcrip-dvdscr-hdcam-predvd"},
			{"hindi", "hdrip", "86-hindi-new-movies-hdrips-bdrips-dvdrips-hdtv"},
			{"hindi", "dubbed", "88-hindi-dubbed-movies-bdrips-hdrips-dvdscr-hdcam"},
			{"hindi", "series", "89-hindi-new-web-series-tv-shows"},
			{"hindi", "old", "102-hindi-old-mid-movies-bdrips-hdrips-dvdrips"},
			{"kannada", "tcrip", "83-kannada-new-movies-tcrip-dvdscr-hdcam-predvd"},
			{"kannada", "hdrip", "82-kannada-new-movies-hdrips-bdrips-dvdrips-hdtv"},
			{"kannada", "dubbed", "84-kannada-dubbed-movies-bdrips-hdrips-dvdscr-hdcam"},
			{"kannada", "series", "103-kannada-new-web-series-tv-shows"},
			{"kannada", "old", "85-kannada-old-mid-movies-bdrips-hdrips-dvdrips"},
			{"english", "tcrip", "52-english-movies-hdcam-dvdscr-predvd"},
			{"english", "hdrip", "53-english-movies-hdrips-bdrips-dvdrips"},
			{"english", "series", "92-english-web-series-tv-shows"},
		},
	}
}
