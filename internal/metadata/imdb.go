// Package metadata resolves a scraped (title, year) to a canonical catalog
// identity via IMDb's suggestion API.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

const imdbSuggestionBaseURL = "https://v3.sg.media-imdb.com/suggestion/titles"

// Result is a successful identity lookup.
type Result struct {
	ID         string
	Poster     string
	Background string
}

// Finder is the external identity-lookup capability. Lookup returns
// (nil, nil) on a miss; a miss is not an error.
type Finder interface {
	Lookup(ctx context.Context, title string, year *int) (*Result, error)
}

type IMDbClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewIMDbClient() *IMDbClient {
	return &IMDbClient{
		baseURL: imdbSuggestionBaseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type imdbSuggestion struct {
	D []struct {
		ID    string `json:"id"`
		Title string `json:"l"`
		Year  int    `json:"y"`
		Image struct {
			URL string `json:"imageUrl"`
		} `json:"i"`
	} `json:"d"`
}

// Lookup queries the suggestion API and returns the first title entry
// consistent with the requested year.
func (c *IMDbClient) Lookup(ctx context.Context, title string, year *int) (*Result, error) {
	query := strings.ToLower(strings.TrimSpace(title))
	if query == "" {
		return nil, nil
	}

	// The path shard is the first rune, not the first byte; slicing a
	// multi-byte title would mangle the segment.
	_, size := utf8.DecodeRuneInString(query)
	endpoint := fmt.Sprintf("%s/%s/%s.json", c.baseURL, url.PathEscape(query[:size]), url.PathEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build imdb request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("imdb lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("imdb lookup returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read imdb response: %w", err)
	}

	var suggestion imdbSuggestion
	if err := json.Unmarshal(body, &suggestion); err != nil {
		return nil, fmt.Errorf("failed to unmarshal imdb response: %w", err)
	}

	for _, entry := range suggestion.D {
		if !strings.HasPrefix(entry.ID, "tt") {
			continue
		}
		if year != nil && entry.Year != 0 && entry.Year != *year {
			continue
		}
		return &Result{
			ID:         entry.ID,
			Poster:     entry.Image.URL,
			Background: entry.Image.URL,
		}, nil
	}

	return nil, nil
}
