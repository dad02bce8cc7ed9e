package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

const realDebridBaseURL = "https://api.real-debrid.com/rest/1.0"

// RealDebrid resolves releases through the Real-Debrid REST API: add the
// magnet, select the wanted file, wait for the cached link, unrestrict it.
type RealDebrid struct {
	BaseURL string
	Client  *http.Client
}

func NewRealDebrid() *RealDebrid {
	return &RealDebrid{
		BaseURL: realDebridBaseURL,
		Client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (r *RealDebrid) Name() string {
	return "realdebrid"
}

type rdAddMagnetResponse struct {
	ID string `json:"id"`
}

type rdTorrentInfo struct {
	Status string `json:"status"`
	Links  []string `json:"links"`
	Files  []struct {
		ID       int    `json:"id"`
		Path     string `json:"path"`
		Bytes    int64  `json:"bytes"`
		Selected int    `json:"selected"`
	} `json:"files"`
}

type rdUnrestrictResponse struct {
	Download string `json:"download"`
}

// Resolve adds the magnet, selects the requested file, and unrestricts the
// resulting link. Transient API failures are retried; a torrent that is not
// instantly available is an error, playback never waits for a download.
func (r *RealDebrid) Resolve(ctx context.Context, token string, req ResolveRequest) (string, error) {
	return retry.DoWithData(
		func() (string, error) {
			return r.resolve(ctx, token, req)
		},
		retry.Attempts(3),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
}

func (r *RealDebrid) resolve(ctx context.Context, token string, req ResolveRequest) (string, error) {
	torrentID, err := r.addMagnet(ctx, token, req.MagnetLink)
	if err != nil {
		return "", err
	}

	if err := r.selectFiles(ctx, token, torrentID, req); err != nil {
		return "", err
	}

	info, err := r.torrentInfo(ctx, token, torrentID)
	if err != nil {
		return "", err
	}
	if info.Status != "downloaded" || len(info.Links) == 0 {
		return "", fmt.Errorf("torrent %s not instantly available (status %s)", req.InfoHash, info.Status)
	}

	return r.unrestrict(ctx, token, info.Links[0])
}

func (r *RealDebrid) addMagnet(ctx context.Context, token, magnet string) (string, error) {
	form := url.Values{"magnet": {magnet}}
	body, err := r.post(ctx, token, "/torrents/addMagnet", form)
	if err != nil {
		return "", fmt.Errorf("failed to add magnet: %w", err)
	}

	var added rdAddMagnetResponse
	if err := json.Unmarshal(body, &added); err != nil {
		return "", fmt.Errorf("failed to unmarshal addMagnet response: %w", err)
	}
	if added.ID == "" {
		return "", fmt.Errorf("addMagnet returned no torrent id")
	}
	return added.ID, nil
}

// selectFiles narrows the torrent to the requested file. Without a file
// index the selection falls back to matching the filename, then to all
// files, which is harmless for single-file movie torrents.
func (r *RealDebrid) selectFiles(ctx context.Context, token, torrentID string, req ResolveRequest) error {
	selection := "all"

	if req.FileIndex != nil {
		// The API numbers files from 1; the catalog stores 0-based indexes.
		selection = strconv.Itoa(*req.FileIndex + 1)
	} else if req.Filename != "" {
		info, err := r.torrentInfo(ctx, token, torrentID)
		if err != nil {
			return err
		}
		for _, f := range info.Files {
			if strings.HasSuffix(f.Path, req.Filename) {
				selection = strconv.Itoa(f.ID)
				break
			}
		}
	}

	form := url.Values{"files": {selection}}
	if _, err := r.post(ctx, token, "/torrents/selectFiles/"+torrentID, form); err != nil {
		return fmt.Errorf("failed to select files: %w", err)
	}
	return nil
}

func (r *RealDebrid) torrentInfo(ctx context.Context, token, torrentID string) (*rdTorrentInfo, error) {
	body, err := r.get(ctx, token, "/torrents/info/"+torrentID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch torrent info: %w", err)
	}

	var info rdTorrentInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to unmarshal torrent info: %w", err)
	}
	return &info, nil
}

func (r *RealDebrid) unrestrict(ctx context.Context, token, link string) (string, error) {
	form := url.Values{"link": {link}}
	body, err := r.post(ctx, token, "/unrestrict/link", form)
	if err != nil {
		return "", fmt.Errorf("failed to unrestrict link: %w", err)
	}

	var unrestricted rdUnrestrictResponse
	if err := json.Unmarshal(body, &unrestricted); err != nil {
		return "", fmt.Errorf("failed to unmarshal unrestrict response: %w", err)
	}
	if unrestricted.Download == "" {
		return "", fmt.Errorf("unrestrict returned no download url")
	}
	return unrestricted.Download, nil
}

func (r *RealDebrid) get(ctx context.Context, token, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return r.do(req, token)
}

func (r *RealDebrid) post(ctx context.Context, token, path string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r.do(req, token)
}

func (r *RealDebrid) do(req *http.Request, token string) ([]byte, error) {
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("real-debrid returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
