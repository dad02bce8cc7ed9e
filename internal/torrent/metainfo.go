// Package torrent turns raw .torrent files into structured metadata: file
// list, sizes, announce endpoints, and the computed info hash that the rest
// of the catalog uses as the release's identity.
package torrent

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/anacrolix/torrent/metainfo"
	"github.com/moistari/rls"

	"github.com/dharun-dev/streamvault/internal/models"
)

// PageFetcher downloads a URL through the active crawl transport, so torrent
// downloads reuse the session cookies the forum handed out.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) ([]byte, error)
}

type Extractor struct {
	fetcher PageFetcher
}

func NewExtractor(fetcher PageFetcher) *Extractor {
	return &Extractor{fetcher: fetcher}
}

// Extract downloads a torrent file and parses it.
func (e *Extractor) Extract(ctx context.Context, torrentURL string) (*models.TorrentMetadata, error) {
	data, err := e.fetcher.Fetch(ctx, torrentURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download torrent %s: %w", torrentURL, err)
	}
	return Parse(data)
}

// Parse decodes a bencoded torrent file into TorrentMetadata.
func Parse(data []byte) (*models.TorrentMetadata, error) {
	mi, err := metainfo.Load(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse torrent file: %w", err)
	}

	info, err := mi.UnmarshalInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to parse torrent info dict: %w", err)
	}

	meta := &models.TorrentMetadata{
		InfoHash:     mi.HashInfoBytes().HexString(),
		Name:         info.Name,
		TotalSize:    info.TotalLength(),
		AnnounceList: flattenAnnounce(mi),
	}

	for i, file := range info.UpvertedFiles() {
		filename := file.DisplayPath(&info)
		meta.Files = append(meta.Files, models.TorrentFile{
			Filename: filename,
			Size:     file.Length,
			Index:    i,
			Episode:  DetectEpisode(filename),
		})
	}

	return meta, nil
}

// DetectEpisode extracts an episode number from a filename, 0 when none is
// recognizable.
func DetectEpisode(filename string) int {
	base := strings.TrimSuffix(path.Base(filename), path.Ext(filename))
	release := rls.ParseString(base)
	if release.Episode > 0 {
		return release.Episode
	}
	return 0
}

// MagnetLink builds a magnet URI for a stored release.
func MagnetLink(infoHash, name string, trackers []string) string {
	var b strings.Builder
	b.WriteString("magnet:?xt=urn:btih:")
	b.WriteString(infoHash)
	if name != "" {
		b.WriteString("&dn=")
		b.WriteString(url.QueryEscape(name))
	}
	for _, tracker := range trackers {
		b.WriteString("&tr=")
		b.WriteString(url.QueryEscape(tracker))
	}
	return b.String()
}

func flattenAnnounce(mi *metainfo.MetaInfo) []string {
	seen := make(map[string]struct{})
	var announce []string

	add := func(tracker string) {
		if tracker == "" {
			return
		}
		if _, ok := seen[tracker]; ok {
			return
		}
		seen[tracker] = struct{}{}
		announce = append(announce, tracker)
	}

	add(mi.Announce)
	for _, tier := range mi.AnnounceList {
		for _, tracker := range tier {
			add(tracker)
		}
	}

	return announce
}
