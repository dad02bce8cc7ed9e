// Package api exposes the catalog as a Stremio-style addon: manifest,
// catalog, meta, and stream resources plus the poster proxy and playback
// redirect.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/dharun-dev/streamvault/internal/catalog"
	"github.com/dharun-dev/streamvault/internal/models"
	"github.com/dharun-dev/streamvault/internal/providers"
	"github.com/dharun-dev/streamvault/internal/scraper"
	"github.com/dharun-dev/streamvault/internal/services"
	"github.com/dharun-dev/streamvault/internal/torrent"
	"github.com/dharun-dev/streamvault/internal/userdata"
)

const catalogPageSize = 25

type Handler struct {
	query   *catalog.Query
	codec   *userdata.Codec
	sweeper *services.Sweeper
	hostURL string

	// manifest catalogs derived from the enabled source profiles
	catalogs []ManifestCatalog
}

func NewHandler(query *catalog.Query, codec *userdata.Codec, sweeper *services.Sweeper, hostURL string, profiles []*scraper.Profile) *Handler {
	return &Handler{
		query:    query,
		codec:    codec,
		sweeper:  sweeper,
		hostURL:  hostURL,
		catalogs: manifestCatalogs(profiles),
	}
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// ManifestCatalog is one browsable catalog advertised by the manifest.
type ManifestCatalog struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Name  string `json:"name"`
	Extra []struct {
		Name string `json:"name"`
	} `json:"extra,omitempty"`
}

type Manifest struct {
	ID          string            `json:"id"`
	Version     string            `json:"version"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Types       []string          `json:"types"`
	Resources   []string          `json:"resources"`
	Catalogs    []ManifestCatalog `json:"catalogs"`
}

// RootHandler handles GET /
func (h *Handler) RootHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"name":     "StreamVault",
		"manifest": h.hostURL + "/manifest.json",
	})
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetManifest handles GET /manifest.json. With a user-data prefix the
// advertised catalogs are narrowed to the user's selection.
func (h *Handler) GetManifest(w http.ResponseWriter, r *http.Request) {
	catalogs := h.catalogs

	if data := h.decodeUserData(r); data != nil && len(data.SelectedCatalogs) > 0 {
		selected := make(map[string]struct{}, len(data.SelectedCatalogs))
		for _, id := range data.SelectedCatalogs {
			selected[id] = struct{}{}
		}
		var filtered []ManifestCatalog
		for _, c := range catalogs {
			if _, ok := selected[c.ID]; ok {
				filtered = append(filtered, c)
			}
		}
		catalogs = filtered
	}

	respondJSON(w, http.StatusOK, Manifest{
		ID:          "com.streamvault.addon",
		Version:     "1.0.0",
		Name:        "StreamVault",
		Description: "Movie and series catalog scraped from public forums",
		Types:       []string{models.MediaTypeMovie, models.MediaTypeSeries},
		Resources:   []string{"catalog", "meta", "stream"},
		Catalogs:    catalogs,
	})
}

// GetCatalog handles GET /catalog/{type}/{catalogID}[/{extra}].json. The
// extra segment carries skip for pagination or search for text queries.
func (h *Handler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	mediaType := vars["type"]
	catalogID := vars["catalogID"]

	skip := 0
	search := ""
	if extra := vars["extra"]; extra != "" {
		values, err := url.ParseQuery(extra)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid extra segment")
			return
		}
		skip, _ = strconv.Atoi(values.Get("skip"))
		search = values.Get("search")
	}

	var (
		metas []catalog.MetaPreview
		err   error
	)
	if search != "" {
		metas, err = h.query.Search(r.Context(), mediaType, search)
	} else {
		metas, err = h.query.ListCatalog(r.Context(), mediaType, catalogID, skip, catalogPageSize)
	}
	if err != nil {
		log.Printf("[API] Catalog %s/%s failed: %v", mediaType, catalogID, err)
		respondError(w, http.StatusInternalServerError, "failed to load catalog")
		return
	}

	if metas == nil {
		metas = []catalog.MetaPreview{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"metas": metas})
}

// GetMeta handles GET /meta/{type}/{id}.json
func (h *Handler) GetMeta(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	meta, err := h.query.GetMeta(r.Context(), vars["type"], vars["id"])
	if err != nil {
		log.Printf("[API] Meta %s/%s failed: %v", vars["type"], vars["id"], err)
		respondError(w, http.StatusInternalServerError, "failed to load meta")
		return
	}
	if meta == nil {
		respondError(w, http.StatusNotFound, "meta not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"meta": meta})
}

// apiStream is a catalog stream entry plus the optional provider playback
// URL injected for configured users.
type apiStream struct {
	catalog.StreamEntry
	URL string `json:"url,omitempty"`
}

// GetStreams handles GET /stream/{type}/{id}.json. Series ids carry the
// video coordinates as "{titleID}:{season}:{episode}".
func (h *Handler) GetStreams(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	mediaType := vars["type"]

	titleID, season, episode, err := parseVideoID(mediaType, vars["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	streams, err := h.query.GetStreams(r.Context(), mediaType, titleID, season, episode)
	if err != nil {
		log.Printf("[API] Streams %s/%s failed: %v", mediaType, vars["id"], err)
		respondError(w, http.StatusInternalServerError, "failed to load streams")
		return
	}

	data := h.decodeUserData(r)
	out := make([]apiStream, 0, len(streams))
	for _, s := range streams {
		entry := apiStream{StreamEntry: s}
		if data != nil && data.StreamingProvider != nil {
			entry.URL = h.playbackURL(mux.Vars(r)["userData"], s.InfoHash, season, episode)
		}
		out = append(out, entry)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"streams": out})
}

// GetPoster handles GET /poster/{type}/{id}.jpg by redirecting to the
// stored upstream poster.
func (h *Handler) GetPoster(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	poster, err := h.query.TitlePoster(r.Context(), vars["type"], vars["id"])
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load poster")
		return
	}
	if poster == "" {
		respondError(w, http.StatusNotFound, "poster not found")
		return
	}

	http.Redirect(w, r, poster, http.StatusFound)
}

// Playback handles GET /playback/{userData}/{infoHash}. The release is
// resolved through the user's streaming provider and the client is
// redirected to the direct URL.
func (h *Handler) Playback(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	data, err := h.codec.Decode(vars["userData"])
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid user data")
		return
	}
	if data.StreamingProvider == nil {
		respondError(w, http.StatusBadRequest, "no streaming provider configured")
		return
	}

	release, err := h.query.ReleaseByHash(r.Context(), strings.ToLower(vars["infoHash"]))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load release")
		return
	}
	if release == nil {
		respondError(w, http.StatusNotFound, "unknown release")
		return
	}

	resolver, err := providers.ForService(data.StreamingProvider.Service)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	req := providers.ResolveRequest{
		InfoHash:   release.InfoHash,
		MagnetLink: torrent.MagnetLink(release.InfoHash, release.Name, release.Announce),
		FileIndex:  release.FileIndex,
		Filename:   release.Filename,
	}
	if season, _ := strconv.Atoi(r.URL.Query().Get("season")); season > 0 {
		episode, _ := strconv.Atoi(r.URL.Query().Get("episode"))
		req.Season = season
		req.Episode = episode
		if ep := release.Episode(season, episode); ep != nil {
			idx := ep.FileIndex
			req.FileIndex = &idx
			req.Filename = ep.Filename
		}
	}

	directURL, err := resolver.Resolve(r.Context(), data.StreamingProvider.Token, req)
	if err != nil {
		log.Printf("[API] Playback of %s via %s failed: %v", release.InfoHash, resolver.Name(), err)
		respondError(w, http.StatusBadGateway, "failed to resolve playback")
		return
	}

	http.Redirect(w, r, directURL, http.StatusFound)
}

// EncryptUserData handles POST /encrypt-user-data
func (h *Handler) EncryptUserData(w http.ResponseWriter, r *http.Request) {
	var data userdata.UserData
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	encoded, err := h.codec.Encode(&data)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to encrypt user data")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"encoded_user_data": encoded})
}

// StartScheduler handles POST /start-scheduler by triggering an immediate
// sweep of every source.
func (h *Handler) StartScheduler(w http.ResponseWriter, r *http.Request) {
	if h.sweeper == nil {
		respondError(w, http.StatusServiceUnavailable, "scheduler not configured")
		return
	}

	// The request context dies with the 202 response; the sweep must not.
	go h.sweeper.RunAll(context.WithoutCancel(r.Context()))
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "sweep triggered"})
}

// SchedulerStatus handles GET /scheduler/status
func (h *Handler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	if h.sweeper == nil {
		respondError(w, http.StatusServiceUnavailable, "scheduler not configured")
		return
	}
	respondJSON(w, http.StatusOK, h.sweeper.Status())
}

// decodeUserData returns the decoded user-data prefix of the request, or
// nil when the request has none or it fails to decode.
func (h *Handler) decodeUserData(r *http.Request) *userdata.UserData {
	encoded := mux.Vars(r)["userData"]
	if encoded == "" {
		return nil
	}
	data, err := h.codec.Decode(encoded)
	if err != nil {
		return nil
	}
	return data
}

func (h *Handler) playbackURL(encodedUserData, infoHash string, season, episode int) string {
	u := fmt.Sprintf("%s/playback/%s/%s", h.hostURL, encodedUserData, infoHash)
	if season > 0 {
		u += fmt.Sprintf("?season=%d&episode=%d", season, episode)
	}
	return u
}

// parseVideoID splits a stream id into its title and, for series, the
// season and episode coordinates.
func parseVideoID(mediaType, id string) (titleID string, season, episode int, err error) {
	if mediaType != models.MediaTypeSeries {
		return id, 0, 0, nil
	}

	parts := strings.Split(id, ":")
	if len(parts) != 3 {
		return "", 0, 0, fmt.Errorf("invalid series video id %q", id)
	}
	season, err = strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, 0, fmt.Errorf("invalid season in video id %q", id)
	}
	episode, err = strconv.Atoi(parts[2])
	if err != nil {
		return "", 0, 0, fmt.Errorf("invalid episode in video id %q", id)
	}
	return parts[0], season, episode, nil
}

// manifestCatalogs derives one catalog per (language, media-type) target of
// every enabled profile, deduplicated across profiles.
func manifestCatalogs(profiles []*scraper.Profile) []ManifestCatalog {
	seen := make(map[string]struct{})
	var catalogs []ManifestCatalog

	for _, profile := range profiles {
		for _, target := range profile.Targets() {
			id := target.Language + "_" + target.MediaType
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}

			mediaType := models.MediaTypeMovie
			if target.MediaType == scraper.SeriesMediaType {
				mediaType = models.MediaTypeSeries
			}

			catalogs = append(catalogs, ManifestCatalog{
				ID:   id,
				Type: mediaType,
				Name: capitalize(target.Language) + " " + capitalize(target.MediaType),
			})
		}
	}

	return catalogs
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
