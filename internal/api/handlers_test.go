package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharun-dev/streamvault/internal/catalog"
	"github.com/dharun-dev/streamvault/internal/models"
	"github.com/dharun-dev/streamvault/internal/scraper"
	"github.com/dharun-dev/streamvault/internal/services"
	"github.com/dharun-dev/streamvault/internal/userdata"
)

type stubStore struct {
	titles   map[string]*models.Title
	releases map[string][]*models.ReleaseRecord
}

func (s *stubStore) TitleByID(_ context.Context, id string) (*models.Title, error) {
	return s.titles[id], nil
}

func (s *stubStore) TitleByNameYear(_ context.Context, _ string, _ *int) (*models.Title, error) {
	return nil, nil
}

func (s *stubStore) InsertTitle(_ context.Context, _ *models.Title) error { return nil }

func (s *stubStore) TouchTitle(_ context.Context, _ string) error { return nil }

func (s *stubStore) TitlesByCatalog(_ context.Context, mediaType, _ string, _, _ int) ([]*models.Title, error) {
	var out []*models.Title
	for _, t := range s.titles {
		if t.Type == mediaType {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *stubStore) SearchTitles(_ context.Context, _, _ string) ([]*models.Title, error) {
	return nil, nil
}

func (s *stubStore) InsertRelease(_ context.Context, _ *models.ReleaseRecord) (bool, error) {
	return false, nil
}

func (s *stubStore) ReleaseByHash(_ context.Context, infoHash string) (*models.ReleaseRecord, error) {
	for _, list := range s.releases {
		for _, r := range list {
			if r.InfoHash == infoHash {
				return r, nil
			}
		}
	}
	return nil, nil
}

func (s *stubStore) ReleasesByTitle(_ context.Context, titleID string) ([]*models.ReleaseRecord, error) {
	return s.releases[titleID], nil
}

func newTestHandler() (*Handler, *stubStore) {
	store := &stubStore{
		titles:   make(map[string]*models.Title),
		releases: make(map[string][]*models.ReleaseRecord),
	}
	query := catalog.NewQuery(store, "http://localhost:8080")
	codec := userdata.NewCodec("test-secret")
	profiles := []*scraper.Profile{scraper.TamilMV()}
	return NewHandler(query, codec, nil, "http://localhost:8080", profiles), store
}

func serve(h *Handler, method, target string, body string) *httptest.ResponseRecorder {
	router := SetupRoutes(h)
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestManifestListsCatalogs(t *testing.T) {
	handler, _ := newTestHandler()

	rec := serve(handler, http.MethodGet, "/manifest.json", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var manifest Manifest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &manifest))

	assert.Equal(t, []string{"movie", "series"}, manifest.Types)
	assert.NotEmpty(t, manifest.Catalogs)

	ids := make(map[string]string)
	for _, c := range manifest.Catalogs {
		ids[c.ID] = c.Type
	}
	assert.Equal(t, "movie", ids["tamil_hdrip"])
	assert.Equal(t, "series", ids["tamil_series"])
}

func TestManifestFiltersByUserSelection(t *testing.T) {
	handler, _ := newTestHandler()

	encoded, err := userdata.NewCodec("test-secret").Encode(&userdata.UserData{
		SelectedCatalogs: []string{"tamil_hdrip"},
	})
	require.NoError(t, err)

	rec := serve(handler, http.MethodGet, "/"+encoded+"/manifest.json", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var manifest Manifest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &manifest))
	require.Len(t, manifest.Catalogs, 1)
	assert.Equal(t, "tamil_hdrip", manifest.Catalogs[0].ID)
}

func TestGetCatalogParsesSkipExtra(t *testing.T) {
	handler, store := newTestHandler()
	store.titles["tt1"] = &models.Title{ID: "tt1", Title: "Vada Chennai", Type: models.MediaTypeMovie}

	rec := serve(handler, http.MethodGet, "/catalog/movie/tamil_hdrip/skip=0.json", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Metas []catalog.MetaPreview `json:"metas"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Metas, 1)
	assert.Equal(t, "http://localhost:8080/poster/movie/tt1.jpg", body.Metas[0].Poster)
}

func TestGetCatalogEmptyIsNotNull(t *testing.T) {
	handler, _ := newTestHandler()

	rec := serve(handler, http.MethodGet, "/catalog/movie/tamil_hdrip.json", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"metas":[]`)
}

func TestGetMetaNotFound(t *testing.T) {
	handler, _ := newTestHandler()

	rec := serve(handler, http.MethodGet, "/meta/movie/tt404.json", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetStreamsSeriesID(t *testing.T) {
	handler, store := newTestHandler()
	store.titles["tt1"] = &models.Title{ID: "tt1", Title: "QOTS", Type: models.MediaTypeSeries}
	store.releases["tt1"] = []*models.ReleaseRecord{{
		InfoHash: "hash-1",
		TitleID:  "tt1",
		Name:     "QOTS S01",
		Season: &models.SeasonInfo{
			SeasonNumber: 1,
			Episodes:     []models.EpisodeInfo{{EpisodeNumber: 2, Filename: "e2.mkv", FileIndex: 1}},
		},
	}}

	rec := serve(handler, http.MethodGet, "/stream/series/tt1:1:2.json", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Streams []apiStream `json:"streams"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Streams, 1)
	assert.Equal(t, "hash-1", body.Streams[0].InfoHash)
	assert.Equal(t, "e2.mkv", body.Streams[0].Filename)
	assert.Empty(t, body.Streams[0].URL)
}

func TestGetStreamsBadSeriesID(t *testing.T) {
	handler, _ := newTestHandler()

	rec := serve(handler, http.MethodGet, "/stream/series/tt1.json", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPosterRedirects(t *testing.T) {
	handler, store := newTestHandler()
	store.titles["tt1"] = &models.Title{
		ID:     "tt1",
		Title:  "Vada Chennai",
		Type:   models.MediaTypeMovie,
		Poster: "https://upstream.example/vc.jpg",
	}

	rec := serve(handler, http.MethodGet, "/poster/movie/tt1.jpg", "")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://upstream.example/vc.jpg", rec.Header().Get("Location"))
}

func TestGetPosterMissing(t *testing.T) {
	handler, _ := newTestHandler()

	rec := serve(handler, http.MethodGet, "/poster/movie/tt404.jpg", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEncryptUserDataRoundtrip(t *testing.T) {
	handler, _ := newTestHandler()

	rec := serve(handler, http.MethodPost, "/encrypt-user-data",
		`{"streaming_provider":{"service":"realdebrid","token":"tok"},"selected_catalogs":["tamil_hdrip"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	decoded, err := userdata.NewCodec("test-secret").Decode(body["encoded_user_data"])
	require.NoError(t, err)
	require.NotNil(t, decoded.StreamingProvider)
	assert.Equal(t, "realdebrid", decoded.StreamingProvider.Service)
}

type recordingTarget struct {
	done chan error
}

func (r *recordingTarget) Name() string { return "TestSource" }

func (r *recordingTarget) RunSweep(ctx context.Context, _, _ int) error {
	r.done <- ctx.Err()
	return nil
}

func TestStartSchedulerSweepOutlivesRequest(t *testing.T) {
	target := &recordingTarget{done: make(chan error, 1)}
	sweeper := services.NewSweeper([]services.Target{target}, "@every 1h", 1, 1)

	store := &stubStore{
		titles:   make(map[string]*models.Title),
		releases: make(map[string][]*models.ReleaseRecord),
	}
	query := catalog.NewQuery(store, "http://localhost:8080")
	codec := userdata.NewCodec("test-secret")
	handler := NewHandler(query, codec, sweeper, "http://localhost:8080", []*scraper.Profile{scraper.TamilMV()})

	// A real server cancels r.Context() the moment the 202 goes out; the
	// triggered sweep must still run to completion afterwards.
	server := httptest.NewServer(SetupRoutes(handler))
	defer server.Close()

	resp, err := http.Post(server.URL+"/start-scheduler", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	select {
	case ctxErr := <-target.done:
		assert.NoError(t, ctxErr, "sweep ran under a canceled context")
	case <-time.After(3 * time.Second):
		t.Fatal("sweep never ran")
	}
}

func TestPlaybackRejectsBadUserData(t *testing.T) {
	handler, _ := newTestHandler()

	rec := serve(handler, http.MethodGet, "/playback/garbage/hash-1", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestParseVideoID(t *testing.T) {
	id, season, episode, err := parseVideoID(models.MediaTypeSeries, "tt123:2:5")
	require.NoError(t, err)
	assert.Equal(t, "tt123", id)
	assert.Equal(t, 2, season)
	assert.Equal(t, 5, episode)

	id, season, episode, err = parseVideoID(models.MediaTypeMovie, "tt123")
	require.NoError(t, err)
	assert.Equal(t, "tt123", id)
	assert.Zero(t, season)
	assert.Zero(t, episode)

	_, _, _, err = parseVideoID(models.MediaTypeSeries, "tt123:x:1")
	assert.Error(t, err)
}
