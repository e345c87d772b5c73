package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/quakemap/internal/adapter/http"
	"github.com/couchcryptid/quakemap/internal/domain"
	"github.com/couchcryptid/quakemap/internal/mapview"
	"github.com/couchcryptid/quakemap/internal/pipeline"
)

type fakeSource struct {
	snap *pipeline.Snapshot
	err  error
}

func (f *fakeSource) CheckReadiness(_ context.Context) error { return f.err }
func (f *fakeSource) Current() *pipeline.Snapshot          { return f.snap }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func emptySnapshot() *pipeline.Snapshot {
	return &pipeline.Snapshot{
		View: mapview.ComposeMap(mapview.BuildEventLayer(nil), mapview.BuildBoundaryLayer(nil)),
	}
}

func populatedSnapshot() *pipeline.Snapshot {
	events := []domain.SeismicEvent{{
		ID:          "ev1",
		Magnitude:   4.2,
		DepthKm:     12,
		Place:       "<b>Test</b> Ridge",
		Coordinates: domain.Coordinates{Lon: -120, Lat: 40, Depth: 12},
	}}
	boundaries := []domain.PlateBoundary{{
		Name:  "AF-AN",
		Lines: []domain.Polyline{{{Lon: 0, Lat: 0}, {Lon: 1, Lat: 1}}},
	}}
	return &pipeline.Snapshot{
		View:       mapview.ComposeMap(mapview.BuildEventLayer(events), mapview.BuildBoundaryLayer(boundaries)),
		Events:     domain.StyleEvents(events),
		Boundaries: boundaries,
	}
}

func newTestServer(snap *pipeline.Snapshot, readyErr error, tiles http.Handler) *httpadapter.Server {
	return httpadapter.NewServer(":0", &fakeSource{snap: snap, err: readyErr}, tiles, discardLogger())
}

func get(t *testing.T, srv http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := get(t, newTestServer(emptySnapshot(), nil, nil), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := get(t, newTestServer(emptySnapshot(), nil, nil), "/readyz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := get(t, newTestServer(emptySnapshot(), fmt.Errorf("not ready yet"), nil), "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "not ready yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(t, newTestServer(emptySnapshot(), nil, nil), "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestMapPage_EmptySnapshotHasControls(t *testing.T) {
	rec := get(t, newTestServer(emptySnapshot(), nil, nil), "/")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	body := rec.Body.String()
	for _, name := range []string{mapview.GreyscaleBase, mapview.ImageryBase, mapview.TopographicBase, mapview.EarthquakesOverlay, mapview.PlatesOverlay} {
		assert.Contains(t, body, name)
	}
}

func TestMapPage_UnknownPathIs404(t *testing.T) {
	rec := get(t, newTestServer(emptySnapshot(), nil, nil), "/nope")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEarthquakesEndpoint(t *testing.T) {
	rec := get(t, newTestServer(populatedSnapshot(), nil, nil), "/api/earthquakes")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))

	var doc struct {
		Type     string `json:"type"`
		Features []struct {
			ID         string         `json:"id"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "FeatureCollection", doc.Type)
	require.Len(t, doc.Features, 1)
	assert.Equal(t, "ev1", doc.Features[0].ID)
	assert.Contains(t, doc.Features[0].Properties, "style")
	assert.Contains(t, doc.Features[0].Properties, "popup")
}

func TestEarthquakesEndpoint_EmptyBeforeRefresh(t *testing.T) {
	rec := get(t, newTestServer(emptySnapshot(), nil, nil), "/api/earthquakes")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, rec.Body.String())
}

func TestBoundariesEndpoint(t *testing.T) {
	rec := get(t, newTestServer(populatedSnapshot(), nil, nil), "/api/boundaries")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "MultiLineString")
	assert.Contains(t, rec.Body.String(), "AF-AN")
}

func TestLegendEndpoint(t *testing.T) {
	rec := get(t, newTestServer(emptySnapshot(), nil, nil), "/api/legend")

	require.Equal(t, http.StatusOK, rec.Code)

	var entries []domain.LegendEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	assert.Equal(t, domain.Legend(), entries)
}

func TestAPI_CORSHeader(t *testing.T) {
	srv := newTestServer(emptySnapshot(), nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/legend", nil)
	req.Header.Set("Origin", "https://example.org")
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestAPI_RejectsPost(t *testing.T) {
	srv := newTestServer(emptySnapshot(), nil, nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/legend", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestTiles_MountedOnlyWhenEnabled(t *testing.T) {
	tiles := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.PathValue("layer")))
	})

	rec := get(t, newTestServer(emptySnapshot(), nil, tiles), "/tiles/imagery/3/2/1.png")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "imagery", rec.Body.String())

	rec = get(t, newTestServer(emptySnapshot(), nil, nil), "/tiles/imagery/3/2/1.png")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
