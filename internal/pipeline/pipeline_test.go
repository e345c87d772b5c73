package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/quakemap/internal/domain"
	"github.com/couchcryptid/quakemap/internal/mapview"
	"github.com/couchcryptid/quakemap/internal/observability"
	"github.com/couchcryptid/quakemap/internal/pipeline"
)

// --- mocks ---

type mockFetcher struct {
	events        []domain.SeismicEvent
	eventsErr     error
	boundaries    []domain.PlateBoundary
	boundariesErr error
	// boundaryGate, when set, blocks FetchBoundaries until closed or ctx ends.
	boundaryGate chan struct{}
	calls        atomic.Int64
}

func (m *mockFetcher) FetchEvents(_ context.Context) ([]domain.SeismicEvent, error) {
	m.calls.Add(1)
	return m.events, m.eventsErr
}

func (m *mockFetcher) FetchBoundaries(ctx context.Context) ([]domain.PlateBoundary, error) {
	if m.boundaryGate != nil {
		select {
		case <-m.boundaryGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return m.boundaries, m.boundariesErr
}

type mockPublisher struct {
	mu        sync.Mutex
	published [][]domain.StyledEvent
	err       error
}

func (m *mockPublisher) PublishMarkers(_ context.Context, events []domain.StyledEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, events)
	return m.err
}

type stubGeocoder struct {
	address string
}

func (s stubGeocoder) ReverseGeocode(_ context.Context, _, _ float64) (domain.GeocodingResult, error) {
	return domain.GeocodingResult{FormattedAddress: s.address}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleEvents() []domain.SeismicEvent {
	return []domain.SeismicEvent{
		{ID: "a", Magnitude: 5, Place: "Test Ridge", Coordinates: domain.Coordinates{Lon: -120, Lat: 40, Depth: 45}},
		{ID: "b", Magnitude: 2.5, Place: "", Coordinates: domain.Coordinates{Lon: 10, Lat: -5, Depth: 95}},
	}
}

func sampleBoundaries() []domain.PlateBoundary {
	return []domain.PlateBoundary{
		{Name: "AF-AN", Lines: []domain.Polyline{{{Lon: 0, Lat: 0}, {Lon: 1, Lat: 1}}}},
	}
}

func overlay(t *testing.T, v mapview.MapView, name string) mapview.Layer {
	t.Helper()
	l, ok := v.Overlay(name)
	require.True(t, ok, "overlay %q missing", name)
	return l
}

// markerCount reads the live event layer without failing the test, for use
// inside Eventually conditions.
func markerCount(p *pipeline.Pipeline) int {
	l, _ := p.Current().View.Overlay(mapview.EarthquakesOverlay)
	return len(l.Markers)
}

// --- tests ---

func TestPipeline_CurrentBeforeRefresh(t *testing.T) {
	p := pipeline.New(&mockFetcher{}, pipeline.Options{}, discardLogger(), observability.NewMetricsForTesting())

	snap := p.Current()
	require.NotNil(t, snap)
	assert.Empty(t, overlay(t, snap.View, mapview.EarthquakesOverlay).Markers)
	assert.Empty(t, overlay(t, snap.View, mapview.PlatesOverlay).Paths)
	assert.Len(t, snap.View.BaseLayers, 3)
	require.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Refresh_HappyPath(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	f := &mockFetcher{events: sampleEvents(), boundaries: sampleBoundaries()}
	p := pipeline.New(f, pipeline.Options{}, discardLogger(), metrics)

	snap := p.Refresh(context.Background())

	assert.Len(t, snap.Events, 2)
	assert.Len(t, overlay(t, snap.View, mapview.EarthquakesOverlay).Markers, 2)
	assert.Len(t, overlay(t, snap.View, mapview.PlatesOverlay).Paths, 1)
	assert.Same(t, snap, p.Current())
	require.NoError(t, p.CheckReadiness(context.Background()))
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.EventsRendered), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.BoundariesRendered), 0)
}

func TestPipeline_Refresh_PreservesEventOrder(t *testing.T) {
	f := &mockFetcher{events: sampleEvents()}
	p := pipeline.New(f, pipeline.Options{}, discardLogger(), observability.NewMetricsForTesting())

	snap := p.Refresh(context.Background())
	markers := overlay(t, snap.View, mapview.EarthquakesOverlay).Markers

	require.Len(t, markers, 2)
	assert.Equal(t, mapview.LatLng{40, -120}, markers[0].Position)
	assert.Equal(t, mapview.LatLng{-5, 10}, markers[1].Position)
	assert.Equal(t, "#ffff00", markers[0].Style.FillColor)
}

func TestPipeline_Refresh_BoundaryFailureLeavesLayerEmpty(t *testing.T) {
	f := &mockFetcher{events: sampleEvents(), boundariesErr: errors.New("dns failure")}
	p := pipeline.New(f, pipeline.Options{}, discardLogger(), observability.NewMetricsForTesting())

	snap := p.Refresh(context.Background())

	assert.Len(t, overlay(t, snap.View, mapview.EarthquakesOverlay).Markers, 2)
	assert.Empty(t, overlay(t, snap.View, mapview.PlatesOverlay).Paths)
	require.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Refresh_EventFailureLeavesLayerEmpty(t *testing.T) {
	f := &mockFetcher{eventsErr: errors.New("503"), boundaries: sampleBoundaries()}
	p := pipeline.New(f, pipeline.Options{}, discardLogger(), observability.NewMetricsForTesting())

	snap := p.Refresh(context.Background())

	assert.Empty(t, overlay(t, snap.View, mapview.EarthquakesOverlay).Markers)
	assert.Len(t, overlay(t, snap.View, mapview.PlatesOverlay).Paths, 1)
}

func TestPipeline_Refresh_BothFailStillRenderable(t *testing.T) {
	f := &mockFetcher{eventsErr: errors.New("a"), boundariesErr: errors.New("b")}
	p := pipeline.New(f, pipeline.Options{}, discardLogger(), observability.NewMetricsForTesting())

	snap := p.Refresh(context.Background())

	assert.Len(t, snap.View.Overlays, 2)
	assert.Len(t, snap.View.BaseLayers, 3)
	assert.Equal(t, mapview.GreyscaleBase, snap.View.ActiveBase)
	require.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Refresh_SlowBoundariesCancelled(t *testing.T) {
	f := &mockFetcher{events: sampleEvents(), boundaryGate: make(chan struct{})}
	p := pipeline.New(f, pipeline.Options{}, discardLogger(), observability.NewMetricsForTesting())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	snap := p.Refresh(ctx)

	assert.Len(t, overlay(t, snap.View, mapview.EarthquakesOverlay).Markers, 2)
	assert.Empty(t, overlay(t, snap.View, mapview.PlatesOverlay).Paths)
}

func TestPipeline_Refresh_EventsShownWhileBoundariesPending(t *testing.T) {
	gate := make(chan struct{})
	f := &mockFetcher{events: sampleEvents(), boundaries: sampleBoundaries(), boundaryGate: gate}
	p := pipeline.New(f, pipeline.Options{}, discardLogger(), observability.NewMetricsForTesting())

	done := make(chan *pipeline.Snapshot, 1)
	go func() { done <- p.Refresh(context.Background()) }()

	require.Eventually(t, func() bool {
		return markerCount(p) == 2
	}, 2*time.Second, 10*time.Millisecond, "earthquake layer waits on the boundary fetch")
	assert.Empty(t, overlay(t, p.Current().View, mapview.PlatesOverlay).Paths)
	require.Error(t, p.CheckReadiness(context.Background()), "refresh has not completed")

	close(gate)
	var snap *pipeline.Snapshot
	select {
	case snap = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Refresh did not return after the boundary fetch resolved")
	}

	assert.Len(t, overlay(t, snap.View, mapview.EarthquakesOverlay).Markers, 2)
	assert.Len(t, overlay(t, snap.View, mapview.PlatesOverlay).Paths, 1)
	assert.Same(t, snap, p.Current())
}

func TestPipeline_Refresh_BoundariesKeptUntilNewFetchLands(t *testing.T) {
	f := &mockFetcher{events: sampleEvents(), boundaries: sampleBoundaries()}
	p := pipeline.New(f, pipeline.Options{}, discardLogger(), observability.NewMetricsForTesting())
	p.Refresh(context.Background())

	gate := make(chan struct{})
	f.boundaryGate = gate
	f.events = sampleEvents()[:1]
	done := make(chan struct{})
	go func() {
		p.Refresh(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool {
		return markerCount(p) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, overlay(t, p.Current().View, mapview.PlatesOverlay).Paths, 1,
		"previous boundaries stay visible while the new fetch is pending")

	close(gate)
	<-done
	assert.Len(t, overlay(t, p.Current().View, mapview.PlatesOverlay).Paths, 1)
}

func TestPipeline_Refresh_EmptyEvents(t *testing.T) {
	f := &mockFetcher{events: []domain.SeismicEvent{}, boundaries: sampleBoundaries()}
	pub := &mockPublisher{}
	p := pipeline.New(f, pipeline.Options{Publisher: pub}, discardLogger(), observability.NewMetricsForTesting())

	snap := p.Refresh(context.Background())

	assert.Empty(t, snap.Events)
	assert.Empty(t, pub.published, "nothing to publish")
}

func TestPipeline_Refresh_PublishesMarkers(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	pub := &mockPublisher{}
	f := &mockFetcher{events: sampleEvents()}
	p := pipeline.New(f, pipeline.Options{Publisher: pub}, discardLogger(), metrics)

	p.Refresh(context.Background())

	require.Len(t, pub.published, 1)
	assert.Len(t, pub.published[0], 2)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.MarkersPublished), 0)
}

func TestPipeline_Refresh_PublishErrorDoesNotBlockSnapshot(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	pub := &mockPublisher{err: errors.New("broker down")}
	f := &mockFetcher{events: sampleEvents()}
	p := pipeline.New(f, pipeline.Options{Publisher: pub}, discardLogger(), metrics)

	snap := p.Refresh(context.Background())

	assert.Len(t, snap.Events, 2)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.MarkersPublished), 0)
}

func TestPipeline_Refresh_GeocodesMissingPlace(t *testing.T) {
	f := &mockFetcher{events: sampleEvents()}
	opts := pipeline.Options{Geocoder: stubGeocoder{address: "Gulf of Guinea"}}
	p := pipeline.New(f, opts, discardLogger(), observability.NewMetricsForTesting())

	snap := p.Refresh(context.Background())

	require.Len(t, snap.Events, 2)
	assert.Equal(t, "Test Ridge", snap.Events[0].Event.Place)
	assert.Equal(t, "Gulf of Guinea", snap.Events[1].Event.Place)
	markers := overlay(t, snap.View, mapview.EarthquakesOverlay).Markers
	assert.Contains(t, markers[1].Popup, "Gulf of Guinea")
}

func TestPipeline_CustomBaseLayers(t *testing.T) {
	bases := mapview.ProxiedBaseLayers(mapview.DefaultBaseLayers(), "/tiles")
	p := pipeline.New(&mockFetcher{}, pipeline.Options{BaseLayers: bases}, discardLogger(), observability.NewMetricsForTesting())

	snap := p.Refresh(context.Background())

	require.Len(t, snap.View.BaseLayers, 3)
	assert.Equal(t, "/tiles/greyscale/{z}/{x}/{y}", snap.View.BaseLayers[0].URL)
}

func TestPipeline_Run_RefreshesUntilCancelled(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	f := &mockFetcher{events: sampleEvents()}
	p := pipeline.New(f, pipeline.Options{Interval: time.Hour}, discardLogger(), metrics)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		return p.CheckReadiness(context.Background()) == nil
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	assert.Equal(t, int64(1), f.calls.Load(), "scheduled run waits for the interval")
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.SchedulerRunning), 0)
}

func TestTransformer_NilGeocoder(t *testing.T) {
	tr := pipeline.NewTransformer(nil, discardLogger())

	styled := tr.Transform(context.Background(), sampleEvents())

	require.Len(t, styled, 2)
	assert.Empty(t, styled[1].Event.Place)
	assert.InDelta(t, 75000, styled[0].Style.Radius, 1e-9)
}
