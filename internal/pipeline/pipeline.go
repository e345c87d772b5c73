package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/quakemap/internal/domain"
	"github.com/couchcryptid/quakemap/internal/mapview"
	"github.com/couchcryptid/quakemap/internal/observability"
)

// FeedFetcher retrieves both upstream feeds.
type FeedFetcher interface {
	FetchEvents(ctx context.Context) ([]domain.SeismicEvent, error)
	FetchBoundaries(ctx context.Context) ([]domain.PlateBoundary, error)
}

// MarkerPublisher receives the styled markers of every refresh.
type MarkerPublisher interface {
	PublishMarkers(ctx context.Context, events []domain.StyledEvent) error
}

// Snapshot is one composed render pass. It is never mutated after being stored.
type Snapshot struct {
	View       mapview.MapView
	Events     []domain.StyledEvent
	Boundaries []domain.PlateBoundary
	FetchedAt  time.Time
}

// Options carries the optional collaborators of a Pipeline.
type Options struct {
	// Geocoder fills missing places; nil disables enrichment.
	Geocoder domain.Geocoder
	// Publisher receives styled markers; nil disables publishing.
	Publisher MarkerPublisher
	// BaseLayers overrides mapview.DefaultBaseLayers.
	BaseLayers []mapview.BaseLayer
	// Interval between scheduled refreshes.
	Interval time.Duration
}

// Pipeline fetches feeds, builds the map layers and publishes snapshots.
type Pipeline struct {
	fetcher     FeedFetcher
	transformer *EventTransformer
	publisher   MarkerPublisher
	bases       []mapview.BaseLayer
	interval    time.Duration
	logger      *slog.Logger
	metrics     *observability.Metrics

	mu      sync.Mutex // serialises snapshot writers
	current atomic.Pointer[Snapshot]
	ready   atomic.Bool
}

// New creates a Pipeline. Current returns an empty map until the first feed
// arrives.
func New(fetcher FeedFetcher, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	bases := opts.BaseLayers
	if len(bases) == 0 {
		bases = mapview.DefaultBaseLayers()
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	p := &Pipeline{
		fetcher:     fetcher,
		transformer: NewTransformer(opts.Geocoder, logger),
		publisher:   opts.Publisher,
		bases:       bases,
		interval:    interval,
		logger:      logger,
		metrics:     metrics,
	}
	p.current.Store(&Snapshot{
		View: mapview.ComposeMapWithBases(
			mapview.BuildEventLayer(nil),
			mapview.BuildBoundaryLayer(nil),
			bases,
		),
	})
	return p
}

// Current returns the latest snapshot.
func (p *Pipeline) Current() *Snapshot {
	return p.current.Load()
}

// CheckReadiness returns nil once a refresh has completed, even if both
// feeds failed, since the map is renderable either way.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("map has not been refreshed yet")
	}
	return nil
}

// Refresh fetches both feeds concurrently and stores a new snapshot. Each
// layer is published as soon as its own fetch returns, paired with the other
// layer of the current snapshot, so a slow feed never holds back the other.
// Once both fetches are joined the final snapshot is stored; a failed fetch
// leaves its layer empty there.
func (p *Pipeline) Refresh(ctx context.Context) *Snapshot {
	start := time.Now()

	var (
		styled     []domain.StyledEvent
		boundaries []domain.PlateBoundary
	)

	// Goroutines report failures through logs and metrics and always return
	// nil so the group never cancels the sibling fetch.
	var g errgroup.Group
	g.Go(func() error {
		evs, err := p.fetcher.FetchEvents(ctx)
		if err != nil {
			p.logger.Warn("earthquake feed unavailable, rendering empty layer", "error", err)
			return nil
		}
		styled = p.transformer.Transform(ctx, evs)
		p.stage(func(s *Snapshot) { s.Events = styled })
		return nil
	})
	g.Go(func() error {
		bs, err := p.fetcher.FetchBoundaries(ctx)
		if err != nil {
			p.logger.Warn("plate boundary feed unavailable, rendering empty layer", "error", err)
			return nil
		}
		boundaries = bs
		p.stage(func(s *Snapshot) { s.Boundaries = bs })
		return nil
	})
	_ = g.Wait()

	p.mu.Lock()
	snap := &Snapshot{
		View:       p.compose(styled, boundaries),
		Events:     styled,
		Boundaries: boundaries,
		FetchedAt:  time.Now().UTC(),
	}
	p.current.Store(snap)
	p.mu.Unlock()
	p.ready.Store(true)

	p.publish(ctx, styled)

	p.metrics.EventsRendered.Set(float64(len(styled)))
	p.metrics.BoundariesRendered.Set(float64(len(boundaries)))
	p.metrics.RefreshDuration.Observe(time.Since(start).Seconds())
	p.logger.Info("map refreshed",
		"events", len(styled),
		"boundaries", len(boundaries),
		"duration", time.Since(start),
	)
	return snap
}

// stage stores an interim snapshot: a copy of the current one with update
// applied and the view recomposed.
func (p *Pipeline) stage(update func(*Snapshot)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := *p.current.Load()
	update(&next)
	next.View = p.compose(next.Events, next.Boundaries)
	next.FetchedAt = time.Now().UTC()
	p.current.Store(&next)
}

func (p *Pipeline) compose(styled []domain.StyledEvent, boundaries []domain.PlateBoundary) mapview.MapView {
	// styled events carry any geocoded place
	events := make([]domain.SeismicEvent, len(styled))
	for i, se := range styled {
		events[i] = se.Event
	}
	return mapview.ComposeMapWithBases(
		mapview.BuildEventLayer(events),
		mapview.BuildBoundaryLayer(boundaries),
		p.bases,
	)
}

func (p *Pipeline) publish(ctx context.Context, styled []domain.StyledEvent) {
	if p.publisher == nil || len(styled) == 0 {
		return
	}
	if err := p.publisher.PublishMarkers(ctx, styled); err != nil {
		p.logger.Error("publish markers failed", "error", err, "count", len(styled))
		return
	}
	p.metrics.MarkersPublished.Add(float64(len(styled)))
}

// Run refreshes once, then on every interval until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "interval", p.interval)
	p.Refresh(ctx)

	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	if _, err := s.Every(p.interval).WaitForSchedule().Do(func() {
		p.Refresh(ctx)
	}); err != nil {
		return err
	}

	s.StartAsync()
	p.metrics.SchedulerRunning.Set(1)
	defer p.metrics.SchedulerRunning.Set(0)

	<-ctx.Done()
	s.Stop()
	p.logger.Info("pipeline stopping", "reason", ctx.Err())
	return nil
}
