package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/couchcryptid/quakemap/internal/domain"
	"github.com/couchcryptid/quakemap/internal/observability"
)

const (
	feedEvents     = "events"
	feedBoundaries = "boundaries"

	// maxBodyBytes bounds a single feed download. all_month.geojson is ~10 MB.
	maxBodyBytes = 64 << 20
)

var errCircuitOpen = errors.New("circuit breaker open")

// Client fetches the earthquake and plate boundary feeds. Each feed has its
// own circuit breaker so a dead boundary host does not short-circuit events.
type Client struct {
	httpClient    *http.Client
	eventsURL     string
	boundariesURL string
	maxBody       int64
	breakers      map[string]*gobreaker.CircuitBreaker
	metrics       *observability.Metrics
	logger        *slog.Logger
}

// NewClient creates a feed client with the given per-request timeout.
func NewClient(eventsURL, boundariesURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient:    &http.Client{Timeout: timeout},
		eventsURL:     eventsURL,
		boundariesURL: boundariesURL,
		maxBody:       maxBodyBytes,
		breakers: map[string]*gobreaker.CircuitBreaker{
			feedEvents:     newBreaker(feedEvents, logger),
			feedBoundaries: newBreaker(feedBoundaries, logger),
		},
		metrics: metrics,
		logger:  logger,
	}
}

func newBreaker(name string, logger *slog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("feed circuit breaker state change", "feed", name, "from", from.String(), "to", to.String())
		},
	})
}

// FetchEvents downloads and parses the earthquake feed.
func (c *Client) FetchEvents(ctx context.Context) ([]domain.SeismicEvent, error) {
	fc, err := c.fetch(ctx, feedEvents, c.eventsURL)
	if err != nil {
		return nil, err
	}
	events, skipped := ParseEvents(fc)
	c.recordSkipped(feedEvents, skipped)
	return events, nil
}

// FetchBoundaries downloads and parses the plate boundary feed.
func (c *Client) FetchBoundaries(ctx context.Context) ([]domain.PlateBoundary, error) {
	fc, err := c.fetch(ctx, feedBoundaries, c.boundariesURL)
	if err != nil {
		return nil, err
	}
	boundaries, skipped := ParseBoundaries(fc)
	c.recordSkipped(feedBoundaries, skipped)
	return boundaries, nil
}

func (c *Client) fetch(ctx context.Context, feed, url string) (*Collection, error) {
	start := time.Now()
	result, err := c.breakers[feed].Execute(func() (interface{}, error) {
		return c.doRequest(ctx, url)
	})
	c.metrics.FeedFetchDuration.WithLabelValues(feed).Observe(time.Since(start).Seconds())

	if err != nil {
		c.metrics.FeedFetches.WithLabelValues(feed, "error").Inc()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("fetch %s feed: %w: %v", feed, errCircuitOpen, err)
		}
		return nil, fmt.Errorf("fetch %s feed: %w", feed, err)
	}
	c.metrics.FeedFetches.WithLabelValues(feed, "success").Inc()

	fc, ok := result.(*Collection)
	if !ok {
		return nil, fmt.Errorf("fetch %s feed: unexpected result type %T", feed, result)
	}
	c.logger.Debug("feed fetched", "feed", feed, "features", len(fc.Features), "duration", time.Since(start))
	return fc, nil
}

func (c *Client) doRequest(ctx context.Context, url string) (*Collection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("upstream error: status %d: %s", resp.StatusCode, body)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > c.maxBody {
		return nil, fmt.Errorf("feed exceeds %d bytes", c.maxBody)
	}
	return Decode(data)
}

func (c *Client) recordSkipped(feed string, skipped int) {
	if skipped == 0 {
		return
	}
	c.metrics.SkippedFeatures.WithLabelValues(feed).Add(float64(skipped))
	c.logger.Warn("skipped malformed features", "feed", feed, "count", skipped)
}
