package tiles

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/couchcryptid/quakemap/internal/mapview"
	"github.com/couchcryptid/quakemap/internal/observability"
)

// ErrUnknownLayer is returned for a layer key with no upstream.
var ErrUnknownLayer = errors.New("unknown tile layer")

const maxZoom = 22

// Proxy serves base layer tiles from upstream tile servers through a cache.
// Upstream requests are rate limited across all layers.
type Proxy struct {
	upstreams map[string]string // layer key -> URL template
	client    *http.Client
	cache     *Cache
	limiter   *rate.Limiter
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewProxy creates a tile proxy for the given base layers. ratePerSecond
// caps upstream fetches; cache may be nil.
func NewProxy(bases []mapview.BaseLayer, cache *Cache, ratePerSecond float64, metrics *observability.Metrics, logger *slog.Logger) *Proxy {
	upstreams := make(map[string]string, len(bases))
	for _, b := range bases {
		upstreams[b.Key] = b.URL
	}
	burst := int(ratePerSecond)
	if burst < 1 {
		burst = 1
	}
	return &Proxy{
		upstreams: upstreams,
		client:    &http.Client{Timeout: 30 * time.Second},
		cache:     cache,
		limiter:   rate.NewLimiter(rate.Limit(ratePerSecond), burst),
		metrics:   metrics,
		logger:    logger,
	}
}

// Fetch returns a tile body and content type, from cache when possible.
func (p *Proxy) Fetch(ctx context.Context, layer string, z, x, y int) ([]byte, string, error) {
	tmpl, ok := p.upstreams[layer]
	if !ok {
		return nil, "", ErrUnknownLayer
	}

	if p.cache != nil {
		if data, ct, ok := p.cache.Get(layer, z, x, y); ok {
			p.metrics.TileRequests.WithLabelValues(layer, "hit").Inc()
			return data, ct, nil
		}
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, "", fmt.Errorf("tile rate limit: %w", err)
	}

	url := expandTemplate(tmpl, z, x, y)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create tile request: %w", err)
	}
	req.Header.Set("User-Agent", "quakemap/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		p.metrics.TileRequests.WithLabelValues(layer, "error").Inc()
		return nil, "", fmt.Errorf("fetch tile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		p.metrics.TileRequests.WithLabelValues(layer, "error").Inc()
		return nil, "", fmt.Errorf("tile upstream returned %d for %s", resp.StatusCode, url)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		p.metrics.TileRequests.WithLabelValues(layer, "error").Inc()
		return nil, "", fmt.Errorf("read tile body: %w", err)
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/octet-stream"
	}
	if p.cache != nil {
		p.cache.Put(layer, z, x, y, data, ct)
	}
	p.metrics.TileRequests.WithLabelValues(layer, "miss").Inc()
	p.logger.Debug("fetched tile", "layer", layer, "url", url, "bytes", len(data))
	return data, ct, nil
}

// ServeHTTP handles GET /{layer}/{z}/{x}/{y}. The y segment may carry an
// image extension, which is ignored.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	layer := r.PathValue("layer")
	z, x, y, err := parseTileCoords(r.PathValue("z"), r.PathValue("x"), r.PathValue("y"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	data, ct, err := p.Fetch(r.Context(), layer, z, x, y)
	if errors.Is(err, ErrUnknownLayer) {
		http.Error(w, "unknown layer", http.StatusNotFound)
		return
	}
	if err != nil {
		p.logger.Error("tile fetch failed", "layer", layer, "z", z, "x", x, "y", y, "error", err)
		http.Error(w, "upstream fetch failed", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", ct)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(data)
}

func parseTileCoords(zs, xs, ys string) (int, int, int, error) {
	if i := strings.IndexByte(ys, '.'); i >= 0 {
		ys = ys[:i]
	}
	z, errZ := strconv.Atoi(zs)
	x, errX := strconv.Atoi(xs)
	y, errY := strconv.Atoi(ys)
	if errZ != nil || errX != nil || errY != nil {
		return 0, 0, 0, errors.New("invalid tile path")
	}
	if z < 0 || z > maxZoom {
		return 0, 0, 0, fmt.Errorf("zoom %d out of range", z)
	}
	n := 1 << z
	if x < 0 || x >= n || y < 0 || y >= n {
		return 0, 0, 0, fmt.Errorf("tile %d/%d out of range at zoom %d", x, y, z)
	}
	return z, x, y, nil
}

// subdomains fill {s}, picked by tile position.
var subdomains = []string{"a", "b", "c"}

func expandTemplate(tmpl string, z, x, y int) string {
	return strings.NewReplacer(
		"{s}", subdomains[(x+y)%len(subdomains)],
		"{z}", strconv.Itoa(z),
		"{x}", strconv.Itoa(x),
		"{y}", strconv.Itoa(y),
	).Replace(tmpl)
}
