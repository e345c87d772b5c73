package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/quakemap/internal/domain"
)

// EventTransformer turns parsed feed events into styled markers with optional
// reverse-geocoding enrichment for events that arrive without a place.
type EventTransformer struct {
	geocoder domain.Geocoder
	logger   *slog.Logger
}

// NewTransformer creates an EventTransformer. Pass a nil geocoder to disable
// geocoding enrichment.
func NewTransformer(geocoder domain.Geocoder, logger *slog.Logger) *EventTransformer {
	return &EventTransformer{
		geocoder: geocoder,
		logger:   logger,
	}
}

// Transform enriches and styles events, preserving feed order.
func (t *EventTransformer) Transform(ctx context.Context, events []domain.SeismicEvent) []domain.StyledEvent {
	if t.geocoder != nil {
		enriched := make([]domain.SeismicEvent, len(events))
		for i, e := range events {
			if ctx.Err() != nil {
				// remaining events keep their feed place
				copy(enriched[i:], events[i:])
				break
			}
			enriched[i] = domain.EnrichPlace(ctx, e, t.geocoder, t.logger)
		}
		events = enriched
	}
	return domain.StyleEvents(events)
}
