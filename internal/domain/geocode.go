package domain

import (
	"context"
	"log/slog"
)

// EnrichPlace fills an empty Place by reverse geocoding the event's
// coordinates. The event is returned unchanged when geocoder is nil, the
// place is already set, or the lookup fails or comes back empty.
func EnrichPlace(ctx context.Context, event SeismicEvent, geocoder Geocoder, logger *slog.Logger) SeismicEvent {
	if geocoder == nil || event.Place != "" {
		return event
	}

	result, err := geocoder.ReverseGeocode(ctx, event.Coordinates.Lat, event.Coordinates.Lon)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"event_id", event.ID,
			"lat", event.Coordinates.Lat,
			"lon", event.Coordinates.Lon,
			"error", err,
		)
		return event
	}
	if result.FormattedAddress != "" {
		event.Place = result.FormattedAddress
	}
	return event
}
