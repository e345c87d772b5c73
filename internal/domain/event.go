package domain

import "time"

// Coordinates is a GeoJSON position: longitude and latitude in WGS-84
// degrees plus depth in kilometres.
type Coordinates struct {
	Lon   float64 `json:"lon"`
	Lat   float64 `json:"lat"`
	Depth float64 `json:"depth"`
}

// SeismicEvent is a single earthquake as reported by the event feed.
type SeismicEvent struct {
	ID          string      `json:"id,omitempty"`
	Magnitude   float64     `json:"magnitude"`
	DepthKm     float64     `json:"depth_km"`
	Place       string      `json:"place"`
	Coordinates Coordinates `json:"coordinates"`
	Time        time.Time   `json:"time,omitzero"`
	URL         string      `json:"url,omitempty"`
}

// Position is a longitude/latitude pair on a boundary polyline.
type Position struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Polyline is an ordered run of positions.
type Polyline []Position

// PlateBoundary is one feature of the plate-boundary dataset, flattened to
// polylines regardless of its original geometry type.
type PlateBoundary struct {
	Name  string     `json:"name,omitempty"`
	Lines []Polyline `json:"lines"`
}

// StyledEvent pairs an event with the marker style derived from it.
type StyledEvent struct {
	Event      SeismicEvent `json:"event"`
	Style      MarkerStyle  `json:"style"`
	RenderedAt time.Time    `json:"rendered_at"`
}
