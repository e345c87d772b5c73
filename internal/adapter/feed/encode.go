package feed

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/couchcryptid/quakemap/internal/domain"
)

type outCollection struct {
	Type     string       `json:"type"`
	Features []outFeature `json:"features"`
}

type outFeature struct {
	Type       string          `json:"type"`
	ID         string          `json:"id,omitempty"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

// EncodeStyledEvents writes styled events as a GeoJSON FeatureCollection.
// Each feature keeps the source properties (mag, place, depth, time, url)
// and adds the marker style under "style" and the popup text under "popup".
func EncodeStyledEvents(events []domain.StyledEvent) ([]byte, error) {
	out := outCollection{Type: "FeatureCollection", Features: make([]outFeature, 0, len(events))}
	for _, se := range events {
		e := se.Event
		g, err := geojson.Marshal(geom.NewPointFlat(geom.XYZ, []float64{e.Coordinates.Lon, e.Coordinates.Lat, e.Coordinates.Depth}))
		if err != nil {
			return nil, fmt.Errorf("encode event %s: %w", e.ID, err)
		}
		place, mag, depth := domain.PopupLines(e)
		props := map[string]any{
			"mag":   e.Magnitude,
			"place": e.Place,
			"depth": e.DepthKm,
			"style": se.Style,
			"popup": map[string]string{"location": place, "magnitude": mag, "depth": depth},
		}
		if !e.Time.IsZero() {
			props["time"] = e.Time.Format(time.RFC3339)
		}
		if e.URL != "" {
			props["url"] = e.URL
		}
		out.Features = append(out.Features, outFeature{Type: "Feature", ID: e.ID, Geometry: g, Properties: props})
	}
	return json.Marshal(out)
}

// EncodeBoundaries writes plate boundaries as MultiLineString features.
func EncodeBoundaries(boundaries []domain.PlateBoundary) ([]byte, error) {
	out := outCollection{Type: "FeatureCollection", Features: make([]outFeature, 0, len(boundaries))}
	for _, b := range boundaries {
		var flat []float64
		ends := make([]int, 0, len(b.Lines))
		for _, line := range b.Lines {
			for _, p := range line {
				flat = append(flat, p.Lon, p.Lat)
			}
			ends = append(ends, len(flat))
		}
		g, err := geojson.Marshal(geom.NewMultiLineStringFlat(geom.XY, flat, ends))
		if err != nil {
			return nil, fmt.Errorf("encode boundary %s: %w", b.Name, err)
		}
		out.Features = append(out.Features, outFeature{
			Type:       "Feature",
			Geometry:   g,
			Properties: map[string]any{"Name": b.Name},
		})
	}
	return json.Marshal(out)
}
