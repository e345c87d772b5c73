package feed

import (
	"math"
	"time"

	"github.com/twpayne/go-geom"

	"github.com/couchcryptid/quakemap/internal/domain"
)

// ParseEvents converts Point features into seismic events, preserving feed
// order. Features without a point geometry or with a non-finite longitude or
// latitude are skipped; the number skipped is returned alongside.
func ParseEvents(fc *Collection) ([]domain.SeismicEvent, int) {
	if fc == nil {
		return nil, 0
	}

	events := make([]domain.SeismicEvent, 0, len(fc.Features))
	skipped := 0
	for _, f := range fc.Features {
		event, ok := parseEvent(f)
		if !ok {
			skipped++
			continue
		}
		events = append(events, event)
	}
	return events, skipped
}

func parseEvent(f Feature) (domain.SeismicEvent, bool) {
	point, ok := f.Geometry.(*geom.Point)
	if !ok || point == nil {
		return domain.SeismicEvent{}, false
	}
	flat := point.FlatCoords()
	if len(flat) < 2 || !isFinite(flat[0]) || !isFinite(flat[1]) {
		return domain.SeismicEvent{}, false
	}

	var depth float64
	if len(flat) > 2 {
		depth = flat[2]
	}

	event := domain.SeismicEvent{
		ID:        f.ID,
		Magnitude: numberProp(f.Properties, "mag"),
		DepthKm:   depth,
		Place:     stringProp(f.Properties, "place"),
		Coordinates: domain.Coordinates{
			Lon:   flat[0],
			Lat:   flat[1],
			Depth: depth,
		},
		URL: stringProp(f.Properties, "url"),
	}
	if ms := numberProp(f.Properties, "time"); ms > 0 {
		event.Time = time.UnixMilli(int64(ms)).UTC()
	}
	return event, true
}

// ParseBoundaries flattens line and polygon features into plate boundaries.
// Features with any other geometry, or with no usable coordinates, are
// skipped and counted.
func ParseBoundaries(fc *Collection) ([]domain.PlateBoundary, int) {
	if fc == nil {
		return nil, 0
	}

	boundaries := make([]domain.PlateBoundary, 0, len(fc.Features))
	skipped := 0
	for _, f := range fc.Features {
		lines := polylines(f.Geometry)
		if len(lines) == 0 {
			skipped++
			continue
		}
		boundaries = append(boundaries, domain.PlateBoundary{
			Name:  stringProp(f.Properties, "Name"),
			Lines: lines,
		})
	}
	return boundaries, skipped
}

func polylines(g geom.T) []domain.Polyline {
	var out []domain.Polyline
	add := func(coords []geom.Coord) {
		if pl := toPolyline(coords); len(pl) > 0 {
			out = append(out, pl)
		}
	}

	switch g := g.(type) {
	case *geom.LineString:
		add(g.Coords())
	case *geom.MultiLineString:
		for i := 0; i < g.NumLineStrings(); i++ {
			add(g.LineString(i).Coords())
		}
	case *geom.Polygon:
		for i := 0; i < g.NumLinearRings(); i++ {
			add(g.LinearRing(i).Coords())
		}
	case *geom.MultiPolygon:
		for i := 0; i < g.NumPolygons(); i++ {
			p := g.Polygon(i)
			for j := 0; j < p.NumLinearRings(); j++ {
				add(p.LinearRing(j).Coords())
			}
		}
	}
	return out
}

func toPolyline(coords []geom.Coord) domain.Polyline {
	pl := make(domain.Polyline, 0, len(coords))
	for _, c := range coords {
		if len(c) < 2 || !isFinite(c[0]) || !isFinite(c[1]) {
			continue
		}
		pl = append(pl, domain.Position{Lon: c[0], Lat: c[1]})
	}
	if len(pl) < 2 {
		return nil
	}
	return pl
}

func numberProp(props map[string]any, key string) float64 {
	if v, ok := props[key].(float64); ok {
		return v
	}
	return 0
}

func stringProp(props map[string]any, key string) string {
	if v, ok := props[key].(string); ok {
		return v
	}
	return ""
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
