// Package mapview composes earthquake and plate boundary data into a Leaflet
// map: styled marker layers, boundary paths, base tile layers, a depth legend
// and a layer control. A MapView is plain data; Render turns it into HTML.
package mapview

import (
	"fmt"
	"html"

	"github.com/couchcryptid/quakemap/internal/domain"
)

// Boundary line style.
const (
	BoundaryColor  = "#ffff00"
	BoundaryWeight = 2
)

// LatLng is a Leaflet coordinate pair, latitude first.
type LatLng [2]float64

// Marker is a circle marker with a popup.
type Marker struct {
	Position LatLng             `json:"position"`
	Style    domain.MarkerStyle `json:"style"`
	Popup    string             `json:"popup"`
}

// PathStyle is the stroke applied to every path in a layer.
type PathStyle struct {
	Color  string  `json:"color"`
	Weight float64 `json:"weight"`
}

// Layer is an overlay. Event layers carry markers; boundary layers carry
// paths drawn with a single PathStyle.
type Layer struct {
	Name      string     `json:"name"`
	Markers   []Marker   `json:"markers"`
	Paths     [][]LatLng `json:"paths"`
	PathStyle *PathStyle `json:"pathStyle,omitempty"`
}

// BuildEventLayer places one styled circle marker per event, in input order.
func BuildEventLayer(events []domain.SeismicEvent) Layer {
	markers := make([]Marker, 0, len(events))
	for _, e := range events {
		markers = append(markers, Marker{
			Position: LatLng{e.Coordinates.Lat, e.Coordinates.Lon},
			Style:    domain.StyleForEvent(e),
			Popup:    popupHTML(e),
		})
	}
	return Layer{Name: EarthquakesOverlay, Markers: markers, Paths: [][]LatLng{}}
}

// BuildBoundaryLayer draws each boundary polyline with the fixed boundary
// style. A nil slice, as left by a failed fetch, yields an empty layer.
func BuildBoundaryLayer(boundaries []domain.PlateBoundary) Layer {
	paths := make([][]LatLng, 0, len(boundaries))
	for _, b := range boundaries {
		for _, line := range b.Lines {
			path := make([]LatLng, len(line))
			for i, p := range line {
				path[i] = LatLng{p.Lat, p.Lon}
			}
			paths = append(paths, path)
		}
	}
	return Layer{
		Name:      PlatesOverlay,
		Markers:   []Marker{},
		Paths:     paths,
		PathStyle: &PathStyle{Color: BoundaryColor, Weight: BoundaryWeight},
	}
}

func popupHTML(e domain.SeismicEvent) string {
	place, mag, depth := domain.PopupLines(e)
	return fmt.Sprintf("<h3>Location: %s</h3><hr><p><b>Magnitude</b>: %s</p><p><b>Depth:</b> %s</p>",
		html.EscapeString(place), mag, depth)
}
