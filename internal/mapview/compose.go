package mapview

import (
	"strings"

	"github.com/couchcryptid/quakemap/internal/domain"
)

// Layer names shown in the layer control.
const (
	GreyscaleBase   = "Greyscale Map"
	ImageryBase     = "Imagery Map"
	TopographicBase = "Topographic Map"

	EarthquakesOverlay = "Earthquakes"
	PlatesOverlay      = "Tectonic Plates"
)

// BaseLayer is a raster tile layer. URL uses Leaflet's {s}/{z}/{x}/{y}
// placeholders.
type BaseLayer struct {
	Key         string   `json:"key"`
	Name        string   `json:"name"`
	URL         string   `json:"url"`
	Attribution string   `json:"attribution"`
	MaxZoom     int      `json:"maxZoom,omitempty"`
	Subdomains  []string `json:"subdomains,omitempty"`
}

// DefaultBaseLayers returns the greyscale, imagery and topographic layers
// pointing at their public tile servers.
func DefaultBaseLayers() []BaseLayer {
	return []BaseLayer{
		{
			Key:         "greyscale",
			Name:        GreyscaleBase,
			URL:         "https://tile.openstreetmap.org/{z}/{x}/{y}.png",
			Attribution: `&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors`,
			MaxZoom:     19,
		},
		{
			Key:         "imagery",
			Name:        ImageryBase,
			URL:         "https://server.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}",
			Attribution: "Tiles &copy; Esri &mdash; Source: Esri, i-cubed, USDA, USGS, AEX, GeoEye, Getmapping, Aerogrid, IGN, IGP, UPR-EGP, and the GIS User Community",
		},
		{
			Key:         "topographic",
			Name:        TopographicBase,
			URL:         "https://{s}.tile.opentopomap.org/{z}/{x}/{y}.png",
			Attribution: `Map data: &copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors, <a href="http://viewfinderpanoramas.org">SRTM</a> | Map style: &copy; <a href="https://opentopomap.org">OpenTopoMap</a> (<a href="https://creativecommons.org/licenses/by-sa/3.0/">CC-BY-SA</a>)`,
			MaxZoom:     17,
			Subdomains:  []string{"a", "b", "c"},
		},
	}
}

// ProxiedBaseLayers rewrites base layer URLs to go through the tile proxy
// mounted at prefix, e.g. "/tiles" gives "/tiles/imagery/{z}/{x}/{y}".
func ProxiedBaseLayers(bases []BaseLayer, prefix string) []BaseLayer {
	out := make([]BaseLayer, len(bases))
	for i, b := range bases {
		b.URL = strings.TrimRight(prefix, "/") + "/" + b.Key + "/{z}/{x}/{y}"
		b.Subdomains = nil
		out[i] = b
	}
	return out
}

// Control is the layer toggle widget.
type Control struct {
	Collapsed bool `json:"collapsed"`
}

// Legend is the depth legend control.
type Legend struct {
	Position string               `json:"position"`
	Title    string               `json:"title"`
	Entries  []domain.LegendEntry `json:"entries"`
}

// MapView is everything the page needs to build the map.
type MapView struct {
	Center     LatLng      `json:"center"`
	Zoom       int         `json:"zoom"`
	BaseLayers []BaseLayer `json:"baseLayers"`
	ActiveBase string      `json:"activeBase"`
	Overlays   []Layer     `json:"overlays"`
	Legend     Legend      `json:"legend"`
	Control    Control     `json:"control"`
}

// Initial viewport: central North America.
var (
	defaultCenter = LatLng{52.245, -104.847}
	defaultZoom   = 4
)

// ComposeMap assembles the default base layers with the two overlays.
func ComposeMap(eventLayer, boundaryLayer Layer) MapView {
	return ComposeMapWithBases(eventLayer, boundaryLayer, DefaultBaseLayers())
}

// ComposeMapWithBases is ComposeMap with caller-supplied base layers. The
// first base layer is the one shown initially; both overlays start visible.
func ComposeMapWithBases(eventLayer, boundaryLayer Layer, bases []BaseLayer) MapView {
	active := ""
	if len(bases) > 0 {
		active = bases[0].Name
	}
	return MapView{
		Center:     defaultCenter,
		Zoom:       defaultZoom,
		BaseLayers: bases,
		ActiveBase: active,
		Overlays:   []Layer{withEmptySlices(eventLayer), withEmptySlices(boundaryLayer)},
		Legend: Legend{
			Position: "bottomright",
			Title:    "Depth (km)",
			Entries:  domain.Legend(),
		},
		Control: Control{Collapsed: false},
	}
}

// withEmptySlices makes nil marker and path lists encode as [] rather than null.
func withEmptySlices(l Layer) Layer {
	if l.Markers == nil {
		l.Markers = []Marker{}
	}
	if l.Paths == nil {
		l.Paths = [][]LatLng{}
	}
	return l
}

// Overlay returns the overlay with the given name.
func (v MapView) Overlay(name string) (Layer, bool) {
	for _, l := range v.Overlays {
		if l.Name == name {
			return l, true
		}
	}
	return Layer{}, false
}
