package domain

import (
	"fmt"
	"math"
)

// RadiusScale converts magnitude to marker radius in metres.
const RadiusScale = 15000

// DepthBand maps every depth strictly greater than LowerBoundKm (up to the
// next band) to Color. The lowest band has LowerBoundKm = -Inf.
type DepthBand struct {
	LowerBoundKm float64
	Color        string
}

// DepthBands is ordered by descending lower bound. ColorForDepth walks it
// top-down and stops at the first band the depth exceeds.
var DepthBands = []DepthBand{
	{LowerBoundKm: 90, Color: "#ff0000"},
	{LowerBoundKm: 70, Color: "#ff8000"},
	{LowerBoundKm: 50, Color: "#ffbf00"},
	{LowerBoundKm: 30, Color: "#ffff00"},
	{LowerBoundKm: 10, Color: "#bfff00"},
	{LowerBoundKm: math.Inf(-1), Color: "#00ff00"},
}

// MarkerStyle is the circle style applied to an event marker.
type MarkerStyle struct {
	Radius      float64 `json:"radius"`
	FillColor   string  `json:"fillColor"`
	FillOpacity float64 `json:"fillOpacity"`
	Stroke      bool    `json:"stroke"`
	Weight      float64 `json:"weight"`
}

// LegendEntry is one swatch of the depth legend.
type LegendEntry struct {
	Color string `json:"color"`
	Label string `json:"label"`
}

// ColorForDepth returns the fill color for a depth in kilometres. Depths
// exactly on a threshold fall into the shallower band. NaN compares false
// against every bound and gets the shallowest color.
func ColorForDepth(depthKm float64) string {
	for _, b := range DepthBands {
		if depthKm > b.LowerBoundKm {
			return b.Color
		}
	}
	return DepthBands[len(DepthBands)-1].Color
}

// StyleForEvent derives the marker style for an event. Negative or NaN
// magnitudes yield a zero radius.
func StyleForEvent(event SeismicEvent) MarkerStyle {
	radius := event.Magnitude * RadiusScale
	if !(radius > 0) {
		radius = 0
	}
	return MarkerStyle{
		Radius:      radius,
		FillColor:   ColorForDepth(event.DepthKm),
		FillOpacity: 1,
		Stroke:      true,
		Weight:      1,
	}
}

// StyleEvents styles each event in order and stamps the batch with the
// current time.
func StyleEvents(events []SeismicEvent) []StyledEvent {
	now := clock.Now().UTC()
	out := make([]StyledEvent, len(events))
	for i, e := range events {
		out[i] = StyledEvent{Event: e, Style: StyleForEvent(e), RenderedAt: now}
	}
	return out
}

// Legend returns one entry per depth band, shallowest first. The first band
// is labelled "≤<threshold>" and the last "<threshold>+" so every depth has a
// swatch. Colors are sampled one kilometre above each threshold via
// ColorForDepth.
func Legend() []LegendEntry {
	n := len(DepthBands)
	entries := make([]LegendEntry, 0, n)
	for i := n - 1; i >= 0; i-- {
		lb := DepthBands[i].LowerBoundKm
		var label string
		switch {
		case math.IsInf(lb, -1):
			label = fmt.Sprintf("≤%g", DepthBands[i-1].LowerBoundKm)
		case i == 0:
			label = fmt.Sprintf("%g+", lb)
		default:
			label = fmt.Sprintf("%g–%g", lb, DepthBands[i-1].LowerBoundKm)
		}
		entries = append(entries, LegendEntry{Color: ColorForDepth(lb + 1), Label: label})
	}
	return entries
}

// PopupLines returns the popup text for an event: place, magnitude, depth.
func PopupLines(event SeismicEvent) (place, magnitude, depth string) {
	return event.Place, fmt.Sprintf("%g", event.Magnitude), fmt.Sprintf("%g", event.DepthKm)
}
