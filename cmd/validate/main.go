// Command validate checks an earthquake GeoJSON feed file the way the map
// service would read it: it decodes the collection, counts events per depth
// band, and lists skipped or anomalous records.
//
// Usage:
//
//	go run ./cmd/validate -events internal/adapter/feed/testdata/events.geojson
//
// The exit code is 1 when the file cannot be decoded, or when -strict is set
// and any record was skipped or anomalous.
package main

import (
	"flag"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/couchcryptid/quakemap/internal/adapter/feed"
	"github.com/couchcryptid/quakemap/internal/domain"
)

// phase tracks findings for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// report is the outcome of validating one feed file.
type report struct {
	features  int
	parsed    int
	skipped   int
	bandCount map[string]int // legend label -> events
	phases    []*phase
}

func (r *report) clean() bool {
	for _, p := range r.phases {
		if !p.passed() {
			return false
		}
	}
	return true
}

func main() {
	eventsPath := flag.String("events", "", "path to an earthquake GeoJSON feed")
	strict := flag.Bool("strict", false, "exit non-zero on skipped or anomalous records")
	flag.Parse()

	if *eventsPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	data, err := os.ReadFile(*eventsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read events: %v\n", err)
		os.Exit(1)
	}

	r, err := validate(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	printReport(os.Stdout, r)
	if *strict && !r.clean() {
		os.Exit(1)
	}
}

func validate(data []byte) (*report, error) {
	fc, err := feed.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}

	events, skipped := feed.ParseEvents(fc)
	r := &report{
		features:  len(fc.Features),
		parsed:    len(events),
		skipped:   skipped,
		bandCount: make(map[string]int),
	}

	geometry := &phase{name: "Geometry (point with finite lon/lat)"}
	for i, f := range fc.Features {
		if f.Geometry == nil {
			geometry.errorf("feature %d (%s): missing or invalid geometry", i, displayID(f.ID))
		}
	}
	if skipped > 0 && geometry.passed() {
		geometry.errorf("%d features skipped for non-point or non-finite coordinates", skipped)
	}

	properties := &phase{name: "Properties (mag, place, depth)"}
	colorLabel := make(map[string]string)
	for _, e := range domain.Legend() {
		colorLabel[e.Color] = e.Label
	}
	for _, e := range events {
		r.bandCount[colorLabel[domain.ColorForDepth(e.DepthKm)]]++

		switch {
		case math.IsNaN(e.Magnitude):
			properties.errorf("%s: magnitude is NaN", displayID(e.ID))
		case e.Magnitude < 0:
			properties.errorf("%s: negative magnitude %g renders with zero radius", displayID(e.ID), e.Magnitude)
		}
		if math.IsNaN(e.DepthKm) || math.IsInf(e.DepthKm, 0) {
			properties.errorf("%s: depth %g km is not finite", displayID(e.ID), e.DepthKm)
		}
		if e.Place == "" {
			properties.errorf("%s: empty place", displayID(e.ID))
		}
	}

	r.phases = []*phase{geometry, properties}
	return r, nil
}

func printReport(w io.Writer, r *report) {
	fmt.Fprintln(w, "=== Earthquake Feed Validation ===")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Features: %d total, %d parsed, %d skipped\n", r.features, r.parsed, r.skipped)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Events per depth band (km):")
	for _, e := range domain.Legend() {
		fmt.Fprintf(w, "  %-8s %s  %d\n", e.Label, e.Color, r.bandCount[e.Label])
	}
	fmt.Fprintln(w)

	for _, p := range r.phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[33mWARN (%d findings)\033[0m", len(p.errors))
		}
		fmt.Fprintf(w, "  %-42s %s\n", p.name, status)
	}

	for _, p := range r.phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}
}

func displayID(id string) string {
	if id == "" {
		return "<no id>"
	}
	return id
}
