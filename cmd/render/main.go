// Command render draws a static earthquake map from local GeoJSON files, the
// same page the service serves at "/" but without any network fetch.
//
// Usage:
//
//	go run ./cmd/render \
//	  -events internal/adapter/feed/testdata/events.geojson \
//	  -boundaries internal/adapter/feed/testdata/boundaries.json \
//	  -out map.html
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/couchcryptid/quakemap/internal/adapter/feed"
	"github.com/couchcryptid/quakemap/internal/domain"
	"github.com/couchcryptid/quakemap/internal/mapview"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	eventsPath := flag.String("events", "", "path to an earthquake GeoJSON feed")
	boundariesPath := flag.String("boundaries", "", "path to a plate boundary GeoJSON file (optional)")
	outPath := flag.String("out", "", "output HTML path (default stdout)")
	title := flag.String("title", mapview.DefaultTitle, "page title")
	flag.Parse()

	if *eventsPath == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -events")
	}

	events, skipped, err := loadEvents(*eventsPath)
	if err != nil {
		return err
	}
	log.Printf("events: %d parsed, %d skipped", len(events), skipped)

	var boundaries []domain.PlateBoundary
	if *boundariesPath != "" {
		var bSkipped int
		boundaries, bSkipped, err = loadBoundaries(*boundariesPath)
		if err != nil {
			// a missing boundary file leaves the plates layer empty
			log.Printf("boundaries: %v", err)
		} else {
			log.Printf("boundaries: %d parsed, %d skipped", len(boundaries), bSkipped)
		}
	}

	view := mapview.ComposeMap(mapview.BuildEventLayer(events), mapview.BuildBoundaryLayer(boundaries))

	var w io.Writer = os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}
	return mapview.RenderTitled(w, *title, view)
}

func loadEvents(path string) ([]domain.SeismicEvent, int, error) {
	fc, err := decodeFile(path)
	if err != nil {
		return nil, 0, err
	}
	events, skipped := feed.ParseEvents(fc)
	return events, skipped, nil
}

func loadBoundaries(path string) ([]domain.PlateBoundary, int, error) {
	fc, err := decodeFile(path)
	if err != nil {
		return nil, 0, err
	}
	boundaries, skipped := feed.ParseBoundaries(fc)
	return boundaries, skipped, nil
}

func decodeFile(path string) (*feed.Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	fc, err := feed.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return fc, nil
}
