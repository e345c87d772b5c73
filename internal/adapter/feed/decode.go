package feed

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// Collection is a decoded GeoJSON FeatureCollection.
type Collection struct {
	Features []Feature
}

// Feature is a decoded GeoJSON feature. Geometry is nil when the feature has
// a null or undecodable geometry; the parsers skip such features.
type Feature struct {
	ID         string
	Geometry   geom.T
	Properties map[string]any
}

type rawCollection struct {
	Type     string       `json:"type"`
	Features []rawFeature `json:"features"`
}

type rawFeature struct {
	ID         json.RawMessage `json:"id"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

// Decode parses a GeoJSON FeatureCollection document. Geometry errors are
// confined to the offending feature; only an unreadable document or a
// non-FeatureCollection root is an error.
func Decode(data []byte) (*Collection, error) {
	var raw rawCollection
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode feature collection: %w", err)
	}
	if raw.Type != "FeatureCollection" {
		return nil, fmt.Errorf("decode feature collection: unexpected type %q", raw.Type)
	}

	fc := &Collection{Features: make([]Feature, 0, len(raw.Features))}
	for _, rf := range raw.Features {
		f := Feature{
			ID:         decodeID(rf.ID),
			Properties: rf.Properties,
		}
		if len(rf.Geometry) > 0 && !bytes.Equal(rf.Geometry, []byte("null")) {
			var g geom.T
			if err := geojson.Unmarshal(rf.Geometry, &g); err == nil {
				f.Geometry = g
			}
		}
		fc.Features = append(fc.Features, f)
	}
	return fc, nil
}

// decodeID accepts string and numeric feature ids.
func decodeID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
