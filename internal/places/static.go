package places

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// StaticSource serves boundaries held in memory, e.g. loaded from a GeoJSON
// file for tests and offline replays
type StaticSource []Boundary

// Candidates returns the boundaries of the given countries whose bounding
// box overlaps bound
func (s StaticSource) Candidates(ctx context.Context, countries []string, bound orb.Bound) ([]Boundary, error) {
	allowed := make(map[string]bool, len(countries))
	for _, c := range countries {
		allowed[c] = true
	}

	var out []Boundary
	for _, b := range s {
		if !allowed[b.CountryCode] || b.Geometry == nil {
			continue
		}
		if b.Geometry.Bound().Intersects(bound) {
			out = append(out, b)
		}
	}
	return out, nil
}

// ParseFeatureCollection reads boundaries from a GeoJSON FeatureCollection.
// Every feature needs a Polygon or MultiPolygon geometry and a name property.
func ParseFeatureCollection(data []byte) ([]Boundary, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse boundaries: %w", err)
	}

	out := make([]Boundary, 0, len(fc.Features))
	for i, f := range fc.Features {
		switch f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
		default:
			return nil, fmt.Errorf("feature %d: unsupported geometry %T", i, f.Geometry)
		}

		name, _ := f.Properties["name"].(string)
		if name == "" {
			return nil, fmt.Errorf("feature %d: missing name", i)
		}
		placeType, _ := f.Properties["place_type"].(string)
		if placeType == "" {
			placeType = "place"
		}
		country, _ := f.Properties["country_code"].(string)

		id := int64(i + 1)
		if v, ok := f.Properties["id"].(float64); ok {
			id = int64(v)
		}

		out = append(out, Boundary{
			ID:          id,
			Name:        name,
			PlaceType:   placeType,
			CountryCode: country,
			Geometry:    f.Geometry,
		})
	}
	return out, nil
}
