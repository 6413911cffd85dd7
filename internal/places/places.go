package places

import (
	"context"
	"fmt"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/jengzang/lorg-backend-go/internal/spatial"
)

// DefaultCountries are the countries with loaded boundary data
var DefaultCountries = []string{"US", "CA", "GB"}

// Boundary is an administrative area a track can unlock
type Boundary struct {
	ID          int64
	PlaceType   string
	Name        string
	CountryCode string
	Geometry    orb.Geometry // orb.Polygon or orb.MultiPolygon
}

// Source returns the boundaries whose bounding box overlaps bound
type Source interface {
	Candidates(ctx context.Context, countries []string, bound orb.Bound) ([]Boundary, error)
}

// Matcher finds the boundaries a track passes through
type Matcher interface {
	Match(ctx context.Context, track orb.Geometry) ([]Boundary, error)
}

// BoundaryMatcher filters Source candidates with planar polygon tests
type BoundaryMatcher struct {
	source    Source
	countries []string
}

// NewBoundaryMatcher creates a matcher over source restricted to countries.
// An empty country list falls back to DefaultCountries.
func NewBoundaryMatcher(source Source, countries []string) *BoundaryMatcher {
	if len(countries) == 0 {
		countries = DefaultCountries
	}
	return &BoundaryMatcher{source: source, countries: countries}
}

// Match returns the intersected boundaries ordered by id
func (m *BoundaryMatcher) Match(ctx context.Context, track orb.Geometry) ([]Boundary, error) {
	var lines []orb.LineString
	for _, ls := range spatial.Lines(track) {
		if len(ls) > 0 {
			lines = append(lines, ls)
		}
	}
	if len(lines) == 0 {
		return nil, nil
	}

	bound := lines[0].Bound()
	for _, ls := range lines[1:] {
		bound = bound.Union(ls.Bound())
	}

	candidates, err := m.source.Candidates(ctx, m.countries, bound)
	if err != nil {
		return nil, fmt.Errorf("failed to load place candidates: %w", err)
	}

	var hits []Boundary
	for _, b := range candidates {
		if Intersects(b.Geometry, lines) {
			hits = append(hits, b)
		}
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].ID < hits[j].ID })
	return hits, nil
}

// Intersects reports whether any line touches the polygonal area. A line
// counts when one of its vertices is inside or one of its segments crosses
// a ring edge.
func Intersects(area orb.Geometry, lines []orb.LineString) bool {
	var polys []orb.Polygon
	switch g := area.(type) {
	case orb.Polygon:
		polys = []orb.Polygon{g}
	case orb.MultiPolygon:
		polys = g
	default:
		return false
	}

	for _, poly := range polys {
		if len(poly) == 0 {
			continue
		}
		pb := poly.Bound()
		for _, ls := range lines {
			if !pb.Intersects(ls.Bound()) {
				continue
			}
			if lineTouchesPolygon(ls, poly) {
				return true
			}
		}
	}
	return false
}

func lineTouchesPolygon(ls orb.LineString, poly orb.Polygon) bool {
	for _, p := range ls {
		if planar.PolygonContains(poly, p) {
			return true
		}
	}
	for i := 0; i+1 < len(ls); i++ {
		for _, ring := range poly {
			for j := 0; j+1 < len(ring); j++ {
				if segmentsCross(ls[i], ls[i+1], ring[j], ring[j+1]) {
					return true
				}
			}
		}
	}
	return false
}

func orientation(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

func segmentsCross(p1, p2, q1, q2 orb.Point) bool {
	d1 := orientation(q1, q2, p1)
	d2 := orientation(q1, q2, p2)
	d3 := orientation(p1, p2, q1)
	d4 := orientation(p1, p2, q2)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}
