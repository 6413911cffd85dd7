package spatial

import "github.com/paulmach/orb"

// Lines flattens the line parts of geom, descending into collections.
// Points and polygons are skipped.
func Lines(geom orb.Geometry) []orb.LineString {
	var out []orb.LineString
	var walk func(g orb.Geometry)
	walk = func(g orb.Geometry) {
		switch v := g.(type) {
		case orb.LineString:
			out = append(out, v)
		case orb.MultiLineString:
			out = append(out, v...)
		case orb.Collection:
			for _, child := range v {
				walk(child)
			}
		}
	}
	walk(geom)
	return out
}
