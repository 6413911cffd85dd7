package spatial

import (
	"math"

	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
)

// Constants
const (
	EarthRadiusMeters  = 6371000.0 // Earth's mean radius in meters
	MetersPerDegreeLat = 111320.0  // Meters per degree of latitude (and of longitude at the equator)

	minLonFactor = 0.0001
)

// HaversineMeters calculates the great-circle distance between two (lon, lat) points in meters.
// s2 computes the central angle with the haversine formula, so non-finite
// inputs come back as non-finite output and callers must guard.
func HaversineMeters(a, b orb.Point) float64 {
	p1 := s2.LatLngFromDegrees(a.Lat(), a.Lon())
	p2 := s2.LatLngFromDegrees(b.Lat(), b.Lon())
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

// PathLength calculates the total haversine length of a line in meters
func PathLength(ls orb.LineString) float64 {
	var total float64
	for i := 1; i < len(ls); i++ {
		total += HaversineMeters(ls[i-1], ls[i])
	}
	return total
}

// LonMetersPerDegree returns meters per degree of longitude at the given latitude.
// The cosine factor is clamped so the projection stays usable near the poles.
func LonMetersPerDegree(lat float64) float64 {
	return math.Max(math.Cos(lat*math.Pi/180), minLonFactor) * MetersPerDegreeLat
}

// Projector maps WGS84 points onto a local planar frame in meters
type Projector struct {
	origin    orb.Point
	lonFactor float64
}

// NewProjector creates a projector centered on origin
func NewProjector(origin orb.Point) Projector {
	return Projector{
		origin:    origin,
		lonFactor: LonMetersPerDegree(origin.Lat()),
	}
}

// Project converts a point to planar meters relative to the origin
func (p Projector) Project(pt orb.Point) orb.Point {
	return orb.Point{
		(pt.Lon() - p.origin.Lon()) * p.lonFactor,
		(pt.Lat() - p.origin.Lat()) * MetersPerDegreeLat,
	}
}

// MetersToDegrees converts a length in meters to an approximate length in degrees
func MetersToDegrees(m float64) float64 {
	return m / MetersPerDegreeLat
}
