package masking

import (
	"math"
	"sort"

	"github.com/paulmach/orb"

	"github.com/jengzang/lorg-backend-go/internal/spatial"
)

// Zone is a circular privacy zone
type Zone struct {
	Center       orb.Point
	RadiusMeters float64
}

// Contains reports whether p lies inside the zone
func (z Zone) Contains(p orb.Point) bool {
	q := spatial.NewProjector(z.Center).Project(p)
	return q[0]*q[0]+q[1]*q[1] <= z.RadiusMeters*z.RadiusMeters
}

func (z Zone) valid() bool {
	return z.RadiusMeters > 0 && !math.IsInf(z.RadiusMeters, 0) &&
		!math.IsNaN(z.Center.Lon()) && !math.IsNaN(z.Center.Lat())
}

// Masker removes the parts of a track that fall inside privacy zones.
// A nil result means nothing of the track is left.
type Masker interface {
	Mask(geom orb.Geometry, zones []Zone) orb.Geometry
}

// ZoneMasker clips every segment against the zone circles in a local planar
// frame around each zone and splits the track where it passes through one.
type ZoneMasker struct{}

// Mask returns the line parts of geom outside every zone as a
// MultiLineString, or nil when none remain
func (ZoneMasker) Mask(geom orb.Geometry, zones []Zone) orb.Geometry {
	active := make([]Zone, 0, len(zones))
	for _, z := range zones {
		if z.valid() {
			active = append(active, z)
		}
	}

	var out orb.MultiLineString
	for _, ls := range spatial.Lines(geom) {
		if len(ls) < 2 {
			continue
		}
		if len(active) == 0 {
			out = append(out, ls)
			continue
		}
		out = append(out, clipLine(ls, active)...)
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

type interval [2]float64

// minInterval drops slivers produced by tangent or grazing intersections
const minInterval = 1e-9

func clipLine(ls orb.LineString, zones []Zone) []orb.LineString {
	var out []orb.LineString
	var run orb.LineString
	flush := func() {
		if len(run) >= 2 {
			out = append(out, run)
		}
		run = nil
	}

	for i := 0; i+1 < len(ls); i++ {
		a, b := ls[i], ls[i+1]
		keep := outside(a, b, zones)
		if len(keep) == 0 {
			flush()
			continue
		}
		for _, iv := range keep {
			if iv[0] > 0 || len(run) == 0 {
				flush()
				run = orb.LineString{lerp(a, b, iv[0])}
			}
			run = append(run, lerp(a, b, iv[1]))
			if iv[1] < 1 {
				flush()
			}
		}
	}
	flush()
	return out
}

// outside returns the parameter ranges of a->b that lie outside all zones
func outside(a, b orb.Point, zones []Zone) []interval {
	var inside []interval
	for _, z := range zones {
		if iv, ok := insideCircle(a, b, z); ok {
			inside = append(inside, iv)
		}
	}
	if len(inside) == 0 {
		return []interval{{0, 1}}
	}

	sort.Slice(inside, func(i, j int) bool { return inside[i][0] < inside[j][0] })

	var keep []interval
	cursor := 0.0
	for _, iv := range inside {
		if iv[0]-cursor > minInterval {
			keep = append(keep, interval{cursor, iv[0]})
		}
		if iv[1] > cursor {
			cursor = iv[1]
		}
	}
	if 1-cursor > minInterval {
		keep = append(keep, interval{cursor, 1})
	}
	return keep
}

// insideCircle solves |a + t(b-a)|^2 = r^2 in the zone's planar frame
func insideCircle(a, b orb.Point, z Zone) (interval, bool) {
	proj := spatial.NewProjector(z.Center)
	pa, pb := proj.Project(a), proj.Project(b)
	dx, dy := pb[0]-pa[0], pb[1]-pa[1]
	r2 := z.RadiusMeters * z.RadiusMeters

	qa := dx*dx + dy*dy
	qc := pa[0]*pa[0] + pa[1]*pa[1] - r2
	if qa == 0 {
		if qc <= 0 {
			return interval{0, 1}, true
		}
		return interval{}, false
	}

	qb := 2 * (pa[0]*dx + pa[1]*dy)
	disc := qb*qb - 4*qa*qc
	if disc <= 0 {
		return interval{}, false
	}

	sq := math.Sqrt(disc)
	t0 := math.Max((-qb-sq)/(2*qa), 0)
	t1 := math.Min((-qb+sq)/(2*qa), 1)
	if t1-t0 <= minInterval {
		return interval{}, false
	}
	return interval{t0, t1}, true
}

func lerp(a, b orb.Point, t float64) orb.Point {
	switch t {
	case 0:
		return a
	case 1:
		return b
	}
	return orb.Point{a[0] + (b[0]-a[0])*t, a[1] + (b[1]-a[1])*t}
}
