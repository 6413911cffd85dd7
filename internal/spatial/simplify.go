package spatial

import (
	"math"

	"github.com/paulmach/orb"
)

// SimplifyLine simplifies a line using the Ramer-Douglas-Peucker algorithm.
// toleranceMeters: maximum perpendicular distance (meters) from the original line,
// measured in a local planar projection centered on the first point.
// Spans are processed from an explicit stack rather than by recursion.
func SimplifyLine(coords orb.LineString, toleranceMeters float64) orb.LineString {
	if math.IsNaN(toleranceMeters) || math.IsInf(toleranceMeters, 0) || toleranceMeters <= 0 || len(coords) <= 2 {
		return coords
	}

	proj := NewProjector(coords[0])
	projected := make([]orb.Point, len(coords))
	for i, pt := range coords {
		projected[i] = proj.Project(pt)
	}

	last := len(coords) - 1
	keep := make([]bool, len(coords))
	keep[0] = true
	keep[last] = true

	tolSq := toleranceMeters * toleranceMeters
	stack := [][2]int{{0, last}}

	for len(stack) > 0 {
		span := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		start, end := span[0], span[1]
		if end-start <= 1 {
			continue
		}

		maxDistSq := -1.0
		maxIdx := -1
		for i := start + 1; i < end; i++ {
			// strict comparison keeps the lowest index on ties
			d := PerpendicularDistanceSquared(projected[i], projected[start], projected[end])
			if d > maxDistSq {
				maxDistSq = d
				maxIdx = i
			}
		}

		if maxDistSq > tolSq && maxIdx > start && maxIdx < end {
			keep[maxIdx] = true
			stack = append(stack, [2]int{start, maxIdx}, [2]int{maxIdx, end})
		}
	}

	simplified := make(orb.LineString, 0, len(coords))
	for i, pt := range coords {
		if keep[i] {
			simplified = append(simplified, pt)
		}
	}

	if len(simplified) == 1 {
		return orb.LineString{coords[0], coords[last]}
	}
	if len(simplified) < 2 {
		return orb.LineString{coords[0], coords[1]}
	}
	return simplified
}

// PerpendicularDistanceSquared returns the squared distance from p to the segment [a, b].
// The projection parameter is clamped to [0, 1]; a zero-length segment
// degenerates to the point-to-point distance.
func PerpendicularDistanceSquared(p, a, b orb.Point) float64 {
	segDx := b[0] - a[0]
	segDy := b[1] - a[1]
	if segDx == 0 && segDy == 0 {
		return distanceSquared(p, a)
	}

	t := ((p[0]-a[0])*segDx + (p[1]-a[1])*segDy) / (segDx*segDx + segDy*segDy)
	t = math.Max(0, math.Min(1, t))

	return distanceSquared(p, orb.Point{a[0] + t*segDx, a[1] + t*segDy})
}

func distanceSquared(a, b orb.Point) float64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	return dx*dx + dy*dy
}
