package novelty

import (
	"math"
	"sort"

	"github.com/paulmach/orb"

	"github.com/jengzang/lorg-backend-go/internal/spatial"
)

// Segment is a straight sub-segment of the track, as [start, end]
type Segment [2]orb.Point

// Accumulator holds per-cell traversal state for one activity
type Accumulator struct {
	Cell     spatial.Cell
	Meters   float64
	Segments []Segment

	// Active is set while the walk is inside a contiguous stretch of this cell.
	Active bool
	// FirstPassDone is set once the walk has left the cell at least once.
	FirstPassDone bool
}

// Grid is the segmenter output for one activity
type Grid struct {
	Cells       map[spatial.Cell]*Accumulator
	TotalMeters float64
}

func newGrid() *Grid {
	return &Grid{Cells: make(map[spatial.Cell]*Accumulator)}
}

// SortedCells returns the traversed cell keys in row-major order
func (g *Grid) SortedCells() []spatial.Cell {
	cells := make([]spatial.Cell, 0, len(g.Cells))
	for c := range g.Cells {
		cells = append(cells, c)
	}
	sort.Slice(cells, func(i, j int) bool { return cells[i].Less(cells[j]) })
	return cells
}

// close marks the cell as left: no longer active, first pass complete
func (g *Grid) close(c spatial.Cell) {
	if acc, ok := g.Cells[c]; ok {
		acc.Active = false
		acc.FirstPassDone = true
	}
}

// Segmenter assigns track length to grid cells
type Segmenter struct {
	params Params
}

// NewSegmenter creates a segmenter for the given (normalized) parameters
func NewSegmenter(params Params) *Segmenter {
	return &Segmenter{params: params.Normalize()}
}

// Segment walks every line in geom and accumulates per-cell lengths.
// Non-line geometries are ignored.
func (s *Segmenter) Segment(geom orb.Geometry) *Grid {
	g := newGrid()
	s.walk(g, geom)
	return g
}

func (s *Segmenter) walk(g *Grid, geom orb.Geometry) {
	switch v := geom.(type) {
	case orb.LineString:
		s.SegmentLine(g, spatial.SimplifyLine(v, s.params.SimplifyMeters))
	case orb.MultiLineString:
		for _, ls := range v {
			s.SegmentLine(g, spatial.SimplifyLine(ls, s.params.SimplifyMeters))
		}
	case orb.Collection:
		for _, child := range v {
			s.walk(g, child)
		}
	case nil:
	default:
		// points, polygons and bounds carry no traversed length
	}
}

// SegmentLine accumulates an already simplified line into g.
//
// Points are snapped to the snap step, consecutive duplicates dropped and
// every remaining span cut into steps no longer than one cell per axis.
// Each step is credited to the cell holding its midpoint, but only while
// the walk is still in that cell's first contiguous visit.
func (s *Segmenter) SegmentLine(g *Grid, coords orb.LineString) {
	if len(coords) < 2 {
		return
	}

	cellSize := s.params.CellSizeDeg
	denom := math.Max(cellSize, machineEpsilon)

	prevPoint := spatial.Snap(coords[0], s.params.SnapDeg)
	var prevCell spatial.Cell
	hasPrevCell := false

	for _, raw := range coords[1:] {
		currPoint := spatial.Snap(raw, s.params.SnapDeg)
		if currPoint.Equal(prevPoint) {
			continue
		}

		lonDelta := math.Abs(currPoint.Lon() - prevPoint.Lon())
		latDelta := math.Abs(currPoint.Lat() - prevPoint.Lat())
		steps := int(math.Max(1, math.Ceil(math.Max(lonDelta, latDelta)/denom)))

		segStart := prevPoint
		for step := 1; step <= steps; step++ {
			t := float64(step) / float64(steps)
			segEnd := orb.Point{
				prevPoint[0] + (currPoint[0]-prevPoint[0])*t,
				prevPoint[1] + (currPoint[1]-prevPoint[1])*t,
			}

			meters := spatial.HaversineMeters(segStart, segEnd)
			if isFinite(meters) && meters > 0 {
				g.TotalMeters += meters

				mid := orb.Point{(segStart[0] + segEnd[0]) / 2, (segStart[1] + segEnd[1]) / 2}
				cell := spatial.CellOf(mid, cellSize)

				if hasPrevCell && prevCell != cell {
					g.close(prevCell)
				}

				acc, ok := g.Cells[cell]
				if !ok {
					acc = &Accumulator{Cell: cell}
					g.Cells[cell] = acc
				}

				reentry := acc.FirstPassDone && !acc.Active
				if !reentry {
					acc.Active = true
					acc.Meters += meters
					acc.Segments = append(acc.Segments, Segment{segStart, segEnd})
				}

				prevCell = cell
				hasPrevCell = true
			}
			segStart = segEnd
		}
		prevPoint = currPoint
	}

	if hasPrevCell {
		g.close(prevCell)
	}
}
