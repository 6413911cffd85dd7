package novelty

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/lorg-backend-go/internal/spatial"
)

// fineParams disables simplification and uses a snap step far below the cell
// size so test coordinates land where they are written.
func fineParams(cellSize float64) Params {
	return Params{
		CellSizeDeg:    cellSize,
		SnapDeg:        0.00001,
		SimplifyMeters: 0,
		NeighborRadius: 1,
	}
}

func TestSegment_TwoCellScenario(t *testing.T) {
	seg := NewSegmenter(DefaultParams())
	track := orb.LineString{{0, 0}, {0, 0.0004}, {0, 0.0008}}

	grid := seg.Segment(track)

	require.Len(t, grid.Cells, 2)
	assert.Contains(t, grid.Cells, spatial.Cell{X: 0, Y: 0})
	assert.Contains(t, grid.Cells, spatial.Cell{X: 0, Y: 1})

	// the far endpoint snaps from 0.0008 to 0.00075
	snapped := spatial.HaversineMeters(orb.Point{0, 0}, orb.Point{0, 0.00075})
	assert.InDelta(t, snapped, grid.TotalMeters, 1e-6)
	assert.InDelta(t, spatial.PathLength(track), grid.TotalMeters, 10)

	var sum float64
	for _, acc := range grid.Cells {
		sum += acc.Meters
		assert.False(t, acc.Active, "cell %v left active", acc.Cell)
		assert.True(t, acc.FirstPassDone, "cell %v not closed", acc.Cell)
	}
	assert.InDelta(t, grid.TotalMeters, sum, 1e-9)
}

func TestSegment_ReentrySuppressed(t *testing.T) {
	seg := NewSegmenter(fineParams(0.001))
	cellA := spatial.Cell{X: 0, Y: 0}

	// enters A, leaves for B, comes back to A, leaves for C, comes back to A
	track := orb.LineString{
		{0.0002, 0.0005},
		{0.0008, 0.0005},
		{0.0017, 0.0005},
		{0.0003, 0.0006},
		{0.0003, 0.0015},
		{0.0006, 0.0004},
	}

	grid := seg.Segment(track)

	require.Contains(t, grid.Cells, cellA)
	acc := grid.Cells[cellA]
	firstVisit := spatial.HaversineMeters(orb.Point{0.0002, 0.0005}, orb.Point{0.0008, 0.0005})
	assert.InDelta(t, firstVisit, acc.Meters, 1e-6)
	assert.Len(t, acc.Segments, 1)

	assert.Contains(t, grid.Cells, spatial.Cell{X: 1, Y: 0})
	assert.Contains(t, grid.Cells, spatial.Cell{X: 0, Y: 1})

	// totals still count every traversed meter
	var credited float64
	for _, a := range grid.Cells {
		credited += a.Meters
	}
	assert.Greater(t, grid.TotalMeters, credited)
	assert.InDelta(t, spatial.PathLength(track), grid.TotalMeters, 1)
}

func TestSegment_LongSpanIsSubdivided(t *testing.T) {
	seg := NewSegmenter(fineParams(0.001))

	// a single 10-cell span must touch every intermediate cell
	grid := seg.Segment(orb.LineString{{0.00005, 0.0005}, {0.00995, 0.0005}})

	for x := int64(0); x < 10; x++ {
		assert.Contains(t, grid.Cells, spatial.Cell{X: x, Y: 0})
	}
}

func TestSegment_DegenerateInput(t *testing.T) {
	seg := NewSegmenter(DefaultParams())

	tests := []struct {
		name string
		geom orb.Geometry
	}{
		{"nil", nil},
		{"empty line", orb.LineString{}},
		{"single point line", orb.LineString{{1, 1}}},
		{"jitter collapses under snapping", orb.LineString{{0.0001, 0.0001}, {0.00011, 0.00012}, {0.0001, 0.0001}}},
		{"point", orb.Point{1, 2}},
		{"polygon", orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grid := seg.Segment(tt.geom)
			assert.Empty(t, grid.Cells)
			assert.Equal(t, 0.0, grid.TotalMeters)
		})
	}
}

func TestSegment_WalksCollections(t *testing.T) {
	seg := NewSegmenter(fineParams(0.001))
	a := orb.LineString{{0.0002, 0.0005}, {0.0008, 0.0005}}
	b := orb.LineString{{0.0102, 0.0005}, {0.0108, 0.0005}}
	c := orb.LineString{{0.0202, 0.0005}, {0.0208, 0.0005}}

	geom := orb.Collection{
		orb.Point{5, 5},
		orb.MultiLineString{a, b},
		orb.Collection{c, orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}},
	}

	grid := seg.Segment(geom)

	assert.Len(t, grid.Cells, 3)
	assert.Contains(t, grid.Cells, spatial.Cell{X: 0, Y: 0})
	assert.Contains(t, grid.Cells, spatial.Cell{X: 10, Y: 0})
	assert.Contains(t, grid.Cells, spatial.Cell{X: 20, Y: 0})
	assert.InDelta(t, spatial.PathLength(a)+spatial.PathLength(b)+spatial.PathLength(c), grid.TotalMeters, 1e-3)
}

func TestSegment_SecondLineReenteringCellIsSuppressed(t *testing.T) {
	seg := NewSegmenter(fineParams(0.001))
	first := orb.LineString{{0.0002, 0.0005}, {0.0008, 0.0005}}
	second := orb.LineString{{0.0002, 0.0007}, {0.0008, 0.0007}}

	grid := seg.Segment(orb.MultiLineString{first, second})

	acc := grid.Cells[spatial.Cell{X: 0, Y: 0}]
	require.NotNil(t, acc)
	assert.InDelta(t, spatial.PathLength(first), acc.Meters, 1e-6)
	assert.InDelta(t, spatial.PathLength(first)+spatial.PathLength(second), grid.TotalMeters, 1e-3)
}

func TestParams_Normalize(t *testing.T) {
	p := Params{}.Normalize()
	assert.Equal(t, DefaultCellSizeDeg, p.CellSizeDeg)
	assert.Equal(t, DefaultCellSizeDeg/2, p.SnapDeg)
	assert.Equal(t, DefaultBatchSize, p.BatchSize)

	p = Params{CellSizeDeg: 0.001, NeighborRadius: -3}.Normalize()
	assert.Equal(t, 0.0005, p.SnapDeg)
	assert.Equal(t, 0, p.NeighborRadius)
}
