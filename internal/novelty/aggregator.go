package novelty

import (
	"github.com/paulmach/orb"
)

// Result is the activity-level novelty outcome
type Result struct {
	TotalMeters    float64   `json:"total_meters"`
	NovelMeters    float64   `json:"novel_meters"`
	NovelFraction  float64   `json:"novel_fraction"`
	NovelCellCount int       `json:"novel_cell_count"`
	NovelSegments  []Segment `json:"-"`
}

// Aggregate combines the segmenter output with the ledger's newly visited cells.
// Halo cells count toward NovelCellCount but never toward NovelMeters.
func Aggregate(grid *Grid, newCells CellSet) Result {
	res := Result{NovelCellCount: len(newCells)}
	if grid == nil {
		return res
	}
	res.TotalMeters = grid.TotalMeters

	for _, c := range newCells.Sorted() {
		acc, ok := grid.Cells[c]
		if !ok {
			continue
		}
		res.NovelMeters += acc.Meters
		res.NovelSegments = append(res.NovelSegments, acc.Segments...)
	}

	// summation order differs from the walk; keep rounding from breaking the bound
	if res.NovelMeters > res.TotalMeters {
		res.NovelMeters = res.TotalMeters
	}
	if res.TotalMeters > 0 {
		res.NovelFraction = res.NovelMeters / res.TotalMeters
	}

	return res
}

// NovelGeometry returns the novel sub-geometry: nil when empty, a LineString
// for a single segment, otherwise a MultiLineString.
func (r Result) NovelGeometry() orb.Geometry {
	switch len(r.NovelSegments) {
	case 0:
		return nil
	case 1:
		return orb.LineString{r.NovelSegments[0][0], r.NovelSegments[0][1]}
	}

	mls := make(orb.MultiLineString, len(r.NovelSegments))
	for i, seg := range r.NovelSegments {
		mls[i] = orb.LineString{seg[0], seg[1]}
	}
	return mls
}
