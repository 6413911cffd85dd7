package novelty

import (
	"context"

	"github.com/paulmach/orb"
)

// Engine runs segment → ledger → aggregate for one activity
type Engine struct {
	params    Params
	segmenter *Segmenter
	ledger    *Ledger
}

// NewEngine creates an engine bound to a parameter snapshot
func NewEngine(params Params) *Engine {
	params = params.Normalize()
	return &Engine{
		params:    params,
		segmenter: NewSegmenter(params),
		ledger:    NewLedger(params.BatchSize),
	}
}

// Params returns the normalized parameters the engine runs with
func (e *Engine) Params() Params {
	return e.params
}

// Run computes the novelty of geom for userID, claiming cells through store.
// Geometry with no usable line yields a zero result without touching store.
func (e *Engine) Run(ctx context.Context, store CellInserter, userID string, geom orb.Geometry) (Result, error) {
	grid := e.segmenter.Segment(geom)
	if len(grid.Cells) == 0 {
		return Result{TotalMeters: grid.TotalMeters}, nil
	}

	newCells, err := e.ledger.RegisterVisited(ctx, store, userID, grid.SortedCells(), e.params.NeighborRadius)
	if err != nil {
		return Result{}, err
	}

	return Aggregate(grid, newCells), nil
}
