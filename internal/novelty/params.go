package novelty

import "math"

// machineEpsilon is the float64 spacing at 1.0 and the floor for grid tolerances
const machineEpsilon = 2.220446049250313e-16

// Default tuning values
const (
	DefaultCellSizeDeg    = 0.0005
	DefaultSimplifyMeters = 4.0
	DefaultNeighborRadius = 1
	DefaultBatchSize      = 500
)

// Params holds the grid tuning for one activity. It is a value type: callers
// snapshot it once per run so cell boundaries stay reproducible.
type Params struct {
	CellSizeDeg    float64 // Grid cell edge in degrees
	SnapDeg        float64 // Coordinate snap step in degrees (0 = half a cell)
	SimplifyMeters float64 // Douglas-Peucker tolerance applied before gridding
	NeighborRadius int     // Halo radius in cells around every traversed cell
	BatchSize      int     // Ledger insert chunk size
}

// DefaultParams returns the production defaults
func DefaultParams() Params {
	return Params{
		CellSizeDeg:    DefaultCellSizeDeg,
		SimplifyMeters: DefaultSimplifyMeters,
		NeighborRadius: DefaultNeighborRadius,
		BatchSize:      DefaultBatchSize,
	}
}

// Normalize fills defaults and clamps values into their valid ranges
func (p Params) Normalize() Params {
	if !isFinite(p.CellSizeDeg) || p.CellSizeDeg <= 0 {
		p.CellSizeDeg = DefaultCellSizeDeg
	}
	if !isFinite(p.SnapDeg) || p.SnapDeg <= 0 {
		p.SnapDeg = p.CellSizeDeg / 2
	}
	p.SnapDeg = math.Max(p.SnapDeg, machineEpsilon)
	if p.NeighborRadius < 0 {
		p.NeighborRadius = 0
	}
	if p.BatchSize <= 0 {
		p.BatchSize = DefaultBatchSize
	}
	return p
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
