package spatial

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Cell identifies a fixed-size lon/lat grid rectangle.
// X = floor(lon / cellSizeDeg), Y = floor(lat / cellSizeDeg).
type Cell struct {
	X int64 `json:"cell_x"`
	Y int64 `json:"cell_y"`
}

// CellOf returns the grid cell containing p
func CellOf(p orb.Point, cellSizeDeg float64) Cell {
	return Cell{
		X: int64(math.Floor(p.Lon() / cellSizeDeg)),
		Y: int64(math.Floor(p.Lat() / cellSizeDeg)),
	}
}

// Offset returns the cell shifted by (dx, dy)
func (c Cell) Offset(dx, dy int64) Cell {
	return Cell{X: c.X + dx, Y: c.Y + dy}
}

// Less orders cells row-major (Y first, then X)
func (c Cell) Less(o Cell) bool {
	if c.Y != o.Y {
		return c.Y < o.Y
	}
	return c.X < o.X
}

// Bound returns the rectangle covered by the cell
func (c Cell) Bound(cellSizeDeg float64) orb.Bound {
	minLon := float64(c.X) * cellSizeDeg
	minLat := float64(c.Y) * cellSizeDeg
	return orb.Bound{
		Min: orb.Point{minLon, minLat},
		Max: orb.Point{minLon + cellSizeDeg, minLat + cellSizeDeg},
	}
}

func (c Cell) String() string {
	return fmt.Sprintf("%d|%d", c.X, c.Y)
}

// Snap rounds both coordinates to the nearest multiple of tolerance
func Snap(p orb.Point, tolerance float64) orb.Point {
	return orb.Point{
		math.Round(p.Lon()/tolerance) * tolerance,
		math.Round(p.Lat()/tolerance) * tolerance,
	}
}
