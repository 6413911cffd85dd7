package spatial

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func TestCellOf(t *testing.T) {
	tests := []struct {
		name string
		p    orb.Point
		want Cell
	}{
		{"origin", orb.Point{0, 0}, Cell{0, 0}},
		{"inside first cell", orb.Point{0.0004, 0.0001}, Cell{0, 0}},
		{"second row", orb.Point{0.0001, 0.0006}, Cell{0, 1}},
		{"negative floors down", orb.Point{-0.0001, -0.0001}, Cell{-1, -1}},
		{"city scale", orb.Point{-122.4194, 37.7749}, Cell{-244839, 75549}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CellOf(tt.p, 0.0005))
		})
	}
}

func TestCell_Bound(t *testing.T) {
	b := Cell{X: 2, Y: -1}.Bound(0.5)
	assert.Equal(t, orb.Point{1, -0.5}, b.Min)
	assert.Equal(t, orb.Point{1.5, 0}, b.Max)
}

func TestCell_LessAndOffset(t *testing.T) {
	a := Cell{X: 5, Y: 0}
	b := Cell{X: 0, Y: 1}
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.True(t, Cell{X: 1, Y: 1}.Less(Cell{X: 2, Y: 1}))
	assert.Equal(t, Cell{X: 4, Y: 2}, a.Offset(-1, 2))
	assert.Equal(t, "5|0", a.String())
}

func TestSnap(t *testing.T) {
	got := Snap(orb.Point{0.00062, -0.00013}, 0.00025)
	assert.InDelta(t, 0.0005, got[0], 1e-12)
	assert.InDelta(t, -0.00025, got[1], 1e-12)
}
