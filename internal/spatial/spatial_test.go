package spatial

import (
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHaversineMeters(t *testing.T) {
	t.Run("one degree of latitude", func(t *testing.T) {
		d := HaversineMeters(orb.Point{0, 0}, orb.Point{0, 1})
		assert.InDelta(t, EarthRadiusMeters*math.Pi/180, d, 1e-6)
	})

	t.Run("same point", func(t *testing.T) {
		assert.Equal(t, 0.0, HaversineMeters(orb.Point{13.4, 52.5}, orb.Point{13.4, 52.5}))
	})

	t.Run("symmetric", func(t *testing.T) {
		a := orb.Point{-0.1513, 51.5028}
		b := orb.Point{-0.1848, 51.5040}
		assert.InDelta(t, HaversineMeters(a, b), HaversineMeters(b, a), 1e-9)
	})

	t.Run("non-finite input propagates", func(t *testing.T) {
		d := HaversineMeters(orb.Point{math.NaN(), 0}, orb.Point{0, 0})
		assert.True(t, math.IsNaN(d) || math.IsInf(d, 0), "got %v", d)
	})
}

func TestPathLength(t *testing.T) {
	ls := orb.LineString{{0, 0}, {0, 0.5}, {0, 1}}
	assert.InDelta(t, HaversineMeters(orb.Point{0, 0}, orb.Point{0, 1}), PathLength(ls), 1e-6)
	assert.Equal(t, 0.0, PathLength(orb.LineString{{1, 1}}))
}

func TestLonMetersPerDegree(t *testing.T) {
	assert.InDelta(t, MetersPerDegreeLat, LonMetersPerDegree(0), 1e-9)
	assert.InDelta(t, MetersPerDegreeLat*0.5, LonMetersPerDegree(60), 1e-6)
	// clamped near the poles
	assert.InDelta(t, 0.0001*MetersPerDegreeLat, LonMetersPerDegree(90), 1e-9)
	assert.InDelta(t, 0.0001*MetersPerDegreeLat, LonMetersPerDegree(-90), 1e-9)
}

func TestProjector(t *testing.T) {
	p := NewProjector(orb.Point{10, 0})
	got := p.Project(orb.Point{11, 1})
	assert.InDelta(t, MetersPerDegreeLat, got[0], 1e-6)
	assert.InDelta(t, MetersPerDegreeLat, got[1], 1e-6)

	origin := p.Project(orb.Point{10, 0})
	assert.Equal(t, orb.Point{0, 0}, origin)
}

func TestPerpendicularDistanceSquared(t *testing.T) {
	a := orb.Point{0, 0}
	b := orb.Point{10, 0}

	tests := []struct {
		name string
		p    orb.Point
		want float64
	}{
		{"above the middle", orb.Point{5, 3}, 9},
		{"before the start clamps to a", orb.Point{-3, 4}, 25},
		{"past the end clamps to b", orb.Point{13, 4}, 25},
		{"on the segment", orb.Point{7, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, PerpendicularDistanceSquared(tt.p, a, b), 1e-12)
		})
	}

	t.Run("zero-length segment", func(t *testing.T) {
		assert.InDelta(t, 25.0, PerpendicularDistanceSquared(orb.Point{3, 4}, a, a), 1e-12)
	})
}

func TestSimplifyLine_Passthrough(t *testing.T) {
	line := orb.LineString{{0, 0}, {0.001, 0.0005}, {0.002, 0}}

	for _, tol := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		got := SimplifyLine(line, tol)
		assert.Equal(t, line, got, "tolerance %v", tol)
	}

	short := orb.LineString{{0, 0}, {1, 1}}
	assert.Equal(t, short, SimplifyLine(short, 5))
	assert.Empty(t, SimplifyLine(orb.LineString{}, 5))
}

func TestSimplifyLine_CollinearCollapses(t *testing.T) {
	line := orb.LineString{{0, 0}, {0, 0.0004}, {0, 0.0008}, {0, 0.0012}}
	got := SimplifyLine(line, 1)
	assert.Equal(t, orb.LineString{{0, 0}, {0, 0.0012}}, got)
}

func TestSimplifyLine_KeepsCorners(t *testing.T) {
	// an L-shaped track ~110 m per leg
	line := orb.LineString{{0, 0}, {0.0005, 0}, {0.001, 0}, {0.001, 0.0005}, {0.001, 0.001}}
	got := SimplifyLine(line, 4)
	assert.Equal(t, orb.LineString{{0, 0}, {0.001, 0}, {0.001, 0.001}}, got)
}

func TestSimplifyLine_TieKeepsLowestIndex(t *testing.T) {
	// points 1 and 2 sit at exactly the same distance from the chord
	line := orb.LineString{{0, 0}, {1, 1}, {3, 1}, {4, 0}}
	got := SimplifyLine(line, 100000)
	assert.Equal(t, orb.LineString{{0, 0}, {1, 1}, {4, 0}}, got)
}

func TestSimplifyLine_ClosedLoopKeepsEndpoints(t *testing.T) {
	line := orb.LineString{{0, 0}, {0, 0}, {0, 0}}
	got := SimplifyLine(line, 10)
	assert.Equal(t, orb.LineString{{0, 0}, {0, 0}}, got)
}

func randomTrack(r *rand.Rand, n int) orb.LineString {
	ls := make(orb.LineString, n)
	lon, lat := -122.4, 37.7
	for i := range ls {
		lon += (r.Float64() - 0.3) * 0.0004
		lat += (r.Float64() - 0.5) * 0.0004
		ls[i] = orb.Point{lon, lat}
	}
	return ls
}

func TestSimplifyLine_Idempotent(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		track := randomTrack(r, 200)
		once := SimplifyLine(track, 8)
		twice := SimplifyLine(once, 8)
		if diff := cmp.Diff(once, twice); diff != "" {
			t.Fatalf("simplify not idempotent (-once +twice):\n%s", diff)
		}
	}
}

func TestSimplifyLine_MonotoneInTolerance(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	tolerances := []float64{0.5, 1, 2, 4, 8, 16, 32, 64}
	for i := 0; i < 20; i++ {
		track := randomTrack(r, 300)
		prev := len(track)
		for _, tol := range tolerances {
			n := len(SimplifyLine(track, tol))
			require.LessOrEqual(t, n, prev, "tolerance %v retained more points", tol)
			prev = n
		}
	}
}

func TestSimplifyLine_RetainsEndpoints(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	track := randomTrack(r, 100)
	got := SimplifyLine(track, 25)
	require.GreaterOrEqual(t, len(got), 2)
	assert.Equal(t, track[0], got[0])
	assert.Equal(t, track[len(track)-1], got[len(got)-1])
}
