package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jengzang/lorg-backend-go/internal/novelty"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "DATABASE_URL", "DB_PATH", "CELL_GRID_DEG", "CELL_SIZE_DEG",
		"SIMPLIFY_M", "GRID_SIMPLIFY_M", "SNAP_GRID_DEG", "CELL_NEIGHBOR_RADIUS", "STRAVA_ANNOTATE_DRYRUN"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, "./data/lorg/lorg.db", cfg.DatabaseURL)
	assert.Equal(t, novelty.DefaultCellSizeDeg, cfg.CellSizeDeg)
	assert.Equal(t, 10000, cfg.VisitedCellCap)
	assert.False(t, cfg.AnnotateDryRun)

	p := cfg.NoveltyParams()
	assert.Equal(t, novelty.DefaultCellSizeDeg, p.CellSizeDeg)
	assert.Equal(t, novelty.DefaultCellSizeDeg/2, p.SnapDeg)
	assert.Equal(t, novelty.DefaultSimplifyMeters, p.SimplifyMeters)
	assert.Equal(t, 1, p.NeighborRadius)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_URL", "postgres://lorg@localhost/lorg")
	t.Setenv("CELL_GRID_DEG", "")
	t.Setenv("CELL_SIZE_DEG", "0.001")
	t.Setenv("SIMPLIFY_M", "8")
	t.Setenv("GRID_SIMPLIFY_M", "2")
	t.Setenv("SNAP_GRID_DEG", "0.0001")
	t.Setenv("CELL_NEIGHBOR_RADIUS", "0")
	t.Setenv("STRAVA_ANNOTATE_DRYRUN", "true")

	cfg := Load()
	assert.Equal(t, ":9000", cfg.Port)
	assert.Equal(t, "postgres://lorg@localhost/lorg", cfg.DatabaseURL)
	assert.True(t, cfg.AnnotateDryRun)

	p := cfg.NoveltyParams()
	assert.Equal(t, 0.001, p.CellSizeDeg)
	assert.Equal(t, 0.0001, p.SnapDeg)
	assert.Equal(t, 2.0, p.SimplifyMeters)
	assert.Equal(t, 0, p.NeighborRadius)
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("CELL_GRID_DEG", "abc")
	t.Setenv("CELL_SIZE_DEG", "")
	t.Setenv("CELL_NEIGHBOR_RADIUS", "two")

	cfg := Load()
	assert.Equal(t, novelty.DefaultCellSizeDeg, cfg.CellSizeDeg)
	assert.Equal(t, novelty.DefaultNeighborRadius, cfg.NeighborRadius)
}
