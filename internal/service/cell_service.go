package service

import (
	"context"

	"github.com/paulmach/orb/geojson"

	"github.com/jengzang/lorg-backend-go/internal/repository"
	"github.com/jengzang/lorg-backend-go/internal/spatial"
)

// CellService serves the visited-cell ledger as map features
type CellService struct {
	repo        *repository.VisitedCellRepository
	cellSizeDeg float64
	maxCells    int
}

// NewCellService creates a new cell service
func NewCellService(repo *repository.VisitedCellRepository, cellSizeDeg float64, maxCells int) *CellService {
	if maxCells <= 0 {
		maxCells = 10000
	}
	return &CellService{repo: repo, cellSizeDeg: cellSizeDeg, maxCells: maxCells}
}

// ClampLimit returns limit bounded to [1, maxCells]; 0 means maxCells
func (s *CellService) ClampLimit(limit int) int {
	if limit == 0 || limit > s.maxCells {
		return s.maxCells
	}
	if limit < 1 {
		return 1
	}
	return limit
}

// VisitedCells returns the user's cells as square polygons, ordered by row
// then column
func (s *CellService) VisitedCells(ctx context.Context, userID string, limit int) (*geojson.FeatureCollection, error) {
	rows, err := s.repo.ListCells(ctx, userID, s.ClampLimit(limit))
	if err != nil {
		return nil, err
	}

	fc := geojson.NewFeatureCollection()
	for _, row := range rows {
		cell := spatial.Cell{X: row.CellX, Y: row.CellY}
		f := geojson.NewFeature(cell.Bound(s.cellSizeDeg).ToPolygon())
		f.Properties["cell_x"] = row.CellX
		f.Properties["cell_y"] = row.CellY
		fc.Append(f)
	}
	return fc, nil
}

// CountCells returns the size of the user's ledger
func (s *CellService) CountCells(ctx context.Context, userID string) (int, error) {
	return s.repo.CountCells(ctx, userID)
}
