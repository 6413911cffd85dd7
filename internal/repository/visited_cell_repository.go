package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jengzang/lorg-backend-go/internal/database"
	"github.com/jengzang/lorg-backend-go/internal/models"
	"github.com/jengzang/lorg-backend-go/internal/spatial"
)

// VisitedCellRepository handles the per-user visited cell ledger
type VisitedCellRepository struct {
	q       DBTX
	dialect database.Dialect
}

// NewVisitedCellRepository creates a new visited cell repository
func NewVisitedCellRepository(db *database.DB) *VisitedCellRepository {
	return &VisitedCellRepository{q: db, dialect: db.Dialect}
}

// WithTx returns a copy bound to tx
func (r *VisitedCellRepository) WithTx(tx *sql.Tx) *VisitedCellRepository {
	return &VisitedCellRepository{q: tx, dialect: r.dialect}
}

// InsertCells inserts the cells that are not yet in the ledger and returns
// exactly those. Cells already present, including ones committed by a
// concurrent transaction, are skipped by the conflict clause.
func (r *VisitedCellRepository) InsertCells(ctx context.Context, userID string, cells []spatial.Cell) ([]spatial.Cell, error) {
	if len(cells) == 0 {
		return nil, nil
	}

	args := make([]interface{}, 0, len(cells)*3)
	for _, c := range cells {
		args = append(args, userID, c.X, c.Y)
	}

	query := `INSERT INTO visited_cell (user_id, cell_x, cell_y) VALUES ` + valuesList(len(cells), 3) + `
		ON CONFLICT (user_id, cell_x, cell_y) DO NOTHING
		RETURNING cell_x, cell_y`

	rows, err := r.q.QueryContext(ctx, database.Rebind(r.dialect, query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to insert visited cells: %w", err)
	}
	defer rows.Close()

	var inserted []spatial.Cell
	for rows.Next() {
		var c spatial.Cell
		if err := rows.Scan(&c.X, &c.Y); err != nil {
			return nil, fmt.Errorf("failed to scan visited cell: %w", err)
		}
		inserted = append(inserted, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read inserted cells: %w", err)
	}
	return inserted, nil
}

// ListCells returns up to limit cells of a user ordered by row then column
func (r *VisitedCellRepository) ListCells(ctx context.Context, userID string, limit int) ([]models.VisitedCell, error) {
	query := `SELECT user_id, cell_x, cell_y FROM visited_cell
		WHERE user_id = ?
		ORDER BY cell_y, cell_x
		LIMIT ?`

	rows, err := r.q.QueryContext(ctx, database.Rebind(r.dialect, query), userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query visited cells: %w", err)
	}
	defer rows.Close()

	cells := make([]models.VisitedCell, 0)
	for rows.Next() {
		var c models.VisitedCell
		if err := rows.Scan(&c.UserID, &c.CellX, &c.CellY); err != nil {
			return nil, fmt.Errorf("failed to scan visited cell: %w", err)
		}
		cells = append(cells, c)
	}
	return cells, rows.Err()
}

// CountCells returns the size of a user's ledger
func (r *VisitedCellRepository) CountCells(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx, database.Rebind(r.dialect, `SELECT COUNT(*) FROM visited_cell WHERE user_id = ?`), userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count visited cells: %w", err)
	}
	return n, nil
}
