package models

// VisitedCell is one ledger row
type VisitedCell struct {
	UserID string `json:"user_id" db:"user_id"`
	CellX  int64  `json:"cell_x" db:"cell_x"`
	CellY  int64  `json:"cell_y" db:"cell_y"`
}

// CellFilter limits a visited-cell listing
type CellFilter struct {
	Limit int `form:"limit"`
}
