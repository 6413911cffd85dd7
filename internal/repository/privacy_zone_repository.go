package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/jengzang/lorg-backend-go/internal/database"
	"github.com/jengzang/lorg-backend-go/internal/masking"
	"github.com/jengzang/lorg-backend-go/internal/models"
)

// PrivacyZoneRepository handles the privacy zones of users
type PrivacyZoneRepository struct {
	q       DBTX
	dialect database.Dialect
}

// NewPrivacyZoneRepository creates a new privacy zone repository
func NewPrivacyZoneRepository(db *database.DB) *PrivacyZoneRepository {
	return &PrivacyZoneRepository{q: db, dialect: db.Dialect}
}

// WithTx returns a copy bound to tx
func (r *PrivacyZoneRepository) WithTx(tx *sql.Tx) *PrivacyZoneRepository {
	return &PrivacyZoneRepository{q: tx, dialect: r.dialect}
}

// Insert adds a zone and returns its id
func (r *PrivacyZoneRepository) Insert(ctx context.Context, zone models.PrivacyZone) (int64, error) {
	query := `INSERT INTO privacy_zone (user_id, center_lon, center_lat, radius_m)
		VALUES (?, ?, ?, ?) RETURNING id`

	var id int64
	err := r.q.QueryRowContext(ctx, database.Rebind(r.dialect, query),
		zone.UserID, zone.CenterLon, zone.CenterLat, zone.RadiusM).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert privacy zone: %w", err)
	}
	return id, nil
}

// ListZones returns the masking zones of a user
func (r *PrivacyZoneRepository) ListZones(ctx context.Context, userID string) ([]masking.Zone, error) {
	query := `SELECT center_lon, center_lat, radius_m FROM privacy_zone WHERE user_id = ? ORDER BY id`

	rows, err := r.q.QueryContext(ctx, database.Rebind(r.dialect, query), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query privacy zones: %w", err)
	}
	defer rows.Close()

	var zones []masking.Zone
	for rows.Next() {
		var lon, lat, radius float64
		if err := rows.Scan(&lon, &lat, &radius); err != nil {
			return nil, fmt.Errorf("failed to scan privacy zone: %w", err)
		}
		zones = append(zones, masking.Zone{Center: orb.Point{lon, lat}, RadiusMeters: radius})
	}
	return zones, rows.Err()
}
