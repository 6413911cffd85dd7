package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/jengzang/lorg-backend-go/internal/database"
	"github.com/jengzang/lorg-backend-go/internal/places"
)

// PlaceRepository handles place boundaries and per-user place unlocks
type PlaceRepository struct {
	q       DBTX
	dialect database.Dialect
}

// NewPlaceRepository creates a new place repository
func NewPlaceRepository(db *database.DB) *PlaceRepository {
	return &PlaceRepository{q: db, dialect: db.Dialect}
}

// WithTx returns a copy bound to tx
func (r *PlaceRepository) WithTx(tx *sql.Tx) *PlaceRepository {
	return &PlaceRepository{q: tx, dialect: r.dialect}
}

// InsertBoundary stores a boundary and returns its id. The bounding box
// columns are derived from the geometry.
func (r *PlaceRepository) InsertBoundary(ctx context.Context, b places.Boundary) (int64, error) {
	if b.Geometry == nil {
		return 0, fmt.Errorf("boundary %q has no geometry", b.Name)
	}
	data, err := geojson.NewGeometry(b.Geometry).MarshalJSON()
	if err != nil {
		return 0, fmt.Errorf("failed to encode boundary geometry: %w", err)
	}
	bound := b.Geometry.Bound()

	query := `INSERT INTO place_boundary (place_type, name, country_code, min_lon, min_lat, max_lon, max_lat, geom_geojson)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`

	var id int64
	err = r.q.QueryRowContext(ctx, database.Rebind(r.dialect, query),
		b.PlaceType, b.Name, b.CountryCode,
		bound.Min.Lon(), bound.Min.Lat(), bound.Max.Lon(), bound.Max.Lat(),
		string(data),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert place boundary: %w", err)
	}
	return id, nil
}

// Candidates returns boundaries of the given countries whose stored
// bounding box overlaps bound
func (r *PlaceRepository) Candidates(ctx context.Context, countries []string, bound orb.Bound) ([]places.Boundary, error) {
	if len(countries) == 0 {
		return nil, nil
	}

	in := strings.TrimSuffix(strings.Repeat("?, ", len(countries)), ", ")
	query := `SELECT id, place_type, name, country_code, geom_geojson
		FROM place_boundary
		WHERE country_code IN (` + in + `)
		AND max_lon >= ? AND min_lon <= ?
		AND max_lat >= ? AND min_lat <= ?
		ORDER BY id`

	args := make([]interface{}, 0, len(countries)+4)
	for _, c := range countries {
		args = append(args, c)
	}
	args = append(args, bound.Min.Lon(), bound.Max.Lon(), bound.Min.Lat(), bound.Max.Lat())

	rows, err := r.q.QueryContext(ctx, database.Rebind(r.dialect, query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query place boundaries: %w", err)
	}
	defer rows.Close()

	var out []places.Boundary
	for rows.Next() {
		var b places.Boundary
		var geom string
		if err := rows.Scan(&b.ID, &b.PlaceType, &b.Name, &b.CountryCode, &geom); err != nil {
			return nil, fmt.Errorf("failed to scan place boundary: %w", err)
		}
		g, err := geojson.UnmarshalGeometry([]byte(geom))
		if err != nil {
			log.Printf("[PlaceRepository] skipping boundary %d: %v", b.ID, err)
			continue
		}
		b.Geometry = g.Geometry()
		out = append(out, b)
	}
	return out, rows.Err()
}

// MarkVisited records first visits of the given boundaries and returns the
// ids that were not visited before
func (r *PlaceRepository) MarkVisited(ctx context.Context, userID string, boundaryIDs []int64, activityID int64, at time.Time) ([]int64, error) {
	if len(boundaryIDs) == 0 {
		return nil, nil
	}

	args := make([]interface{}, 0, len(boundaryIDs)*4)
	for _, id := range boundaryIDs {
		args = append(args, userID, id, activityID, at.UTC())
	}
	query := `INSERT INTO visited_place (user_id, place_boundary_id, first_activity_id, visited_at)
		VALUES ` + valuesList(len(boundaryIDs), 4) + `
		ON CONFLICT (user_id, place_boundary_id) DO NOTHING
		RETURNING place_boundary_id`

	rows, err := r.q.QueryContext(ctx, database.Rebind(r.dialect, query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to insert visited places: %w", err)
	}
	defer rows.Close()

	var unlocked []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan visited place: %w", err)
		}
		unlocked = append(unlocked, id)
	}
	return unlocked, rows.Err()
}

// RecordVisits logs that an activity passed through the given boundaries
func (r *PlaceRepository) RecordVisits(ctx context.Context, userID string, boundaryIDs []int64, activityID int64, visitedAt time.Time) error {
	if len(boundaryIDs) == 0 {
		return nil
	}

	args := make([]interface{}, 0, len(boundaryIDs)*4)
	for _, id := range boundaryIDs {
		args = append(args, userID, id, activityID, visitedAt.UTC())
	}
	query := `INSERT INTO place_visit (user_id, place_boundary_id, activity_id, visited_at)
		VALUES ` + valuesList(len(boundaryIDs), 4) + `
		ON CONFLICT (user_id, place_boundary_id, activity_id) DO NOTHING`

	if _, err := r.q.ExecContext(ctx, database.Rebind(r.dialect, query), args...); err != nil {
		return fmt.Errorf("failed to record place visits: %w", err)
	}
	return nil
}
