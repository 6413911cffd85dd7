package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jengzang/lorg-backend-go/internal/database"
	"github.com/jengzang/lorg-backend-go/internal/models"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("not found")

// ActivityRepository handles database operations for processed activities
type ActivityRepository struct {
	q       DBTX
	dialect database.Dialect
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(db *database.DB) *ActivityRepository {
	return &ActivityRepository{q: db, dialect: db.Dialect}
}

// WithTx returns a copy bound to tx
func (r *ActivityRepository) WithTx(tx *sql.Tx) *ActivityRepository {
	return &ActivityRepository{q: tx, dialect: r.dialect}
}

func (r *ActivityRepository) rebind(query string) string {
	return database.Rebind(r.dialect, query)
}

// ActivityRecord identifies an activity row before processing
type ActivityRecord struct {
	UserID           string
	StravaActivityID int64
	SportType        string
	StartDate        string
	Source           string
	GeomGeoJSON      *string
	ProcessedAt      time.Time
}

// NoveltyUpdate is the outcome written back after processing
type NoveltyUpdate struct {
	TotalMeters    float64
	NovelMeters    float64
	NovelFraction  float64
	NovelCellCount int
	MaskedGeoJSON  *string
	NovelGeoJSON   *string
	Annotation     models.AnnotationState
}

// Upsert inserts the activity or refreshes its descriptive columns and
// returns the row id. Novelty and annotation columns are left alone.
func (r *ActivityRepository) Upsert(ctx context.Context, rec ActivityRecord) (int64, error) {
	query := `INSERT INTO activity (user_id, strava_activity_id, sport_type, start_date, source, geom_geojson, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (strava_activity_id) DO UPDATE SET
			user_id = excluded.user_id,
			sport_type = excluded.sport_type,
			start_date = excluded.start_date,
			source = excluded.source,
			geom_geojson = excluded.geom_geojson,
			processed_at = excluded.processed_at
		RETURNING id`

	var id int64
	err := r.q.QueryRowContext(ctx, r.rebind(query),
		rec.UserID, rec.StravaActivityID, rec.SportType, rec.StartDate,
		rec.Source, rec.GeomGeoJSON, rec.ProcessedAt.UTC(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert activity: %w", err)
	}
	return id, nil
}

// InsertSkipped records an activity that was not processed. An existing row
// is kept untouched.
func (r *ActivityRepository) InsertSkipped(ctx context.Context, rec ActivityRecord) error {
	query := `INSERT INTO activity (user_id, strava_activity_id, sport_type, start_date, source, geom_len_m, new_len_m, new_frac, processed_at)
		VALUES (?, ?, ?, ?, ?, 0, 0, 0, ?)
		ON CONFLICT (strava_activity_id) DO NOTHING`

	_, err := r.q.ExecContext(ctx, r.rebind(query),
		rec.UserID, rec.StravaActivityID, rec.SportType, rec.StartDate, rec.Source, rec.ProcessedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert skipped activity: %w", err)
	}
	return nil
}

// GetAnnotationState loads the stored annotation columns of a row
func (r *ActivityRepository) GetAnnotationState(ctx context.Context, id int64) (models.AnnotationState, error) {
	query := `SELECT annotation_text, annotation_generated_at, annotation_applied_at, annotation_attempts
		FROM activity WHERE id = ?`

	var state models.AnnotationState
	var text sql.NullString
	var generated, applied sql.NullTime
	err := r.q.QueryRowContext(ctx, r.rebind(query), id).Scan(&text, &generated, &applied, &state.Attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return state, ErrNotFound
	}
	if err != nil {
		return state, fmt.Errorf("failed to get annotation state: %w", err)
	}

	state.Text = nullString(text)
	state.GeneratedAt = nullTime(generated)
	state.AppliedAt = nullTime(applied)
	return state, nil
}

// SaveNovelty writes the metrics, geometries and annotation state of a row
func (r *ActivityRepository) SaveNovelty(ctx context.Context, id int64, u NoveltyUpdate) error {
	query := `UPDATE activity SET
			geom_len_m = ?,
			new_len_m = ?,
			new_frac = ?,
			novel_cell_count = ?,
			masked_geojson = ?,
			novel_geojson = ?,
			annotation_text = ?,
			annotation_generated_at = ?,
			annotation_applied_at = ?,
			annotation_attempts = ?
		WHERE id = ?`

	_, err := r.q.ExecContext(ctx, r.rebind(query),
		u.TotalMeters, u.NovelMeters, u.NovelFraction, u.NovelCellCount,
		u.MaskedGeoJSON, u.NovelGeoJSON,
		u.Annotation.Text, utcPtr(u.Annotation.GeneratedAt), utcPtr(u.Annotation.AppliedAt), u.Annotation.Attempts,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to save activity novelty: %w", err)
	}
	return nil
}

// GetByStravaID loads one activity by its platform id
func (r *ActivityRepository) GetByStravaID(ctx context.Context, stravaID int64) (*models.Activity, error) {
	query := `SELECT id, user_id, strava_activity_id, sport_type, start_date, source,
		geom_geojson, masked_geojson, novel_geojson,
		geom_len_m, new_len_m, new_frac, novel_cell_count,
		annotation_text, annotation_generated_at, annotation_applied_at, annotation_attempts,
		processed_at
		FROM activity WHERE strava_activity_id = ?`

	var a models.Activity
	var source, geom, masked, novel, text sql.NullString
	var total sql.NullFloat64
	var generated, applied, processed sql.NullTime
	err := r.q.QueryRowContext(ctx, r.rebind(query), stravaID).Scan(
		&a.ID, &a.UserID, &a.StravaActivityID, &a.SportType, &a.StartDate, &source,
		&geom, &masked, &novel,
		&total, &a.NovelMeters, &a.NovelFraction, &a.NovelCellCount,
		&text, &generated, &applied, &a.Annotation.Attempts,
		&processed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}

	a.Source = source.String
	a.GeomGeoJSON = nullString(geom)
	a.MaskedGeoJSON = nullString(masked)
	a.NovelGeoJSON = nullString(novel)
	a.TotalMeters = total.Float64
	a.Annotation.Text = nullString(text)
	a.Annotation.GeneratedAt = nullTime(generated)
	a.Annotation.AppliedAt = nullTime(applied)
	a.ProcessedAt = nullTime(processed)
	return &a, nil
}

// ListPendingAnnotations returns activities whose generated text has not
// been applied since it was generated, oldest first. A non-zero activityID
// restricts the batch to that row.
func (r *ActivityRepository) ListPendingAnnotations(ctx context.Context, limit int, activityID int64) ([]models.PendingAnnotation, error) {
	query := `SELECT a.id, a.user_id, a.strava_activity_id, a.annotation_text,
		a.annotation_generated_at, a.annotation_attempts, t.access_token
		FROM activity a
		JOIN strava_token t ON t.user_id = a.user_id
		WHERE a.annotation_text IS NOT NULL
		AND a.annotation_generated_at IS NOT NULL
		AND (a.annotation_applied_at IS NULL OR a.annotation_applied_at < a.annotation_generated_at)`

	var args []interface{}
	if activityID != 0 {
		query += " AND a.id = ?"
		args = append(args, activityID)
	}
	query += " ORDER BY a.annotation_generated_at, a.id LIMIT ?"
	args = append(args, limit)

	rows, err := r.q.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending annotations: %w", err)
	}
	defer rows.Close()

	var pending []models.PendingAnnotation
	for rows.Next() {
		var p models.PendingAnnotation
		if err := rows.Scan(&p.ActivityID, &p.UserID, &p.StravaActivityID, &p.Text,
			&p.GeneratedAt, &p.Attempts, &p.AccessToken); err != nil {
			return nil, fmt.Errorf("failed to scan pending annotation: %w", err)
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

// MarkAnnotationApplied stamps the row as applied and clears its attempts
func (r *ActivityRepository) MarkAnnotationApplied(ctx context.Context, activityID int64, at time.Time) error {
	query := `UPDATE activity SET annotation_applied_at = ?, annotation_attempts = 0 WHERE id = ?`
	if _, err := r.q.ExecContext(ctx, r.rebind(query), at.UTC(), activityID); err != nil {
		return fmt.Errorf("failed to mark annotation applied: %w", err)
	}
	return nil
}

// RecordAnnotationFailure increments the attempt counter of a row
func (r *ActivityRepository) RecordAnnotationFailure(ctx context.Context, activityID int64) error {
	query := `UPDATE activity SET annotation_attempts = annotation_attempts + 1 WHERE id = ?`
	if _, err := r.q.ExecContext(ctx, r.rebind(query), activityID); err != nil {
		return fmt.Errorf("failed to record annotation failure: %w", err)
	}
	return nil
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func utcPtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
