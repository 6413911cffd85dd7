package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jengzang/lorg-backend-go/internal/database"
	"github.com/jengzang/lorg-backend-go/internal/models"
)

// UserRepository handles athletes and their stored platform credentials
type UserRepository struct {
	q       DBTX
	dialect database.Dialect
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{q: db, dialect: db.Dialect}
}

// WithTx returns a copy bound to tx
func (r *UserRepository) WithTx(tx *sql.Tx) *UserRepository {
	return &UserRepository{q: tx, dialect: r.dialect}
}

// EnsureUser creates the user row if it does not exist yet
func (r *UserRepository) EnsureUser(ctx context.Context, userID string) error {
	query := `INSERT INTO app_user (id) VALUES (?) ON CONFLICT (id) DO NOTHING`
	if _, err := r.q.ExecContext(ctx, database.Rebind(r.dialect, query), userID); err != nil {
		return fmt.Errorf("failed to ensure user: %w", err)
	}
	return nil
}

// SetMeasurementPreference stores "meters" or "feet" for a user
func (r *UserRepository) SetMeasurementPreference(ctx context.Context, userID, pref string) error {
	query := `UPDATE app_user SET measurement_preference = ? WHERE id = ?`
	if _, err := r.q.ExecContext(ctx, database.Rebind(r.dialect, query), pref, userID); err != nil {
		return fmt.Errorf("failed to set measurement preference: %w", err)
	}
	return nil
}

// MeasurementPreference returns the stored preference, "" when unknown
func (r *UserRepository) MeasurementPreference(ctx context.Context, userID string) (string, error) {
	var pref sql.NullString
	query := `SELECT measurement_preference FROM app_user WHERE id = ?`
	err := r.q.QueryRowContext(ctx, database.Rebind(r.dialect, query), userID).Scan(&pref)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get measurement preference: %w", err)
	}
	return pref.String, nil
}

// SaveToken inserts or replaces the platform credentials of a user
func (r *UserRepository) SaveToken(ctx context.Context, token models.StravaToken) error {
	query := `INSERT INTO strava_token (user_id, access_token, refresh_token, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at`

	_, err := r.q.ExecContext(ctx, database.Rebind(r.dialect, query),
		token.UserID, token.AccessToken, token.RefreshToken, token.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// ResetProgress deletes every activity, visited cell and place unlock of a
// user so the history can be replayed from scratch
func (r *UserRepository) ResetProgress(ctx context.Context, userID string) error {
	tables := []string{"place_visit", "visited_place", "visited_cell", "activity"}
	for _, table := range tables {
		query := `DELETE FROM ` + table + ` WHERE user_id = ?`
		if _, err := r.q.ExecContext(ctx, database.Rebind(r.dialect, query), userID); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}
