package models

import "time"

// StravaToken holds the stored OAuth credentials for a user
type StravaToken struct {
	UserID       string    `json:"user_id" db:"user_id"`
	AccessToken  string    `json:"-" db:"access_token"`
	RefreshToken string    `json:"-" db:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at" db:"expires_at"`
}

// PendingAnnotation is an activity whose generated text has not been applied
type PendingAnnotation struct {
	ActivityID       int64     `json:"activity_id" db:"id"`
	UserID           string    `json:"user_id" db:"user_id"`
	StravaActivityID int64     `json:"strava_activity_id" db:"strava_activity_id"`
	Text             string    `json:"text" db:"annotation_text"`
	GeneratedAt      time.Time `json:"generated_at" db:"annotation_generated_at"`
	Attempts         int       `json:"attempts" db:"annotation_attempts"`
	AccessToken      string    `json:"-" db:"access_token"`
}
