package models

import "time"

// Activity is one processed platform activity and its novelty outcome
type Activity struct {
	ID int64 `json:"id" db:"id"`

	// Identification
	UserID           string `json:"user_id" db:"user_id"`
	StravaActivityID int64  `json:"strava_activity_id" db:"strava_activity_id"`
	SportType        string `json:"sport_type" db:"sport_type"`
	StartDate        string `json:"start_date" db:"start_date"`   // ISO-8601 as reported by the platform
	Source           string `json:"source,omitempty" db:"source"` // webhook, fixture, api

	// Geometry (GeoJSON text)
	GeomGeoJSON   *string `json:"-" db:"geom_geojson"`
	MaskedGeoJSON *string `json:"-" db:"masked_geojson"`
	NovelGeoJSON  *string `json:"-" db:"novel_geojson"`

	// Novelty
	TotalMeters    float64 `json:"total_meters" db:"geom_len_m"`
	NovelMeters    float64 `json:"novel_meters" db:"new_len_m"`
	NovelFraction  float64 `json:"novel_fraction" db:"new_frac"`
	NovelCellCount int     `json:"novel_cell_count" db:"novel_cell_count"`

	Annotation AnnotationState `json:"annotation"`

	ProcessedAt *time.Time `json:"processed_at,omitempty" db:"processed_at"`
}

// AnnotationState tracks the generated text and whether it reached the platform
type AnnotationState struct {
	Text        *string    `json:"text,omitempty" db:"annotation_text"`
	GeneratedAt *time.Time `json:"generated_at,omitempty" db:"annotation_generated_at"`
	AppliedAt   *time.Time `json:"applied_at,omitempty" db:"annotation_applied_at"`
	Attempts    int        `json:"attempts" db:"annotation_attempts"`
}

// Pending reports whether the text still has to be written to the platform
func (s AnnotationState) Pending() bool {
	if s.Text == nil || s.GeneratedAt == nil {
		return false
	}
	return s.AppliedAt == nil || s.AppliedAt.Before(*s.GeneratedAt)
}
