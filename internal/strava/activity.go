package strava

import "strings"

// ActivityDetail is the subset of the activity payload the pipeline reads
type ActivityDetail struct {
	ID             int64    `json:"id"`
	Type           string   `json:"type"`
	SportType      string   `json:"sport_type"`
	StartDate      string   `json:"start_date"`
	StartDateLocal string   `json:"start_date_local"`
	Distance       *float64 `json:"distance"`
	Trainer        bool     `json:"trainer"`
	Manual         bool     `json:"manual"`
	Description    *string  `json:"description"`
	Map            struct {
		Polyline        string `json:"polyline"`
		SummaryPolyline string `json:"summary_polyline"`
	} `json:"map"`
	Athlete struct {
		ID                    int64  `json:"id"`
		MeasurementPreference string `json:"measurement_preference"`
	} `json:"athlete"`
}

// Sport returns sport_type, falling back to the legacy type field
func (d *ActivityDetail) Sport() string {
	if d.SportType != "" {
		return d.SportType
	}
	return d.Type
}

// Start returns the start date, preferring the local form used for ordering
func (d *ActivityDetail) Start() string {
	if d.StartDateLocal != "" {
		return d.StartDateLocal
	}
	return d.StartDate
}

// MeasurementPreference returns the athlete's unit preference lower-cased
func (d *ActivityDetail) MeasurementPreference() string {
	return strings.ToLower(d.Athlete.MeasurementPreference)
}

// Polyline returns the full polyline, or the summary one when absent
func (d *ActivityDetail) Polyline() string {
	if d.Map.Polyline != "" {
		return d.Map.Polyline
	}
	return d.Map.SummaryPolyline
}
