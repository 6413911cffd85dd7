package models

// PrivacyZone hides the parts of a track within RadiusMeters of its center
type PrivacyZone struct {
	ID        int64   `json:"id" db:"id"`
	UserID    string  `json:"user_id" db:"user_id"`
	CenterLon float64 `json:"center_lon" db:"center_lon"`
	CenterLat float64 `json:"center_lat" db:"center_lat"`
	RadiusM   float64 `json:"radius_m" db:"radius_m"`
}
