package models

// Absence marks a user as unavailable between two dates (inclusive), with an
// optional pre-agreed substitute. Dates are YYYY-MM-DD.
type Absence struct {
	ID           string  `json:"id"`
	UserID       string  `json:"user_id"`
	SubstituteID *string `json:"substitute_id"`
	Kind         string  `json:"kind"`
	StartsOn     string  `json:"starts_on"`
	EndsOn       string  `json:"ends_on"`
	Active       bool    `json:"active"`
}

// AutoGenerateConfig is the persisted schedule-trigger configuration. It is
// advisory: repeated generator runs for the same period are safe regardless.
type AutoGenerateConfig struct {
	Enabled    bool   `json:"enabled"`
	DayOfMonth int    `json:"day_of_month"`
	LastPeriod string `json:"last_period"`
}
