package db

import "time"

// Slot is one named token value, e.g. the refresh token of a credential set.
type Slot struct {
	Name      string     `gorm:"primaryKey" json:"name"`
	Value     string     `json:"value"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Expired reports whether the slot carries an expiry that has passed.
func (s *Slot) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}
