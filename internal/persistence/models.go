package persistence

import "time"

// User represents a registered account.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	Username     string
	City         string
	Role         string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PlaceSchedule is one weekly opening range stored as day numbers and HH:MM strings.
type PlaceSchedule struct {
	DayStart int
	DayEnd   int
	OpensAt  string
	ClosesAt string
}

// Place represents a point of interest and its child collections.
type Place struct {
	ID              string
	OwnerID         string
	Name            string
	Description     string
	Category        string
	Address         string
	City            string
	Latitude        float64
	Longitude       float64
	Phones          []string
	Images          []string
	Schedules       []PlaceSchedule
	Status          string
	RejectionReason *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Favorite links a user to a place they saved.
type Favorite struct {
	UserID    string
	PlaceID   string
	CreatedAt time.Time
}

// ModerationRecord is an audit entry for a moderation decision.
type ModerationRecord struct {
	ID          string
	PlaceID     string
	ModeratorID string
	Decision    string
	Reason      *string
	CreatedAt   time.Time
}

// Session represents an authentication session persisted for a user.
type Session struct {
	ID          string
	UserID      string
	Fingerprint string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	RevokedAt   *time.Time
}
