package persistence

import (
	"context"
	"time"
)

// UserRepository exposes CRUD operations for users.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	DeleteUser(ctx context.Context, id string) error
}

// PlaceFilter narrows place queries. Empty fields match everything.
type PlaceFilter struct {
	Query    string
	Category string
	City     string
	OwnerID  string
	Statuses []string
}

// ScheduleEdit derives the schedules to store from the current ones.
type ScheduleEdit func(current []PlaceSchedule) ([]PlaceSchedule, error)

// PlaceRepository stores places together with their phones, images and schedules.
type PlaceRepository interface {
	CreatePlace(ctx context.Context, place Place) error
	UpdatePlace(ctx context.Context, place Place) error
	// EditSchedules reads the schedules of placeID, applies edit and stores
	// the result in one transaction. Status and the other columns are left
	// untouched. An error from edit aborts the transaction and is returned.
	EditSchedules(ctx context.Context, placeID string, updatedAt time.Time, edit ScheduleEdit) error
	GetPlace(ctx context.Context, id string) (Place, error)
	ListPlaces(ctx context.Context, filter PlaceFilter) ([]Place, error)
	DeletePlace(ctx context.Context, id string) error
}

// FavoriteRepository stores the places each user saved.
type FavoriteRepository interface {
	AddFavorite(ctx context.Context, favorite Favorite) error
	RemoveFavorite(ctx context.Context, userID, placeID string) error
	ListFavorites(ctx context.Context, userID string) ([]Favorite, error)
}

// ModerationRepository records decisions and applies them to places atomically.
type ModerationRepository interface {
	// ApplyDecision moves a pending place to record.Decision and stores record.
	// It returns ErrConflict when the place is no longer pending.
	ApplyDecision(ctx context.Context, record ModerationRecord) error
	// ListModerationRecords returns records for placeID, or all records when it is empty.
	ListModerationRecords(ctx context.Context, placeID string) ([]ModerationRecord, error)
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, id string) (Session, error)
	UpdateSession(ctx context.Context, session Session) (Session, error)
	RevokeSession(ctx context.Context, id string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) (int64, error)
}
