package application

import (
	"time"

	"github.com/example/unilocal/internal/scheduler"
)

// Role distinguishes regular accounts from moderators.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID      string
	IsModerator bool
}

// User represents an account exposed by the application services.
type User struct {
	ID          string
	Email       string
	DisplayName string
	Username    string
	City        string
	Role        Role
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsModerator reports whether the user may moderate places.
func (u User) IsModerator() bool {
	return u.Role == RoleModerator
}

// Principal returns the principal acting as u.
func (u User) Principal() Principal {
	return Principal{UserID: u.ID, IsModerator: u.IsModerator()}
}

// UserCredentials models the authentication attributes persisted for a user.
type UserCredentials struct {
	User         User
	PasswordHash string
}

// RegisterParams captures the public sign-up form.
type RegisterParams struct {
	Email       string
	DisplayName string
	Username    string
	City        string
	Password    string
}

// UpdateProfileParams wraps the editable profile fields of the caller.
type UpdateProfileParams struct {
	Principal   Principal
	DisplayName string
	Username    string
	City        string
}

// ChangePasswordParams wraps a password rotation request for the caller.
type ChangePasswordParams struct {
	Principal       Principal
	CurrentPassword string
	NewPassword     string
}

// Session represents an authenticated session issued to a user. Token is
// only populated on the result of Authenticate and RefreshSession.
type Session struct {
	ID          string
	UserID      string
	Token       string
	Fingerprint string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	RevokedAt   *time.Time
}

// AuthenticateParams captures the data required to authenticate a user.
type AuthenticateParams struct {
	Email       string
	Password    string
	Fingerprint string
}

// AuthenticateResult captures the outcome of a successful authentication attempt.
type AuthenticateResult struct {
	User    User
	Session Session
}

// RefreshSessionParams captures the data required to refresh an existing session.
type RefreshSessionParams struct {
	Token       string
	Fingerprint string
}

// RefreshSessionResult captures the outcome of rotating a session token.
type RefreshSessionResult struct {
	Session Session
}

// Category classifies a place.
type Category string

const (
	CategoryRestaurant Category = "restaurant"
	CategoryCafe       Category = "cafe"
	CategoryMuseum     Category = "museum"
	CategoryStore      Category = "store"
	CategoryTheater    Category = "theater"
	CategoryHotel      Category = "hotel"
	CategoryBar        Category = "bar"
	CategoryPark       Category = "park"
	CategoryOther      Category = "other"
)

// Categories lists every accepted category.
var Categories = []Category{
	CategoryRestaurant,
	CategoryCafe,
	CategoryMuseum,
	CategoryStore,
	CategoryTheater,
	CategoryHotel,
	CategoryBar,
	CategoryPark,
	CategoryOther,
}

// PlaceStatus is the moderation state of a place.
type PlaceStatus string

const (
	StatusPending  PlaceStatus = "pending"
	StatusApproved PlaceStatus = "approved"
	StatusRejected PlaceStatus = "rejected"
)

// Place is a point of interest published by a user.
type Place struct {
	ID              string
	OwnerID         string
	Name            string
	Description     string
	Category        Category
	Address         string
	City            string
	Latitude        float64
	Longitude       float64
	Phones          []string
	Images          []string
	Schedules       []scheduler.Schedule
	Status          PlaceStatus
	RejectionReason *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PlaceInput captures caller provided place fields. Schedules are typed
// entries that are replayed through an editing session.
type PlaceInput struct {
	Name        string
	Description string
	Category    Category
	Address     string
	City        string
	Latitude    float64
	Longitude   float64
	Phones      []string
	Images      []string
	Schedules   []scheduler.EntryInput
}

// CreatePlaceParams wraps the data required to create a place.
type CreatePlaceParams struct {
	Principal Principal
	Input     PlaceInput
}

// UpdatePlaceParams wraps the data required to update a place.
type UpdatePlaceParams struct {
	Principal Principal
	PlaceID   string
	Input     PlaceInput
}

// PlaceFilter narrows place listings. Zero fields match everything.
type PlaceFilter struct {
	Query    string
	Category Category
	City     string
	OpenAt   *time.Time
	OwnerID  string
	Status   PlaceStatus
}

// ListPlacesParams wraps the data required to list places.
type ListPlacesParams struct {
	Principal Principal
	Filter    PlaceFilter
}

// PlaceQuery is the storage level place filter.
type PlaceQuery struct {
	Query    string
	Category Category
	City     string
	OwnerID  string
	Statuses []PlaceStatus
}

// AddPlaceScheduleParams wraps a typed schedule entry for an existing place.
type AddPlaceScheduleParams struct {
	Principal Principal
	PlaceID   string
	Entry     scheduler.EntryInput
}

// RemovePlaceScheduleParams identifies the schedule to drop from a place.
type RemovePlaceScheduleParams struct {
	Principal Principal
	PlaceID   string
	Schedule  scheduler.Schedule
}

// ScheduleEditResult is the place after a schedule edit together with the
// localized status line of the editing session.
type ScheduleEditResult struct {
	Place   Place
	Message string
}

// OpeningsParams selects the window of concrete openings to expand.
type OpeningsParams struct {
	Principal Principal
	PlaceID   string
	From      time.Time
	To        time.Time
}

// Opening is one concrete interval during which a place is open.
type Opening struct {
	Schedule scheduler.Schedule
	Label    string
	Start    time.Time
	End      time.Time
}

// ModerationRecord is an audit entry for a moderation decision.
type ModerationRecord struct {
	ID          string
	PlaceID     string
	ModeratorID string
	Decision    PlaceStatus
	Reason      *string
	CreatedAt   time.Time
}

// ModerationParams identifies the place a moderator acts on.
type ModerationParams struct {
	Principal Principal
	PlaceID   string
}

// RejectPlaceParams wraps a rejection with its mandatory reason.
type RejectPlaceParams struct {
	Principal Principal
	PlaceID   string
	Reason    string
}

// Favorite links a user to a saved place.
type Favorite struct {
	UserID    string
	PlaceID   string
	CreatedAt time.Time
}

// FavoritePlace is a saved place as shown in the caller's list.
type FavoritePlace struct {
	Place   Place
	SavedAt time.Time
}
