package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/unilocal/internal/application"
	"github.com/example/unilocal/internal/persistence"
	"github.com/example/unilocal/internal/scheduler"
)

var (
	userCounter    uint64
	placeCounter   uint64
	sessionCounter uint64
)

// referenceTime is a Monday morning so weekday schedules are open at it.
var referenceTime = time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// Weekdays is Monday to Friday, 08:00 - 17:00.
func Weekdays() scheduler.Schedule {
	return scheduler.MustSchedule(scheduler.Monday, scheduler.Friday, scheduler.MustAt(8, 0), scheduler.MustAt(17, 0))
}

// Weekend is Saturday to Sunday, 10:00 - 14:00.
func Weekend() scheduler.Schedule {
	return scheduler.MustSchedule(scheduler.Saturday, scheduler.Sunday, scheduler.MustAt(10, 0), scheduler.MustAt(14, 0))
}

// ----------------------------- User fixtures -----------------------------

// UserFixture is a deterministic account that can be materialised for
// application or persistence tests.
type UserFixture struct {
	ID           string
	Email        string
	DisplayName  string
	Username     string
	City         string
	Role         application.Role
	PasswordHash string
	CreatedAt    time.Time
}

type UserOption func(*UserFixture)

func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	fixture := UserFixture{
		ID:           id,
		Email:        id + "@example.com",
		DisplayName:  fmt.Sprintf("User %03d", idx),
		Username:     fmt.Sprintf("user_%03d", idx),
		City:         "Armenia",
		Role:         application.RoleUser,
		PasswordHash: "hash-" + id,
		CreatedAt:    referenceTime.Add(-time.Duration(idx) * time.Hour),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

func WithUserID(id string) UserOption {
	return func(f *UserFixture) { f.ID = id }
}

func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) { f.Email = email }
}

func WithUserDisplayName(name string) UserOption {
	return func(f *UserFixture) { f.DisplayName = name }
}

// WithModerator gives the fixture the moderator role.
func WithModerator() UserOption {
	return func(f *UserFixture) { f.Role = application.RoleModerator }
}

func WithUserPasswordHash(hash string) UserOption {
	return func(f *UserFixture) { f.PasswordHash = hash }
}

func (f UserFixture) Application() application.User {
	return application.User{
		ID:          f.ID,
		Email:       f.Email,
		DisplayName: f.DisplayName,
		Username:    f.Username,
		City:        f.City,
		Role:        f.Role,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.CreatedAt,
	}
}

func (f UserFixture) Credentials() application.UserCredentials {
	return application.UserCredentials{User: f.Application(), PasswordHash: f.PasswordHash}
}

func (f UserFixture) Principal() application.Principal {
	return f.Application().Principal()
}

func (f UserFixture) Persistence() persistence.User {
	return persistence.User{
		ID:           f.ID,
		Email:        f.Email,
		DisplayName:  f.DisplayName,
		Username:     f.Username,
		City:         f.City,
		Role:         string(f.Role),
		PasswordHash: f.PasswordHash,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.CreatedAt,
	}
}

// ----------------------------- Place fixtures -----------------------------

// PlaceFixture is a deterministic place owned by OwnerID. It defaults to an
// approved cafe open on weekdays.
type PlaceFixture struct {
	ID              string
	OwnerID         string
	Name            string
	Description     string
	Category        application.Category
	Address         string
	City            string
	Latitude        float64
	Longitude       float64
	Phones          []string
	Images          []string
	Schedules       []scheduler.Schedule
	Status          application.PlaceStatus
	RejectionReason *string
	CreatedAt       time.Time
}

type PlaceOption func(*PlaceFixture)

func NewPlaceFixture(ownerID string, opts ...PlaceOption) PlaceFixture {
	idx := atomic.AddUint64(&placeCounter, 1)
	fixture := PlaceFixture{
		ID:          fmt.Sprintf("place-%03d", idx),
		OwnerID:     ownerID,
		Name:        fmt.Sprintf("Place %03d", idx),
		Description: "A place to visit",
		Category:    application.CategoryCafe,
		Address:     fmt.Sprintf("Calle %d # 14-20", idx),
		City:        "Armenia",
		Latitude:    4.5339,
		Longitude:   -75.6811,
		Phones:      []string{"+57 606 7410000"},
		Images:      []string{fmt.Sprintf("https://img.example.com/%03d.jpg", idx)},
		Schedules:   []scheduler.Schedule{Weekdays()},
		Status:      application.StatusApproved,
		CreatedAt:   referenceTime.Add(-time.Duration(idx) * time.Minute),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

func WithPlaceID(id string) PlaceOption {
	return func(f *PlaceFixture) { f.ID = id }
}

func WithPlaceName(name string) PlaceOption {
	return func(f *PlaceFixture) { f.Name = name }
}

func WithCategory(category application.Category) PlaceOption {
	return func(f *PlaceFixture) { f.Category = category }
}

func WithCity(city string) PlaceOption {
	return func(f *PlaceFixture) { f.City = city }
}

func WithStatus(status application.PlaceStatus) PlaceOption {
	return func(f *PlaceFixture) { f.Status = status }
}

// WithSchedules replaces the default weekday schedule. No schedules is allowed.
func WithSchedules(schedules ...scheduler.Schedule) PlaceOption {
	return func(f *PlaceFixture) { f.Schedules = schedules }
}

func WithCreatedAt(t time.Time) PlaceOption {
	return func(f *PlaceFixture) { f.CreatedAt = t }
}

func (f PlaceFixture) Application() application.Place {
	return application.Place{
		ID:              f.ID,
		OwnerID:         f.OwnerID,
		Name:            f.Name,
		Description:     f.Description,
		Category:        f.Category,
		Address:         f.Address,
		City:            f.City,
		Latitude:        f.Latitude,
		Longitude:       f.Longitude,
		Phones:          append([]string(nil), f.Phones...),
		Images:          append([]string(nil), f.Images...),
		Schedules:       append([]scheduler.Schedule(nil), f.Schedules...),
		Status:          f.Status,
		RejectionReason: f.RejectionReason,
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       f.CreatedAt,
	}
}

func (f PlaceFixture) Persistence() persistence.Place {
	schedules := make([]persistence.PlaceSchedule, 0, len(f.Schedules))
	for _, s := range f.Schedules {
		schedules = append(schedules, persistence.PlaceSchedule{
			DayStart: int(s.DayStart()),
			DayEnd:   int(s.DayEnd()),
			OpensAt:  s.Start().String(),
			ClosesAt: s.End().String(),
		})
	}
	return persistence.Place{
		ID:              f.ID,
		OwnerID:         f.OwnerID,
		Name:            f.Name,
		Description:     f.Description,
		Category:        string(f.Category),
		Address:         f.Address,
		City:            f.City,
		Latitude:        f.Latitude,
		Longitude:       f.Longitude,
		Phones:          append([]string(nil), f.Phones...),
		Images:          append([]string(nil), f.Images...),
		Schedules:       schedules,
		Status:          string(f.Status),
		RejectionReason: f.RejectionReason,
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       f.CreatedAt,
	}
}

// Input returns the editable fields, with schedules typed as English
// 12-hour entries.
func (f PlaceFixture) Input() application.PlaceInput {
	entries := make([]scheduler.EntryInput, 0, len(f.Schedules))
	english := scheduler.MustLoadLocale("en")
	for _, s := range f.Schedules {
		entries = append(entries, scheduler.EntryInput{
			StartDay: english.DayName(s.DayStart()),
			EndDay:   english.DayName(s.DayEnd()),
			Open:     scheduler.ClockTimeOf(s.Start()),
			Close:    scheduler.ClockTimeOf(s.End()),
		})
	}
	return application.PlaceInput{
		Name:        f.Name,
		Description: f.Description,
		Category:    f.Category,
		Address:     f.Address,
		City:        f.City,
		Latitude:    f.Latitude,
		Longitude:   f.Longitude,
		Phones:      append([]string(nil), f.Phones...),
		Images:      append([]string(nil), f.Images...),
		Schedules:   entries,
	}
}

// ----------------------------- Session fixtures -----------------------------

type SessionFixture struct {
	ID          string
	UserID      string
	Fingerprint string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	RevokedAt   *time.Time
}

type SessionOption func(*SessionFixture)

// NewSessionFixture returns a session valid for a day after ReferenceTime.
func NewSessionFixture(userID string, opts ...SessionOption) SessionFixture {
	idx := atomic.AddUint64(&sessionCounter, 1)
	fixture := SessionFixture{
		ID:          fmt.Sprintf("session-%03d", idx),
		UserID:      userID,
		Fingerprint: "test-agent",
		CreatedAt:   referenceTime,
		ExpiresAt:   referenceTime.Add(24 * time.Hour),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

func WithSessionExpiry(t time.Time) SessionOption {
	return func(f *SessionFixture) { f.ExpiresAt = t }
}

func WithSessionRevokedAt(t time.Time) SessionOption {
	return func(f *SessionFixture) { f.RevokedAt = &t }
}

func (f SessionFixture) Persistence() persistence.Session {
	return persistence.Session{
		ID:          f.ID,
		UserID:      f.UserID,
		Fingerprint: f.Fingerprint,
		ExpiresAt:   f.ExpiresAt,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.CreatedAt,
		RevokedAt:   f.RevokedAt,
	}
}

func (f SessionFixture) Application() application.Session {
	return application.Session{
		ID:          f.ID,
		UserID:      f.UserID,
		Fingerprint: f.Fingerprint,
		ExpiresAt:   f.ExpiresAt,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.CreatedAt,
		RevokedAt:   f.RevokedAt,
	}
}
