package application

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/unilocal/internal/persistence"
	"github.com/example/unilocal/internal/scheduler"
	"github.com/example/unilocal/internal/token"
)

type userRepositoryStub struct {
	mu    sync.Mutex
	users map[string]UserCredentials
	err   error
}

func newUserRepositoryStub(seed ...UserCredentials) *userRepositoryStub {
	repo := &userRepositoryStub{users: make(map[string]UserCredentials)}
	for _, c := range seed {
		repo.users[c.User.ID] = c
	}
	return repo
}

func (r *userRepositoryStub) CreateUser(_ context.Context, creds UserCredentials) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return User{}, r.err
	}
	for _, existing := range r.users {
		if existing.User.Email == creds.User.Email || existing.User.Username == creds.User.Username {
			return User{}, persistence.ErrDuplicate
		}
	}
	r.users[creds.User.ID] = creds
	return creds.User, nil
}

func (r *userRepositoryStub) GetUser(_ context.Context, id string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	creds, ok := r.users[id]
	if !ok {
		return User{}, persistence.ErrNotFound
	}
	return creds.User, nil
}

func (r *userRepositoryStub) GetUserCredentials(_ context.Context, id string) (UserCredentials, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	creds, ok := r.users[id]
	if !ok {
		return UserCredentials{}, persistence.ErrNotFound
	}
	return creds, nil
}

func (r *userRepositoryStub) GetUserCredentialsByEmail(_ context.Context, email string) (UserCredentials, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, creds := range r.users {
		if creds.User.Email == email {
			return creds, nil
		}
	}
	return UserCredentials{}, persistence.ErrNotFound
}

func (r *userRepositoryStub) UpdateUser(_ context.Context, user User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	creds, ok := r.users[user.ID]
	if !ok {
		return User{}, persistence.ErrNotFound
	}
	creds.User = user
	r.users[user.ID] = creds
	return user, nil
}

func (r *userRepositoryStub) UpdatePassword(_ context.Context, id, hash string, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	creds, ok := r.users[id]
	if !ok {
		return persistence.ErrNotFound
	}
	creds.PasswordHash = hash
	creds.User.UpdatedAt = updatedAt
	r.users[id] = creds
	return nil
}

func (r *userRepositoryStub) DeleteUser(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *userRepositoryStub) ListUsers(context.Context) ([]User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	out := make([]User, 0, len(r.users))
	for _, creds := range r.users {
		out = append(out, creds.User)
	}
	return out, nil
}

type sessionRepositoryStub struct {
	mu          sync.Mutex
	sessions    map[string]Session
	deleteCalls []time.Time
	createErr   error
	deleteErr   error
}

func newSessionRepositoryStub() *sessionRepositoryStub {
	return &sessionRepositoryStub{sessions: make(map[string]Session)}
}

func (r *sessionRepositoryStub) seed(session Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = session
}

func (r *sessionRepositoryStub) CreateSession(_ context.Context, session Session) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return Session{}, r.createErr
	}
	if _, ok := r.sessions[session.ID]; ok {
		return Session{}, persistence.ErrDuplicate
	}
	r.sessions[session.ID] = session
	return session, nil
}

func (r *sessionRepositoryStub) GetSession(_ context.Context, id string) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return Session{}, persistence.ErrNotFound
	}
	return session, nil
}

func (r *sessionRepositoryStub) UpdateSession(_ context.Context, session Session) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[session.ID]; !ok {
		return Session{}, persistence.ErrNotFound
	}
	r.sessions[session.ID] = session
	return session, nil
}

func (r *sessionRepositoryStub) RevokeSession(_ context.Context, id string, at time.Time) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return Session{}, persistence.ErrNotFound
	}
	if session.RevokedAt == nil {
		revoked := at
		session.RevokedAt = &revoked
	}
	r.sessions[id] = session
	return session, nil
}

func (r *sessionRepositoryStub) DeleteExpiredSessions(_ context.Context, ref time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleteCalls = append(r.deleteCalls, ref)
	if r.deleteErr != nil {
		return 0, r.deleteErr
	}
	var removed int64
	for id, s := range r.sessions {
		if !s.ExpiresAt.After(ref) || (s.RevokedAt != nil && !s.RevokedAt.After(ref)) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// tokenIssuerStub encodes tokens as "tok:<session>" and reports any session
// listed in expired as expired.
type tokenIssuerStub struct {
	expired map[string]bool
	err     error
}

func (t *tokenIssuerStub) Issue(_, sessionID string, _, _ time.Time) (string, error) {
	if t.err != nil {
		return "", t.err
	}
	return "tok:" + sessionID, nil
}

func (t *tokenIssuerStub) Verify(raw string) (string, error) {
	id, ok := strings.CutPrefix(raw, "tok:")
	if !ok || id == "" {
		return "", token.ErrInvalid
	}
	if t.expired[id] {
		return "", token.ErrExpired
	}
	return id, nil
}

type placeRepositoryStub struct {
	mu        sync.Mutex
	places    map[string]Place
	listCalls int
	err       error
	// beforeEdit runs at the start of EditSchedules, outside the lock.
	beforeEdit func()
}

func newPlaceRepositoryStub(seed ...Place) *placeRepositoryStub {
	repo := &placeRepositoryStub{places: make(map[string]Place)}
	for _, p := range seed {
		repo.places[p.ID] = clonePlace(p)
	}
	return repo
}

func (r *placeRepositoryStub) CreatePlace(_ context.Context, place Place) (Place, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return Place{}, r.err
	}
	if _, ok := r.places[place.ID]; ok {
		return Place{}, persistence.ErrDuplicate
	}
	r.places[place.ID] = clonePlace(place)
	return clonePlace(place), nil
}

func (r *placeRepositoryStub) GetPlace(_ context.Context, id string) (Place, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	place, ok := r.places[id]
	if !ok {
		return Place{}, persistence.ErrNotFound
	}
	return clonePlace(place), nil
}

func (r *placeRepositoryStub) UpdatePlace(_ context.Context, place Place) (Place, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return Place{}, r.err
	}
	if _, ok := r.places[place.ID]; !ok {
		return Place{}, persistence.ErrNotFound
	}
	r.places[place.ID] = clonePlace(place)
	return clonePlace(place), nil
}

func (r *placeRepositoryStub) EditSchedules(_ context.Context, placeID string, updatedAt time.Time, edit func([]scheduler.Schedule) ([]scheduler.Schedule, error)) (Place, error) {
	if r.beforeEdit != nil {
		r.beforeEdit()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return Place{}, r.err
	}
	place, ok := r.places[placeID]
	if !ok {
		return Place{}, persistence.ErrNotFound
	}
	schedules, err := edit(slices.Clone(place.Schedules))
	if err != nil {
		return Place{}, err
	}
	place.Schedules = schedules
	place.UpdatedAt = updatedAt
	r.places[placeID] = place
	return clonePlace(place), nil
}

func (r *placeRepositoryStub) DeletePlace(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.places[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(r.places, id)
	return nil
}

func (r *placeRepositoryStub) ListPlaces(_ context.Context, q PlaceQuery) ([]Place, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	if r.err != nil {
		return nil, r.err
	}
	var out []Place
	for _, p := range r.places {
		switch {
		case q.Category != "" && p.Category != q.Category:
			continue
		case q.City != "" && !strings.EqualFold(p.City, q.City):
			continue
		case q.OwnerID != "" && p.OwnerID != q.OwnerID:
			continue
		case len(q.Statuses) > 0 && !slices.Contains(q.Statuses, p.Status):
			continue
		case q.Query != "" && !strings.Contains(strings.ToLower(p.Name+" "+p.Description), strings.ToLower(q.Query)):
			continue
		}
		out = append(out, clonePlace(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ApplyDecision mirrors the conditional update of the storage layer.
func (r *placeRepositoryStub) applyDecision(record ModerationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	place, ok := r.places[record.PlaceID]
	if !ok {
		return persistence.ErrNotFound
	}
	if place.Status != StatusPending {
		return persistence.ErrConflict
	}
	place.Status = record.Decision
	place.RejectionReason = record.Reason
	place.UpdatedAt = record.CreatedAt
	r.places[place.ID] = place
	return nil
}

type moderationRepositoryStub struct {
	mu      sync.Mutex
	places  *placeRepositoryStub
	records []ModerationRecord
}

func (r *moderationRepositoryStub) ApplyDecision(_ context.Context, record ModerationRecord) error {
	if err := r.places.applyDecision(record); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return nil
}

func (r *moderationRepositoryStub) ListModerationRecords(_ context.Context, placeID string) ([]ModerationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ModerationRecord
	for _, rec := range r.records {
		if placeID == "" || rec.PlaceID == placeID {
			out = append(out, rec)
		}
	}
	return out, nil
}

type favoriteRepositoryStub struct {
	mu        sync.Mutex
	favorites []Favorite
	err       error
}

func (r *favoriteRepositoryStub) AddFavorite(_ context.Context, fav Favorite) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	for _, f := range r.favorites {
		if f.UserID == fav.UserID && f.PlaceID == fav.PlaceID {
			return nil
		}
	}
	r.favorites = append(r.favorites, fav)
	return nil
}

func (r *favoriteRepositoryStub) RemoveFavorite(_ context.Context, userID, placeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, f := range r.favorites {
		if f.UserID == userID && f.PlaceID == placeID {
			r.favorites = append(r.favorites[:i], r.favorites[i+1:]...)
			return nil
		}
	}
	return persistence.ErrNotFound
}

func (r *favoriteRepositoryStub) ListFavorites(_ context.Context, userID string) ([]Favorite, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Favorite
	for _, f := range r.favorites {
		if f.UserID == userID {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func sequence(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func englishLocale() *scheduler.Locale {
	return scheduler.MustLoadLocale("en")
}

func entry(startDay, endDay string, openHour int, openPeriod scheduler.Period, closeHour int, closePeriod scheduler.Period) scheduler.EntryInput {
	return scheduler.EntryInput{
		StartDay: startDay,
		EndDay:   endDay,
		Open:     scheduler.ClockTime{Hour: openHour, Period: openPeriod},
		Close:    scheduler.ClockTime{Hour: closeHour, Period: closePeriod},
	}
}

func validPlaceInput(schedules ...scheduler.EntryInput) PlaceInput {
	return PlaceInput{
		Name:        "Café Central",
		Description: "Coffee and pastries",
		Category:    CategoryCafe,
		Address:     "Calle 10 #5-20",
		City:        "Armenia",
		Latitude:    4.53,
		Longitude:   -75.68,
		Phones:      []string{"+57 300 000 0000"},
		Images:      []string{"https://example.com/cafe.jpg"},
		Schedules:   schedules,
	}
}

var errBoom = errors.New("boom")
