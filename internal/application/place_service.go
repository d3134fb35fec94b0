package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/example/unilocal/internal/recurrence"
	"github.com/example/unilocal/internal/scheduler"
)

// PlaceRepository captures the persistence operations needed by the place services.
type PlaceRepository interface {
	CreatePlace(ctx context.Context, place Place) (Place, error)
	GetPlace(ctx context.Context, id string) (Place, error)
	UpdatePlace(ctx context.Context, place Place) (Place, error)
	// EditSchedules applies edit to the stored schedules of placeID
	// atomically and returns the updated place. Status is left as stored.
	EditSchedules(ctx context.Context, placeID string, updatedAt time.Time, edit func([]scheduler.Schedule) ([]scheduler.Schedule, error)) (Place, error)
	DeletePlace(ctx context.Context, id string) error
	ListPlaces(ctx context.Context, query PlaceQuery) ([]Place, error)
}

const (
	maxPlaceNameLength = 120
	maxPlaceImages     = 10
)

// PlaceService orchestrates validation, visibility and schedule editing for places.
type PlaceService struct {
	places      PlaceRepository
	engine      *recurrence.Engine
	locale      *scheduler.Locale
	cache       *SearchCache
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewPlaceService constructs a place service with the provided dependencies.
func NewPlaceService(places PlaceRepository, engine *recurrence.Engine, locale *scheduler.Locale, idGenerator func() string, now func() time.Time) *PlaceService {
	return NewPlaceServiceWithLogger(places, engine, locale, nil, idGenerator, now, nil)
}

// NewPlaceServiceWithLogger constructs a place service with a search cache and logger.
// A nil engine uses the default zone, a nil locale the default locale and a nil cache
// disables caching.
func NewPlaceServiceWithLogger(places PlaceRepository, engine *recurrence.Engine, locale *scheduler.Locale, cache *SearchCache, idGenerator func() string, now func() time.Time, logger *slog.Logger) *PlaceService {
	if engine == nil {
		engine = recurrence.NewEngine(nil)
	}
	if locale == nil {
		locale = scheduler.MustLoadLocale(scheduler.DefaultLocale)
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &PlaceService{
		places:      places,
		engine:      engine,
		locale:      locale,
		cache:       cache,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *PlaceService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "PlaceService", operation, attrs...)
}

func (s *PlaceService) configured() error {
	if s == nil {
		return fmt.Errorf("PlaceService is nil")
	}
	if s.places == nil {
		return fmt.Errorf("place repository not configured")
	}
	return nil
}

// Locale returns the table used to parse day names and format schedules.
func (s *PlaceService) Locale() *scheduler.Locale {
	return s.locale
}

// CreatePlace validates input and stores a new place pending moderation.
func (s *PlaceService) CreatePlace(ctx context.Context, params CreatePlaceParams) (place Place, err error) {
	if err = s.configured(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "CreatePlace", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create place", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("place_id", place.ID, "schedules", len(place.Schedules)).InfoContext(ctx, "place created")
	}()

	if params.Principal.UserID == "" {
		err = ErrUnauthorized
		return
	}

	input := normalizePlaceInput(params.Input)
	vErr := validatePlaceInput(input)
	schedules, sErr := s.replaySchedules(input.Schedules)
	vErr.merge(sErr)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now()
	place = Place{
		ID:        s.idGenerator(),
		OwnerID:   params.Principal.UserID,
		Status:    StatusPending,
		Schedules: schedules,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyPlaceInput(&place, input)

	place, err = s.places.CreatePlace(ctx, place)
	if err != nil {
		err = mapRepoError(err)
		return
	}
	s.cache.Invalidate()
	place = s.presentPlace(place)
	return
}

// UpdatePlace replaces the editable fields of a place owned by the caller and
// returns it to moderation.
func (s *PlaceService) UpdatePlace(ctx context.Context, params UpdatePlaceParams) (place Place, err error) {
	if err = s.configured(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "UpdatePlace",
		"principal_id", params.Principal.UserID,
		"place_id", params.PlaceID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update place", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "place updated")
	}()

	var existing Place
	existing, err = s.loadOwned(ctx, params.Principal, params.PlaceID)
	if err != nil {
		return
	}

	input := normalizePlaceInput(params.Input)
	vErr := validatePlaceInput(input)
	schedules, sErr := s.replaySchedules(input.Schedules)
	vErr.merge(sErr)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	updated := existing
	applyPlaceInput(&updated, input)
	updated.Schedules = schedules
	updated.Status = StatusPending
	updated.RejectionReason = nil
	updated.UpdatedAt = s.now()

	place, err = s.places.UpdatePlace(ctx, updated)
	if err != nil {
		err = mapRepoError(err)
		return
	}
	s.cache.Invalidate()
	place = s.presentPlace(place)
	return
}

// DeletePlace removes a place. Owners and moderators may delete.
func (s *PlaceService) DeletePlace(ctx context.Context, principal Principal, placeID string) (err error) {
	if err = s.configured(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "DeletePlace",
		"principal_id", principal.UserID,
		"place_id", placeID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete place", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "place deleted")
	}()

	place, err := s.loadVisible(ctx, principal, placeID)
	if err != nil {
		return err
	}
	if !principal.IsModerator && place.OwnerID != principal.UserID {
		return ErrUnauthorized
	}

	if err = s.places.DeletePlace(ctx, placeID); err != nil {
		return mapRepoError(err)
	}
	s.cache.Invalidate()
	return nil
}

// GetPlace returns a place the caller may see with schedules in weekly order.
func (s *PlaceService) GetPlace(ctx context.Context, principal Principal, placeID string) (Place, error) {
	if err := s.configured(); err != nil {
		return Place{}, err
	}
	place, err := s.loadVisible(ctx, principal, placeID)
	if err != nil {
		return Place{}, err
	}
	return s.presentPlace(place), nil
}

// ListPlaces returns the places matching the filter that the caller may see,
// sorted by name then ID.
func (s *PlaceService) ListPlaces(ctx context.Context, params ListPlacesParams) (places []Place, err error) {
	if err = s.configured(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "ListPlaces", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list places", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("count", len(places)).DebugContext(ctx, "places listed")
	}()

	filter := params.Filter
	vErr := &ValidationError{}
	if filter.Category != "" && !slices.Contains(Categories, filter.Category) {
		vErr.add("category", "category is not supported")
	}
	if filter.Status != "" && !validStatus(filter.Status) {
		vErr.add("status", "status is not supported")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	key := buildSearchCacheKey(params)
	if cached, ok := s.cache.Get(key); ok {
		places = cached
		return
	}

	query := PlaceQuery{
		Query:    strings.TrimSpace(filter.Query),
		Category: filter.Category,
		City:     strings.TrimSpace(filter.City),
		OwnerID:  strings.TrimSpace(filter.OwnerID),
	}
	ownListing := query.OwnerID != "" && query.OwnerID == params.Principal.UserID
	switch {
	case params.Principal.IsModerator || ownListing:
		if filter.Status != "" {
			query.Statuses = []PlaceStatus{filter.Status}
		}
	case filter.Status != "" && filter.Status != StatusApproved:
		s.cache.Store(key, nil)
		return nil, nil
	default:
		query.Statuses = []PlaceStatus{StatusApproved}
	}

	var stored []Place
	stored, err = s.places.ListPlaces(ctx, query)
	if err != nil {
		err = mapRepoError(err)
		return
	}

	places = make([]Place, 0, len(stored))
	for _, place := range stored {
		if filter.OpenAt != nil && !s.engine.IsOpen(place.Schedules, *filter.OpenAt) {
			continue
		}
		places = append(places, s.presentPlace(place))
	}
	sort.SliceStable(places, func(i, j int) bool {
		a, b := strings.ToLower(places[i].Name), strings.ToLower(places[j].Name)
		if a != b {
			return a < b
		}
		return places[i].ID < places[j].ID
	})

	s.cache.Store(key, places)
	return
}

// AddPlaceSchedule appends a typed schedule entry to a place owned by the caller.
// Rejections carry the localized editor message.
func (s *PlaceService) AddPlaceSchedule(ctx context.Context, params AddPlaceScheduleParams) (result ScheduleEditResult, err error) {
	return s.editSchedules(ctx, "AddPlaceSchedule", params.Principal, params.PlaceID, func(editor *scheduler.Editor) error {
		_, addErr := editor.AddSchedule(params.Entry)
		return addErr
	})
}

// RemovePlaceSchedule drops one schedule from a place owned by the caller.
func (s *PlaceService) RemovePlaceSchedule(ctx context.Context, params RemovePlaceScheduleParams) (ScheduleEditResult, error) {
	return s.editSchedules(ctx, "RemovePlaceSchedule", params.Principal, params.PlaceID, func(editor *scheduler.Editor) error {
		if !slices.Contains(editor.Snapshot(), params.Schedule) {
			return ErrNotFound
		}
		editor.RemoveSchedule(params.Schedule)
		return nil
	})
}

// ClearPlaceSchedules removes every schedule from a place owned by the caller.
func (s *PlaceService) ClearPlaceSchedules(ctx context.Context, principal Principal, placeID string) (ScheduleEditResult, error) {
	return s.editSchedules(ctx, "ClearPlaceSchedules", principal, placeID, func(editor *scheduler.Editor) error {
		editor.ClearSchedules()
		return nil
	})
}

func (s *PlaceService) editSchedules(ctx context.Context, operation string, principal Principal, placeID string, edit func(*scheduler.Editor) error) (result ScheduleEditResult, err error) {
	if err = s.configured(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, operation,
		"principal_id", principal.UserID,
		"place_id", placeID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to edit schedules", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("schedules", len(result.Place.Schedules)).InfoContext(ctx, "schedules edited")
	}()

	var place Place
	place, err = s.loadOwned(ctx, principal, placeID)
	if err != nil {
		return
	}

	var (
		message string
		editErr error
	)
	updated, err := s.places.EditSchedules(ctx, placeID, s.now(), func(current []scheduler.Schedule) ([]scheduler.Schedule, error) {
		editor := scheduler.NewEditor(s.locale)
		if loadErr := editor.Load(current); loadErr != nil {
			return nil, fmt.Errorf("load stored schedules: %w", loadErr)
		}
		editErr = edit(editor)
		message, _ = editor.Message()
		if editErr != nil {
			return nil, editErr
		}
		return editor.Snapshot(), nil
	})
	if editErr != nil {
		result = ScheduleEditResult{Place: s.presentPlace(place), Message: message}
		err = scheduleEditError(editErr, message)
		return
	}
	if err != nil {
		err = mapRepoError(err)
		return
	}
	s.cache.Invalidate()

	result = ScheduleEditResult{Place: s.presentPlace(updated), Message: message}
	return
}

// FormatSchedules renders the place schedules in weekly order with the configured locale.
func (s *PlaceService) FormatSchedules(place Place) []string {
	ordered := orderSchedules(place.Schedules)
	lines := make([]string, 0, len(ordered))
	for _, sch := range ordered {
		lines = append(lines, s.locale.Format(sch))
	}
	return lines
}

// IsOpen reports whether the place is open at the given instant in the configured zone.
func (s *PlaceService) IsOpen(place Place, at time.Time) bool {
	return s.engine.IsOpen(place.Schedules, at)
}

// NextOpening returns the first opening of the place starting at or after after.
func (s *PlaceService) NextOpening(place Place, after time.Time) (Opening, bool) {
	next, ok := s.engine.NextOpening(place.Schedules, after)
	if !ok {
		return Opening{}, false
	}
	return s.toOpening(next), true
}

// Openings expands the schedules of a visible place into concrete intervals within [From, To).
func (s *PlaceService) Openings(ctx context.Context, params OpeningsParams) ([]Opening, error) {
	if err := s.configured(); err != nil {
		return nil, err
	}
	place, err := s.loadVisible(ctx, params.Principal, params.PlaceID)
	if err != nil {
		return nil, err
	}

	expanded, err := s.engine.Openings(place.Schedules, params.From, params.To)
	if err != nil {
		if errors.Is(err, recurrence.ErrInvalidWindow) || errors.Is(err, recurrence.ErrWindowTooLarge) {
			vErr := &ValidationError{}
			vErr.add("window", fmt.Sprintf("window must be positive and at most %s", recurrence.MaxWindow))
			return nil, vErr
		}
		return nil, err
	}

	openings := make([]Opening, 0, len(expanded))
	for _, o := range expanded {
		openings = append(openings, s.toOpening(o))
	}
	return openings, nil
}

// Calendar renders the schedules of a visible place as an iCalendar feed.
func (s *PlaceService) Calendar(ctx context.Context, principal Principal, placeID string) (string, error) {
	if err := s.configured(); err != nil {
		return "", err
	}
	place, err := s.loadVisible(ctx, principal, placeID)
	if err != nil {
		return "", err
	}
	return s.engine.Calendar(recurrence.CalendarInput{
		UID:       place.ID,
		Name:      place.Name,
		Address:   strings.TrimSpace(place.Address + ", " + place.City),
		Schedules: orderSchedules(place.Schedules),
		Anchor:    s.now(),
		Format:    s.locale.Format,
	}), nil
}

func (s *PlaceService) toOpening(o recurrence.Opening) Opening {
	return Opening{
		Schedule: o.Schedule,
		Label:    s.locale.Format(o.Schedule),
		Start:    o.Start,
		End:      o.End,
	}
}

// replaySchedules feeds typed entries through a fresh editing session so the
// same rules apply at creation as in interactive edits.
func (s *PlaceService) replaySchedules(entries []scheduler.EntryInput) ([]scheduler.Schedule, *ValidationError) {
	vErr := &ValidationError{}
	editor := scheduler.NewEditor(s.locale)
	for i, entry := range entries {
		if _, err := editor.AddSchedule(entry); err != nil {
			message, _ := editor.Message()
			vErr.add(fmt.Sprintf("schedules[%d]", i), message)
		}
	}
	return editor.Snapshot(), vErr
}

func (s *PlaceService) loadVisible(ctx context.Context, principal Principal, placeID string) (Place, error) {
	if strings.TrimSpace(placeID) == "" {
		return Place{}, ErrNotFound
	}
	place, err := s.places.GetPlace(ctx, placeID)
	if err != nil {
		return Place{}, mapRepoError(err)
	}
	if !canViewPlace(principal, place) {
		return Place{}, ErrNotFound
	}
	return place, nil
}

func (s *PlaceService) loadOwned(ctx context.Context, principal Principal, placeID string) (Place, error) {
	place, err := s.loadVisible(ctx, principal, placeID)
	if err != nil {
		return Place{}, err
	}
	if principal.UserID == "" || place.OwnerID != principal.UserID {
		return Place{}, ErrUnauthorized
	}
	return place, nil
}

func (s *PlaceService) presentPlace(place Place) Place {
	out := clonePlace(place)
	out.Schedules = orderSchedules(place.Schedules)
	return out
}

func canViewPlace(principal Principal, place Place) bool {
	return place.Status == StatusApproved ||
		principal.IsModerator ||
		(principal.UserID != "" && principal.UserID == place.OwnerID)
}

func orderSchedules(schedules []scheduler.Schedule) []scheduler.Schedule {
	if len(schedules) == 0 {
		return nil
	}
	return scheduler.NewGraph(schedules...).Ordered()
}

func scheduleEditError(err error, message string) error {
	switch {
	case errors.Is(err, scheduler.ErrOverlap):
		return &ScheduleError{Message: message, Err: fmt.Errorf("%w: %w", ErrScheduleConflict, err)}
	case errors.Is(err, ErrNotFound):
		return err
	}
	vErr := &ValidationError{}
	if message == "" {
		message = err.Error()
	}
	vErr.add("schedule", message)
	return vErr
}

func validStatus(status PlaceStatus) bool {
	switch status {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

func normalizePlaceInput(input PlaceInput) PlaceInput {
	out := input
	out.Name = strings.TrimSpace(input.Name)
	out.Description = strings.TrimSpace(input.Description)
	out.Category = Category(strings.ToLower(strings.TrimSpace(string(input.Category))))
	out.Address = strings.TrimSpace(input.Address)
	out.City = strings.TrimSpace(input.City)
	out.Phones = trimNonEmpty(input.Phones)
	out.Images = trimNonEmpty(input.Images)
	return out
}

func validatePlaceInput(input PlaceInput) *ValidationError {
	vErr := &ValidationError{}

	if input.Name == "" {
		vErr.add("name", "name is required")
	} else if len([]rune(input.Name)) > maxPlaceNameLength {
		vErr.add("name", fmt.Sprintf("name must be at most %d characters", maxPlaceNameLength))
	}
	if input.Category == "" {
		vErr.add("category", "category is required")
	} else if !slices.Contains(Categories, input.Category) {
		vErr.add("category", "category is not supported")
	}
	if input.Address == "" {
		vErr.add("address", "address is required")
	}
	if input.City == "" {
		vErr.add("city", "city is required")
	}
	if math.IsNaN(input.Latitude) || input.Latitude < -90 || input.Latitude > 90 {
		vErr.add("latitude", "latitude must be between -90 and 90")
	}
	if math.IsNaN(input.Longitude) || input.Longitude < -180 || input.Longitude > 180 {
		vErr.add("longitude", "longitude must be between -180 and 180")
	}

	switch {
	case len(input.Images) == 0:
		vErr.add("images", "at least one image is required")
	case len(input.Images) > maxPlaceImages:
		vErr.add("images", fmt.Sprintf("at most %d images are allowed", maxPlaceImages))
	default:
		for i, raw := range input.Images {
			u, err := url.Parse(raw)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				vErr.add(fmt.Sprintf("images[%d]", i), "image must be an http or https URL")
			}
		}
	}

	return vErr
}

func applyPlaceInput(place *Place, input PlaceInput) {
	place.Name = input.Name
	place.Description = input.Description
	place.Category = input.Category
	place.Address = input.Address
	place.City = input.City
	place.Latitude = input.Latitude
	place.Longitude = input.Longitude
	place.Phones = input.Phones
	place.Images = input.Images
}

func trimNonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
