package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// ModerationRepository records decisions and applies them to places atomically.
type ModerationRepository interface {
	ApplyDecision(ctx context.Context, record ModerationRecord) error
	ListModerationRecords(ctx context.Context, placeID string) ([]ModerationRecord, error)
}

// UserDirectory resolves account details for display.
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (User, error)
}

// ModerationService lets moderators review pending places.
type ModerationService struct {
	places      PlaceRepository
	records     ModerationRepository
	users       UserDirectory
	formatter   *PlaceService
	cache       *SearchCache
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewModerationService constructs a moderation service with the provided dependencies.
func NewModerationService(places PlaceRepository, records ModerationRepository, users UserDirectory, idGenerator func() string, now func() time.Time) *ModerationService {
	return NewModerationServiceWithLogger(places, records, users, nil, nil, idGenerator, now, nil)
}

// NewModerationServiceWithLogger constructs a moderation service. The place
// service formats schedules in reports and the cache is invalidated after
// every decision.
func NewModerationServiceWithLogger(places PlaceRepository, records ModerationRepository, users UserDirectory, formatter *PlaceService, cache *SearchCache, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ModerationService {
	if formatter == nil {
		formatter = NewPlaceService(places, nil, nil, idGenerator, now)
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &ModerationService{
		places:      places,
		records:     records,
		users:       users,
		formatter:   formatter,
		cache:       cache,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *ModerationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ModerationService", operation, attrs...)
}

func (s *ModerationService) authorize(principal Principal) error {
	if s == nil {
		return fmt.Errorf("ModerationService is nil")
	}
	if s.places == nil || s.records == nil {
		return fmt.Errorf("moderation repositories not configured")
	}
	if !principal.IsModerator {
		return ErrUnauthorized
	}
	return nil
}

// ListPending returns places awaiting review, oldest submission first.
func (s *ModerationService) ListPending(ctx context.Context, principal Principal) ([]Place, error) {
	if err := s.authorize(principal); err != nil {
		return nil, err
	}

	places, err := s.places.ListPlaces(ctx, PlaceQuery{Statuses: []PlaceStatus{StatusPending}})
	if err != nil {
		return nil, mapRepoError(err)
	}
	sort.SliceStable(places, func(i, j int) bool {
		if !places[i].CreatedAt.Equal(places[j].CreatedAt) {
			return places[i].CreatedAt.Before(places[j].CreatedAt)
		}
		return places[i].ID < places[j].ID
	})
	for i := range places {
		places[i] = s.formatter.presentPlace(places[i])
	}
	return places, nil
}

// Approve publishes a pending place.
func (s *ModerationService) Approve(ctx context.Context, params ModerationParams) (Place, error) {
	return s.decide(ctx, "Approve", params.Principal, params.PlaceID, StatusApproved, nil)
}

// Reject declines a pending place. A reason is required.
func (s *ModerationService) Reject(ctx context.Context, params RejectPlaceParams) (Place, error) {
	reason := strings.TrimSpace(params.Reason)
	if reason == "" {
		if err := s.authorize(params.Principal); err != nil {
			return Place{}, err
		}
		vErr := &ValidationError{}
		vErr.add("reason", "reason is required")
		return Place{}, vErr
	}
	return s.decide(ctx, "Reject", params.Principal, params.PlaceID, StatusRejected, &reason)
}

func (s *ModerationService) decide(ctx context.Context, operation string, principal Principal, placeID string, decision PlaceStatus, reason *string) (place Place, err error) {
	if err = s.authorize(principal); err != nil {
		return
	}

	logger := s.loggerWith(ctx, operation,
		"principal_id", principal.UserID,
		"place_id", placeID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "moderation decision failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("decision", decision).InfoContext(ctx, "moderation decision recorded")
	}()

	place, err = s.places.GetPlace(ctx, placeID)
	if err != nil {
		err = mapRepoError(err)
		return
	}
	if place.Status != StatusPending {
		err = fmt.Errorf("%w: place is %s", ErrInvalidTransition, place.Status)
		return
	}

	record := ModerationRecord{
		ID:          s.idGenerator(),
		PlaceID:     placeID,
		ModeratorID: principal.UserID,
		Decision:    decision,
		Reason:      reason,
		CreatedAt:   s.now(),
	}
	if err = s.records.ApplyDecision(ctx, record); err != nil {
		err = mapRepoError(err)
		return
	}
	s.cache.Invalidate()

	place, err = s.places.GetPlace(ctx, placeID)
	if err != nil {
		err = mapRepoError(err)
		return
	}
	place = s.formatter.presentPlace(place)
	return
}

// History returns the decisions taken on a place, oldest first.
func (s *ModerationService) History(ctx context.Context, principal Principal, placeID string) ([]ModerationRecord, error) {
	if err := s.authorize(principal); err != nil {
		return nil, err
	}
	if _, err := s.places.GetPlace(ctx, placeID); err != nil {
		return nil, mapRepoError(err)
	}
	records, err := s.records.ListModerationRecords(ctx, placeID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return records, nil
}

// Report renders every place and decision as an xlsx workbook.
func (s *ModerationService) Report(ctx context.Context, principal Principal) (data []byte, err error) {
	if err = s.authorize(principal); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "Report", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to build moderation report", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("bytes", len(data)).InfoContext(ctx, "moderation report built")
	}()

	places, err := s.places.ListPlaces(ctx, PlaceQuery{})
	if err != nil {
		return nil, mapRepoError(err)
	}
	records, err := s.records.ListModerationRecords(ctx, "")
	if err != nil {
		return nil, mapRepoError(err)
	}

	report := moderationReport{
		places:  places,
		records: records,
		owners:  make(map[string]User),
		names:   make(map[string]string, len(places)),
		format:  s.formatter.FormatSchedules,
		zone:    s.formatter.engine.Location(),
	}
	ids := make([]string, 0, len(places)+len(records))
	for _, p := range places {
		report.names[p.ID] = p.Name
		ids = append(ids, p.OwnerID)
	}
	for _, r := range records {
		ids = append(ids, r.ModeratorID)
	}
	if s.users != nil {
		for _, id := range ids {
			if _, seen := report.owners[id]; seen || id == "" {
				continue
			}
			user, lookupErr := s.users.GetUser(ctx, id)
			if lookupErr != nil {
				if isNotFound(lookupErr) {
					continue
				}
				return nil, lookupErr
			}
			report.owners[id] = user
		}
	}

	return report.render()
}
