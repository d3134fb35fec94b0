package main

import (
	"context"
	"fmt"
	"time"

	"github.com/example/unilocal/internal/application"
	"github.com/example/unilocal/internal/persistence"
	"github.com/example/unilocal/internal/scheduler"
)

type userRepositoryAdapter struct {
	repo persistence.UserRepository
}

func newUserRepositoryAdapter(repo persistence.UserRepository) *userRepositoryAdapter {
	return &userRepositoryAdapter{repo: repo}
}

func (a *userRepositoryAdapter) CreateUser(ctx context.Context, credentials application.UserCredentials) (application.User, error) {
	if err := a.repo.CreateUser(ctx, toPersistenceUser(credentials.User, credentials.PasswordHash)); err != nil {
		return application.User{}, err
	}
	return a.GetUser(ctx, credentials.User.ID)
}

func (a *userRepositoryAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *userRepositoryAdapter) GetUserCredentials(ctx context.Context, id string) (application.UserCredentials, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.UserCredentials{}, err
	}
	return application.UserCredentials{User: toApplicationUser(stored), PasswordHash: stored.PasswordHash}, nil
}

func (a *userRepositoryAdapter) UpdateUser(ctx context.Context, user application.User) (application.User, error) {
	current, err := a.repo.GetUser(ctx, user.ID)
	if err != nil {
		return application.User{}, err
	}
	if err := a.repo.UpdateUser(ctx, toPersistenceUser(user, current.PasswordHash)); err != nil {
		return application.User{}, err
	}
	return a.GetUser(ctx, user.ID)
}

func (a *userRepositoryAdapter) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	current, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return err
	}
	current.PasswordHash = passwordHash
	current.UpdatedAt = updatedAt
	return a.repo.UpdateUser(ctx, current)
}

func (a *userRepositoryAdapter) DeleteUser(ctx context.Context, id string) error {
	return a.repo.DeleteUser(ctx, id)
}

func (a *userRepositoryAdapter) ListUsers(ctx context.Context) ([]application.User, error) {
	models, err := a.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	users := make([]application.User, 0, len(models))
	for _, model := range models {
		users = append(users, toApplicationUser(model))
	}
	return users, nil
}

type credentialStoreAdapter struct {
	repo persistence.UserRepository
}

func newCredentialStoreAdapter(repo persistence.UserRepository) *credentialStoreAdapter {
	return &credentialStoreAdapter{repo: repo}
}

func (a *credentialStoreAdapter) GetUserCredentialsByEmail(ctx context.Context, email string) (application.UserCredentials, error) {
	stored, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.UserCredentials{}, err
	}
	return application.UserCredentials{
		User:         toApplicationUser(stored),
		PasswordHash: stored.PasswordHash,
	}, nil
}

func (a *credentialStoreAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

type sessionRepositoryAdapter struct {
	repo persistence.SessionRepository
}

func newSessionRepositoryAdapter(repo persistence.SessionRepository) *sessionRepositoryAdapter {
	return &sessionRepositoryAdapter{repo: repo}
}

func (a *sessionRepositoryAdapter) CreateSession(ctx context.Context, session application.Session) (application.Session, error) {
	stored, err := a.repo.CreateSession(ctx, toPersistenceSession(session))
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) GetSession(ctx context.Context, id string) (application.Session, error) {
	stored, err := a.repo.GetSession(ctx, id)
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) UpdateSession(ctx context.Context, session application.Session) (application.Session, error) {
	stored, err := a.repo.UpdateSession(ctx, toPersistenceSession(session))
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) RevokeSession(ctx context.Context, id string, revokedAt time.Time) (application.Session, error) {
	stored, err := a.repo.RevokeSession(ctx, id, revokedAt)
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) DeleteExpiredSessions(ctx context.Context, reference time.Time) (int64, error) {
	return a.repo.DeleteExpiredSessions(ctx, reference)
}

type placeRepositoryAdapter struct {
	repo persistence.PlaceRepository
}

func newPlaceRepositoryAdapter(repo persistence.PlaceRepository) *placeRepositoryAdapter {
	return &placeRepositoryAdapter{repo: repo}
}

func (a *placeRepositoryAdapter) CreatePlace(ctx context.Context, place application.Place) (application.Place, error) {
	if err := a.repo.CreatePlace(ctx, toPersistencePlace(place)); err != nil {
		return application.Place{}, err
	}
	return a.GetPlace(ctx, place.ID)
}

func (a *placeRepositoryAdapter) GetPlace(ctx context.Context, id string) (application.Place, error) {
	stored, err := a.repo.GetPlace(ctx, id)
	if err != nil {
		return application.Place{}, err
	}
	return toApplicationPlace(stored)
}

func (a *placeRepositoryAdapter) UpdatePlace(ctx context.Context, place application.Place) (application.Place, error) {
	if err := a.repo.UpdatePlace(ctx, toPersistencePlace(place)); err != nil {
		return application.Place{}, err
	}
	return a.GetPlace(ctx, place.ID)
}

func (a *placeRepositoryAdapter) EditSchedules(ctx context.Context, placeID string, updatedAt time.Time, edit func([]scheduler.Schedule) ([]scheduler.Schedule, error)) (application.Place, error) {
	err := a.repo.EditSchedules(ctx, placeID, updatedAt, func(stored []persistence.PlaceSchedule) ([]persistence.PlaceSchedule, error) {
		current := make([]scheduler.Schedule, 0, len(stored))
		for _, s := range stored {
			schedule, err := toApplicationSchedule(s)
			if err != nil {
				return nil, err
			}
			current = append(current, schedule)
		}
		next, err := edit(current)
		if err != nil {
			return nil, err
		}
		return toPersistenceSchedules(next), nil
	})
	if err != nil {
		return application.Place{}, err
	}
	return a.GetPlace(ctx, placeID)
}

func (a *placeRepositoryAdapter) DeletePlace(ctx context.Context, id string) error {
	return a.repo.DeletePlace(ctx, id)
}

func (a *placeRepositoryAdapter) ListPlaces(ctx context.Context, query application.PlaceQuery) ([]application.Place, error) {
	statuses := make([]string, 0, len(query.Statuses))
	for _, status := range query.Statuses {
		statuses = append(statuses, string(status))
	}
	models, err := a.repo.ListPlaces(ctx, persistence.PlaceFilter{
		Query:    query.Query,
		Category: string(query.Category),
		City:     query.City,
		OwnerID:  query.OwnerID,
		Statuses: statuses,
	})
	if err != nil {
		return nil, err
	}
	places := make([]application.Place, 0, len(models))
	for _, model := range models {
		place, err := toApplicationPlace(model)
		if err != nil {
			return nil, err
		}
		places = append(places, place)
	}
	return places, nil
}

type moderationRepositoryAdapter struct {
	repo persistence.ModerationRepository
}

func newModerationRepositoryAdapter(repo persistence.ModerationRepository) *moderationRepositoryAdapter {
	return &moderationRepositoryAdapter{repo: repo}
}

func (a *moderationRepositoryAdapter) ApplyDecision(ctx context.Context, record application.ModerationRecord) error {
	return a.repo.ApplyDecision(ctx, persistence.ModerationRecord{
		ID:          record.ID,
		PlaceID:     record.PlaceID,
		ModeratorID: record.ModeratorID,
		Decision:    string(record.Decision),
		Reason:      cloneString(record.Reason),
		CreatedAt:   record.CreatedAt,
	})
}

func (a *moderationRepositoryAdapter) ListModerationRecords(ctx context.Context, placeID string) ([]application.ModerationRecord, error) {
	models, err := a.repo.ListModerationRecords(ctx, placeID)
	if err != nil {
		return nil, err
	}
	records := make([]application.ModerationRecord, 0, len(models))
	for _, model := range models {
		records = append(records, application.ModerationRecord{
			ID:          model.ID,
			PlaceID:     model.PlaceID,
			ModeratorID: model.ModeratorID,
			Decision:    application.PlaceStatus(model.Decision),
			Reason:      cloneString(model.Reason),
			CreatedAt:   model.CreatedAt,
		})
	}
	return records, nil
}

type favoriteRepositoryAdapter struct {
	repo persistence.FavoriteRepository
}

func newFavoriteRepositoryAdapter(repo persistence.FavoriteRepository) *favoriteRepositoryAdapter {
	return &favoriteRepositoryAdapter{repo: repo}
}

func (a *favoriteRepositoryAdapter) AddFavorite(ctx context.Context, favorite application.Favorite) error {
	return a.repo.AddFavorite(ctx, persistence.Favorite{
		UserID:    favorite.UserID,
		PlaceID:   favorite.PlaceID,
		CreatedAt: favorite.CreatedAt,
	})
}

func (a *favoriteRepositoryAdapter) RemoveFavorite(ctx context.Context, userID, placeID string) error {
	return a.repo.RemoveFavorite(ctx, userID, placeID)
}

func (a *favoriteRepositoryAdapter) ListFavorites(ctx context.Context, userID string) ([]application.Favorite, error) {
	models, err := a.repo.ListFavorites(ctx, userID)
	if err != nil {
		return nil, err
	}
	favorites := make([]application.Favorite, 0, len(models))
	for _, model := range models {
		favorites = append(favorites, application.Favorite{
			UserID:    model.UserID,
			PlaceID:   model.PlaceID,
			CreatedAt: model.CreatedAt,
		})
	}
	return favorites, nil
}

func toApplicationUser(model persistence.User) application.User {
	return application.User{
		ID:          model.ID,
		Email:       model.Email,
		DisplayName: model.DisplayName,
		Username:    model.Username,
		City:        model.City,
		Role:        application.Role(model.Role),
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toPersistenceUser(user application.User, passwordHash string) persistence.User {
	role := user.Role
	if role == "" {
		role = application.RoleUser
	}
	return persistence.User{
		ID:           user.ID,
		Email:        user.Email,
		DisplayName:  user.DisplayName,
		Username:     user.Username,
		City:         user.City,
		Role:         string(role),
		PasswordHash: passwordHash,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

func toApplicationPlace(model persistence.Place) (application.Place, error) {
	schedules := make([]scheduler.Schedule, 0, len(model.Schedules))
	for _, stored := range model.Schedules {
		schedule, err := toApplicationSchedule(stored)
		if err != nil {
			return application.Place{}, fmt.Errorf("place %s: %w", model.ID, err)
		}
		schedules = append(schedules, schedule)
	}
	return application.Place{
		ID:              model.ID,
		OwnerID:         model.OwnerID,
		Name:            model.Name,
		Description:     model.Description,
		Category:        application.Category(model.Category),
		Address:         model.Address,
		City:            model.City,
		Latitude:        model.Latitude,
		Longitude:       model.Longitude,
		Phones:          append([]string(nil), model.Phones...),
		Images:          append([]string(nil), model.Images...),
		Schedules:       schedules,
		Status:          application.PlaceStatus(model.Status),
		RejectionReason: cloneString(model.RejectionReason),
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}, nil
}

func toPersistenceSchedules(schedules []scheduler.Schedule) []persistence.PlaceSchedule {
	out := make([]persistence.PlaceSchedule, 0, len(schedules))
	for _, s := range schedules {
		out = append(out, persistence.PlaceSchedule{
			DayStart: int(s.DayStart()),
			DayEnd:   int(s.DayEnd()),
			OpensAt:  s.Start().String(),
			ClosesAt: s.End().String(),
		})
	}
	return out
}

func toPersistencePlace(place application.Place) persistence.Place {
	return persistence.Place{
		ID:              place.ID,
		OwnerID:         place.OwnerID,
		Name:            place.Name,
		Description:     place.Description,
		Category:        string(place.Category),
		Address:         place.Address,
		City:            place.City,
		Latitude:        place.Latitude,
		Longitude:       place.Longitude,
		Phones:          append([]string(nil), place.Phones...),
		Images:          append([]string(nil), place.Images...),
		Schedules:       toPersistenceSchedules(place.Schedules),
		Status:          string(place.Status),
		RejectionReason: cloneString(place.RejectionReason),
		CreatedAt:       place.CreatedAt,
		UpdatedAt:       place.UpdatedAt,
	}
}

func toApplicationSchedule(stored persistence.PlaceSchedule) (scheduler.Schedule, error) {
	opens, err := scheduler.ParseTimeOfDay(stored.OpensAt)
	if err != nil {
		return scheduler.Schedule{}, err
	}
	closes, err := scheduler.ParseTimeOfDay(stored.ClosesAt)
	if err != nil {
		return scheduler.Schedule{}, err
	}
	return scheduler.NewSchedule(scheduler.Day(stored.DayStart), scheduler.Day(stored.DayEnd), opens, closes)
}

func toApplicationSession(model persistence.Session) application.Session {
	return application.Session{
		ID:          model.ID,
		UserID:      model.UserID,
		Fingerprint: model.Fingerprint,
		ExpiresAt:   model.ExpiresAt,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
		RevokedAt:   cloneTime(model.RevokedAt),
	}
}

func toPersistenceSession(session application.Session) persistence.Session {
	return persistence.Session{
		ID:          session.ID,
		UserID:      session.UserID,
		Fingerprint: session.Fingerprint,
		ExpiresAt:   session.ExpiresAt,
		CreatedAt:   session.CreatedAt,
		UpdatedAt:   session.UpdatedAt,
		RevokedAt:   cloneTime(session.RevokedAt),
	}
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
