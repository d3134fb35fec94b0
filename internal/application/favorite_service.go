package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// FavoriteRepository stores the places each user saved.
type FavoriteRepository interface {
	AddFavorite(ctx context.Context, favorite Favorite) error
	RemoveFavorite(ctx context.Context, userID, placeID string) error
	ListFavorites(ctx context.Context, userID string) ([]Favorite, error)
}

// FavoriteService manages the caller's saved places.
type FavoriteService struct {
	favorites FavoriteRepository
	places    *PlaceService
	now       func() time.Time
	logger    *slog.Logger
}

// NewFavoriteService constructs a favorite service.
func NewFavoriteService(favorites FavoriteRepository, places *PlaceService, now func() time.Time) *FavoriteService {
	return NewFavoriteServiceWithLogger(favorites, places, now, nil)
}

// NewFavoriteServiceWithLogger constructs a favorite service with a specified logger.
func NewFavoriteServiceWithLogger(favorites FavoriteRepository, places *PlaceService, now func() time.Time, logger *slog.Logger) *FavoriteService {
	if now == nil {
		now = time.Now
	}
	return &FavoriteService{favorites: favorites, places: places, now: now, logger: defaultLogger(logger)}
}

func (s *FavoriteService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "FavoriteService", operation, attrs...)
}

func (s *FavoriteService) configured(principal Principal) error {
	if s == nil {
		return fmt.Errorf("FavoriteService is nil")
	}
	if s.favorites == nil || s.places == nil {
		return fmt.Errorf("favorite dependencies not configured")
	}
	if principal.UserID == "" {
		return ErrUnauthorized
	}
	return nil
}

// AddFavorite saves an approved place. Saving it again is a no-op.
func (s *FavoriteService) AddFavorite(ctx context.Context, principal Principal, placeID string) (err error) {
	if err = s.configured(principal); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "AddFavorite", "principal_id", principal.UserID, "place_id", placeID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to add favorite", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "favorite added")
	}()

	place, err := s.places.GetPlace(ctx, principal, placeID)
	if err != nil {
		return err
	}
	if place.Status != StatusApproved {
		return fmt.Errorf("%w: only approved places can be saved", ErrInvalidTransition)
	}

	return mapRepoError(s.favorites.AddFavorite(ctx, Favorite{
		UserID:    principal.UserID,
		PlaceID:   place.ID,
		CreatedAt: s.now(),
	}))
}

// RemoveFavorite forgets a saved place. Removing an unsaved place is a no-op.
func (s *FavoriteService) RemoveFavorite(ctx context.Context, principal Principal, placeID string) error {
	if err := s.configured(principal); err != nil {
		return err
	}
	if err := s.favorites.RemoveFavorite(ctx, principal.UserID, placeID); err != nil && !isNotFound(err) {
		s.loggerWith(ctx, "RemoveFavorite", "place_id", placeID).ErrorContext(ctx, "failed to remove favorite", "error", err)
		return mapRepoError(err)
	}
	return nil
}

// ListFavorites returns the caller's saved places, most recent first. Places
// that are no longer visible are skipped.
func (s *FavoriteService) ListFavorites(ctx context.Context, principal Principal) ([]FavoritePlace, error) {
	if err := s.configured(principal); err != nil {
		return nil, err
	}

	favorites, err := s.favorites.ListFavorites(ctx, principal.UserID)
	if err != nil {
		return nil, mapRepoError(err)
	}

	out := make([]FavoritePlace, 0, len(favorites))
	for _, fav := range favorites {
		place, err := s.places.GetPlace(ctx, principal, fav.PlaceID)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		out = append(out, FavoritePlace{Place: place, SavedAt: fav.CreatedAt})
	}
	return out, nil
}
