package sqlite

import (
	"context"

	"github.com/example/unilocal/internal/persistence"
)

// FavoriteRepository implements persistence.FavoriteRepository using SQLite
type FavoriteRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewFavoriteRepository creates a new SQLite favorite repository
func NewFavoriteRepository(pool *ConnectionPool) *FavoriteRepository {
	return &FavoriteRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// AddFavorite saves a place for a user. Saving the same place twice keeps the original timestamp.
func (r *FavoriteRepository) AddFavorite(ctx context.Context, favorite persistence.Favorite) error {
	if favorite.UserID == "" || favorite.PlaceID == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.helper.Exec(ctx, `
		INSERT OR IGNORE INTO favorites (user_id, place_id, created_at)
		VALUES (?, ?, ?)
	`, favorite.UserID, favorite.PlaceID, formatTime(favorite.CreatedAt))
	return r.mapper.MapError(err)
}

// RemoveFavorite deletes a saved place
func (r *FavoriteRepository) RemoveFavorite(ctx context.Context, userID, placeID string) error {
	result, err := r.helper.Exec(ctx, `DELETE FROM favorites WHERE user_id = ? AND place_id = ?`, userID, placeID)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

// ListFavorites returns the places saved by a user, newest first
func (r *FavoriteRepository) ListFavorites(ctx context.Context, userID string) ([]persistence.Favorite, error) {
	rows, err := r.helper.Query(ctx, `
		SELECT user_id, place_id, created_at
		FROM favorites
		WHERE user_id = ?
		ORDER BY created_at DESC, place_id ASC
	`, userID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var favorites []persistence.Favorite
	for rows.Next() {
		var favorite persistence.Favorite
		var createdAt string
		if err := rows.Scan(&favorite.UserID, &favorite.PlaceID, &createdAt); err != nil {
			return nil, r.mapper.MapError(err)
		}
		if favorite.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		favorites = append(favorites, favorite)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return favorites, nil
}
