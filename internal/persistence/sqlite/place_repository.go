package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/example/unilocal/internal/persistence"
)

const placeColumns = `id, owner_id, name, description, category, address, city, latitude, longitude, status, rejection_reason, created_at, updated_at`

// PlaceRepository implements persistence.PlaceRepository using SQLite
type PlaceRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewPlaceRepository creates a new SQLite place repository
func NewPlaceRepository(pool *ConnectionPool) *PlaceRepository {
	return &PlaceRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// CreatePlace inserts a place with its phones, images and schedules
func (r *PlaceRepository) CreatePlace(ctx context.Context, place persistence.Place) error {
	if place.ID == "" || place.OwnerID == "" {
		return persistence.ErrConstraintViolation
	}
	if place.Status == "" {
		place.Status = "pending"
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := r.helper.ExecTx(ctx, tx, `
			INSERT INTO places (`+placeColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			place.ID,
			place.OwnerID,
			place.Name,
			place.Description,
			place.Category,
			place.Address,
			place.City,
			place.Latitude,
			place.Longitude,
			place.Status,
			nullableString(place.RejectionReason),
			formatTime(place.CreatedAt),
			formatTime(place.UpdatedAt),
		)
		if err != nil {
			return r.mapper.MapError(err)
		}
		return r.insertChildren(ctx, tx, place)
	})
}

// UpdatePlace overwrites a place and replaces its child collections
func (r *PlaceRepository) UpdatePlace(ctx context.Context, place persistence.Place) error {
	if place.ID == "" {
		return persistence.ErrConstraintViolation
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := r.helper.ExecTx(ctx, tx, `
			UPDATE places
			SET name = ?, description = ?, category = ?, address = ?, city = ?, latitude = ?, longitude = ?,
				status = ?, rejection_reason = ?, updated_at = ?
			WHERE id = ?
		`,
			place.Name,
			place.Description,
			place.Category,
			place.Address,
			place.City,
			place.Latitude,
			place.Longitude,
			place.Status,
			nullableString(place.RejectionReason),
			formatTime(place.UpdatedAt),
			place.ID,
		)
		if err != nil {
			return r.mapper.MapError(err)
		}
		if err := requireAffected(result); err != nil {
			return err
		}

		for _, table := range []string{"place_schedules", "place_phones", "place_images"} {
			if _, err := r.helper.ExecTx(ctx, tx, `DELETE FROM `+table+` WHERE place_id = ?`, place.ID); err != nil {
				return r.mapper.MapError(err)
			}
		}
		return r.insertChildren(ctx, tx, place)
	})
}

// EditSchedules replaces the schedules of a place with the result of edit,
// reading and writing inside one transaction.
func (r *PlaceRepository) EditSchedules(ctx context.Context, placeID string, updatedAt time.Time, edit persistence.ScheduleEdit) error {
	if placeID == "" {
		return persistence.ErrNotFound
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		// Claim the write lock before reading so concurrent edits serialize.
		result, err := r.helper.ExecTx(ctx, tx, `UPDATE places SET updated_at = ? WHERE id = ?`, formatTime(updatedAt), placeID)
		if err != nil {
			return r.mapper.MapError(err)
		}
		if err := requireAffected(result); err != nil {
			return err
		}

		current, err := r.loadSchedulesTx(ctx, tx, placeID)
		if err != nil {
			return err
		}
		next, err := edit(current)
		if err != nil {
			return err
		}

		if _, err := r.helper.ExecTx(ctx, tx, `DELETE FROM place_schedules WHERE place_id = ?`, placeID); err != nil {
			return r.mapper.MapError(err)
		}
		return r.insertSchedules(ctx, tx, placeID, next)
	})
}

// GetPlace retrieves a place and its child collections by ID
func (r *PlaceRepository) GetPlace(ctx context.Context, id string) (persistence.Place, error) {
	if id == "" {
		return persistence.Place{}, persistence.ErrNotFound
	}

	place, err := r.scanPlace(r.helper.QueryRow(ctx, `SELECT `+placeColumns+` FROM places WHERE id = ?`, id))
	if err != nil {
		return persistence.Place{}, err
	}
	if err := r.loadChildren(ctx, &place); err != nil {
		return persistence.Place{}, err
	}
	return place, nil
}

// ListPlaces returns places matching filter ordered by name then ID
func (r *PlaceRepository) ListPlaces(ctx context.Context, filter persistence.PlaceFilter) ([]persistence.Place, error) {
	var (
		clauses []string
		args    []any
	)
	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern := "%" + escapeLike(Fold(q)) + "%"
		clauses = append(clauses, `(fold(name) LIKE ? ESCAPE '\' OR fold(description) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	if filter.Category != "" {
		clauses = append(clauses, `category = ?`)
		args = append(args, filter.Category)
	}
	if city := strings.TrimSpace(filter.City); city != "" {
		clauses = append(clauses, `fold(city) = ?`)
		args = append(args, Fold(city))
	}
	if filter.OwnerID != "" {
		clauses = append(clauses, `owner_id = ?`)
		args = append(args, filter.OwnerID)
	}
	if len(filter.Statuses) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(filter.Statuses)), ", ")
		clauses = append(clauses, `status IN (`+placeholders+`)`)
		for _, status := range filter.Statuses {
			args = append(args, status)
		}
	}

	query := `SELECT ` + placeColumns + ` FROM places`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY fold(name) ASC, id ASC`

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}

	var places []persistence.Place
	for rows.Next() {
		place, err := r.scanPlace(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		places = append(places, place)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, r.mapper.MapError(err)
	}
	// Children are loaded after the cursor closes; in-memory databases hold a single connection.
	_ = rows.Close()

	for i := range places {
		if err := r.loadChildren(ctx, &places[i]); err != nil {
			return nil, err
		}
	}
	return places, nil
}

// DeletePlace removes a place. Children, favorites and moderation records cascade.
func (r *PlaceRepository) DeletePlace(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}
	result, err := r.helper.Exec(ctx, `DELETE FROM places WHERE id = ?`, id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

func (r *PlaceRepository) insertSchedules(ctx context.Context, tx *sql.Tx, placeID string, schedules []persistence.PlaceSchedule) error {
	for i, s := range schedules {
		_, err := r.helper.ExecTx(ctx, tx, `
			INSERT INTO place_schedules (place_id, position, day_start, day_end, opens_at, closes_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, placeID, i, s.DayStart, s.DayEnd, s.OpensAt, s.ClosesAt)
		if err != nil {
			return r.mapper.MapError(err)
		}
	}
	return nil
}

func (r *PlaceRepository) insertChildren(ctx context.Context, tx *sql.Tx, place persistence.Place) error {
	if err := r.insertSchedules(ctx, tx, place.ID, place.Schedules); err != nil {
		return err
	}
	for i, phone := range place.Phones {
		if _, err := r.helper.ExecTx(ctx, tx, `INSERT INTO place_phones (place_id, position, phone) VALUES (?, ?, ?)`, place.ID, i, phone); err != nil {
			return r.mapper.MapError(err)
		}
	}
	for i, url := range place.Images {
		if _, err := r.helper.ExecTx(ctx, tx, `INSERT INTO place_images (place_id, position, url) VALUES (?, ?, ?)`, place.ID, i, url); err != nil {
			return r.mapper.MapError(err)
		}
	}
	return nil
}

const selectSchedules = `
	SELECT day_start, day_end, opens_at, closes_at
	FROM place_schedules
	WHERE place_id = ?
	ORDER BY position ASC
`

func (r *PlaceRepository) loadSchedulesTx(ctx context.Context, tx *sql.Tx, placeID string) ([]persistence.PlaceSchedule, error) {
	rows, err := r.helper.QueryTx(ctx, tx, selectSchedules, placeID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	return r.scanSchedules(rows)
}

func (r *PlaceRepository) scanSchedules(rows *sql.Rows) ([]persistence.PlaceSchedule, error) {
	var schedules []persistence.PlaceSchedule
	for rows.Next() {
		var s persistence.PlaceSchedule
		if err := rows.Scan(&s.DayStart, &s.DayEnd, &s.OpensAt, &s.ClosesAt); err != nil {
			_ = rows.Close()
			return nil, r.mapper.MapError(err)
		}
		schedules = append(schedules, s)
	}
	if err := closeRows(rows); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return schedules, nil
}

func (r *PlaceRepository) loadChildren(ctx context.Context, place *persistence.Place) error {
	rows, err := r.helper.Query(ctx, selectSchedules, place.ID)
	if err != nil {
		return r.mapper.MapError(err)
	}
	if place.Schedules, err = r.scanSchedules(rows); err != nil {
		return err
	}

	if place.Phones, err = r.loadStrings(ctx, `SELECT phone FROM place_phones WHERE place_id = ? ORDER BY position ASC`, place.ID); err != nil {
		return err
	}
	if place.Images, err = r.loadStrings(ctx, `SELECT url FROM place_images WHERE place_id = ? ORDER BY position ASC`, place.ID); err != nil {
		return err
	}
	return nil
}

func (r *PlaceRepository) loadStrings(ctx context.Context, query string, id string) ([]string, error) {
	rows, err := r.helper.Query(ctx, query, id)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	var values []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			_ = rows.Close()
			return nil, r.mapper.MapError(err)
		}
		values = append(values, value)
	}
	if err := closeRows(rows); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return values, nil
}

func (r *PlaceRepository) scanPlace(row rowScanner) (persistence.Place, error) {
	var place persistence.Place
	var reason sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(
		&place.ID,
		&place.OwnerID,
		&place.Name,
		&place.Description,
		&place.Category,
		&place.Address,
		&place.City,
		&place.Latitude,
		&place.Longitude,
		&place.Status,
		&reason,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Place{}, persistence.ErrNotFound
		}
		return persistence.Place{}, r.mapper.MapError(err)
	}
	place.RejectionReason = stringPtr(reason)
	if place.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Place{}, err
	}
	if place.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Place{}, err
	}
	return place, nil
}

func closeRows(rows *sql.Rows) error {
	err := rows.Err()
	if closeErr := rows.Close(); err == nil {
		err = closeErr
	}
	return err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(value string) string {
	return likeEscaper.Replace(value)
}
