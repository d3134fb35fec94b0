package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/example/unilocal/internal/persistence"
)

// ModerationRepository implements persistence.ModerationRepository using SQLite
type ModerationRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewModerationRepository creates a new SQLite moderation repository
func NewModerationRepository(pool *ConnectionPool) *ModerationRepository {
	return &ModerationRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// ApplyDecision updates the place status and writes the audit record in one transaction
func (r *ModerationRepository) ApplyDecision(ctx context.Context, record persistence.ModerationRecord) error {
	if record.ID == "" || record.PlaceID == "" || record.Decision == "" {
		return persistence.ErrConstraintViolation
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := r.helper.ExecTx(ctx, tx, `
			UPDATE places
			SET status = ?, rejection_reason = ?, updated_at = ?
			WHERE id = ? AND status = 'pending'
		`,
			record.Decision,
			nullableString(record.Reason),
			formatTime(record.CreatedAt),
			record.PlaceID,
		)
		if err != nil {
			return r.mapper.MapError(err)
		}
		if err := requireAffected(result); err != nil {
			// Distinguish a missing place from one that was already decided.
			var exists int
			lookupErr := r.helper.QueryRowTx(ctx, tx, `SELECT 1 FROM places WHERE id = ?`, record.PlaceID).Scan(&exists)
			if errors.Is(lookupErr, sql.ErrNoRows) {
				return persistence.ErrNotFound
			}
			if lookupErr != nil {
				return r.mapper.MapError(lookupErr)
			}
			return persistence.ErrConflict
		}

		var moderatorID sql.NullString
		if record.ModeratorID != "" {
			moderatorID = sql.NullString{String: record.ModeratorID, Valid: true}
		}
		_, err = r.helper.ExecTx(ctx, tx, `
			INSERT INTO moderation_records (id, place_id, moderator_id, decision, reason, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`,
			record.ID,
			record.PlaceID,
			moderatorID,
			record.Decision,
			nullableString(record.Reason),
			formatTime(record.CreatedAt),
		)
		return r.mapper.MapError(err)
	})
}

// ListModerationRecords returns decisions oldest first, optionally for a single place
func (r *ModerationRepository) ListModerationRecords(ctx context.Context, placeID string) ([]persistence.ModerationRecord, error) {
	query := `SELECT id, place_id, moderator_id, decision, reason, created_at FROM moderation_records`
	var args []any
	if placeID != "" {
		query += ` WHERE place_id = ?`
		args = append(args, placeID)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var records []persistence.ModerationRecord
	for rows.Next() {
		var record persistence.ModerationRecord
		var moderatorID, reason sql.NullString
		var createdAt string
		if err := rows.Scan(&record.ID, &record.PlaceID, &moderatorID, &record.Decision, &reason, &createdAt); err != nil {
			return nil, r.mapper.MapError(err)
		}
		record.ModeratorID = moderatorID.String
		record.Reason = stringPtr(reason)
		if record.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return records, nil
}
