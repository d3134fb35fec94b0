package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/example/unilocal/internal/persistence"
)

const sessionColumns = `id, user_id, fingerprint, expires_at, revoked_at, created_at, updated_at`

// SessionRepository implements persistence.SessionRepository using SQLite
type SessionRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewSessionRepository creates a new SQLite session repository
func NewSessionRepository(pool *ConnectionPool) *SessionRepository {
	return &SessionRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// CreateSession stores a new session for a user
func (r *SessionRepository) CreateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	if session.ID == "" || session.UserID == "" || session.ExpiresAt.IsZero() {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}

	normalized := normalizeSession(session)
	if normalized.CreatedAt.IsZero() {
		normalized.CreatedAt = time.Now().UTC()
	}
	if normalized.UpdatedAt.IsZero() {
		normalized.UpdatedAt = normalized.CreatedAt
	}

	_, err := r.helper.Exec(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		normalized.ID,
		normalized.UserID,
		normalized.Fingerprint,
		formatTime(normalized.ExpiresAt),
		nullableTime(normalized.RevokedAt),
		formatTime(normalized.CreatedAt),
		formatTime(normalized.UpdatedAt),
	)
	if err != nil {
		return persistence.Session{}, r.mapper.MapError(err)
	}
	return cloneSession(normalized), nil
}

// GetSession retrieves a session by its ID
func (r *SessionRepository) GetSession(ctx context.Context, id string) (persistence.Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}
	row := r.helper.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	return r.scanSession(row)
}

// UpdateSession persists expiry, fingerprint and revocation changes
func (r *SessionRepository) UpdateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	if session.ID == "" || session.ExpiresAt.IsZero() {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}

	normalized := normalizeSession(session)
	if normalized.UpdatedAt.IsZero() {
		normalized.UpdatedAt = time.Now().UTC()
	}

	result, err := r.helper.Exec(ctx, `
		UPDATE sessions
		SET fingerprint = ?, expires_at = ?, revoked_at = ?, updated_at = ?
		WHERE id = ?
	`,
		normalized.Fingerprint,
		formatTime(normalized.ExpiresAt),
		nullableTime(normalized.RevokedAt),
		formatTime(normalized.UpdatedAt),
		normalized.ID,
	)
	if err != nil {
		return persistence.Session{}, r.mapper.MapError(err)
	}
	if err := requireAffected(result); err != nil {
		return persistence.Session{}, err
	}
	return r.GetSession(ctx, normalized.ID)
}

// RevokeSession marks a session as revoked. Revoking twice keeps the first timestamp.
func (r *SessionRepository) RevokeSession(ctx context.Context, id string, revokedAt time.Time) (persistence.Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}
	if revokedAt.IsZero() {
		revokedAt = time.Now().UTC()
	}

	result, err := r.helper.Exec(ctx, `
		UPDATE sessions
		SET revoked_at = COALESCE(revoked_at, ?), updated_at = ?
		WHERE id = ?
	`, formatTime(revokedAt), formatTime(revokedAt), id)
	if err != nil {
		return persistence.Session{}, r.mapper.MapError(err)
	}
	if err := requireAffected(result); err != nil {
		return persistence.Session{}, err
	}
	return r.GetSession(ctx, id)
}

// DeleteExpiredSessions removes sessions that expired or were revoked before reference
func (r *SessionRepository) DeleteExpiredSessions(ctx context.Context, reference time.Time) (int64, error) {
	ref := formatTime(reference)
	result, err := r.helper.Exec(ctx, `
		DELETE FROM sessions
		WHERE expires_at <= ? OR (revoked_at IS NOT NULL AND revoked_at <= ?)
	`, ref, ref)
	if err != nil {
		return 0, r.mapper.MapError(err)
	}
	return result.RowsAffected()
}

func (r *SessionRepository) scanSession(row rowScanner) (persistence.Session, error) {
	var session persistence.Session
	var expiresAt, createdAt, updatedAt string
	var revokedAt sql.NullString

	err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.Fingerprint,
		&expiresAt,
		&revokedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Session{}, persistence.ErrNotFound
		}
		return persistence.Session{}, r.mapper.MapError(err)
	}

	if session.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return persistence.Session{}, err
	}
	if session.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Session{}, err
	}
	if session.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Session{}, err
	}
	if session.RevokedAt, err = parseNullableTime(revokedAt); err != nil {
		return persistence.Session{}, err
	}
	return session, nil
}

func normalizeSession(session persistence.Session) persistence.Session {
	normalized := session
	normalized.ID = strings.TrimSpace(session.ID)
	normalized.UserID = strings.TrimSpace(session.UserID)
	normalized.Fingerprint = strings.TrimSpace(session.Fingerprint)
	normalized.ExpiresAt = session.ExpiresAt.UTC()
	normalized.CreatedAt = session.CreatedAt.UTC()
	normalized.UpdatedAt = session.UpdatedAt.UTC()
	if session.RevokedAt != nil {
		revoked := session.RevokedAt.UTC()
		normalized.RevokedAt = &revoked
	}
	return normalized
}

func cloneSession(session persistence.Session) persistence.Session {
	cloned := session
	if session.RevokedAt != nil {
		revoked := *session.RevokedAt
		cloned.RevokedAt = &revoked
	}
	return cloned
}
