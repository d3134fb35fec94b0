// Package sqlite implements the persistence repositories on top of the
// pure-Go modernc.org/sqlite driver with golang-migrate managed schema.
package sqlite

import (
	"context"
	"fmt"
)

// Storage bundles the repositories that share one connection pool.
type Storage struct {
	pool *ConnectionPool

	Users      *UserRepository
	Places     *PlaceRepository
	Favorites  *FavoriteRepository
	Moderation *ModerationRepository
	Sessions   *SessionRepository
}

// Open connects to dsn and builds every repository. The schema is not
// touched; call Migrate to apply pending migrations.
func Open(dsn string) (*Storage, error) {
	pool, err := NewConnectionPool(Config{DSN: dsn})
	if err != nil {
		return nil, err
	}
	return NewStorage(pool), nil
}

// NewStorage wires repositories to an existing pool.
func NewStorage(pool *ConnectionPool) *Storage {
	return &Storage{
		pool:       pool,
		Users:      NewUserRepository(pool),
		Places:     NewPlaceRepository(pool),
		Favorites:  NewFavoriteRepository(pool),
		Moderation: NewModerationRepository(pool),
		Sessions:   NewSessionRepository(pool),
	}
}

// Pool exposes the shared connection pool.
func (s *Storage) Pool() *ConnectionPool {
	return s.pool
}

// Migrate applies pending migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := MigrateUp(s.pool); err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	return s.pool.Close()
}
