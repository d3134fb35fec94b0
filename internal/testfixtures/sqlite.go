package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/unilocal/internal/persistence"
	"github.com/example/unilocal/internal/persistence/sqlite"
)

// SQLiteHarness exposes the repositories of a migrated SQLite file that
// lives in the test's temp dir.
type SQLiteHarness struct {
	Storage    *sqlite.Storage
	Users      persistence.UserRepository
	Places     persistence.PlaceRepository
	Favorites  persistence.FavoriteRepository
	Moderation persistence.ModerationRepository
	Sessions   persistence.SessionRepository
}

// NewSQLiteHarness opens and migrates a fresh database. It is closed by
// tb.Cleanup.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	dsn := "file:" + filepath.Join(tb.TempDir(), "unilocal.db")
	storage, err := sqlite.Open(dsn)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	tb.Cleanup(func() { _ = storage.Close() })

	if err := storage.Migrate(context.Background()); err != nil {
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	return &SQLiteHarness{
		Storage:    storage,
		Users:      storage.Users,
		Places:     storage.Places,
		Favorites:  storage.Favorites,
		Moderation: storage.Moderation,
		Sessions:   storage.Sessions,
	}
}

// SeedUser stores fixture and fails the test on error.
func (h *SQLiteHarness) SeedUser(tb testing.TB, fixture UserFixture) UserFixture {
	tb.Helper()
	if err := h.Users.CreateUser(context.Background(), fixture.Persistence()); err != nil {
		tb.Fatalf("seed user %s: %v", fixture.ID, err)
	}
	return fixture
}

// SeedPlace stores fixture and fails the test on error.
func (h *SQLiteHarness) SeedPlace(tb testing.TB, fixture PlaceFixture) PlaceFixture {
	tb.Helper()
	if err := h.Places.CreatePlace(context.Background(), fixture.Persistence()); err != nil {
		tb.Fatalf("seed place %s: %v", fixture.ID, err)
	}
	return fixture
}
