package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/unilocal/internal/application"
	"github.com/example/unilocal/internal/recurrence"
	"github.com/example/unilocal/internal/scheduler"
	"github.com/example/unilocal/internal/token"
)

// TestSessionSecret signs tokens issued by factory built auth services.
const TestSessionSecret = "test-secret-0123456789"

// fastArgon2idParams keeps hashing cheap in tests.
var fastArgon2idParams = application.Argon2idParams{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}

// FastPasswordHash hashes with minimal argon2id cost. Hashes verify with
// application.VerifyPassword.
func FastPasswordHash(password string) (string, error) {
	return application.CreatePasswordHash(password, fastArgon2idParams)
}

// ServiceFactory builds application services that share a deterministic
// clock, id sequence, English locale and UTC recurrence engine.
type ServiceFactory struct {
	Clock  *Clock
	IDs    *IDGenerator
	Locale *scheduler.Locale
	Engine *recurrence.Engine
	Logger *slog.Logger
}

type ServiceFactoryOption func(*ServiceFactory)

func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:  NewClock(time.Time{}),
		IDs:    NewIDGenerator(),
		Locale: scheduler.MustLoadLocale("en"),
		Engine: recurrence.NewEngine(time.UTC),
	}
	for _, opt := range opts {
		opt(factory)
	}
	return factory
}

func WithClock(clock *Clock) ServiceFactoryOption {
	return func(f *ServiceFactory) { f.Clock = clock }
}

// WithLocale switches the schedule locale, e.g. to "es".
func WithLocale(code string) ServiceFactoryOption {
	return func(f *ServiceFactory) { f.Locale = scheduler.MustLoadLocale(code) }
}

func WithLogger(logger *slog.Logger) ServiceFactoryOption {
	return func(f *ServiceFactory) { f.Logger = logger }
}

func (f *ServiceFactory) NewUserService(users application.UserRepository) *application.UserService {
	return application.NewUserServiceWithLogger(users, FastPasswordHash, nil, f.IDs.Func("user"), f.Clock.NowFunc(), f.Logger)
}

// NewAuthService signs tokens with TestSessionSecret on the factory clock.
func (f *ServiceFactory) NewAuthService(credentials application.CredentialStore, sessions application.SessionRepository, ttl time.Duration) *application.AuthService {
	manager, err := token.NewManager(TestSessionSecret, f.Clock.NowFunc())
	if err != nil {
		panic(err)
	}
	return application.NewAuthServiceWithLogger(credentials, sessions, manager, nil, f.IDs.Func("session"), f.Clock.NowFunc(), ttl, f.Logger)
}

func (f *ServiceFactory) NewPlaceService(places application.PlaceRepository, cache *application.SearchCache) *application.PlaceService {
	return application.NewPlaceServiceWithLogger(places, f.Engine, f.Locale, cache, f.IDs.Func("place"), f.Clock.NowFunc(), f.Logger)
}

func (f *ServiceFactory) NewModerationService(places application.PlaceRepository, records application.ModerationRepository, users application.UserDirectory, cache *application.SearchCache) *application.ModerationService {
	return application.NewModerationServiceWithLogger(places, records, users, f.NewPlaceService(places, cache), cache, f.IDs.Func("decision"), f.Clock.NowFunc(), f.Logger)
}

func (f *ServiceFactory) NewFavoriteService(favorites application.FavoriteRepository, places *application.PlaceService) *application.FavoriteService {
	return application.NewFavoriteServiceWithLogger(favorites, places, f.Clock.NowFunc(), f.Logger)
}
