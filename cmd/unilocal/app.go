package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/example/unilocal/internal/application"
	"github.com/example/unilocal/internal/config"
	httptransport "github.com/example/unilocal/internal/http"
	"github.com/example/unilocal/internal/persistence/sqlite"
	"github.com/example/unilocal/internal/recurrence"
	"github.com/example/unilocal/internal/scheduler"
	"github.com/example/unilocal/internal/token"
)

// searchCacheEntries bounds the number of cached listings.
const searchCacheEntries = 256

// services holds the application layer wired to one storage.
type services struct {
	locale     *scheduler.Locale
	users      *application.UserService
	auth       *application.AuthService
	places     *application.PlaceService
	favorites  *application.FavoriteService
	moderation *application.ModerationService
}

func newServices(cfg config.Config, storage *sqlite.Storage, logger *slog.Logger, now func() time.Time) (*services, error) {
	if now == nil {
		now = time.Now
	}
	loc, err := cfg.Places.Location()
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}
	locale, err := scheduler.LoadLocale(cfg.Places.Locale)
	if err != nil {
		return nil, err
	}
	tokens, err := token.NewManager(cfg.Auth.SessionSecret, now)
	if err != nil {
		return nil, err
	}

	var cache *application.SearchCache
	if cfg.Places.SearchCacheTTL > 0 {
		cache = application.NewSearchCache(cfg.Places.SearchCacheTTL, searchCacheEntries, now)
	}

	idGenerator := uuid.NewString
	engine := recurrence.NewEngine(loc)

	userRepo := newUserRepositoryAdapter(storage.Users)
	credentialStore := newCredentialStoreAdapter(storage.Users)
	sessionRepo := newSessionRepositoryAdapter(storage.Sessions)
	placeRepo := newPlaceRepositoryAdapter(storage.Places)
	moderationRepo := newModerationRepositoryAdapter(storage.Moderation)
	favoriteRepo := newFavoriteRepositoryAdapter(storage.Favorites)

	placeService := application.NewPlaceServiceWithLogger(placeRepo, engine, locale, cache, idGenerator, now, logger)

	return &services{
		locale:     locale,
		users:      application.NewUserServiceWithLogger(userRepo, application.HashPassword, application.VerifyPassword, idGenerator, now, logger),
		auth:       application.NewAuthServiceWithLogger(credentialStore, sessionRepo, tokens, application.VerifyPassword, idGenerator, now, cfg.Auth.SessionTTL, logger),
		places:     placeService,
		favorites:  application.NewFavoriteServiceWithLogger(favoriteRepo, placeService, now, logger),
		moderation: application.NewModerationServiceWithLogger(placeRepo, moderationRepo, credentialStore, placeService, cache, idGenerator, now, logger),
	}, nil
}

// handler builds the HTTP surface, with request logging outermost.
func (s *services) handler(logger *slog.Logger, now func() time.Time) http.Handler {
	return httptransport.NewRouter(httptransport.RouterConfig{
		Auth:       httptransport.NewAuthHandler(s.auth, logger),
		Users:      httptransport.NewUserHandler(s.users, logger),
		Places:     httptransport.NewPlaceHandler(s.places, now, logger),
		Schedules:  httptransport.NewScheduleHandler(s.places, now, logger),
		Favorites:  httptransport.NewFavoriteHandler(s.favorites, s.locale, logger),
		Moderation: httptransport.NewModerationHandler(s.moderation, s.locale, now, logger),
		Sessions:   s.auth,
		Logger:     logger,
		Middleware: []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	})
}
