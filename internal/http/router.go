package http

import (
	"log/slog"
	"net/http"
)

type RouterConfig struct {
	Auth       *AuthHandler
	Users      *UserHandler
	Places     *PlaceHandler
	Schedules  *ScheduleHandler
	Favorites  *FavoriteHandler
	Moderation *ModerationHandler
	// Sessions guards every route except registration and sign-in.
	Sessions   SessionValidator
	Logger     *slog.Logger
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	session := func(h http.HandlerFunc) http.Handler { return h }
	moderator := session
	if cfg.Sessions != nil {
		requireSession := RequireSession(cfg.Sessions, cfg.Logger)
		requireModerator := RequireModerator(cfg.Logger)
		session = func(h http.HandlerFunc) http.Handler { return requireSession(h) }
		moderator = func(h http.HandlerFunc) http.Handler { return requireSession(requireModerator(h)) }
	}

	if cfg.Auth != nil {
		mux.HandleFunc("POST /sessions", cfg.Auth.CreateSession)
		mux.HandleFunc("POST /sessions/refresh", cfg.Auth.RefreshSession)
		mux.Handle("DELETE /sessions/current", session(cfg.Auth.DeleteCurrentSession))
	}

	if cfg.Users != nil {
		mux.HandleFunc("POST /register", cfg.Users.Register)
		mux.Handle("GET /users/me", session(cfg.Users.Me))
		mux.Handle("PUT /users/me", session(cfg.Users.UpdateMe))
		mux.Handle("DELETE /users/me", session(cfg.Users.DeleteMe))
		mux.Handle("PUT /users/me/password", session(cfg.Users.ChangePassword))
		mux.Handle("GET /users", moderator(cfg.Users.List))
	}

	if cfg.Places != nil {
		mux.Handle("GET /places", session(cfg.Places.List))
		mux.Handle("POST /places", session(cfg.Places.Create))
		mux.Handle("GET /places/{id}", session(cfg.Places.Get))
		mux.Handle("PUT /places/{id}", session(cfg.Places.Update))
		mux.Handle("DELETE /places/{id}", session(cfg.Places.Delete))
	}

	if cfg.Schedules != nil {
		mux.Handle("GET /places/{id}/schedules", session(cfg.Schedules.List))
		mux.Handle("POST /places/{id}/schedules", session(cfg.Schedules.Add))
		mux.Handle("DELETE /places/{id}/schedules", session(cfg.Schedules.Remove))
		mux.Handle("GET /places/{id}/openings", session(cfg.Schedules.Openings))
		mux.Handle("GET /places/{id}/calendar.ics", session(cfg.Schedules.Calendar))
	}

	if cfg.Favorites != nil {
		mux.Handle("PUT /places/{id}/favorite", session(cfg.Favorites.Add))
		mux.Handle("DELETE /places/{id}/favorite", session(cfg.Favorites.Remove))
		mux.Handle("GET /favorites", session(cfg.Favorites.List))
	}

	if cfg.Moderation != nil {
		mux.Handle("GET /moderation/places", moderator(cfg.Moderation.Pending))
		mux.Handle("POST /moderation/places/{id}/approve", moderator(cfg.Moderation.Approve))
		mux.Handle("POST /moderation/places/{id}/reject", moderator(cfg.Moderation.Reject))
		mux.Handle("GET /moderation/places/{id}/history", moderator(cfg.Moderation.History))
		mux.Handle("GET /moderation/report.xlsx", moderator(cfg.Moderation.Report))
	}

	var handler http.Handler = mux
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}

	return handler
}
