package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/unilocal/internal/application"
	"github.com/example/unilocal/internal/scheduler"
)

var (
	testNow     = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	testLocale  = scheduler.MustLoadLocale("en")
	weekdaysSch = scheduler.MustSchedule(scheduler.Monday, scheduler.Friday, scheduler.MustAt(8, 0), scheduler.MustAt(17, 0))
)

type authServiceStub struct {
	authErr error
	revoked []string
}

func (s *authServiceStub) Authenticate(_ context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error) {
	if s.authErr != nil {
		return application.AuthenticateResult{}, s.authErr
	}
	return application.AuthenticateResult{
		User:    application.User{ID: "user-1", Email: params.Email, Role: application.RoleUser},
		Session: application.Session{ID: "sess-1", Token: "jwt-token", ExpiresAt: testNow.Add(time.Hour)},
	}, nil
}

func (s *authServiceStub) RefreshSession(_ context.Context, params application.RefreshSessionParams) (application.RefreshSessionResult, error) {
	return application.RefreshSessionResult{Session: application.Session{ID: "sess-1", Token: params.Token + "-next", ExpiresAt: testNow.Add(2 * time.Hour)}}, nil
}

func (s *authServiceStub) RevokeSession(_ context.Context, token string) error {
	s.revoked = append(s.revoked, token)
	return nil
}

// placeServiceStub serves both the place and the schedule handlers.
type placeServiceStub struct {
	places     map[string]application.Place
	lastFilter application.PlaceFilter
	lastAdd    application.AddPlaceScheduleParams
	lastRemove application.RemovePlaceScheduleParams
	lastWindow [2]time.Time
	cleared    bool
	addErr     error
}

func newPlaceServiceStub(places ...application.Place) *placeServiceStub {
	s := &placeServiceStub{places: map[string]application.Place{}}
	for _, p := range places {
		s.places[p.ID] = p
	}
	return s
}

func (s *placeServiceStub) CreatePlace(_ context.Context, params application.CreatePlaceParams) (application.Place, error) {
	place := application.Place{ID: "new", OwnerID: params.Principal.UserID, Name: params.Input.Name, Status: application.StatusPending}
	s.places[place.ID] = place
	return place, nil
}

func (s *placeServiceStub) UpdatePlace(_ context.Context, params application.UpdatePlaceParams) (application.Place, error) {
	place, ok := s.places[params.PlaceID]
	if !ok {
		return application.Place{}, application.ErrNotFound
	}
	place.Name = params.Input.Name
	return place, nil
}

func (s *placeServiceStub) DeletePlace(_ context.Context, _ application.Principal, placeID string) error {
	if _, ok := s.places[placeID]; !ok {
		return application.ErrNotFound
	}
	delete(s.places, placeID)
	return nil
}

func (s *placeServiceStub) GetPlace(_ context.Context, _ application.Principal, placeID string) (application.Place, error) {
	place, ok := s.places[placeID]
	if !ok {
		return application.Place{}, application.ErrNotFound
	}
	return place, nil
}

func (s *placeServiceStub) ListPlaces(_ context.Context, params application.ListPlacesParams) ([]application.Place, error) {
	s.lastFilter = params.Filter
	out := make([]application.Place, 0, len(s.places))
	for _, p := range s.places {
		out = append(out, p)
	}
	return out, nil
}

func (s *placeServiceStub) IsOpen(place application.Place, at time.Time) bool {
	for _, sch := range place.Schedules {
		if sch.Covers(scheduler.DayOf(at.Weekday()), scheduler.TimeOfDay(at.Hour()*60+at.Minute())) {
			return true
		}
	}
	return false
}

func (s *placeServiceStub) NextOpening(place application.Place, after time.Time) (application.Opening, bool) {
	if len(place.Schedules) == 0 {
		return application.Opening{}, false
	}
	return application.Opening{Label: "next", Start: after.Add(time.Hour), End: after.Add(2 * time.Hour)}, true
}

func (s *placeServiceStub) Locale() *scheduler.Locale { return testLocale }

func (s *placeServiceStub) AddPlaceSchedule(_ context.Context, params application.AddPlaceScheduleParams) (application.ScheduleEditResult, error) {
	s.lastAdd = params
	if s.addErr != nil {
		return application.ScheduleEditResult{}, s.addErr
	}
	place := s.places[params.PlaceID]
	place.Schedules = append(place.Schedules, weekdaysSch)
	return application.ScheduleEditResult{Place: place, Message: testLocale.Messages.Added}, nil
}

func (s *placeServiceStub) RemovePlaceSchedule(_ context.Context, params application.RemovePlaceScheduleParams) (application.ScheduleEditResult, error) {
	s.lastRemove = params
	return application.ScheduleEditResult{Place: s.places[params.PlaceID], Message: testLocale.Messages.Removed}, nil
}

func (s *placeServiceStub) ClearPlaceSchedules(_ context.Context, _ application.Principal, placeID string) (application.ScheduleEditResult, error) {
	s.cleared = true
	return application.ScheduleEditResult{Place: application.Place{ID: placeID}, Message: testLocale.Messages.Cleared}, nil
}

func (s *placeServiceStub) Openings(_ context.Context, params application.OpeningsParams) ([]application.Opening, error) {
	s.lastWindow = [2]time.Time{params.From, params.To}
	return []application.Opening{{Label: "Monday", Start: params.From, End: params.From.Add(time.Hour)}}, nil
}

func (s *placeServiceStub) Calendar(_ context.Context, _ application.Principal, placeID string) (string, error) {
	if _, ok := s.places[placeID]; !ok {
		return "", application.ErrNotFound
	}
	return "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n", nil
}

type moderationServiceStub struct {
	rejected []application.RejectPlaceParams
}

func (s *moderationServiceStub) ListPending(context.Context, application.Principal) ([]application.Place, error) {
	return []application.Place{{ID: "p1", Name: "Pending", Status: application.StatusPending}}, nil
}

func (s *moderationServiceStub) Approve(_ context.Context, params application.ModerationParams) (application.Place, error) {
	return application.Place{ID: params.PlaceID, Status: application.StatusApproved}, nil
}

func (s *moderationServiceStub) Reject(_ context.Context, params application.RejectPlaceParams) (application.Place, error) {
	s.rejected = append(s.rejected, params)
	if strings.TrimSpace(params.Reason) == "" {
		return application.Place{}, &application.ValidationError{FieldErrors: map[string]string{"reason": "reason is required"}}
	}
	return application.Place{ID: params.PlaceID, Status: application.StatusRejected, RejectionReason: &params.Reason}, nil
}

func (s *moderationServiceStub) History(context.Context, application.Principal, string) ([]application.ModerationRecord, error) {
	return nil, nil
}

func (s *moderationServiceStub) Report(context.Context, application.Principal) ([]byte, error) {
	return []byte("PK"), nil
}

type routerFixture struct {
	handler    http.Handler
	auth       *authServiceStub
	places     *placeServiceStub
	moderation *moderationServiceStub
	validator  *fakeSessionValidator
}

func newRouterFixture(t *testing.T, places ...application.Place) *routerFixture {
	t.Helper()
	logger := discardLogger()
	now := func() time.Time { return testNow }
	f := &routerFixture{
		auth:       &authServiceStub{},
		places:     newPlaceServiceStub(places...),
		moderation: &moderationServiceStub{},
		validator:  &fakeSessionValidator{principal: application.Principal{UserID: "user-1"}},
	}
	f.handler = NewRouter(RouterConfig{
		Auth:       NewAuthHandler(f.auth, logger),
		Places:     NewPlaceHandler(f.places, now, logger),
		Schedules:  NewScheduleHandler(f.places, now, logger),
		Moderation: NewModerationHandler(f.moderation, testLocale, now, logger),
		Sessions:   f.validator,
		Logger:     logger,
		Middleware: []func(http.Handler) http.Handler{RequestLogger(logger)},
	})
	return f
}

func (f *routerFixture) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestAuthHandlers(t *testing.T) {
	t.Parallel()

	t.Run("sign in issues the token via body, header and cookie", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t)
		req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(`{"email":" Ana@Example.com ","password":"secret123"}`))
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)
		body := decodeBody[sessionResponse](t, rec)
		assert.Equal(t, "jwt-token", body.Token)
		require.NotNil(t, body.User)
		assert.Equal(t, "ana@example.com", body.User.Email)
		assert.Equal(t, "jwt-token", rec.Header().Get("X-Session-Token"))
		assert.Contains(t, rec.Header().Get("Set-Cookie"), "session_token=jwt-token")
	})

	t.Run("bad credentials answer 401", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t)
		f.auth.authErr = application.ErrInvalidCredentials
		req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(`{"email":"a@b.co","password":"nope"}`))
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "AUTH_INVALID_CREDENTIALS", decodeError(t, rec).ErrorCode)
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t)
		req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(`{"email":"a@b.co","password":"x","admin":true}`))
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("refresh rotates the bearer token", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t)
		rec := f.do(http.MethodPost, "/sessions/refresh", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "tok-next", decodeBody[sessionResponse](t, rec).Token)
	})

	t.Run("sign out revokes the current token", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t)
		rec := f.do(http.MethodDelete, "/sessions/current", "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, []string{"tok"}, f.auth.revoked)
	})
}

func TestPlaceHandlers(t *testing.T) {
	t.Parallel()

	place := application.Place{
		ID:        "p1",
		OwnerID:   "user-1",
		Name:      "Café Central",
		Status:    application.StatusApproved,
		Schedules: []scheduler.Schedule{weekdaysSch},
	}

	t.Run("get reports whether the place is open", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t, place)
		rec := f.do(http.MethodGet, "/places/p1", "")
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody[placeResponse](t, rec)
		require.NotNil(t, body.Place.OpenNow)
		assert.True(t, *body.Place.OpenNow)
		require.NotNil(t, body.Place.NextOpening)
		require.Len(t, body.Place.Schedules, 1)
		assert.Equal(t, scheduleDTO{DayStart: 1, DayEnd: 5, Opens: "08:00", Closes: "17:00", Label: "Monday to Friday | 🕒 08:00 - 17:00"}, body.Place.Schedules[0])
		assert.Equal(t, []string{}, body.Place.Images)
	})

	t.Run("missing place answers 404", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t)
		assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/places/nope", "").Code)
	})

	t.Run("list maps query parameters to the filter", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t, place)
		rec := f.do(http.MethodGet, "/places?q=caf&category=Cafe&city=Armenia&owner=me&status=pending&open_at=2024-03-04T10:00:00Z", "")
		require.Equal(t, http.StatusOK, rec.Code)

		filter := f.places.lastFilter
		assert.Equal(t, "caf", filter.Query)
		assert.Equal(t, application.CategoryCafe, filter.Category)
		assert.Equal(t, "Armenia", filter.City)
		assert.Equal(t, "user-1", filter.OwnerID)
		assert.Equal(t, application.StatusPending, filter.Status)
		require.NotNil(t, filter.OpenAt)
		assert.True(t, filter.OpenAt.Equal(time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)))
	})

	t.Run("list rejects a malformed open_at", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t)
		rec := f.do(http.MethodGet, "/places?open_at=tomorrow", "")
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, decodeError(t, rec).Errors, "open_at")
	})

	t.Run("create answers 201", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t)
		rec := f.do(http.MethodPost, "/places", `{"name":"Museo del Oro","category":"museum","images":["https://img/1.jpg"],"schedules":[{"start_day":"Tuesday","end_day":"Sunday","open":{"hour":9,"minute":0,"period":"am"},"close":{"hour":5,"minute":0,"period":"PM"}}]}`)
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "Museo del Oro", decodeBody[placeResponse](t, rec).Place.Name)
	})

	t.Run("requests without a session are refused", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t, place)
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/places/p1", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unsupported methods answer 405", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t, place)
		assert.Equal(t, http.StatusMethodNotAllowed, f.do(http.MethodPatch, "/places/p1", "").Code)
	})
}

func TestScheduleHandlers(t *testing.T) {
	t.Parallel()

	place := application.Place{ID: "p1", OwnerID: "user-1", Status: application.StatusApproved}

	t.Run("add converts the typed entry and returns the session message", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t, place)
		rec := f.do(http.MethodPost, "/places/p1/schedules", `{"start_day":"Monday","end_day":"Friday","open":{"hour":8,"minute":0,"period":"a.m."},"close":{"hour":5,"minute":0,"period":"pm"}}`)
		require.Equal(t, http.StatusCreated, rec.Code)

		entry := f.places.lastAdd.Entry
		assert.Equal(t, "Monday", entry.StartDay)
		assert.Equal(t, scheduler.ClockTime{Hour: 8, Minute: 0, Period: scheduler.AM}, entry.Open)
		assert.Equal(t, scheduler.ClockTime{Hour: 5, Minute: 0, Period: scheduler.PM}, entry.Close)

		body := decodeBody[scheduleEditResponse](t, rec)
		assert.Equal(t, "Schedule added", body.Message)
		require.Len(t, body.Schedules, 1)
		assert.Equal(t, "Monday to Friday | 🕒 08:00 - 17:00", body.Schedules[0].Label)
	})

	t.Run("conflicts answer 422 with the session message", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t, place)
		f.places.addErr = &application.ScheduleError{Message: "The schedule overlaps an existing one", Err: application.ErrScheduleConflict}
		rec := f.do(http.MethodPost, "/places/p1/schedules", `{"start_day":"Monday","end_day":"Friday","open":{"hour":9,"period":"AM"},"close":{"hour":1,"period":"PM"}}`)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		body := decodeError(t, rec)
		assert.Equal(t, "SCHEDULE_CONFLICT", body.ErrorCode)
		assert.Equal(t, "The schedule overlaps an existing one", body.Message)
	})

	t.Run("invalid entries answer 422 schedule invalid", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t, place)
		f.places.addErr = &application.ScheduleError{Message: "Unrecognized day", Err: scheduler.ErrInvalidDay}
		rec := f.do(http.MethodPost, "/places/p1/schedules", `{"start_day":"Funday","end_day":"Friday"}`)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "SCHEDULE_INVALID", decodeError(t, rec).ErrorCode)
	})

	t.Run("delete with a body removes that schedule", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t, place)
		rec := f.do(http.MethodDelete, "/places/p1/schedules", `{"day_start":1,"day_end":5,"opens":"08:00","closes":"17:00"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, weekdaysSch, f.places.lastRemove.Schedule)
		assert.Equal(t, "Schedule removed", decodeBody[scheduleEditResponse](t, rec).Message)
	})

	t.Run("delete rejects a malformed schedule", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t, place)
		rec := f.do(http.MethodDelete, "/places/p1/schedules", `{"day_start":5,"day_end":1,"opens":"08:00","closes":"17:00"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.True(t, f.places.lastRemove.Schedule.IsZero())
	})

	t.Run("delete with all=true clears", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t, place)
		rec := f.do(http.MethodDelete, "/places/p1/schedules?all=true", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, f.places.cleared)
		body := decodeBody[scheduleEditResponse](t, rec)
		assert.Equal(t, "Schedules cleared", body.Message)
		assert.Empty(t, body.Schedules)
	})

	t.Run("openings default to one week from now", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t, place)
		rec := f.do(http.MethodGet, "/places/p1/openings", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, [2]time.Time{testNow, testNow.Add(7 * 24 * time.Hour)}, f.places.lastWindow)
		assert.Len(t, decodeBody[openingsResponse](t, rec).Openings, 1)
	})

	t.Run("openings reject malformed bounds", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t, place)
		rec := f.do(http.MethodGet, "/places/p1/openings?from=yesterday&to=soon", "")
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		errs := decodeError(t, rec).Errors
		assert.Contains(t, errs, "from")
		assert.Contains(t, errs, "to")
	})

	t.Run("calendar is served as text/calendar", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t, place)
		rec := f.do(http.MethodGet, "/places/p1/calendar.ics", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/calendar; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "p1.ics")
		assert.True(t, strings.HasPrefix(rec.Body.String(), "BEGIN:VCALENDAR"))
	})
}

func TestModerationHandlers(t *testing.T) {
	t.Parallel()

	t.Run("regular users are forbidden", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t)
		assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/moderation/places", "").Code)
		assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/moderation/report.xlsx", "").Code)
	})

	t.Run("moderators list, reject and export", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t)
		f.validator.principal = application.Principal{UserID: "mod", IsModerator: true}

		rec := f.do(http.MethodGet, "/moderation/places", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decodeBody[pendingResponse](t, rec).Places, 1)

		rec = f.do(http.MethodPost, "/moderation/places/p1/reject", `{"reason":""}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		rec = f.do(http.MethodPost, "/moderation/places/p1/reject", `{"reason":"spam"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody[moderationResponse](t, rec)
		assert.Equal(t, "rejected", body.Place.Status)
		require.NotNil(t, body.Place.RejectionReason)
		assert.Equal(t, "spam", *body.Place.RejectionReason)
		assert.Equal(t, "mod", f.moderation.rejected[1].Principal.UserID)

		rec = f.do(http.MethodGet, "/moderation/report.xlsx", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "moderation-20240304.xlsx")
	})
}
