package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/unilocal/internal/application"
	"github.com/example/unilocal/internal/config"
	"github.com/example/unilocal/internal/testfixtures"
)

func testConfig() config.Config {
	return config.Config{
		Auth: config.AuthConfig{
			SessionSecret: testfixtures.TestSessionSecret,
			SessionTTL:    time.Hour,
		},
		Places: config.PlacesConfig{
			Timezone:       "UTC",
			Locale:         "en",
			SearchCacheTTL: time.Minute,
		},
	}
}

type apiClient struct {
	t      *testing.T
	server *httptest.Server
	token  string
}

func (c *apiClient) do(method, path string, body any) *http.Response {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, c.server.URL+path, reader)
	require.NoError(c.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.server.Client().Do(req)
	require.NoError(c.t, err)
	c.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (c *apiClient) as(token string) *apiClient {
	return &apiClient{t: c.t, server: c.server, token: token}
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func signIn(t *testing.T, client *apiClient, email, password string) string {
	t.Helper()
	resp := client.do(http.MethodPost, "/sessions", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decode[struct {
		Token string `json:"token"`
	}](t, resp)
	require.NotEmpty(t, body.Token)
	return body.Token
}

func clock(hour, minute int, period string) map[string]any {
	return map[string]any{"hour": hour, "minute": minute, "period": period}
}

func TestPlaceLifecycleOverHTTP(t *testing.T) {
	harness := testfixtures.NewSQLiteHarness(t)
	now := testfixtures.NewClock(testfixtures.ReferenceTime())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc, err := newServices(testConfig(), harness.Storage, logger, now.NowFunc())
	require.NoError(t, err)

	server := httptest.NewServer(svc.handler(logger, now.NowFunc()))
	t.Cleanup(server.Close)
	anonymous := &apiClient{t: t, server: server}

	resp := anonymous.do(http.MethodPost, "/register", map[string]string{
		"email":        "owner@example.com",
		"display_name": "Owner",
		"username":     "owner",
		"city":         "Armenia",
		"password":     "correct horse battery",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	_, err = svc.users.CreateModerator(t.Context(), application.RegisterParams{
		Email:       "mod@example.com",
		DisplayName: "Moderator",
		Username:    "moderator",
		Password:    "moderator password",
	})
	require.NoError(t, err)

	resp = anonymous.do(http.MethodPost, "/register", map[string]string{
		"email":        "visitor@example.com",
		"display_name": "Visitor",
		"username":     "visitor",
		"password":     "visitor password",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	owner := anonymous.as(signIn(t, anonymous, "owner@example.com", "correct horse battery"))
	visitor := anonymous.as(signIn(t, anonymous, "visitor@example.com", "visitor password"))
	moderator := anonymous.as(signIn(t, anonymous, "mod@example.com", "moderator password"))

	resp = owner.do(http.MethodPost, "/places", map[string]any{
		"name":      "Café Quindío",
		"category":  "cafe",
		"address":   "Calle 21 # 14-20",
		"city":      "Armenia",
		"latitude":  4.5339,
		"longitude": -75.6811,
		"images":    []string{"https://img.example.com/cafe.jpg"},
		"schedules": []map[string]any{{
			"start_day": "Monday",
			"end_day":   "Friday",
			"open":      clock(8, 0, "a.m."),
			"close":     clock(5, 0, "p.m."),
		}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[struct {
		Place struct {
			ID        string `json:"id"`
			Status    string `json:"status"`
			Schedules []struct {
				Label string `json:"label"`
			} `json:"schedules"`
		} `json:"place"`
	}](t, resp)
	placeID := created.Place.ID
	assert.Equal(t, "pending", created.Place.Status)
	require.Len(t, created.Place.Schedules, 1)
	assert.Equal(t, "Monday to Friday | 🕒 08:00 - 17:00", created.Place.Schedules[0].Label)

	t.Run("overlapping schedules are rejected", func(t *testing.T) {
		resp := owner.do(http.MethodPost, "/places/"+placeID+"/schedules", map[string]any{
			"start_day": "Friday",
			"end_day":   "Friday",
			"open":      clock(4, 0, "p.m."),
			"close":     clock(8, 0, "p.m."),
		})
		require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		body := decode[struct {
			ErrorCode string `json:"error_code"`
		}](t, resp)
		assert.Equal(t, "SCHEDULE_CONFLICT", body.ErrorCode)
	})

	t.Run("adjacent schedules are accepted", func(t *testing.T) {
		resp := owner.do(http.MethodPost, "/places/"+placeID+"/schedules", map[string]any{
			"start_day": "Saturday",
			"end_day":   "Sunday",
			"open":      clock(10, 0, "a.m."),
			"close":     clock(2, 0, "p.m."),
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		body := decode[struct {
			Message   string `json:"message"`
			Schedules []any  `json:"schedules"`
		}](t, resp)
		assert.Equal(t, "Schedule added", body.Message)
		assert.Len(t, body.Schedules, 2)
	})

	t.Run("pending places are hidden from other users", func(t *testing.T) {
		resp := visitor.do(http.MethodGet, "/places?category=cafe", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode[struct {
			Places []any `json:"places"`
		}](t, resp)
		assert.Empty(t, body.Places)

		resp = visitor.do(http.MethodGet, "/places/"+placeID, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("moderators approve pending places", func(t *testing.T) {
		resp := owner.do(http.MethodGet, "/moderation/places", nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		resp = moderator.do(http.MethodPost, "/moderation/places/"+placeID+"/approve", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp = moderator.do(http.MethodPost, "/moderation/places/"+placeID+"/approve", nil)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)

		resp = moderator.do(http.MethodGet, "/moderation/places/"+placeID+"/history", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		history := decode[struct {
			Records []struct {
				Decision string `json:"decision"`
			} `json:"records"`
		}](t, resp)
		require.Len(t, history.Records, 1)
		assert.Equal(t, "approved", history.Records[0].Decision)
	})

	t.Run("approved places report whether they are open", func(t *testing.T) {
		resp := moderator.do(http.MethodGet, "/places/"+placeID, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode[struct {
			Place struct {
				Status  string `json:"status"`
				OpenNow *bool  `json:"open_now"`
			} `json:"place"`
		}](t, resp)
		assert.Equal(t, "approved", body.Place.Status)
		require.NotNil(t, body.Place.OpenNow)
		assert.True(t, *body.Place.OpenNow)

		resp = visitor.do(http.MethodGet, "/places?open_at=2024-03-05T20:00:00Z", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		closed := decode[struct {
			Places []any `json:"places"`
		}](t, resp)
		assert.Empty(t, closed.Places)

		resp = visitor.do(http.MethodGet, "/places?open_at=2024-03-09T11:00:00Z", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		open := decode[struct {
			Places []any `json:"places"`
		}](t, resp)
		assert.Len(t, open.Places, 1)
	})

	t.Run("favorites list saved places", func(t *testing.T) {
		resp := visitor.do(http.MethodPut, "/places/"+placeID+"/favorite", nil)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp = visitor.do(http.MethodGet, "/favorites", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode[struct {
			Favorites []struct {
				Place struct {
					ID string `json:"id"`
				} `json:"place"`
			} `json:"favorites"`
		}](t, resp)
		require.Len(t, body.Favorites, 1)
		assert.Equal(t, placeID, body.Favorites[0].Place.ID)
	})

	t.Run("calendar export carries weekly rules", func(t *testing.T) {
		resp := moderator.do(http.MethodGet, "/places/"+placeID+"/calendar.ics", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Type"), "text/calendar")
		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(data), "RRULE:FREQ=WEEKLY")
	})

	t.Run("signing out invalidates the token", func(t *testing.T) {
		token := signIn(t, anonymous, "owner@example.com", "correct horse battery")
		client := anonymous.as(token)

		resp := client.do(http.MethodDelete, "/sessions/current", nil)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp = client.do(http.MethodGet, "/users/me", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestSessionPruneRemovesExpiredSessions(t *testing.T) {
	harness := testfixtures.NewSQLiteHarness(t)
	user := harness.SeedUser(t, testfixtures.NewUserFixture())

	now := testfixtures.NewClock(testfixtures.ReferenceTime())
	svc, err := newServices(testConfig(), harness.Storage, nil, now.NowFunc())
	require.NoError(t, err)

	expired := testfixtures.NewSessionFixture(user.ID, testfixtures.WithSessionExpiry(now.Now().Add(-time.Minute)))
	active := testfixtures.NewSessionFixture(user.ID, testfixtures.WithSessionExpiry(now.Now().Add(time.Hour)))
	for _, s := range []testfixtures.SessionFixture{expired, active} {
		_, err := harness.Sessions.CreateSession(t.Context(), s.Persistence())
		require.NoError(t, err)
	}

	removed, err := svc.auth.PruneExpiredSessions(t.Context())
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	_, err = harness.Sessions.GetSession(t.Context(), active.ID)
	assert.NoError(t, err)
}

func TestNewServicesRejectsUnknownLocale(t *testing.T) {
	harness := testfixtures.NewSQLiteHarness(t)
	cfg := testConfig()
	cfg.Places.Locale = "fr"

	_, err := newServices(cfg, harness.Storage, nil, nil)
	assert.Error(t, err)
}

func TestMigrateVersionCommand(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("UNILOCAL_AUTH_SESSION_SECRET", testfixtures.TestSessionSecret)
	t.Setenv("UNILOCAL_DATABASE_DSN", "file:"+dir+"/cli.db")
	t.Setenv("UNILOCAL_LOG_FORMAT", "json")
	t.Setenv("UNILOCAL_PLACES_TIMEZONE", "UTC")

	run := func(args ...string) string {
		t.Helper()
		var out bytes.Buffer
		cmd := newRootCmd()
		cmd.SetOut(&out)
		cmd.SetErr(io.Discard)
		cmd.SetArgs(args)
		require.NoError(t, cmd.Execute())
		return out.String()
	}

	assert.Equal(t, "schema version 0 (clean)\n", run("migrate", "version"))
	assert.Equal(t, "schema version 1 (clean)\n", run("migrate", "up"))
	assert.Equal(t, "schema version 1 (clean)\n", run("migrate", "version"))
	assert.Equal(t, "schema version 0 (clean)\n", run("migrate", "down", "--steps", "1"))
}
