package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/unilocal/internal/application"
)

type fakeSessionValidator struct {
	principal application.Principal
	err       error
	tokens    []string
}

func (f *fakeSessionValidator) ValidateSession(_ context.Context, token string) (application.Principal, error) {
	f.tokens = append(f.tokens, token)
	return f.principal, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRequireSession(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		prepare    func(*http.Request)
		err        error
		wantStatus int
		wantCode   string
		wantToken  string
	}{
		{
			name:       "missing credentials",
			prepare:    func(*http.Request) {},
			wantStatus: http.StatusUnauthorized,
			wantCode:   "AUTH_REQUIRED",
		},
		{
			name:       "bearer header",
			prepare:    func(r *http.Request) { r.Header.Set("Authorization", "Bearer tok-1") },
			wantStatus: http.StatusOK,
			wantToken:  "tok-1",
		},
		{
			name:       "session token header",
			prepare:    func(r *http.Request) { r.Header.Set("X-Session-Token", "tok-2") },
			wantStatus: http.StatusOK,
			wantToken:  "tok-2",
		},
		{
			name:       "cookie",
			prepare:    func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "session_token", Value: "tok-3"}) },
			wantStatus: http.StatusOK,
			wantToken:  "tok-3",
		},
		{
			name:       "expired session",
			prepare:    func(r *http.Request) { r.Header.Set("Authorization", "Bearer old") },
			err:        application.ErrSessionExpired,
			wantStatus: http.StatusUnauthorized,
			wantCode:   "AUTH_SESSION_EXPIRED",
			wantToken:  "old",
		},
		{
			name:       "revoked session",
			prepare:    func(r *http.Request) { r.Header.Set("Authorization", "Bearer gone") },
			err:        application.ErrSessionRevoked,
			wantStatus: http.StatusUnauthorized,
			wantCode:   "AUTH_SESSION_REVOKED",
			wantToken:  "gone",
		},
		{
			name:       "unknown session",
			prepare:    func(r *http.Request) { r.Header.Set("Authorization", "Bearer forged") },
			err:        application.ErrUnauthorized,
			wantStatus: http.StatusUnauthorized,
			wantCode:   "AUTH_SESSION_INVALID",
			wantToken:  "forged",
		},
		{
			name:       "storage failure",
			prepare:    func(r *http.Request) { r.Header.Set("Authorization", "Bearer tok") },
			err:        errors.New("database is locked"),
			wantStatus: http.StatusInternalServerError,
			wantToken:  "tok",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			validator := &fakeSessionValidator{
				principal: application.Principal{UserID: "user-1"},
				err:       tc.err,
			}
			var captured application.Principal
			handler := RequireSession(validator, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				p, ok := PrincipalFromContext(r.Context())
				require.True(t, ok)
				captured = p
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			tc.prepare(req)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantToken != "" {
				assert.Equal(t, []string{tc.wantToken}, validator.tokens)
			} else {
				assert.Empty(t, validator.tokens)
			}
			if tc.wantStatus == http.StatusOK {
				assert.Equal(t, "user-1", captured.UserID)
			}
			if tc.wantCode != "" {
				assert.Equal(t, tc.wantCode, decodeError(t, rec).ErrorCode)
			}
		})
	}
}

func TestRequireModerator(t *testing.T) {
	t.Parallel()

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })
	handler := RequireModerator(discardLogger())(next)

	for _, tc := range []struct {
		name      string
		principal *application.Principal
		want      int
	}{
		{"no principal", nil, http.StatusForbidden},
		{"regular user", &application.Principal{UserID: "u"}, http.StatusForbidden},
		{"moderator", &application.Principal{UserID: "m", IsModerator: true}, http.StatusTeapot},
	} {
		req := httptest.NewRequest(http.MethodGet, "/moderation/places", nil)
		if tc.principal != nil {
			req = req.WithContext(ContextWithPrincipal(req.Context(), *tc.principal))
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, tc.want, rec.Code, tc.name)
	}
}

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	var sawLogger bool
	handler := RequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawLogger = LoggerFromContext(r.Context()) != nil
		w.WriteHeader(http.StatusAccepted)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/places", nil))

	assert.True(t, sawLogger)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	id := rec.Header().Get("X-Request-ID")
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"status":202`)
	assert.Contains(t, buf.String(), id)

	incoming := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/places", nil)
	req.Header.Set("X-Request-ID", incoming)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, incoming, rec.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/places", nil)
	req.Header.Set("X-Request-ID", "not-a-uuid")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.NotEqual(t, "not-a-uuid", rec.Header().Get("X-Request-ID"))
}
