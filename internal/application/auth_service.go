package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/unilocal/internal/token"
)

// CredentialStore exposes user credential lookup operations required by the auth service.
type CredentialStore interface {
	GetUserCredentialsByEmail(ctx context.Context, email string) (UserCredentials, error)
	GetUser(ctx context.Context, id string) (User, error)
}

// SessionRepository captures the persistence interactions for issued sessions.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, id string) (Session, error)
	UpdateSession(ctx context.Context, session Session) (Session, error)
	RevokeSession(ctx context.Context, id string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) (int64, error)
}

// TokenIssuer signs and verifies the bearer tokens that reference sessions.
type TokenIssuer interface {
	Issue(userID, sessionID string, issuedAt, expiresAt time.Time) (string, error)
	Verify(raw string) (sessionID string, err error)
}

// AuthService coordinates authentication flows such as login and session refresh.
type AuthService struct {
	credentials    CredentialStore
	sessions       SessionRepository
	tokens         TokenIssuer
	verifyPassword PasswordVerifier
	idGenerator    func() string
	now            func() time.Time
	sessionTTL     time.Duration
	logger         *slog.Logger
}

// NewAuthService constructs an AuthService with the provided dependencies.
func NewAuthService(credentials CredentialStore, sessions SessionRepository, tokens TokenIssuer, idGenerator func() string, now func() time.Time, sessionTTL time.Duration) *AuthService {
	return NewAuthServiceWithLogger(credentials, sessions, tokens, nil, idGenerator, now, sessionTTL, nil)
}

// NewAuthServiceWithLogger constructs an AuthService with a specified logger.
func NewAuthServiceWithLogger(credentials CredentialStore, sessions SessionRepository, tokens TokenIssuer, verify PasswordVerifier, idGenerator func() string, now func() time.Time, sessionTTL time.Duration, logger *slog.Logger) *AuthService {
	if verify == nil {
		verify = VerifyPassword
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	return &AuthService{
		credentials:    credentials,
		sessions:       sessions,
		tokens:         tokens,
		verifyPassword: verify,
		idGenerator:    idGenerator,
		now:            now,
		sessionTTL:     sessionTTL,
		logger:         defaultLogger(logger),
	}
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

func (s *AuthService) configured() error {
	if s == nil {
		return fmt.Errorf("AuthService is nil")
	}
	if s.sessions == nil {
		return fmt.Errorf("session repository not configured")
	}
	if s.tokens == nil {
		return fmt.Errorf("token issuer not configured")
	}
	return nil
}

// Authenticate validates credentials, persists a new session and returns its signed token.
func (s *AuthService) Authenticate(ctx context.Context, params AuthenticateParams) (result AuthenticateResult, err error) {
	if err = s.configured(); err != nil {
		return
	}
	if s.credentials == nil {
		err = fmt.Errorf("credential store not configured")
		return
	}

	email := strings.TrimSpace(strings.ToLower(params.Email))
	password := params.Password

	logger := s.loggerWith(ctx, "Authenticate", "email", email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "authentication failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"user_id", result.User.ID,
			"session_id", result.Session.ID,
		).InfoContext(ctx, "authentication succeeded")
	}()

	if email == "" || password == "" {
		err = ErrInvalidCredentials
		return
	}

	var creds UserCredentials
	creds, err = s.credentials.GetUserCredentialsByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			err = ErrInvalidCredentials
		}
		return
	}

	if err = s.verifyPassword(creds.PasswordHash, password); err != nil {
		err = ErrInvalidCredentials
		return
	}

	now := s.now()
	if _, err = s.sessions.DeleteExpiredSessions(ctx, now); err != nil {
		err = mapRepoError(err)
		return
	}

	session := Session{
		ID:          s.idGenerator(),
		UserID:      creds.User.ID,
		Fingerprint: strings.TrimSpace(params.Fingerprint),
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(s.sessionTTL),
	}

	session, err = s.sessions.CreateSession(ctx, session)
	if err != nil {
		err = mapRepoError(err)
		return
	}

	session.Token, err = s.tokens.Issue(session.UserID, session.ID, now, session.ExpiresAt)
	if err != nil {
		return
	}

	result = AuthenticateResult{User: creds.User, Session: session}
	return
}

// RefreshSession extends an active session and issues a token with the new expiry.
func (s *AuthService) RefreshSession(ctx context.Context, params RefreshSessionParams) (result RefreshSessionResult, err error) {
	if err = s.configured(); err != nil {
		return
	}

	raw := strings.TrimSpace(params.Token)
	logger := s.loggerWith(ctx, "RefreshSession", "token_provided", raw != "")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "session refresh failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"session_id", result.Session.ID,
			"user_id", result.Session.UserID,
		).InfoContext(ctx, "session refreshed")
	}()

	var session Session
	session, err = s.activeSession(ctx, raw)
	if err != nil {
		return
	}

	now := s.now()
	session.UpdatedAt = now
	session.ExpiresAt = now.Add(s.sessionTTL)
	if fp := strings.TrimSpace(params.Fingerprint); fp != "" {
		session.Fingerprint = fp
	}

	session, err = s.sessions.UpdateSession(ctx, session)
	if err != nil {
		err = mapRepoError(err)
		return
	}

	session.Token, err = s.tokens.Issue(session.UserID, session.ID, now, session.ExpiresAt)
	if err != nil {
		return
	}

	result = RefreshSessionResult{Session: session}
	return
}

// RevokeSession invalidates the session referenced by the token.
func (s *AuthService) RevokeSession(ctx context.Context, raw string) error {
	if err := s.configured(); err != nil {
		return err
	}

	raw = strings.TrimSpace(raw)
	logger := s.loggerWith(ctx, "RevokeSession", "token_provided", raw != "")

	sessionID, err := s.tokens.Verify(raw)
	if err != nil {
		logger.ErrorContext(ctx, "failed to revoke session", "error", err, "error_kind", ErrorKind(ErrInvalidCredentials))
		return ErrInvalidCredentials
	}

	if _, err := s.sessions.RevokeSession(ctx, sessionID, s.now()); err != nil {
		if isNotFound(err) {
			logger.ErrorContext(ctx, "failed to revoke session", "error", ErrInvalidCredentials, "error_kind", ErrorKind(ErrInvalidCredentials))
			return ErrInvalidCredentials
		}
		logger.ErrorContext(ctx, "failed to revoke session", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.With("session_id", sessionID).InfoContext(ctx, "session revoked")
	return nil
}

// ValidateSession verifies that the provided token references an active session and returns its principal.
func (s *AuthService) ValidateSession(ctx context.Context, raw string) (principal Principal, err error) {
	if err = s.configured(); err != nil {
		return
	}
	if s.credentials == nil {
		err = fmt.Errorf("credential store not configured")
		return
	}

	raw = strings.TrimSpace(raw)
	logger := s.loggerWith(ctx, "ValidateSession", "token_provided", raw != "")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "session validation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("principal_id", principal.UserID).DebugContext(ctx, "session validated")
	}()

	var session Session
	session, err = s.activeSession(ctx, raw)
	if err != nil {
		return
	}

	var user User
	user, err = s.credentials.GetUser(ctx, session.UserID)
	if err != nil {
		if isNotFound(err) {
			err = ErrUnauthorized
		}
		return
	}

	principal = user.Principal()
	return
}

// PruneExpiredSessions deletes sessions that expired or were revoked before now.
func (s *AuthService) PruneExpiredSessions(ctx context.Context) (removed int64, err error) {
	if s == nil {
		return 0, fmt.Errorf("AuthService is nil")
	}
	if s.sessions == nil {
		return 0, fmt.Errorf("session repository not configured")
	}

	logger := s.loggerWith(ctx, "PruneExpiredSessions")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to prune sessions", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("removed", removed).InfoContext(ctx, "sessions pruned")
	}()

	removed, err = s.sessions.DeleteExpiredSessions(ctx, s.now())
	if err != nil {
		err = mapRepoError(err)
	}
	return
}

func (s *AuthService) activeSession(ctx context.Context, raw string) (Session, error) {
	if raw == "" {
		return Session{}, ErrInvalidCredentials
	}

	sessionID, err := s.tokens.Verify(raw)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return Session{}, ErrSessionExpired
		}
		return Session{}, ErrInvalidCredentials
	}

	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if isNotFound(err) {
			return Session{}, ErrUnauthorized
		}
		return Session{}, err
	}

	if session.RevokedAt != nil && !session.RevokedAt.IsZero() {
		return Session{}, ErrSessionRevoked
	}
	if !session.ExpiresAt.After(s.now()) {
		return Session{}, ErrSessionExpired
	}
	return session, nil
}
