package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"regexp"
	"sort"
	"strings"
	"time"
)

// UserRepository captures the persistence operations needed by the user service.
type UserRepository interface {
	CreateUser(ctx context.Context, credentials UserCredentials) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	GetUserCredentials(ctx context.Context, id string) (UserCredentials, error)
	UpdateUser(ctx context.Context, user User) (User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context) ([]User, error)
}

var usernamePattern = regexp.MustCompile(`^[a-z0-9_.]{3,32}$`)

// UserService orchestrates validation, authorization, and persistence for users.
type UserService struct {
	users       UserRepository
	hash        PasswordHasher
	verify      PasswordVerifier
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewUserService wires dependencies for the user service.
func NewUserService(users UserRepository, idGenerator func() string, now func() time.Time) *UserService {
	return NewUserServiceWithLogger(users, nil, nil, idGenerator, now, nil)
}

// NewUserServiceWithLogger wires dependencies for the user service with a specified logger.
// Nil hash and verify functions select the argon2id defaults.
func NewUserServiceWithLogger(users UserRepository, hash PasswordHasher, verify PasswordVerifier, idGenerator func() string, now func() time.Time, logger *slog.Logger) *UserService {
	if hash == nil {
		hash = HashPassword
	}
	if verify == nil {
		verify = VerifyPassword
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &UserService{
		users:       users,
		hash:        hash,
		verify:      verify,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *UserService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "UserService", operation, attrs...)
}

// Register creates a regular account from the public sign-up form.
func (s *UserService) Register(ctx context.Context, params RegisterParams) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}
	logger := s.loggerWith(ctx, "Register")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to register user", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", user.ID).InfoContext(ctx, "user registered")
	}()

	user, err = s.createUser(ctx, params, RoleUser)
	return
}

// CreateModerator seeds a moderator account. It is meant for operators, not the public API.
func (s *UserService) CreateModerator(ctx context.Context, params RegisterParams) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}
	logger := s.loggerWith(ctx, "CreateModerator")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create moderator", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", user.ID).InfoContext(ctx, "moderator created")
	}()

	user, err = s.createUser(ctx, params, RoleModerator)
	return
}

func (s *UserService) createUser(ctx context.Context, params RegisterParams, role Role) (User, error) {
	if s.users == nil {
		return User{}, fmt.Errorf("user repository not configured")
	}

	normalized := normalizeRegisterParams(params)
	vErr := validateProfile(normalized.DisplayName, normalized.Username)
	vErr.merge(validateEmail(normalized.Email))
	vErr.merge(validatePassword("password", params.Password))
	if vErr.HasErrors() {
		return User{}, vErr
	}

	hash, err := s.hash(params.Password)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := User{
		ID:          s.idGenerator(),
		Email:       normalized.Email,
		DisplayName: normalized.DisplayName,
		Username:    normalized.Username,
		City:        normalized.City,
		Role:        role,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	persisted, err := s.users.CreateUser(ctx, UserCredentials{User: user, PasswordHash: hash})
	if err != nil {
		return User{}, mapRepoError(err)
	}
	return persisted, nil
}

// GetProfile returns the caller's own account.
func (s *UserService) GetProfile(ctx context.Context, principal Principal) (User, error) {
	if s == nil {
		return User{}, fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return User{}, fmt.Errorf("user repository not configured")
	}
	if principal.UserID == "" {
		return User{}, ErrUnauthorized
	}

	user, err := s.users.GetUser(ctx, principal.UserID)
	if err != nil {
		return User{}, mapRepoError(err)
	}
	return user, nil
}

// UpdateProfile changes the caller's display name, username and city.
func (s *UserService) UpdateProfile(ctx context.Context, params UpdateProfileParams) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}
	if s.users == nil {
		err = fmt.Errorf("user repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateProfile", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update profile", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "profile updated")
	}()

	if params.Principal.UserID == "" {
		err = ErrUnauthorized
		return
	}

	displayName := strings.TrimSpace(params.DisplayName)
	username := strings.ToLower(strings.TrimSpace(params.Username))
	if vErr := validateProfile(displayName, username); vErr.HasErrors() {
		err = vErr
		return
	}

	var existing User
	existing, err = s.users.GetUser(ctx, params.Principal.UserID)
	if err != nil {
		err = mapRepoError(err)
		return
	}

	existing.DisplayName = displayName
	existing.Username = username
	existing.City = strings.TrimSpace(params.City)
	existing.UpdatedAt = s.now()

	user, err = s.users.UpdateUser(ctx, existing)
	if err != nil {
		err = mapRepoError(err)
	}
	return
}

// ChangePassword rotates the caller's password after checking the current one.
func (s *UserService) ChangePassword(ctx context.Context, params ChangePasswordParams) (err error) {
	if s == nil {
		return fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return fmt.Errorf("user repository not configured")
	}

	logger := s.loggerWith(ctx, "ChangePassword", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to change password", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "password changed")
	}()

	if params.Principal.UserID == "" {
		return ErrUnauthorized
	}
	if vErr := validatePassword("new_password", params.NewPassword); vErr.HasErrors() {
		return vErr
	}

	creds, err := s.users.GetUserCredentials(ctx, params.Principal.UserID)
	if err != nil {
		return mapRepoError(err)
	}
	if err := s.verify(creds.PasswordHash, params.CurrentPassword); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := s.hash(params.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return mapRepoError(s.users.UpdatePassword(ctx, creds.User.ID, hash, s.now()))
}

// DeleteAccount removes the caller together with their places, favorites and sessions.
func (s *UserService) DeleteAccount(ctx context.Context, principal Principal) (err error) {
	if s == nil {
		return fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return fmt.Errorf("user repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteAccount", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete account", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "account deleted")
	}()

	if principal.UserID == "" {
		return ErrUnauthorized
	}
	return mapRepoError(s.users.DeleteUser(ctx, principal.UserID))
}

// ListUsers returns all users for moderators.
func (s *UserService) ListUsers(ctx context.Context, principal Principal) ([]User, error) {
	if s == nil {
		return nil, fmt.Errorf("UserService is nil")
	}
	if !principal.IsModerator {
		return nil, ErrUnauthorized
	}
	if s.users == nil {
		return nil, nil
	}

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}

	out := make([]User, len(users))
	copy(out, users)

	sort.Slice(out, func(i, j int) bool {
		if strings.EqualFold(out[i].Email, out[j].Email) {
			return out[i].ID < out[j].ID
		}
		return strings.ToLower(out[i].Email) < strings.ToLower(out[j].Email)
	})

	return out, nil
}

func normalizeRegisterParams(params RegisterParams) RegisterParams {
	return RegisterParams{
		Email:       strings.ToLower(strings.TrimSpace(params.Email)),
		DisplayName: strings.TrimSpace(params.DisplayName),
		Username:    strings.ToLower(strings.TrimSpace(params.Username)),
		City:        strings.TrimSpace(params.City),
	}
}

func validateEmail(email string) *ValidationError {
	vErr := &ValidationError{}
	if email == "" {
		vErr.add("email", "email is required")
	} else if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		vErr.add("email", "email is invalid")
	}
	return vErr
}

func validateProfile(displayName, username string) *ValidationError {
	vErr := &ValidationError{}
	if displayName == "" {
		vErr.add("display_name", "display name is required")
	}
	if username == "" {
		vErr.add("username", "username is required")
	} else if !usernamePattern.MatchString(username) {
		vErr.add("username", "username must be 3-32 letters, digits, dots or underscores")
	}
	return vErr
}

func validatePassword(field, password string) *ValidationError {
	vErr := &ValidationError{}
	if len([]rune(password)) < MinPasswordLength {
		vErr.add(field, fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	return vErr
}

// isNotFound reports whether err means the record is missing at either layer.
func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(mapRepoError(err), ErrNotFound)
}
