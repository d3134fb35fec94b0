package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/unilocal/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	return logging.OrDefault(logger)
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	return logging.Scoped(ctx, base, "service", serviceName, operation, attrs...)
}

// errorKinds is checked in order; the first match labels the error.
var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrScheduleConflict, "schedule_conflict"},
	{ErrInvalidTransition, "invalid_transition"},
	{ErrUnauthorized, "unauthorized"},
	{ErrNotFound, "not_found"},
	{ErrAlreadyExists, "already_exists"},
	{ErrInvalidCredentials, "invalid_credentials"},
	{ErrAccountDisabled, "account_disabled"},
	{ErrSessionExpired, "session_expired"},
	{ErrSessionRevoked, "session_revoked"},
}

// ErrorKind labels err for the error_kind log attribute.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}

	var (
		vErr     *ValidationError
		schedErr *ScheduleError
	)
	switch {
	case errors.As(err, &schedErr):
		return "schedule_invalid"
	case errors.As(err, &vErr):
		return "validation"
	}
	return "unexpected"
}
