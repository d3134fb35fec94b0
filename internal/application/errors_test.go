package application

import (
	"errors"
	"fmt"
	"testing"

	"github.com/example/unilocal/internal/persistence"
)

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	var err *ValidationError
	if err.Error() != "validation failed" {
		t.Fatalf("expected generic message for nil error, got %q", err.Error())
	}

	empty := &ValidationError{}
	if got := empty.Error(); got != "validation failed" {
		t.Fatalf("expected generic message for empty error, got %q", got)
	}

	withFields := &ValidationError{FieldErrors: map[string]string{"name": "required", "city": "required"}}
	if got := withFields.Error(); got != "validation failed: city, name" {
		t.Fatalf("expected sorted field list, got %q", got)
	}
}

func TestValidationError_HasErrors(t *testing.T) {
	t.Parallel()

	if err := (&ValidationError{}).HasErrors(); err {
		t.Fatalf("expected HasErrors to report false for empty error")
	}

	if err := (&ValidationError{FieldErrors: map[string]string{"field": "bad"}}).HasErrors(); !err {
		t.Fatalf("expected HasErrors to report true when fields are present")
	}
}

func TestValidationError_AddAndMerge(t *testing.T) {
	t.Parallel()

	base := &ValidationError{}
	base.add("first", "value")
	if got := base.FieldErrors["first"]; got != "value" {
		t.Fatalf("expected add to populate map, got %q", got)
	}

	other := &ValidationError{FieldErrors: map[string]string{"second": "another"}}
	base.merge(other)
	if got := base.FieldErrors["second"]; got != "another" {
		t.Fatalf("expected merge to copy field, got %q", got)
	}

	base.merge(nil)
	if len(base.FieldErrors) != 2 {
		t.Fatalf("expected merge with nil to leave fields unchanged")
	}
}

func TestScheduleErrorUnwraps(t *testing.T) {
	t.Parallel()

	err := &ScheduleError{Message: "El horario se superpone", Err: ErrScheduleConflict}
	if !errors.Is(err, ErrScheduleConflict) {
		t.Fatalf("expected schedule error to wrap conflict sentinel")
	}
	if got := err.Error(); got != "El horario se superpone: application: schedule conflict" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestMapRepoError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   error
		want error
	}{
		{in: fmt.Errorf("wrapped: %w", persistence.ErrNotFound), want: ErrNotFound},
		{in: persistence.ErrDuplicate, want: ErrAlreadyExists},
		{in: persistence.ErrConflict, want: ErrInvalidTransition},
		{in: persistence.ErrForeignKeyViolation, want: ErrNotFound},
	}
	for _, tc := range cases {
		if got := mapRepoError(tc.in); !errors.Is(got, tc.want) {
			t.Fatalf("mapRepoError(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}

	var vErr *ValidationError
	if !errors.As(mapRepoError(persistence.ErrConstraintViolation), &vErr) {
		t.Fatalf("expected constraint violation to become a validation error")
	}
	if mapRepoError(nil) != nil {
		t.Fatalf("expected nil to pass through")
	}
}
