package testfixtures

import (
	"context"
	"testing"
	"time"

	"github.com/example/unilocal/internal/application"
)

type capturingUserRepo struct {
	created application.UserCredentials
}

func (c *capturingUserRepo) CreateUser(_ context.Context, creds application.UserCredentials) (application.User, error) {
	c.created = creds
	return creds.User, nil
}

func (c *capturingUserRepo) GetUser(context.Context, string) (application.User, error) {
	return application.User{}, application.ErrNotFound
}

func (c *capturingUserRepo) GetUserCredentials(context.Context, string) (application.UserCredentials, error) {
	return application.UserCredentials{}, application.ErrNotFound
}

func (c *capturingUserRepo) UpdateUser(_ context.Context, user application.User) (application.User, error) {
	return user, nil
}

func (c *capturingUserRepo) UpdatePassword(context.Context, string, string, time.Time) error {
	return nil
}

func (c *capturingUserRepo) DeleteUser(context.Context, string) error { return nil }

func (c *capturingUserRepo) ListUsers(context.Context) ([]application.User, error) { return nil, nil }

func TestServiceFactoryNewUserService(t *testing.T) {
	factory := NewServiceFactory()
	repo := &capturingUserRepo{}

	user, err := factory.NewUserService(repo).Register(context.Background(), application.RegisterParams{
		Email:       "Ana@Example.com",
		DisplayName: "Ana",
		Username:    "ana",
		City:        "Armenia",
		Password:    "cafecito123",
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	if user.ID != "user-001" {
		t.Fatalf("expected generated ID user-001, got %q", user.ID)
	}
	if !user.CreatedAt.Equal(factory.Clock.Now()) {
		t.Fatalf("expected timestamp %v, got %v", factory.Clock.Now(), user.CreatedAt)
	}
	if err := application.VerifyPassword(repo.created.PasswordHash, "cafecito123"); err != nil {
		t.Fatalf("stored hash does not verify: %v", err)
	}
}

func TestServiceFactoryPlaceServiceUsesLocale(t *testing.T) {
	place := NewPlaceFixture("owner", WithSchedules(Weekend(), Weekdays())).Application()

	english := NewServiceFactory().NewPlaceService(nil, nil).FormatSchedules(place)
	want := []string{"Monday to Friday | 🕒 08:00 - 17:00", "Saturday to Sunday | 🕒 10:00 - 14:00"}
	if len(english) != 2 || english[0] != want[0] || english[1] != want[1] {
		t.Fatalf("unexpected english lines %q", english)
	}

	spanish := NewServiceFactory(WithLocale("es")).NewPlaceService(nil, nil).FormatSchedules(place)
	if len(spanish) != 2 || spanish[0] != "Lunes a Viernes | 🕒 08:00 - 17:00" {
		t.Fatalf("unexpected spanish lines %q", spanish)
	}
}

func TestPlaceFixtureInputRoundTrips(t *testing.T) {
	fixture := NewPlaceFixture("owner", WithSchedules(Weekdays()))
	input := fixture.Input()
	if len(input.Schedules) != 1 {
		t.Fatalf("expected one entry, got %d", len(input.Schedules))
	}
	entry := input.Schedules[0]
	if entry.StartDay != "Monday" || entry.EndDay != "Friday" {
		t.Fatalf("unexpected days %q-%q", entry.StartDay, entry.EndDay)
	}
	if entry.Close.Hour != 5 || entry.Close.Period != "PM" {
		t.Fatalf("unexpected close %+v", entry.Close)
	}
}
