package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef-test-secret"

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestManagerRoundTrip(t *testing.T) {
	issued := time.Date(2024, time.March, 14, 9, 0, 0, 0, time.UTC)
	m, err := NewManager(secret, fixedClock(issued.Add(time.Minute)))
	require.NoError(t, err)

	raw, err := m.Issue("user-1", "session-1", issued, issued.Add(time.Hour))
	require.NoError(t, err)

	claims, err := m.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "session-1", claims.ID)
	assert.Equal(t, Issuer, claims.Issuer)

	id, err := m.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "session-1", id)
}

func TestManagerRejectsExpired(t *testing.T) {
	issued := time.Date(2024, time.March, 14, 9, 0, 0, 0, time.UTC)
	m, err := NewManager(secret, fixedClock(issued.Add(2*time.Hour)))
	require.NoError(t, err)

	raw, err := m.Issue("user-1", "session-1", issued, issued.Add(time.Hour))
	require.NoError(t, err)

	_, err = m.Verify(raw)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestManagerRejectsForeignSignatures(t *testing.T) {
	issued := time.Date(2024, time.March, 14, 9, 0, 0, 0, time.UTC)
	clock := fixedClock(issued)

	other, err := NewManager("another-secret-of-16+", clock)
	require.NoError(t, err)
	raw, err := other.Issue("user-1", "session-1", issued, issued.Add(time.Hour))
	require.NoError(t, err)

	m, err := NewManager(secret, clock)
	require.NoError(t, err)
	_, err = m.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalid)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Issuer:    Issuer,
		Subject:   "user-1",
		ID:        "session-1",
		ExpiresAt: jwt.NewNumericDate(issued.Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.Verify(unsigned)
	assert.ErrorIs(t, err, ErrInvalid)

	for _, raw := range []string{"", "  ", "not-a-jwt"} {
		_, err = m.Verify(raw)
		assert.ErrorIs(t, err, ErrInvalid)
	}
}

func TestNewManagerRequiresStrongSecret(t *testing.T) {
	_, err := NewManager("short", nil)
	assert.ErrorIs(t, err, ErrWeakSecret)
}

func TestIssueRequiresIdentifiers(t *testing.T) {
	m, err := NewManager(secret, nil)
	require.NoError(t, err)
	_, err = m.Issue("", "session", time.Now(), time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, ErrInvalid)
}
