// Package token issues and verifies the signed bearer tokens that carry a
// session reference.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer is the iss claim stamped on every token.
const Issuer = "unilocal"

// MinSecretLength is the shortest accepted signing secret in bytes.
const MinSecretLength = 16

var (
	// ErrInvalid indicates a malformed, unsigned or wrongly signed token.
	ErrInvalid = errors.New("token: invalid")
	// ErrExpired indicates a well formed token past its exp claim.
	ErrExpired = errors.New("token: expired")
	// ErrWeakSecret indicates the signing secret is too short.
	ErrWeakSecret = errors.New("token: secret too short")
)

// Claims are the registered claims of a session token. Subject is the user
// ID and ID (jti) is the session ID.
type Claims struct {
	jwt.RegisteredClaims
}

// Manager signs tokens with HMAC-SHA256.
type Manager struct {
	secret []byte
	now    func() time.Time
}

// NewManager returns a Manager that signs with secret.
func NewManager(secret string, now func() time.Time) (*Manager, error) {
	if len(strings.TrimSpace(secret)) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	if now == nil {
		now = time.Now
	}
	return &Manager{secret: []byte(secret), now: now}, nil
}

// Issue signs a token for the session.
func (m *Manager) Issue(userID, sessionID string, issuedAt, expiresAt time.Time) (string, error) {
	if userID == "" || sessionID == "" {
		return "", fmt.Errorf("%w: subject and session are required", ErrInvalid)
	}
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   userID,
			ID:        sessionID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies the signature and time claims and returns the claims.
func (m *Manager) Parse(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalid
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, m.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !parsed.Valid || claims.ID == "" || claims.Subject == "" {
		return nil, ErrInvalid
	}
	return claims, nil
}

// Verify returns the session ID carried by a valid token.
func (m *Manager) Verify(raw string) (string, error) {
	claims, err := m.Parse(raw)
	if err != nil {
		return "", err
	}
	return claims.ID, nil
}

func (m *Manager) keyFunc(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
	}
	return m.secret, nil
}
