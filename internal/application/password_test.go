package application

import (
	"errors"
	"strings"
	"testing"
)

var cheapArgon2idParams = Argon2idParams{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}

func cheapHash(password string) (string, error) {
	return CreatePasswordHash(password, cheapArgon2idParams)
}

func TestPasswordRoundTrip(t *testing.T) {
	t.Parallel()

	hash, err := cheapHash("correct horse")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected hash encoding %q", hash)
	}
	if err := VerifyPassword(hash, "correct horse"); err != nil {
		t.Fatalf("expected password to verify, got %v", err)
	}
	if err := VerifyPassword(hash, "wrong horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestVerifyPasswordRejectsMalformedHashes(t *testing.T) {
	t.Parallel()

	for _, hash := range []string{
		"",
		"plain",
		"$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=x$m=1,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1,t=1,p=1$***$aGFzaA",
	} {
		if err := VerifyPassword(hash, "secret"); !errors.Is(err, ErrInvalidPasswordHash) {
			t.Fatalf("VerifyPassword(%q) = %v, want ErrInvalidPasswordHash", hash, err)
		}
	}

	if err := VerifyPassword("$argon2id$v=16$m=1,t=1,p=1$c2FsdA$aGFzaA", "secret"); !errors.Is(err, ErrIncompatiblePasswordVersion) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
}
