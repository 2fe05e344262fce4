package application

import (
	"errors"
	"strings"
	"testing"
)

var cheapParams = Argon2idParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func TestPasswordHashRoundTrip(t *testing.T) {
	t.Parallel()

	encoded, err := CreatePasswordHash("correct horse", cheapParams)
	if err != nil {
		t.Fatalf("CreatePasswordHash returned error: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$v=19$m=1024,t=1,p=1$") {
		t.Fatalf("unexpected encoding %q", encoded)
	}

	if err := VerifyPassword(encoded, "correct horse"); err != nil {
		t.Fatalf("expected password to verify, got %v", err)
	}
	if err := VerifyPassword(encoded, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	again, err := CreatePasswordHash("correct horse", cheapParams)
	if err != nil {
		t.Fatalf("CreatePasswordHash returned error: %v", err)
	}
	if again == encoded {
		t.Fatalf("expected a fresh salt per hash")
	}
}

func TestVerifyPasswordRejectsMalformedHashes(t *testing.T) {
	t.Parallel()

	cases := map[string]error{
		"":                                       ErrInvalidPasswordHash,
		"$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$a2V5":   ErrInvalidPasswordHash,
		"$argon2id$v=19$m=1,t=1,p=1$c2FsdA":      ErrInvalidPasswordHash,
		"$argon2id$v=16$m=1,t=1,p=1$c2FsdA$a2V5": ErrIncompatiblePasswordVersion,
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$a2V5": ErrInvalidPasswordHash,
		"$argon2id$v=19$m=1,t=1,p=1$!!!$a2V5":    ErrInvalidPasswordHash,
	}
	for encoded, want := range cases {
		if err := VerifyPassword(encoded, "secret"); !errors.Is(err, want) {
			t.Fatalf("VerifyPassword(%q) = %v, want %v", encoded, err, want)
		}
	}
}
