package application

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	// ErrInvalidPasswordHash is returned when a stored hash cannot be parsed.
	ErrInvalidPasswordHash         = errors.New("application: invalid password hash")
	ErrIncompatiblePasswordVersion = errors.New("application: incompatible argon2 version")
)

// Argon2idParams tunes the argon2id key derivation.
type Argon2idParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2idParams is used for every newly stored password.
var DefaultArgon2idParams = Argon2idParams{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

const argon2idPrefix = "$argon2id$"

var b64 = base64.RawStdEncoding

// HashPassword hashes password with DefaultArgon2idParams.
func HashPassword(password string) (string, error) {
	return CreatePasswordHash(password, DefaultArgon2idParams)
}

// CreatePasswordHash derives a salted argon2id hash encoded as
// $argon2id$v=19$m=<memory>,t=<iterations>,p=<parallelism>$<salt>$<key>.
func CreatePasswordHash(password string, params Argon2idParams) (string, error) {
	salt := make([]byte, params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("application: read salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)

	var b strings.Builder
	b.WriteString(argon2idPrefix)
	fmt.Fprintf(&b, "v=%d$m=%d,t=%d,p=%d$", argon2.Version, params.Memory, params.Iterations, params.Parallelism)
	b.WriteString(b64.EncodeToString(salt))
	b.WriteByte('$')
	b.WriteString(b64.EncodeToString(key))
	return b.String(), nil
}

type encodedHash struct {
	params Argon2idParams
	salt   []byte
	key    []byte
}

func parseEncodedHash(encoded string) (encodedHash, error) {
	rest, ok := strings.CutPrefix(encoded, argon2idPrefix)
	if !ok {
		return encodedHash{}, ErrInvalidPasswordHash
	}
	fields := strings.Split(rest, "$")
	if len(fields) != 4 {
		return encodedHash{}, ErrInvalidPasswordHash
	}

	var version int
	if _, err := fmt.Sscanf(fields[0], "v=%d", &version); err != nil {
		return encodedHash{}, fmt.Errorf("%w: %v", ErrInvalidPasswordHash, err)
	}
	if version != argon2.Version {
		return encodedHash{}, ErrIncompatiblePasswordVersion
	}

	var h encodedHash
	if _, err := fmt.Sscanf(fields[1], "m=%d,t=%d,p=%d", &h.params.Memory, &h.params.Iterations, &h.params.Parallelism); err != nil {
		return encodedHash{}, fmt.Errorf("%w: %v", ErrInvalidPasswordHash, err)
	}
	var err error
	if h.salt, err = b64.DecodeString(fields[2]); err != nil {
		return encodedHash{}, fmt.Errorf("%w: salt: %v", ErrInvalidPasswordHash, err)
	}
	if h.key, err = b64.DecodeString(fields[3]); err != nil {
		return encodedHash{}, fmt.Errorf("%w: key: %v", ErrInvalidPasswordHash, err)
	}
	h.params.SaltLength = uint32(len(h.salt))
	h.params.KeyLength = uint32(len(h.key))
	return h, nil
}

// VerifyPassword checks password against a hash produced by CreatePasswordHash.
// A mismatch yields ErrInvalidCredentials.
func VerifyPassword(encoded, password string) error {
	h, err := parseEncodedHash(encoded)
	if err != nil {
		return err
	}
	candidate := argon2.IDKey([]byte(password), h.salt, h.params.Iterations, h.params.Memory, h.params.Parallelism, h.params.KeyLength)
	if subtle.ConstantTimeCompare(h.key, candidate) != 1 {
		return ErrInvalidCredentials
	}
	return nil
}
