// Package password hashes account passwords and management-role PINs with
// Argon2id and verifies them in constant time.
//
// Encoded form (PHC):
//
//	$argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt_b64>$<hash_b64>
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const argon2Version = 19

var (
	ErrTooShort    = errors.New("password too short")
	ErrTooLong     = errors.New("password too long")
	ErrInvalidPIN  = errors.New("pin must be 4 to 8 digits")
	ErrInvalidHash = errors.New("invalid argon2id hash")
)

// Params controls Argon2id cost. MemoryKiB is in KiB as argon2.IDKey expects.
type Params struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Hasher hashes and verifies secrets with fixed parameters.
type Hasher struct {
	Params    Params
	MinLength int
	MaxLength int
}

// Default returns parameters suitable for interactive logins.
func Default() Hasher {
	return Hasher{
		Params: Params{
			MemoryKiB:   19 * 1024,
			Iterations:  2,
			Parallelism: 1,
			SaltLength:  16,
			KeyLength:   32,
		},
		MinLength: 8,
		MaxLength: 256,
	}
}

// HashPassword validates the length policy and hashes pw.
func (h Hasher) HashPassword(pw string) (string, error) {
	if len(pw) < h.MinLength {
		return "", ErrTooShort
	}
	if h.MaxLength > 0 && len(pw) > h.MaxLength {
		return "", ErrTooLong
	}
	return h.hash(pw)
}

// HashPIN validates that pin is 4 to 8 ASCII digits and hashes it.
func (h Hasher) HashPIN(pin string) (string, error) {
	if !ValidPIN(pin) {
		return "", ErrInvalidPIN
	}
	return h.hash(pin)
}

// ValidPIN reports whether pin is 4 to 8 ASCII digits.
func ValidPIN(pin string) bool {
	if len(pin) < 4 || len(pin) > 8 {
		return false
	}
	for _, c := range pin {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func (h Hasher) hash(secret string) (string, error) {
	salt := make([]byte, h.Params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}

	key := argon2.IDKey([]byte(secret), salt, h.Params.Iterations, h.Params.MemoryKiB, h.Params.Parallelism, h.Params.KeyLength)

	b64 := base64.RawStdEncoding
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Version,
		h.Params.MemoryKiB,
		h.Params.Iterations,
		h.Params.Parallelism,
		b64.EncodeToString(salt),
		b64.EncodeToString(key),
	), nil
}

// Verify reports whether secret matches encoded. A malformed hash, or one
// whose cost is far above ours, yields ErrInvalidHash.
func (h Hasher) Verify(encoded, secret string) (bool, error) {
	p, salt, expected, err := decode(encoded)
	if err != nil {
		return false, err
	}
	if p.MemoryKiB > h.Params.MemoryKiB*2 || p.Iterations > h.Params.Iterations*2 {
		return false, ErrInvalidHash
	}

	key := argon2.IDKey([]byte(secret), salt, p.Iterations, p.MemoryKiB, p.Parallelism, uint32(len(expected)))
	return subtle.ConstantTimeCompare(key, expected) == 1, nil
}

func decode(encoded string) (Params, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" || parts[2] != "v=19" {
		return Params{}, nil, nil, ErrInvalidHash
	}

	var mem, it, par uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &it, &par); err != nil {
		return Params{}, nil, nil, ErrInvalidHash
	}
	if mem == 0 || it == 0 || par == 0 || par > 255 {
		return Params{}, nil, nil, ErrInvalidHash
	}

	b64 := base64.RawStdEncoding
	salt, err := b64.DecodeString(parts[4])
	if err != nil || len(salt) < 8 || len(salt) > 64 {
		return Params{}, nil, nil, ErrInvalidHash
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil || len(key) < 16 || len(key) > 128 {
		return Params{}, nil, nil, ErrInvalidHash
	}

	return Params{MemoryKiB: mem, Iterations: it, Parallelism: uint8(par)}, salt, key, nil
}
