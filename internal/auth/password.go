package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for stored login passwords.
const (
	argon2Time        = 2
	argon2Memory      = 16384
	argon2Parallelism = 2
	argon2KeyLen      = 32
	argon2SaltLen     = 16

	hashPrefix = "$argon2id$"
)

// HashPassword returns an Argon2id hash of secret in the format
// $argon2id$v=19$m=16384,t=2,p=2$<salt>$<hash>.
func HashPassword(secret string) (string, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	hash := argon2.IDKey([]byte(secret), salt, argon2Time, argon2Memory, argon2Parallelism, argon2KeyLen)

	saltB64 := base64.RawStdEncoding.EncodeToString(salt)
	hashB64 := base64.RawStdEncoding.EncodeToString(hash)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argon2Memory, argon2Time, argon2Parallelism, saltB64, hashB64), nil
}

// IsHashed reports whether a stored password is an Argon2id hash.
func IsHashed(stored string) bool {
	return strings.HasPrefix(stored, hashPrefix)
}

// maxArgon2Memory bounds the memory parameter (KiB) accepted from a stored
// hash.
const maxArgon2Memory = 1 << 21

type argon2Hash struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	key     []byte
}

// parseHash decodes and checks a stored Argon2id hash. argon2.IDKey panics
// on zero rounds or threads, so those are rejected here.
func parseHash(encoded string) (*argon2Hash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, fmt.Errorf("not an argon2id hash")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, fmt.Errorf("unsupported argon2 version %q", parts[2])
	}
	h := &argon2Hash{}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &h.memory, &h.time, &h.threads); err != nil {
		return nil, fmt.Errorf("bad parameters %q: %w", parts[3], err)
	}
	if h.time == 0 || h.threads == 0 || h.memory == 0 || h.memory > maxArgon2Memory {
		return nil, fmt.Errorf("parameters out of range %q", parts[3])
	}

	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, fmt.Errorf("bad salt: %w", err)
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(h.key) == 0 {
		return nil, fmt.Errorf("bad key")
	}
	return h, nil
}

// ValidateHash reports why a stored Argon2id hash cannot be used.
func ValidateHash(encoded string) error {
	_, err := parseHash(encoded)
	return err
}

// VerifyPassword checks secret against an Argon2id hash produced by
// HashPassword. Parameters are read from the hash.
func VerifyPassword(secret, encoded string) bool {
	h, err := parseHash(encoded)
	if err != nil {
		return false
	}
	computed := argon2.IDKey([]byte(secret), h.salt, h.time, h.memory, h.threads, uint32(len(h.key)))
	return subtle.ConstantTimeCompare(computed, h.key) == 1
}

// checkPassword compares a presented password to a stored one, plain or
// hashed.
func checkPassword(presented, stored string) bool {
	if IsHashed(stored) {
		return VerifyPassword(presented, stored)
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(stored)) == 1
}
