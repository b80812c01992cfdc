package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt only keys from the first 72 bytes of input. Both paths
// truncate identically so long passwords still round-trip; bytes past
// the limit carry no entropy. This mirrors the original system and is
// an accepted weakness, not one this code corrects.
const passwordByteLimit = 72

// HashPassword hashes a plaintext password using bcrypt with a random
// per-password salt.
func HashPassword(password string) (string, error) {
	if len(password) == 0 {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword(truncatePassword(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares a plaintext password with a stored hash.
// A malformed stored hash verifies false; no error escapes.
func VerifyPassword(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), truncatePassword(password)) == nil
}

func truncatePassword(password string) []byte {
	b := []byte(password)
	if len(b) > passwordByteLimit {
		b = b[:passwordByteLimit]
	}
	return b
}
