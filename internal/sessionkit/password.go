package sessionkit

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

// ErrPasswordMismatch indicates the plaintext does not match the digest.
var ErrPasswordMismatch = errors.New("session.password.mismatch")

// HashPassword derives a one-way digest from the plaintext.
func HashPassword(plaintext string) (string, error) {
	digest, hashErr := bcrypt.GenerateFromPassword([]byte(plaintext), bcryptCost)
	if hashErr != nil {
		return "", fmt.Errorf("session.password.hash: %w", hashErr)
	}
	return string(digest), nil
}

// ComparePasswordAndHash verifies the plaintext against a stored digest.
// bcrypt's comparison is constant-time with respect to the secret.
func ComparePasswordAndHash(plaintext string, digest string) error {
	if compareErr := bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)); compareErr != nil {
		if errors.Is(compareErr, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return fmt.Errorf("session.password.compare: %w", compareErr)
	}
	return nil
}
