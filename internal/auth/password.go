package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrNoPasswordHash is returned when comparing against an empty hash.
var ErrNoPasswordHash = errors.New("no password hash configured")

// HashPassword hashes a plaintext password. Costs outside bcrypt's range
// fall back to bcrypt.DefaultCost.
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword verifies a password against its hashed value.
func ComparePassword(hashed, plain string) error {
	if hashed == "" {
		return ErrNoPasswordHash
	}
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}
