package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultBcryptCost = 10

	// OAuthPasswordSentinel is stored as the password of accounts created
	// through Google sign-in. It is not a bcrypt hash so it never verifies.
	OAuthPasswordSentinel = "Google"
)

func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash. Anything that is not a
// bcrypt hash, the OAuth sentinel included, never matches.
func CheckPassword(hash, password string) bool {
	if hash == "" || hash == OAuthPasswordSentinel {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
