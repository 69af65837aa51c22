package auth

import (
	"sync"

	"merchcheck-backend/internal/apperr"

	"golang.org/x/crypto/bcrypt"
)

const MinPasswordLength = 6

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// dummyHash is compared against when no user matches, so unknown accounts
// cost the same bcrypt work as known ones.
var dummyHash = sync.OnceValue(func() string {
	hash, err := HashPassword("merchcheck-unknown-user")
	if err != nil {
		panic(err)
	}
	return hash
})

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return apperr.Validation("Password must be at least %d characters", MinPasswordLength)
	}
	return nil
}
