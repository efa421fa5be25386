package account

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/hackgods/blood-bank/internal/domainerr"
)

const minPasswordLength = 8

var ErrWeakPassword = fmt.Errorf("%w: password must be at least %d characters", domainerr.ErrValidation, minPasswordLength)

// PasswordHasher is swappable so tests can use a cheap cost.
type PasswordHasher struct {
	Cost int
}

func (h PasswordHasher) Hash(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", ErrWeakPassword
	}
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (h PasswordHasher) Matches(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
