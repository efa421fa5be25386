package otp

import (
	"time"

	"github.com/google/uuid"
)

type Code struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	Code      string
	Consumed  bool
	CreatedAt time.Time
}

// Purpose selects the wording of the delivered code.
type Purpose string

const (
	PurposeRegistration  Purpose = "registration"
	PurposePasswordReset Purpose = "password_reset"
)

// Recipient is the account a code is issued to.
type Recipient struct {
	AccountID uuid.UUID
	Email     string
	Name      string
}
