package notification

import (
	"time"

	"github.com/google/uuid"
)

type Category string

const (
	CategoryDonation     Category = "donation"
	CategoryAppointment  Category = "appointment"
	CategoryBloodRequest Category = "blood_request"
	CategorySystem       Category = "system"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryDonation, CategoryAppointment, CategoryBloodRequest, CategorySystem:
		return true
	}
	return false
}

type Notification struct {
	ID        uuid.UUID `json:"id"`
	AccountID uuid.UUID `json:"account_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Category  Category  `json:"category"`
	Read      bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter narrows a user's notification list. Zero value means everything.
type Filter struct {
	Category   Category
	UnreadOnly bool
}
