package appointment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusRejected  Status = "REJECTED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusRejected:
		return true
	}
	return false
}

// Active appointments block another booking for the same donor, center and date.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

type Center struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}

type Appointment struct {
	ID        uuid.UUID `json:"id"`
	DonorID   uuid.UUID `json:"donor_id"`
	CenterID  uuid.UUID `json:"center_id"`
	Date      time.Time `json:"date"`
	Notes     string    `json:"notes"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Detail is an appointment joined with its donor and center for display.
type Detail struct {
	Appointment
	DonorName     string `json:"donor_name"`
	CenterName    string `json:"center_name"`
	CenterAddress string `json:"center_address"`
}

type CreateRequest struct {
	DonorID  uuid.UUID
	CenterID uuid.UUID
	Date     time.Time
	Notes    string
	// NextEligible, when set, is the earliest date the donor may book.
	NextEligible *time.Time
}

type ScheduleInput struct {
	CenterID uuid.UUID `json:"center_id"`
	Date     time.Time `json:"date"`
	Notes    string    `json:"notes"`
}

// AdminFilter mirrors the back-office review tabs. Without History the list
// shows Status, defaulting to PENDING. With History it shows everything
// already reviewed.
type AdminFilter struct {
	Status  Status
	History bool
	Page    int
	Size    int
}
