package bloodrequest

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/blood-bank/internal/bloodgroup"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusFulfilled Status = "FULFILLED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusFulfilled:
		return true
	}
	return false
}

type Request struct {
	ID              uuid.UUID        `json:"id"`
	PatientID       uuid.UUID        `json:"patient_id"`
	BloodGroup      bloodgroup.Group `json:"blood_group"`
	Quantity        int              `json:"quantity"`
	Status          Status           `json:"status"`
	Notes           string           `json:"notes"`
	PreferredCenter string           `json:"preferred_center"`
	DocumentKey     *string          `json:"document_key,omitempty"`
	RequestDate     time.Time        `json:"request_date"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

type Detail struct {
	Request
	PatientName string `json:"patient_name"`
}

type CreateRequest struct {
	PatientID       uuid.UUID `json:"-"`
	BloodGroup      string    `json:"blood_group"`
	Quantity        int       `json:"quantity"`
	Notes           string    `json:"notes"`
	PreferredCenter string    `json:"preferred_center"`
	DocumentKey     string    `json:"document_key,omitempty"`
}

type Result string

const (
	Approved     Result = "APPROVED"
	AutoRejected Result = "AUTO_REJECTED"
)

// Outcome is the result of an approval. Insufficient stock is an outcome,
// not an error. StockUnits is the group's stock after the decision.
type Outcome struct {
	Result     Result   `json:"result"`
	Request    *Request `json:"request"`
	Reason     string   `json:"reason,omitempty"`
	StockUnits int      `json:"stock_units"`
}

// RejectPolicy decides which requests an admin may reject.
type RejectPolicy string

const (
	// RejectAny allows rejecting a request in any status.
	RejectAny RejectPolicy = "permissive"
	// RejectPendingOnly allows rejecting PENDING requests only.
	RejectPendingOnly RejectPolicy = "pending_only"
)

type AdminFilter struct {
	Status  Status
	History bool
	Page    int
	Size    int
}
