package stock

import (
	"time"

	"github.com/hackgods/blood-bank/internal/bloodgroup"
)

type Entry struct {
	BloodGroup  bloodgroup.Group `json:"blood_group"`
	Units       int              `json:"units"`
	LastUpdated time.Time        `json:"last_updated"`
}

// Level is one row of the stock snapshot.
type Level struct {
	BloodGroup  bloodgroup.Group `json:"blood_group"`
	Units       int              `json:"units"`
	LastUpdated *time.Time       `json:"last_updated,omitempty"`
	Low         bool             `json:"low"`
}
