package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/blood-bank/internal/domainerr"
)

var (
	ErrAppointmentNotFound  = fmt.Errorf("%w: appointment not found", domainerr.ErrNotFound)
	ErrCenterNotFound       = fmt.Errorf("%w: donation center not found", domainerr.ErrNotFound)
	ErrDuplicateAppointment = fmt.Errorf("%w: you already have an appointment at this center on this date", domainerr.ErrConflict)
	ErrInvalidState         = fmt.Errorf("%w: appointment is not pending", domainerr.ErrState)
)

// Repository contains all DB interactions needed by the service. Writes join
// the transaction carried by ctx.
type Repository interface {
	GetCenter(ctx context.Context, id uuid.UUID) (*Center, error)
	ListCenters(ctx context.Context) ([]Center, error)
	CreateCenter(ctx context.Context, c *Center) error

	// HasActive reports whether the donor holds a PENDING or CONFIRMED
	// appointment at the center on date.
	HasActive(ctx context.Context, donorID, centerID uuid.UUID, date time.Time) (bool, error)
	Create(ctx context.Context, a *Appointment) error
	Get(ctx context.Context, id uuid.UUID) (*Detail, error)
	// UpdateStatus moves the appointment from one status to another and
	// returns ErrInvalidState when it is no longer in from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)

	ConfirmedDates(ctx context.Context, donorID uuid.UUID) ([]time.Time, error)
	ListByDonor(ctx context.Context, donorID uuid.UUID, page, size int) ([]Detail, int, error)
	NextActive(ctx context.Context, donorID uuid.UUID, from time.Time) (*Detail, error)
	ListForAdmin(ctx context.Context, f AdminFilter) ([]Detail, int, error)
	Recent(ctx context.Context, limit int) ([]Detail, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)
}
