package bloodrequest

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hackgods/blood-bank/internal/domainerr"
)

var (
	ErrRequestNotFound = fmt.Errorf("%w: blood request not found", domainerr.ErrNotFound)
	ErrInvalidState    = fmt.Errorf("%w: blood request cannot make this transition", domainerr.ErrState)
)

type Repository interface {
	Create(ctx context.Context, r *Request) error
	Get(ctx context.Context, id uuid.UUID) (*Detail, error)
	// UpdateStatus moves the request to `to` if its status is one of from.
	// An empty from matches any status. ErrInvalidState when nothing moved.
	UpdateStatus(ctx context.Context, id uuid.UUID, from []Status, to Status) (*Request, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, status Status) ([]Detail, error)
	ListForAdmin(ctx context.Context, f AdminFilter) ([]Detail, int, error)
	Recent(ctx context.Context, limit int) ([]Detail, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)
}
