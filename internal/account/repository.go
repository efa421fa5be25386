package account

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hackgods/blood-bank/internal/authz"
	"github.com/hackgods/blood-bank/internal/domainerr"
)

var (
	ErrAccountNotFound   = fmt.Errorf("%w: account not found", domainerr.ErrNotFound)
	ErrDuplicateUsername = fmt.Errorf("%w: username already taken", domainerr.ErrConflict)
)

type Repository interface {
	// Create inserts the account and its empty profile.
	Create(ctx context.Context, a *Account, p *Profile) error
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByUsername(ctx context.Context, username string) (*Account, error)
	GetProfile(ctx context.Context, accountID uuid.UUID) (*Profile, error)
	Update(ctx context.Context, a *Account) error
	UpdateProfile(ctx context.Context, p *Profile) error
	List(ctx context.Context, f ListFilter) ([]Member, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListAdminIDs(ctx context.Context) ([]uuid.UUID, error)
	CountByRole(ctx context.Context) (map[authz.Role]int, error)
}
