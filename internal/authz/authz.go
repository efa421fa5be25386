// Package authz maps roles to the capabilities checked at the lifecycle
// boundary. Handlers never branch on roles themselves.
package authz

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hackgods/blood-bank/internal/domainerr"
)

type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleDonor   Role = "DONOR"
	RolePatient Role = "PATIENT"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDonor, RolePatient:
		return true
	}
	return false
}

type Capability string

const (
	ScheduleDonation   Capability = "donation:schedule"
	ReviewDonation     Capability = "donation:review"
	SubmitBloodRequest Capability = "blood_request:submit"
	ReviewBloodRequest Capability = "blood_request:review"
	ManageStock        Capability = "stock:manage"
	ManageCenters      Capability = "center:manage"
	ManageAccounts     Capability = "account:manage"
	ViewReports        Capability = "report:view"
	ViewOwnHistory     Capability = "history:view_own"
	ViewAllHistory     Capability = "history:view_all"
)

var grants = map[Role][]Capability{
	RoleAdmin: {
		ReviewDonation, ReviewBloodRequest, ManageStock, ManageCenters,
		ManageAccounts, ViewReports, ViewAllHistory,
	},
	RoleDonor:   {ScheduleDonation, ViewOwnHistory},
	RolePatient: {SubmitBloodRequest, ViewOwnHistory},
}

var ErrForbidden = fmt.Errorf("%w: missing capability", domainerr.ErrForbidden)

// Actor is the authenticated caller of a lifecycle operation.
type Actor struct {
	AccountID uuid.UUID
	Role      Role
}

// System is used by internal callers such as the seed and createadmin commands.
var System = Actor{Role: RoleAdmin}

func (a Actor) Can(c Capability) bool {
	for _, g := range grants[a.Role] {
		if g == c {
			return true
		}
	}
	return false
}

// Require returns ErrForbidden unless the actor holds c.
func Require(a Actor, c Capability) error {
	if !a.Can(c) {
		return fmt.Errorf("%w: %s requires %s", ErrForbidden, a.Role, c)
	}
	return nil
}

// RequireSelf allows the owner of a resource, or anyone holding override.
func RequireSelf(a Actor, owner uuid.UUID, override Capability) error {
	if a.AccountID == owner && a.AccountID != uuid.Nil {
		return nil
	}
	return Require(a, override)
}

type contextKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, a)
}

func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(contextKey{}).(Actor)
	return a, ok
}
