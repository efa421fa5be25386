package notification

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/blood-bank/internal/authz"
	"github.com/hackgods/blood-bank/internal/clock"
	"github.com/hackgods/blood-bank/internal/domainerr"
)

type steppingClock struct {
	t time.Time
}

func (c *steppingClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestService(admins ...uuid.UUID) (*Service, *MemoryRepository) {
	repo := NewMemoryRepository()
	c := &steppingClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	return NewService(repo, StaticAdmins(admins), clock.Clock(c.now)), repo
}

func TestNotifyAdminsFansOut(t *testing.T) {
	a1, a2 := uuid.New(), uuid.New()
	svc, repo := newTestService(a1, a2)

	require.NoError(t, svc.NotifyAdmins(context.Background(), "New donation", "donor booked", CategoryDonation))

	all := repo.All()
	require.Len(t, all, 2)
	assert.ElementsMatch(t, []uuid.UUID{a1, a2}, []uuid.UUID{all[0].AccountID, all[1].AccountID})
	for _, n := range all {
		assert.Equal(t, CategoryDonation, n.Category)
		assert.False(t, n.Read)
		assert.NotEqual(t, uuid.Nil, n.ID)
	}
}

func TestNotifyRejectsUnknownCategory(t *testing.T) {
	svc, _ := newTestService()
	err := svc.Notify(context.Background(), Notification{AccountID: uuid.New(), Category: "promo"})
	assert.ErrorIs(t, err, domainerr.ErrValidation)
}

func TestListAndMarkAllRead(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()
	owner := uuid.New()
	actor := authz.Actor{AccountID: owner, Role: authz.RoleDonor}

	require.NoError(t, svc.Notify(ctx, Notification{AccountID: owner, Title: "a", Category: CategoryAppointment}))
	require.NoError(t, svc.Notify(ctx, Notification{AccountID: owner, Title: "b", Category: CategorySystem}))
	require.NoError(t, svc.Notify(ctx, Notification{AccountID: uuid.New(), Title: "c", Category: CategorySystem}))

	list, err := svc.List(ctx, actor, owner, Filter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].Title, "newest first")

	n, err := svc.MarkAllRead(ctx, actor, owner, Filter{Category: CategoryAppointment})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	unread, err := svc.List(ctx, actor, owner, Filter{UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, "b", unread[0].Title)
}

func TestListOtherAccountForbidden(t *testing.T) {
	svc, _ := newTestService()
	actor := authz.Actor{AccountID: uuid.New(), Role: authz.RolePatient}

	_, err := svc.List(context.Background(), actor, uuid.New(), Filter{})
	assert.ErrorIs(t, err, domainerr.ErrForbidden)

	admin := authz.Actor{AccountID: uuid.New(), Role: authz.RoleAdmin}
	_, err = svc.List(context.Background(), admin, uuid.New(), Filter{})
	assert.NoError(t, err)
}
