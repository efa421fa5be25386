//go:build integration

package appointment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/hackgods/blood-bank/internal/account"
	"github.com/hackgods/blood-bank/internal/authz"
	"github.com/hackgods/blood-bank/internal/bloodgroup"
	"github.com/hackgods/blood-bank/internal/clock"
	"github.com/hackgods/blood-bank/internal/db"
	"github.com/hackgods/blood-bank/internal/db/dbtest"
	"github.com/hackgods/blood-bank/internal/notification"
	redisclient "github.com/hackgods/blood-bank/internal/redis"
	"github.com/hackgods/blood-bank/internal/stock"
)

type PgSuite struct {
	suite.Suite
	ctx      context.Context
	pg       *dbtest.PostgresContainer
	repo     *PgRepository
	accounts *account.PgRepository
	ledger   *stock.PgLedger
	svc      *Service
	admin    authz.Actor
	donor    authz.Actor
	center   Center
}

func TestPgSuite(t *testing.T) {
	suite.Run(t, new(PgSuite))
}

func (s *PgSuite) SetupSuite() {
	s.ctx = context.Background()
	s.pg = dbtest.NewPostgres(s.T())
	s.repo = NewPgRepository(s.pg.Pool)
	s.accounts = account.NewPgRepository(s.pg.Pool)
	s.ledger = stock.NewPgLedger(s.pg.Pool)
}

func (s *PgSuite) SetupTest() {
	s.pg.Truncate(s.T())
	s.admin = s.account("admin", authz.RoleAdmin, "")
	s.donor = s.account("donor", authz.RoleDonor, bloodgroup.ABPos)

	s.center = Center{ID: uuid.New(), Name: "Central", Address: "1 Main St"}
	s.Require().NoError(s.repo.CreateCenter(s.ctx, &s.center))

	clk := clock.Fixed(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	tx := db.NewTxRunner(s.pg.Pool)
	s.svc = NewService(Deps{
		Repo:   s.repo,
		Tx:     tx,
		Locker: redisclient.NewLocalLocker(),
		Ledger: s.ledger,
		Sink:   notification.NewService(notification.NewPgRepository(s.pg.Pool), s.accounts, clk),
		Donors: account.NewService(s.accounts, tx, nil, account.PasswordHasher{}, nil),
		Clock:  clk,
	})
}

func (s *PgSuite) account(username string, role authz.Role, group bloodgroup.Group) authz.Actor {
	acc := &account.Account{
		ID: uuid.New(), Username: username, PasswordHash: "x", Role: role, Active: true,
	}
	s.Require().NoError(s.accounts.Create(s.ctx, acc, &account.Profile{BloodGroup: group}))
	return acc.Actor()
}

func (s *PgSuite) book(date time.Time) (*Appointment, error) {
	return s.svc.Create(s.ctx, s.donor, CreateRequest{
		DonorID: s.donor.AccountID, CenterID: s.center.ID, Date: date,
	})
}

func (s *PgSuite) TestActiveIndexRejectsDuplicates() {
	date := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	first, err := s.book(date)
	s.Require().NoError(err)

	_, err = s.book(date)
	s.ErrorIs(err, ErrDuplicateAppointment)

	_, err = s.svc.Reject(s.ctx, s.admin, first.ID)
	s.Require().NoError(err)
	_, err = s.book(date)
	s.NoError(err, "a rejected appointment frees the slot")
}

func (s *PgSuite) TestConcurrentApprovalsCreditOnce() {
	appt, err := s.book(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.svc.Approve(s.ctx, s.admin, appt.ID); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			} else {
				s.ErrorIs(err, ErrInvalidState)
			}
		}()
	}
	wg.Wait()

	s.Equal(1, successes)
	units, err := s.ledger.Get(s.ctx, bloodgroup.ABPos)
	s.Require().NoError(err)
	s.Equal(1, units)

	stats, err := s.svc.DonorStats(s.ctx, s.donor, s.donor.AccountID)
	s.Require().NoError(err)
	s.Equal(1, stats.ConfirmedDonations)
	s.Equal(time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), stats.Eligibility.NextEligible)
}

func (s *PgSuite) TestListings() {
	_, err := s.book(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(err)
	_, err = s.book(time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(err)

	next, err := s.svc.NextActive(s.ctx, s.donor, s.donor.AccountID)
	s.Require().NoError(err)
	s.Require().NotNil(next)
	s.Equal(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), next.Date.UTC())
	s.Equal("Central", next.CenterName)

	list, total, err := s.svc.ListByDonor(s.ctx, s.donor, s.donor.AccountID, 1, 1)
	s.Require().NoError(err)
	s.Equal(2, total)
	s.Len(list, 1)

	pending, total, err := s.svc.ListForAdmin(s.ctx, s.admin, AdminFilter{})
	s.Require().NoError(err)
	s.Equal(2, total)
	s.Len(pending, 2)
}
