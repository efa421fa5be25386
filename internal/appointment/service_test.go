package appointment

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/hackgods/blood-bank/internal/account"
	"github.com/hackgods/blood-bank/internal/authz"
	"github.com/hackgods/blood-bank/internal/bloodgroup"
	"github.com/hackgods/blood-bank/internal/clock"
	"github.com/hackgods/blood-bank/internal/db"
	"github.com/hackgods/blood-bank/internal/dispatch"
	"github.com/hackgods/blood-bank/internal/document"
	"github.com/hackgods/blood-bank/internal/domainerr"
	"github.com/hackgods/blood-bank/internal/mailer"
	"github.com/hackgods/blood-bank/internal/notification"
	redisclient "github.com/hackgods/blood-bank/internal/redis"
	"github.com/hackgods/blood-bank/internal/stock"
)

type directory map[uuid.UUID]account.Contact

func (d directory) Contact(_ context.Context, id uuid.UUID) (account.Contact, error) {
	c, ok := d[id]
	if !ok {
		return account.Contact{}, account.ErrAccountNotFound
	}
	return c, nil
}

type outbox struct {
	mu   sync.Mutex
	sent []mailer.Message
}

func (o *outbox) Send(_ context.Context, msg mailer.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, msg)
	return nil
}

type stubRenderer struct {
	err error
}

func (r stubRenderer) Certificate(document.CertificateData) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	return []byte("%PDF-certificate"), nil
}

func (r stubRenderer) Report(document.ReportData) ([]byte, error) {
	return []byte("%PDF-report"), nil
}

type memoryStore struct {
	mu   sync.Mutex
	keys []string
}

func (m *memoryStore) Put(_ context.Context, key string, _ io.Reader, _ int64, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, key)
	return nil
}

func (m *memoryStore) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "http://objects.local/" + key, nil
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type ServiceSuite struct {
	suite.Suite
	ctx      context.Context
	repo     *MemoryRepository
	notes    *notification.MemoryRepository
	ledger   *stock.MemoryLedger
	box      *outbox
	store    *memoryStore
	renderer stubRenderer
	dir      directory
	svc      *Service

	admins []uuid.UUID
	admin  authz.Actor
	center *Center
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.repo = NewMemoryRepository()
	s.notes = notification.NewMemoryRepository()
	s.ledger = stock.NewMemoryLedger()
	s.box = &outbox{}
	s.store = &memoryStore{}
	s.renderer = stubRenderer{}
	s.dir = directory{}
	s.admins = []uuid.UUID{uuid.New(), uuid.New()}
	s.admin = authz.Actor{AccountID: s.admins[0], Role: authz.RoleAdmin}
	s.build()

	c, err := s.svc.CreateCenter(s.ctx, s.admin, "City Hospital", "1 Main St")
	s.Require().NoError(err)
	s.center = c
}

func (s *ServiceSuite) build() {
	clk := clock.Fixed(time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC))
	s.svc = NewService(Deps{
		Repo:     s.repo,
		Tx:       db.NoopTxRunner{},
		Locker:   redisclient.NewLocalLocker(),
		Ledger:   s.ledger,
		Sink:     notification.NewService(s.notes, notification.StaticAdmins(s.admins), clk),
		Donors:   s.dir,
		Runner:   dispatch.Inline{},
		Mailer:   s.box,
		Renderer: s.renderer,
		Store:    s.store,
		Clock:    clk,
	})
}

func (s *ServiceSuite) donor(group bloodgroup.Group) authz.Actor {
	id := uuid.New()
	s.dir[id] = account.Contact{AccountID: id, Name: "Dana Donor", Email: "dana@example.com", BloodGroup: group}
	s.repo.SetDonorName(id, "Dana Donor")
	return authz.Actor{AccountID: id, Role: authz.RoleDonor}
}

func (s *ServiceSuite) book(donor authz.Actor, date time.Time) *Appointment {
	appt, err := s.svc.Create(s.ctx, donor, CreateRequest{DonorID: donor.AccountID, CenterID: s.center.ID, Date: date})
	s.Require().NoError(err)
	return appt
}

func (s *ServiceSuite) notificationsFor(id uuid.UUID) []notification.Notification {
	var out []notification.Notification
	for _, n := range s.notes.All() {
		if n.AccountID == id {
			out = append(out, n)
		}
	}
	return out
}

func (s *ServiceSuite) units(g bloodgroup.Group) int {
	u, err := s.ledger.Get(s.ctx, g)
	s.Require().NoError(err)
	return u
}

func (s *ServiceSuite) TestCreateNotifiesEveryAdmin() {
	donor := s.donor(bloodgroup.APos)
	appt := s.book(donor, day(2024, 3, 10))

	s.Equal(StatusPending, appt.Status)
	for _, id := range s.admins {
		got := s.notificationsFor(id)
		s.Require().Len(got, 1)
		s.Equal(notification.CategoryDonation, got[0].Category)
		s.Contains(got[0].Message, "City Hospital")
	}
}

func (s *ServiceSuite) TestCreateToday() {
	donor := s.donor(bloodgroup.APos)
	appt := s.book(donor, day(2024, 3, 1))
	s.Equal(day(2024, 3, 1), appt.Date)
}

func (s *ServiceSuite) TestCreateRejectsPastDate() {
	donor := s.donor(bloodgroup.APos)
	_, err := s.svc.Create(s.ctx, donor, CreateRequest{DonorID: donor.AccountID, CenterID: s.center.ID, Date: day(2024, 2, 29)})
	s.ErrorIs(err, ErrPastDate)
	s.ErrorIs(err, domainerr.ErrValidation)
	s.Empty(s.notes.All())
}

func (s *ServiceSuite) TestCreateRejectsBeforeNextEligible() {
	donor := s.donor(bloodgroup.APos)
	next := day(2024, 3, 31)
	_, err := s.svc.Create(s.ctx, donor, CreateRequest{
		DonorID: donor.AccountID, CenterID: s.center.ID, Date: day(2024, 3, 15), NextEligible: &next,
	})
	s.ErrorIs(err, ErrNotYetEligible)
}

func (s *ServiceSuite) TestCreateUnknownCenter() {
	donor := s.donor(bloodgroup.APos)
	_, err := s.svc.Create(s.ctx, donor, CreateRequest{DonorID: donor.AccountID, CenterID: uuid.New(), Date: day(2024, 3, 10)})
	s.ErrorIs(err, ErrCenterNotFound)
}

func (s *ServiceSuite) TestCreateOnlyForSelf() {
	donor := s.donor(bloodgroup.APos)
	other := s.donor(bloodgroup.APos)
	_, err := s.svc.Create(s.ctx, donor, CreateRequest{DonorID: other.AccountID, CenterID: s.center.ID, Date: day(2024, 3, 10)})
	s.ErrorIs(err, domainerr.ErrForbidden)

	patient := authz.Actor{AccountID: uuid.New(), Role: authz.RolePatient}
	_, err = s.svc.Create(s.ctx, patient, CreateRequest{DonorID: patient.AccountID, CenterID: s.center.ID, Date: day(2024, 3, 10)})
	s.ErrorIs(err, domainerr.ErrForbidden)
}

func (s *ServiceSuite) TestNoDuplicateActiveAppointments() {
	donor := s.donor(bloodgroup.APos)
	first := s.book(donor, day(2024, 3, 10))

	_, err := s.svc.Create(s.ctx, donor, CreateRequest{DonorID: donor.AccountID, CenterID: s.center.ID, Date: day(2024, 3, 10)})
	s.ErrorIs(err, ErrDuplicateAppointment)

	other, err := s.svc.CreateCenter(s.ctx, s.admin, "Red Cross", "2 Side St")
	s.Require().NoError(err)
	_, err = s.svc.Create(s.ctx, donor, CreateRequest{DonorID: donor.AccountID, CenterID: other.ID, Date: day(2024, 3, 10)})
	s.NoError(err, "a different center is allowed")

	_, err = s.svc.Reject(s.ctx, s.admin, first.ID)
	s.Require().NoError(err)
	_, err = s.svc.Create(s.ctx, donor, CreateRequest{DonorID: donor.AccountID, CenterID: s.center.ID, Date: day(2024, 3, 10)})
	s.NoError(err, "a rejected appointment no longer blocks the slot")
}

func (s *ServiceSuite) TestApproveCreditsOnceAndSendsCertificate() {
	donor := s.donor(bloodgroup.APos)
	appt := s.book(donor, day(2024, 3, 10))

	approved, err := s.svc.Approve(s.ctx, s.admin, appt.ID)
	s.Require().NoError(err)
	s.Equal(StatusConfirmed, approved.Status)
	s.Equal(1, s.units(bloodgroup.APos))

	_, err = s.svc.Approve(s.ctx, s.admin, appt.ID)
	s.ErrorIs(err, ErrInvalidState)
	s.Equal(1, s.units(bloodgroup.APos), "retried approval must not credit again")

	got := s.notificationsFor(donor.AccountID)
	s.Require().Len(got, 1)
	s.Equal("Donation Approved", got[0].Title)

	s.Require().Len(s.box.sent, 1)
	msg := s.box.sent[0]
	s.Equal("dana@example.com", msg.To)
	s.Require().Len(msg.Attachments, 1)
	s.Equal("Donation_Certificate.pdf", msg.Attachments[0].Filename)
	s.Equal([]string{"certificates/" + appt.ID.String() + ".pdf"}, s.store.keys)
}

func (s *ServiceSuite) TestApproveWithoutBloodGroupLeavesStock() {
	donor := s.donor("")
	appt := s.book(donor, day(2024, 3, 10))

	approved, err := s.svc.Approve(s.ctx, s.admin, appt.ID)
	s.Require().NoError(err)
	s.Equal(StatusConfirmed, approved.Status)

	entries, err := s.ledger.List(s.ctx)
	s.Require().NoError(err)
	s.Empty(entries)
}

func (s *ServiceSuite) TestRejectIsTerminal() {
	donor := s.donor(bloodgroup.ONeg)
	appt := s.book(donor, day(2024, 3, 10))

	rejected, err := s.svc.Reject(s.ctx, s.admin, appt.ID)
	s.Require().NoError(err)
	s.Equal(StatusRejected, rejected.Status)

	_, err = s.svc.Approve(s.ctx, s.admin, appt.ID)
	s.ErrorIs(err, ErrInvalidState)
	_, err = s.svc.Reject(s.ctx, s.admin, appt.ID)
	s.ErrorIs(err, ErrInvalidState)
	s.Equal(0, s.units(bloodgroup.ONeg))

	got := s.notificationsFor(donor.AccountID)
	s.Require().Len(got, 1)
	s.Equal("Donation Rejected", got[0].Title)
}

func (s *ServiceSuite) TestConcurrentApprovalsCreditOnce() {
	donor := s.donor(bloodgroup.BPos)
	appt := s.book(donor, day(2024, 3, 10))

	var ok int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.svc.Approve(s.ctx, s.admin, appt.ID)
			if err == nil {
				atomic.AddInt32(&ok, 1)
				return
			}
			s.ErrorIs(err, ErrInvalidState)
		}()
	}
	wg.Wait()

	s.Equal(int32(1), ok)
	s.Equal(1, s.units(bloodgroup.BPos))
}

func (s *ServiceSuite) TestCertificateFailureDoesNotFailApproval() {
	s.renderer = stubRenderer{err: errors.New("font missing")}
	s.build()

	donor := s.donor(bloodgroup.APos)
	appt := s.book(donor, day(2024, 3, 10))

	_, err := s.svc.Approve(s.ctx, s.admin, appt.ID)
	s.Require().NoError(err)
	s.Empty(s.box.sent)
	s.Equal(1, s.units(bloodgroup.APos))
}

func (s *ServiceSuite) TestOnlyAdminsReview() {
	donor := s.donor(bloodgroup.APos)
	appt := s.book(donor, day(2024, 3, 10))

	_, err := s.svc.Approve(s.ctx, donor, appt.ID)
	s.ErrorIs(err, domainerr.ErrForbidden)
	_, err = s.svc.Reject(s.ctx, donor, appt.ID)
	s.ErrorIs(err, domainerr.ErrForbidden)
	_, err = s.svc.CreateCenter(s.ctx, donor, "x", "y")
	s.ErrorIs(err, domainerr.ErrForbidden)
}

func (s *ServiceSuite) TestScheduleHonoursEligibility() {
	donor := s.donor(bloodgroup.APos)
	past := &Appointment{
		ID: uuid.New(), DonorID: donor.AccountID, CenterID: s.center.ID,
		Date: day(2024, 1, 1), Status: StatusConfirmed,
	}
	s.Require().NoError(s.repo.Create(s.ctx, past))

	st, err := s.svc.Eligibility(s.ctx, donor, donor.AccountID)
	s.Require().NoError(err)
	s.False(st.Eligible)
	s.Equal(day(2024, 3, 31), st.NextEligible)

	_, err = s.svc.Schedule(s.ctx, donor, ScheduleInput{CenterID: s.center.ID, Date: day(2024, 3, 15)})
	s.ErrorIs(err, ErrNotYetEligible)

	appt, err := s.svc.Schedule(s.ctx, donor, ScheduleInput{CenterID: s.center.ID, Date: day(2024, 3, 31)})
	s.Require().NoError(err)
	s.Equal(StatusPending, appt.Status)

	stats, err := s.svc.DonorStats(s.ctx, donor, donor.AccountID)
	s.Require().NoError(err)
	s.Equal(1, stats.ConfirmedDonations)
}

func (s *ServiceSuite) TestReads() {
	donor := s.donor(bloodgroup.APos)
	a1 := s.book(donor, day(2024, 3, 10))
	s.book(donor, day(2024, 4, 10))
	_, err := s.svc.Approve(s.ctx, s.admin, a1.ID)
	s.Require().NoError(err)

	list, total, err := s.svc.ListByDonor(s.ctx, donor, donor.AccountID, 1, 0)
	s.Require().NoError(err)
	s.Equal(2, total)
	s.Equal(day(2024, 4, 10), list[0].Date)
	s.Equal("City Hospital", list[0].CenterName)

	next, err := s.svc.NextActive(s.ctx, donor, donor.AccountID)
	s.Require().NoError(err)
	s.Require().NotNil(next)
	s.Equal(day(2024, 3, 10), next.Date)

	pending, total, err := s.svc.ListForAdmin(s.ctx, s.admin, AdminFilter{})
	s.Require().NoError(err)
	s.Equal(1, total)
	s.Equal(StatusPending, pending[0].Status)

	history, _, err := s.svc.ListForAdmin(s.ctx, s.admin, AdminFilter{History: true})
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Equal(a1.ID, history[0].ID)

	stranger := authz.Actor{AccountID: uuid.New(), Role: authz.RoleDonor}
	_, err = s.svc.Get(s.ctx, stranger, a1.ID)
	s.ErrorIs(err, domainerr.ErrForbidden)

	counts, err := s.svc.CountByStatus(s.ctx, s.admin)
	s.Require().NoError(err)
	s.Equal(1, counts[StatusPending])
	s.Equal(1, counts[StatusConfirmed])
}
