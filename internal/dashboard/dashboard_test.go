package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/blood-bank/internal/appointment"
	"github.com/hackgods/blood-bank/internal/authz"
	"github.com/hackgods/blood-bank/internal/bloodgroup"
	"github.com/hackgods/blood-bank/internal/bloodrequest"
	"github.com/hackgods/blood-bank/internal/clock"
	"github.com/hackgods/blood-bank/internal/db"
	"github.com/hackgods/blood-bank/internal/document"
	redisclient "github.com/hackgods/blood-bank/internal/redis"
	"github.com/hackgods/blood-bank/internal/stock"
)

type roleCounts map[authz.Role]int

func (r roleCounts) RoleCounts(context.Context) (map[authz.Role]int, error) { return r, nil }

type captureRenderer struct {
	report document.ReportData
}

func (c *captureRenderer) Certificate(document.CertificateData) ([]byte, error) { return nil, nil }

func (c *captureRenderer) Report(data document.ReportData) ([]byte, error) {
	c.report = data
	return []byte("%PDF"), nil
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

type fixture struct {
	ctx      context.Context
	appts    *appointment.MemoryRepository
	requests *bloodrequest.MemoryRepository
	ledger   *stock.MemoryLedger
	renderer *captureRenderer
	svc      *Service
	center   appointment.Center
	admin    authz.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:      context.Background(),
		appts:    appointment.NewMemoryRepository(),
		requests: bloodrequest.NewMemoryRepository(),
		ledger:   stock.NewMemoryLedger(),
		renderer: &captureRenderer{},
		admin:    authz.Actor{AccountID: uuid.New(), Role: authz.RoleAdmin},
	}
	clk := clock.Fixed(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))

	f.center = appointment.Center{ID: uuid.New(), Name: "Central", Address: "1 Main St"}
	require.NoError(t, f.appts.CreateCenter(f.ctx, &f.center))

	appts := appointment.NewService(appointment.Deps{Repo: f.appts, Clock: clk})
	requests, err := bloodrequest.NewService(bloodrequest.Deps{Repo: f.requests, Clock: clk})
	require.NoError(t, err)
	st := stock.NewService(f.ledger, db.NoopTxRunner{}, redisclient.NewLocalLocker(), nil, 5)
	accounts := roleCounts{authz.RoleAdmin: 1, authz.RoleDonor: 4, authz.RolePatient: 2}

	f.svc = NewService(appts, requests, st, accounts, f.renderer, clk)
	return f
}

func (f *fixture) appointment(t *testing.T, donor uuid.UUID, date string, status appointment.Status) {
	t.Helper()
	require.NoError(t, f.appts.Create(f.ctx, &appointment.Appointment{
		ID: uuid.New(), DonorID: donor, CenterID: f.center.ID, Date: day(date), Status: status,
	}))
}

func (f *fixture) request(t *testing.T, patient uuid.UUID, status bloodrequest.Status) uuid.UUID {
	t.Helper()
	r := &bloodrequest.Request{
		ID: uuid.New(), PatientID: patient, BloodGroup: bloodgroup.APos, Quantity: 2,
		Status: status, Notes: "n", PreferredCenter: "c", RequestDate: day("2024-02-01"),
	}
	require.NoError(t, f.requests.Create(f.ctx, r))
	return r.ID
}

func TestDonorSummary(t *testing.T) {
	f := newFixture(t)
	donor := authz.Actor{AccountID: uuid.New(), Role: authz.RoleDonor}
	f.appointment(t, donor.AccountID, "2023-10-01", appointment.StatusConfirmed)
	f.appointment(t, donor.AccountID, "2024-01-01", appointment.StatusConfirmed)
	f.appointment(t, donor.AccountID, "2024-01-15", appointment.StatusRejected)
	f.appointment(t, donor.AccountID, "2024-04-10", appointment.StatusPending)

	sum, err := f.svc.Donor(f.ctx, donor, donor.AccountID)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.TotalDonations)
	assert.Equal(t, 6, sum.LivesSaved)
	require.NotNil(t, sum.LastDonation)
	assert.Equal(t, day("2024-01-01"), *sum.LastDonation)
	assert.Equal(t, day("2024-03-31"), sum.NextEligible)
	assert.False(t, sum.Eligible)
	require.NotNil(t, sum.Upcoming)
	assert.Equal(t, day("2024-04-10"), sum.Upcoming.Date)
	assert.Len(t, sum.Recent, 4)

	other := authz.Actor{AccountID: uuid.New(), Role: authz.RoleDonor}
	_, err = f.svc.Donor(f.ctx, other, donor.AccountID)
	assert.ErrorIs(t, err, authz.ErrForbidden)
}

func TestDonorSummaryWithoutHistory(t *testing.T) {
	f := newFixture(t)
	donor := authz.Actor{AccountID: uuid.New(), Role: authz.RoleDonor}

	sum, err := f.svc.Donor(f.ctx, donor, donor.AccountID)
	require.NoError(t, err)
	assert.Zero(t, sum.TotalDonations)
	assert.Nil(t, sum.LastDonation)
	assert.True(t, sum.Eligible)
	assert.Nil(t, sum.Upcoming)
	assert.Empty(t, sum.Recent)
}

func TestPatientSummary(t *testing.T) {
	f := newFixture(t)
	patient := authz.Actor{AccountID: uuid.New(), Role: authz.RolePatient}
	f.request(t, patient.AccountID, bloodrequest.StatusApproved)
	approved := f.request(t, patient.AccountID, bloodrequest.StatusApproved)
	f.request(t, patient.AccountID, bloodrequest.StatusRejected)
	latest := f.request(t, patient.AccountID, bloodrequest.StatusPending)

	sum, err := f.svc.Patient(f.ctx, patient, patient.AccountID)
	require.NoError(t, err)
	assert.Equal(t, 4, sum.TotalRequests)
	assert.Equal(t, 2, sum.Approved)
	assert.Equal(t, 1, sum.Rejected)
	require.NotNil(t, sum.Latest)
	assert.Equal(t, latest, sum.Latest.ID)
	require.NotNil(t, sum.LatestApproved)
	assert.Equal(t, approved, sum.LatestApproved.ID)
}

func TestAdminSummary(t *testing.T) {
	f := newFixture(t)
	f.ledger.Set(bloodgroup.APos, 12)
	f.ledger.Set(bloodgroup.ONeg, 2)
	f.appointment(t, uuid.New(), "2024-03-05", appointment.StatusPending)
	f.request(t, uuid.New(), bloodrequest.StatusPending)
	f.request(t, uuid.New(), bloodrequest.StatusApproved)

	sum, err := f.svc.Admin(f.ctx, f.admin)
	require.NoError(t, err)
	assert.Len(t, sum.Stock, len(bloodgroup.All()))
	assert.Len(t, sum.LowStock, len(bloodgroup.All())-1)
	for _, l := range sum.LowStock {
		assert.NotEqual(t, bloodgroup.APos, l.BloodGroup)
	}
	assert.Equal(t, 4, sum.Accounts[authz.RoleDonor])
	assert.Equal(t, 1, sum.PendingCount)
	assert.Len(t, sum.PendingDonations, 1)
	assert.Equal(t, 1, sum.PendingReqCount)

	donor := authz.Actor{AccountID: uuid.New(), Role: authz.RoleDonor}
	_, err = f.svc.Admin(f.ctx, donor)
	assert.ErrorIs(t, err, authz.ErrForbidden)
}

func TestReport(t *testing.T) {
	f := newFixture(t)
	donor := uuid.New()
	f.appts.SetDonorName(donor, "Dana Donor")
	f.appointment(t, donor, "2024-02-10", appointment.StatusConfirmed)
	patient := uuid.New()
	f.requests.SetPatientName(patient, "Pat Patient")
	f.request(t, patient, bloodrequest.StatusPending)

	out, err := f.svc.Report(f.ctx, f.admin)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF"), out)

	require.Len(t, f.renderer.report.Donations, 1)
	assert.Equal(t, "Dana Donor", f.renderer.report.Donations[0].DonorName)
	assert.Equal(t, "Central", f.renderer.report.Donations[0].CenterName)
	require.Len(t, f.renderer.report.Requests, 1)
	assert.Equal(t, "Pat Patient", f.renderer.report.Requests[0].PatientName)
	assert.Equal(t, 2, f.renderer.report.Requests[0].Quantity)

	patientActor := authz.Actor{AccountID: patient, Role: authz.RolePatient}
	_, err = f.svc.Report(f.ctx, patientActor)
	assert.ErrorIs(t, err, authz.ErrForbidden)
}
