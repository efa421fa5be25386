package dashboard

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/blood-bank/internal/appointment"
	"github.com/hackgods/blood-bank/internal/authz"
	"github.com/hackgods/blood-bank/internal/bloodrequest"
	"github.com/hackgods/blood-bank/internal/clock"
	"github.com/hackgods/blood-bank/internal/document"
	"github.com/hackgods/blood-bank/internal/stock"
)

const (
	livesPerDonation = 3
	recentDonations  = 5
	reportRows       = 20
	pendingPageSize  = 10
)

type Appointments interface {
	DonorStats(ctx context.Context, actor authz.Actor, donorID uuid.UUID) (appointment.DonorStats, error)
	NextActive(ctx context.Context, actor authz.Actor, donorID uuid.UUID) (*appointment.Detail, error)
	ListByDonor(ctx context.Context, actor authz.Actor, donorID uuid.UUID, page, size int) ([]appointment.Detail, int, error)
	ListForAdmin(ctx context.Context, actor authz.Actor, f appointment.AdminFilter) ([]appointment.Detail, int, error)
	Recent(ctx context.Context, actor authz.Actor, limit int) ([]appointment.Detail, error)
}

type BloodRequests interface {
	ListByPatient(ctx context.Context, actor authz.Actor, patientID uuid.UUID, status bloodrequest.Status) ([]bloodrequest.Detail, error)
	ListForAdmin(ctx context.Context, actor authz.Actor, f bloodrequest.AdminFilter) ([]bloodrequest.Detail, int, error)
	Recent(ctx context.Context, actor authz.Actor, limit int) ([]bloodrequest.Detail, error)
}

type Stock interface {
	Snapshot(ctx context.Context) ([]stock.Level, error)
}

type Accounts interface {
	RoleCounts(ctx context.Context) (map[authz.Role]int, error)
}

type DonorSummary struct {
	TotalDonations int                  `json:"total_donations"`
	LastDonation   *time.Time           `json:"last_donation,omitempty"`
	NextEligible   time.Time            `json:"next_eligible"`
	Eligible       bool                 `json:"eligible"`
	Upcoming       *appointment.Detail  `json:"upcoming,omitempty"`
	LivesSaved     int                  `json:"lives_saved"`
	Recent         []appointment.Detail `json:"recent"`
}

type PatientSummary struct {
	TotalRequests  int                  `json:"total_requests"`
	Approved       int                  `json:"approved"`
	Rejected       int                  `json:"rejected"`
	Latest         *bloodrequest.Detail `json:"latest,omitempty"`
	LatestApproved *bloodrequest.Detail `json:"latest_approved,omitempty"`
}

type AdminSummary struct {
	Stock            []stock.Level         `json:"stock"`
	LowStock         []stock.Level         `json:"low_stock"`
	Accounts         map[authz.Role]int    `json:"accounts"`
	PendingDonations []appointment.Detail  `json:"pending_donations"`
	PendingCount     int                   `json:"pending_donation_count"`
	PendingRequests  []bloodrequest.Detail `json:"pending_requests"`
	PendingReqCount  int                   `json:"pending_request_count"`
}

type Service struct {
	appointments Appointments
	requests     BloodRequests
	stock        Stock
	accounts     Accounts
	renderer     document.Renderer
	clock        clock.Clock
}

func NewService(appts Appointments, requests BloodRequests, st Stock, accounts Accounts, renderer document.Renderer, clk clock.Clock) *Service {
	return &Service{
		appointments: appts,
		requests:     requests,
		stock:        st,
		accounts:     accounts,
		renderer:     renderer,
		clock:        clk,
	}
}

func (s *Service) Donor(ctx context.Context, actor authz.Actor, donorID uuid.UUID) (*DonorSummary, error) {
	stats, err := s.appointments.DonorStats(ctx, actor, donorID)
	if err != nil {
		return nil, err
	}
	upcoming, err := s.appointments.NextActive(ctx, actor, donorID)
	if err != nil {
		return nil, err
	}
	recent, _, err := s.appointments.ListByDonor(ctx, actor, donorID, 1, recentDonations)
	if err != nil {
		return nil, err
	}
	return &DonorSummary{
		TotalDonations: stats.ConfirmedDonations,
		LastDonation:   stats.Eligibility.LastDonation,
		NextEligible:   stats.Eligibility.NextEligible,
		Eligible:       stats.Eligibility.Eligible,
		Upcoming:       upcoming,
		LivesSaved:     livesPerDonation * stats.ConfirmedDonations,
		Recent:         recent,
	}, nil
}

func (s *Service) Patient(ctx context.Context, actor authz.Actor, patientID uuid.UUID) (*PatientSummary, error) {
	all, err := s.requests.ListByPatient(ctx, actor, patientID, "")
	if err != nil {
		return nil, err
	}
	sum := &PatientSummary{TotalRequests: len(all)}
	// all is newest first
	for i := range all {
		r := &all[i]
		if sum.Latest == nil {
			sum.Latest = r
		}
		switch r.Status {
		case bloodrequest.StatusApproved:
			sum.Approved++
			if sum.LatestApproved == nil {
				sum.LatestApproved = r
			}
		case bloodrequest.StatusRejected:
			sum.Rejected++
		}
	}
	return sum, nil
}

// Admin gathers the admin overview concurrently.
func (s *Service) Admin(ctx context.Context, actor authz.Actor) (*AdminSummary, error) {
	if err := authz.Require(actor, authz.ViewReports); err != nil {
		return nil, err
	}

	sum := &AdminSummary{}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		levels, err := s.stock.Snapshot(ctx)
		if err != nil {
			return err
		}
		sum.Stock = levels
		sum.LowStock = []stock.Level{}
		for _, l := range levels {
			if l.Low {
				sum.LowStock = append(sum.LowStock, l)
			}
		}
		return nil
	})
	g.Go(func() error {
		counts, err := s.accounts.RoleCounts(ctx)
		sum.Accounts = counts
		return err
	})
	g.Go(func() error {
		list, total, err := s.appointments.ListForAdmin(ctx, actor, appointment.AdminFilter{Size: pendingPageSize})
		sum.PendingDonations, sum.PendingCount = list, total
		return err
	})
	g.Go(func() error {
		list, total, err := s.requests.ListForAdmin(ctx, actor, bloodrequest.AdminFilter{Size: pendingPageSize})
		sum.PendingRequests, sum.PendingReqCount = list, total
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sum, nil
}

// Report renders the most recent donations and blood requests as a PDF.
func (s *Service) Report(ctx context.Context, actor authz.Actor) ([]byte, error) {
	donations, err := s.appointments.Recent(ctx, actor, reportRows)
	if err != nil {
		return nil, err
	}
	requests, err := s.requests.Recent(ctx, actor, reportRows)
	if err != nil {
		return nil, err
	}

	data := document.ReportData{GeneratedAt: s.clock.Now()}
	for _, d := range donations {
		data.Donations = append(data.Donations, document.DonationRow{
			DonorName:  d.DonorName,
			Date:       d.Date,
			CenterName: d.CenterName,
			Status:     string(d.Status),
		})
	}
	for _, r := range requests {
		data.Requests = append(data.Requests, document.RequestRow{
			PatientName: r.PatientName,
			BloodGroup:  string(r.BloodGroup),
			Quantity:    r.Quantity,
			Status:      string(r.Status),
		})
	}
	return s.renderer.Report(data)
}
