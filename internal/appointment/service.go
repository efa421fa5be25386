package appointment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/blood-bank/internal/account"
	"github.com/hackgods/blood-bank/internal/authz"
	"github.com/hackgods/blood-bank/internal/clock"
	"github.com/hackgods/blood-bank/internal/db"
	"github.com/hackgods/blood-bank/internal/dispatch"
	"github.com/hackgods/blood-bank/internal/document"
	"github.com/hackgods/blood-bank/internal/domainerr"
	"github.com/hackgods/blood-bank/internal/eligibility"
	"github.com/hackgods/blood-bank/internal/mailer"
	"github.com/hackgods/blood-bank/internal/metrics"
	"github.com/hackgods/blood-bank/internal/notification"
	redisclient "github.com/hackgods/blood-bank/internal/redis"
	"github.com/hackgods/blood-bank/internal/stock"
)

var (
	ErrPastDate       = fmt.Errorf("%w: you cannot select a past date", domainerr.ErrValidation)
	ErrNotYetEligible = fmt.Errorf("%w: donor is not yet eligible on that date", domainerr.ErrValidation)
	ErrMissingField   = fmt.Errorf("%w: required field missing", domainerr.ErrValidation)
)

// Directory resolves the donor behind an appointment.
type Directory interface {
	Contact(ctx context.Context, id uuid.UUID) (account.Contact, error)
}

type Deps struct {
	Repo     Repository
	Tx       db.TxRunner
	Locker   redisclient.Locker
	Ledger   stock.Ledger
	Sink     notification.Sink
	Donors   Directory
	Runner   dispatch.Runner
	Mailer   mailer.Mailer
	Renderer document.Renderer
	// Store archives certificates when set.
	Store   document.ObjectStore
	Clock   clock.Clock
	Metrics metrics.Recorder
}

type Service struct {
	repo     Repository
	tx       db.TxRunner
	locker   redisclient.Locker
	ledger   stock.Ledger
	sink     notification.Sink
	donors   Directory
	runner   dispatch.Runner
	mail     mailer.Mailer
	renderer document.Renderer
	store    document.ObjectStore
	clock    clock.Clock
	metrics  metrics.Recorder
}

func NewService(d Deps) *Service {
	if d.Metrics == nil {
		d.Metrics = metrics.Nop{}
	}
	return &Service{
		repo:     d.Repo,
		tx:       d.Tx,
		locker:   d.Locker,
		ledger:   d.Ledger,
		sink:     d.Sink,
		donors:   d.Donors,
		runner:   d.Runner,
		mail:     d.Mailer,
		renderer: d.Renderer,
		store:    d.Store,
		clock:    d.Clock,
		metrics:  d.Metrics,
	}
}

// Create books a PENDING appointment and tells every admin about it.
func (s *Service) Create(ctx context.Context, actor authz.Actor, req CreateRequest) (*Appointment, error) {
	if err := authz.Require(actor, authz.ScheduleDonation); err != nil {
		return nil, err
	}
	if actor.AccountID != req.DonorID {
		return nil, fmt.Errorf("%w: donors book for themselves", authz.ErrForbidden)
	}
	if req.CenterID == uuid.Nil || req.Date.IsZero() {
		return nil, fmt.Errorf("%w: center and date are required", ErrMissingField)
	}

	date := clock.Date(req.Date)
	if date.Before(s.clock.Today()) {
		return nil, ErrPastDate
	}
	if req.NextEligible != nil && date.Before(clock.Date(*req.NextEligible)) {
		return nil, fmt.Errorf("%w: eligible from %s", ErrNotYetEligible, req.NextEligible.Format(time.DateOnly))
	}

	center, err := s.repo.GetCenter(ctx, req.CenterID)
	if err != nil {
		return nil, err
	}
	donor, err := s.donors.Contact(ctx, req.DonorID)
	if err != nil {
		return nil, fmt.Errorf("load donor: %w", err)
	}

	appt := &Appointment{
		ID:       uuid.New(),
		DonorID:  req.DonorID,
		CenterID: center.ID,
		Date:     date,
		Notes:    strings.TrimSpace(req.Notes),
		Status:   StatusPending,
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		exists, err := s.repo.HasActive(ctx, appt.DonorID, appt.CenterID, appt.Date)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateAppointment
		}
		if err := s.repo.Create(ctx, appt); err != nil {
			return err
		}
		return s.sink.NotifyAdmins(ctx,
			"New Donation Appointment",
			fmt.Sprintf("Donor %s scheduled a donation on %s at %s.", donor.Name, appt.Date.Format(time.DateOnly), center.Name),
			notification.CategoryDonation,
		)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAppointmentTransition(string(StatusPending))
	slog.InfoContext(ctx, "appointment created",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("donor_id", appt.DonorID.String()),
		slog.String("date", appt.Date.Format(time.DateOnly)),
	)
	return appt, nil
}

// Schedule books for the calling donor, constrained by their eligibility.
func (s *Service) Schedule(ctx context.Context, actor authz.Actor, in ScheduleInput) (*Appointment, error) {
	stats, err := s.DonorStats(ctx, actor, actor.AccountID)
	if err != nil {
		return nil, err
	}
	next := stats.Eligibility.NextEligible
	return s.Create(ctx, actor, CreateRequest{
		DonorID:      actor.AccountID,
		CenterID:     in.CenterID,
		Date:         in.Date,
		Notes:        in.Notes,
		NextEligible: &next,
	})
}

// Approve confirms a PENDING appointment. When the donor has a blood group the
// ledger is credited one unit in the same transaction. The certificate is
// rendered and mailed after commit.
func (s *Service) Approve(ctx context.Context, actor authz.Actor, id uuid.UUID) (*Appointment, error) {
	if err := authz.Require(actor, authz.ReviewDonation); err != nil {
		return nil, err
	}
	detail, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if detail.Status != StatusPending {
		return nil, ErrInvalidState
	}
	donor, err := s.donors.Contact(ctx, detail.DonorID)
	if err != nil {
		return nil, fmt.Errorf("load donor: %w", err)
	}

	var updated *Appointment
	confirm := func(ctx context.Context) error {
		a, err := s.repo.UpdateStatus(ctx, id, StatusPending, StatusConfirmed)
		if err != nil {
			return err
		}
		if donor.BloodGroup.Valid() {
			entry, err := s.ledger.Credit(ctx, donor.BloodGroup, 1)
			if err != nil {
				return fmt.Errorf("credit stock: %w", err)
			}
			s.metrics.RecordStockUnits(string(entry.BloodGroup), entry.Units)
		}
		updated = a
		return s.sink.Notify(ctx, notification.Notification{
			AccountID: detail.DonorID,
			Title:     "Donation Approved",
			Message: fmt.Sprintf("Your donation scheduled for %s at %s has been approved.",
				detail.Date.Format(time.DateOnly), detail.CenterName),
			Category: notification.CategoryDonation,
		})
	}

	if donor.BloodGroup.Valid() {
		err = stock.WithGroupLock(ctx, s.locker, s.tx, donor.BloodGroup, confirm)
	} else {
		err = s.tx.RunInTx(ctx, confirm)
	}
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAppointmentTransition(string(StatusConfirmed))
	slog.InfoContext(ctx, "appointment approved",
		slog.String("appointment_id", id.String()),
		slog.String("blood_group", string(donor.BloodGroup)),
	)

	s.sendCertificate(ctx, *detail, donor)
	return updated, nil
}

func (s *Service) sendCertificate(ctx context.Context, d Detail, donor account.Contact) {
	if s.runner == nil || s.renderer == nil {
		return
	}
	s.runner.Go(ctx, "donation_certificate", func(ctx context.Context) error {
		pdf, err := s.renderer.Certificate(document.CertificateData{
			DonorName:  donor.Name,
			Date:       d.Date,
			CenterName: d.CenterName,
		})
		if err != nil {
			return fmt.Errorf("render certificate: %w", err)
		}

		var errs []error
		if s.store != nil {
			key := fmt.Sprintf("certificates/%s.pdf", d.ID)
			if err := document.PutBytes(ctx, s.store, key, pdf, "application/pdf"); err != nil {
				errs = append(errs, fmt.Errorf("archive certificate: %w", err))
			}
		}
		if donor.Email != "" && s.mail != nil {
			err := s.mail.Send(ctx, mailer.Message{
				To:      donor.Email,
				Subject: "Your Blood Donation Certificate",
				Body: fmt.Sprintf("Dear %s,\n\nThank you for your blood donation on %s at %s.\n"+
					"Please find your certificate of appreciation attached.\n\nBest regards,\nBlood Bank Team",
					donor.Name, d.Date.Format(time.DateOnly), d.CenterName),
				Attachments: []mailer.Attachment{{
					Filename:    "Donation_Certificate.pdf",
					ContentType: "application/pdf",
					Data:        pdf,
				}},
			})
			if err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// Reject closes a PENDING appointment without touching stock.
func (s *Service) Reject(ctx context.Context, actor authz.Actor, id uuid.UUID) (*Appointment, error) {
	if err := authz.Require(actor, authz.ReviewDonation); err != nil {
		return nil, err
	}
	detail, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if detail.Status != StatusPending {
		return nil, ErrInvalidState
	}

	var updated *Appointment
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.UpdateStatus(ctx, id, StatusPending, StatusRejected)
		if err != nil {
			return err
		}
		updated = a
		return s.sink.Notify(ctx, notification.Notification{
			AccountID: detail.DonorID,
			Title:     "Donation Rejected",
			Message: fmt.Sprintf("Your donation scheduled for %s at %s has been rejected.",
				detail.Date.Format(time.DateOnly), detail.CenterName),
			Category: notification.CategoryDonation,
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAppointmentTransition(string(StatusRejected))
	slog.InfoContext(ctx, "appointment rejected", slog.String("appointment_id", id.String()))
	return updated, nil
}

func (s *Service) Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (*Detail, error) {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.RequireSelf(actor, d.DonorID, authz.ViewAllHistory); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) ListByDonor(ctx context.Context, actor authz.Actor, donorID uuid.UUID, page, size int) ([]Detail, int, error) {
	if err := authz.RequireSelf(actor, donorID, authz.ViewAllHistory); err != nil {
		return nil, 0, err
	}
	return s.repo.ListByDonor(ctx, donorID, page, size)
}

func (s *Service) ListForAdmin(ctx context.Context, actor authz.Actor, f AdminFilter) ([]Detail, int, error) {
	if err := authz.Require(actor, authz.ReviewDonation); err != nil {
		return nil, 0, err
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", domainerr.ErrValidation, f.Status)
	}
	return s.repo.ListForAdmin(ctx, f)
}

// Recent returns the latest appointments across all donors, for reports.
func (s *Service) Recent(ctx context.Context, actor authz.Actor, limit int) ([]Detail, error) {
	if err := authz.Require(actor, authz.ViewReports); err != nil {
		return nil, err
	}
	return s.repo.Recent(ctx, limit)
}

func (s *Service) CountByStatus(ctx context.Context, actor authz.Actor) (map[Status]int, error) {
	if err := authz.Require(actor, authz.ViewReports); err != nil {
		return nil, err
	}
	return s.repo.CountByStatus(ctx)
}

// NextActive returns the donor's next PENDING or CONFIRMED appointment from
// today on, or nil.
func (s *Service) NextActive(ctx context.Context, actor authz.Actor, donorID uuid.UUID) (*Detail, error) {
	if err := authz.RequireSelf(actor, donorID, authz.ViewAllHistory); err != nil {
		return nil, err
	}
	return s.repo.NextActive(ctx, donorID, s.clock.Today())
}

type DonorStats struct {
	ConfirmedDonations int
	Eligibility        eligibility.Status
}

// DonorStats recomputes eligibility from the confirmed history on every call.
func (s *Service) DonorStats(ctx context.Context, actor authz.Actor, donorID uuid.UUID) (DonorStats, error) {
	if err := authz.RequireSelf(actor, donorID, authz.ViewAllHistory); err != nil {
		return DonorStats{}, err
	}
	dates, err := s.repo.ConfirmedDates(ctx, donorID)
	if err != nil {
		return DonorStats{}, err
	}
	return DonorStats{
		ConfirmedDonations: len(dates),
		Eligibility:        eligibility.Compute(dates, s.clock.Today()),
	}, nil
}

func (s *Service) Eligibility(ctx context.Context, actor authz.Actor, donorID uuid.UUID) (eligibility.Status, error) {
	stats, err := s.DonorStats(ctx, actor, donorID)
	if err != nil {
		return eligibility.Status{}, err
	}
	return stats.Eligibility, nil
}

func (s *Service) ListCenters(ctx context.Context) ([]Center, error) {
	return s.repo.ListCenters(ctx)
}

func (s *Service) CreateCenter(ctx context.Context, actor authz.Actor, name, address string) (*Center, error) {
	if err := authz.Require(actor, authz.ManageCenters); err != nil {
		return nil, err
	}
	name, address = strings.TrimSpace(name), strings.TrimSpace(address)
	if name == "" || address == "" {
		return nil, fmt.Errorf("%w: name and address are required", ErrMissingField)
	}
	c := &Center{ID: uuid.New(), Name: name, Address: address}
	if err := s.repo.CreateCenter(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}
