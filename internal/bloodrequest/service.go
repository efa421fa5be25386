package bloodrequest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/blood-bank/internal/account"
	"github.com/hackgods/blood-bank/internal/authz"
	"github.com/hackgods/blood-bank/internal/bloodgroup"
	"github.com/hackgods/blood-bank/internal/clock"
	"github.com/hackgods/blood-bank/internal/db"
	"github.com/hackgods/blood-bank/internal/document"
	"github.com/hackgods/blood-bank/internal/domainerr"
	"github.com/hackgods/blood-bank/internal/metrics"
	"github.com/hackgods/blood-bank/internal/notification"
	redisclient "github.com/hackgods/blood-bank/internal/redis"
	"github.com/hackgods/blood-bank/internal/stock"
)

var (
	ErrInvalidQuantity     = fmt.Errorf("%w: quantity must be a positive integer", domainerr.ErrValidation)
	ErrMissingField        = fmt.Errorf("%w: required field missing", domainerr.ErrValidation)
	ErrDocumentsDisabled   = fmt.Errorf("%w: document storage is not configured", domainerr.ErrState)
	ErrNoDocument          = fmt.Errorf("%w: request has no document", domainerr.ErrNotFound)
	ErrInvalidRejectPolicy = fmt.Errorf("%w: unknown reject policy", domainerr.ErrValidation)
	ErrForeignDocument     = fmt.Errorf("%w: document was not uploaded by this account", domainerr.ErrForbidden)
)

const insufficientStock = "insufficient stock"

// Directory resolves the patient behind a request.
type Directory interface {
	Contact(ctx context.Context, id uuid.UUID) (account.Contact, error)
}

type Deps struct {
	Repo     Repository
	Tx       db.TxRunner
	Locker   redisclient.Locker
	Ledger   stock.Ledger
	Sink     notification.Sink
	Patients Directory
	// Store keeps uploaded prescriptions when set.
	Store        document.ObjectStore
	RejectPolicy RejectPolicy
	Clock        clock.Clock
	Metrics      metrics.Recorder
}

type Service struct {
	repo     Repository
	tx       db.TxRunner
	locker   redisclient.Locker
	ledger   stock.Ledger
	sink     notification.Sink
	patients Directory
	store    document.ObjectStore
	policy   RejectPolicy
	clock    clock.Clock
	metrics  metrics.Recorder
}

func NewService(d Deps) (*Service, error) {
	if d.RejectPolicy == "" {
		d.RejectPolicy = RejectAny
	}
	if d.RejectPolicy != RejectAny && d.RejectPolicy != RejectPendingOnly {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRejectPolicy, d.RejectPolicy)
	}
	if d.Metrics == nil {
		d.Metrics = metrics.Nop{}
	}
	return &Service{
		repo:     d.Repo,
		tx:       d.Tx,
		locker:   d.Locker,
		ledger:   d.Ledger,
		sink:     d.Sink,
		patients: d.Patients,
		store:    d.Store,
		policy:   d.RejectPolicy,
		clock:    d.Clock,
		metrics:  d.Metrics,
	}, nil
}

// Create records a PENDING request for the calling patient and notifies admins.
func (s *Service) Create(ctx context.Context, actor authz.Actor, in CreateRequest) (*Request, error) {
	if err := authz.Require(actor, authz.SubmitBloodRequest); err != nil {
		return nil, err
	}
	if in.PatientID == uuid.Nil {
		in.PatientID = actor.AccountID
	}
	if in.PatientID != actor.AccountID {
		return nil, fmt.Errorf("%w: patients request for themselves", authz.ErrForbidden)
	}
	if in.Quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	for _, f := range []struct{ name, value string }{
		{"blood_group", in.BloodGroup},
		{"notes", in.Notes},
		{"preferred_center", in.PreferredCenter},
	} {
		if strings.TrimSpace(f.value) == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingField, f.name)
		}
	}
	group, err := bloodgroup.Parse(in.BloodGroup)
	if err != nil {
		return nil, err
	}

	patient, err := s.patients.Contact(ctx, in.PatientID)
	if err != nil {
		return nil, fmt.Errorf("load patient: %w", err)
	}

	req := &Request{
		ID:              uuid.New(),
		PatientID:       in.PatientID,
		BloodGroup:      group,
		Quantity:        in.Quantity,
		Status:          StatusPending,
		Notes:           strings.TrimSpace(in.Notes),
		PreferredCenter: strings.TrimSpace(in.PreferredCenter),
		RequestDate:     s.clock.Today(),
	}
	if key := strings.TrimSpace(in.DocumentKey); key != "" {
		if !ownsDocument(actor.AccountID, key) {
			return nil, ErrForeignDocument
		}
		req.DocumentKey = &key
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, req); err != nil {
			return err
		}
		return s.sink.NotifyAdmins(ctx,
			"New Blood Request",
			fmt.Sprintf("Patient %s requested %d units of %s.", patient.Name, req.Quantity, req.BloodGroup),
			notification.CategoryBloodRequest,
		)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordBloodRequestTransition(string(StatusPending), false)
	slog.InfoContext(ctx, "blood request created",
		slog.String("request_id", req.ID.String()),
		slog.String("blood_group", string(req.BloodGroup)),
		slog.Int("quantity", req.Quantity),
	)
	return req, nil
}

// Approve decides a PENDING request against the ledger. The stock check, the
// status change, the debit and the patient notification happen under the
// blood group's lock in one transaction.
func (s *Service) Approve(ctx context.Context, actor authz.Actor, id uuid.UUID) (Outcome, error) {
	if err := authz.Require(actor, authz.ReviewBloodRequest); err != nil {
		return Outcome{}, err
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	if current.Status != StatusPending {
		return Outcome{}, ErrInvalidState
	}

	var out Outcome
	err = stock.WithGroupLock(ctx, s.locker, s.tx, current.BloodGroup, func(ctx context.Context) error {
		entry, found, err := s.ledger.Lock(ctx, current.BloodGroup)
		if err != nil {
			return err
		}
		available := 0
		if found {
			available = entry.Units
		}

		if available < current.Quantity {
			r, err := s.repo.UpdateStatus(ctx, id, []Status{StatusPending}, StatusRejected)
			if err != nil {
				return err
			}
			out = Outcome{Result: AutoRejected, Request: r, Reason: insufficientStock, StockUnits: available}
			return s.sink.Notify(ctx, notification.Notification{
				AccountID: current.PatientID,
				Title:     "Blood Request Rejected",
				Message: fmt.Sprintf("Your blood request for %s (%d units) was rejected due to insufficient stock. Current stock: %d units.",
					current.BloodGroup, current.Quantity, available),
				Category: notification.CategoryBloodRequest,
			})
		}

		r, err := s.repo.UpdateStatus(ctx, id, []Status{StatusPending}, StatusApproved)
		if err != nil {
			return err
		}
		after, err := s.ledger.Debit(ctx, current.BloodGroup, current.Quantity)
		if err != nil {
			return fmt.Errorf("debit stock: %w", err)
		}
		out = Outcome{Result: Approved, Request: r, StockUnits: after.Units}
		return s.sink.Notify(ctx, notification.Notification{
			AccountID: current.PatientID,
			Title:     "Blood Request Approved",
			Message: fmt.Sprintf("Your blood request for %s (%d units) has been approved.",
				current.BloodGroup, current.Quantity),
			Category: notification.CategoryBloodRequest,
		})
	})
	if err != nil {
		return Outcome{}, err
	}

	s.metrics.RecordBloodRequestTransition(string(out.Request.Status), out.Result == AutoRejected)
	s.metrics.RecordStockUnits(string(current.BloodGroup), out.StockUnits)
	slog.InfoContext(ctx, "blood request decided",
		slog.String("request_id", id.String()),
		slog.String("result", string(out.Result)),
		slog.Int("stock_units", out.StockUnits),
	)
	return out, nil
}

// Reject never touches stock. Which statuses it accepts depends on the
// configured RejectPolicy.
func (s *Service) Reject(ctx context.Context, actor authz.Actor, id uuid.UUID) (*Request, error) {
	if err := authz.Require(actor, authz.ReviewBloodRequest); err != nil {
		return nil, err
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var from []Status
	if s.policy == RejectPendingOnly {
		if current.Status != StatusPending {
			return nil, ErrInvalidState
		}
		from = []Status{StatusPending}
	}

	var updated *Request
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		r, err := s.repo.UpdateStatus(ctx, id, from, StatusRejected)
		if err != nil {
			return err
		}
		updated = r
		return s.sink.Notify(ctx, notification.Notification{
			AccountID: current.PatientID,
			Title:     "Blood Request Rejected",
			Message: fmt.Sprintf("Your blood request for %s (%d units) has been rejected.",
				current.BloodGroup, current.Quantity),
			Category: notification.CategoryBloodRequest,
		})
	})
	if err != nil {
		return nil, err
	}

	if current.Status != StatusPending {
		slog.WarnContext(ctx, "blood request rejected outside pending",
			slog.String("request_id", id.String()),
			slog.String("previous_status", string(current.Status)),
		)
	}
	s.metrics.RecordBloodRequestTransition(string(StatusRejected), false)
	return updated, nil
}

// Fulfill marks an APPROVED request as handed over.
func (s *Service) Fulfill(ctx context.Context, actor authz.Actor, id uuid.UUID) (*Request, error) {
	if err := authz.Require(actor, authz.ReviewBloodRequest); err != nil {
		return nil, err
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != StatusApproved {
		return nil, ErrInvalidState
	}

	var updated *Request
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		r, err := s.repo.UpdateStatus(ctx, id, []Status{StatusApproved}, StatusFulfilled)
		if err != nil {
			return err
		}
		updated = r
		return s.sink.Notify(ctx, notification.Notification{
			AccountID: current.PatientID,
			Title:     "Blood Request Fulfilled",
			Message: fmt.Sprintf("Your blood request for %s (%d units) has been fulfilled.",
				current.BloodGroup, current.Quantity),
			Category: notification.CategoryBloodRequest,
		})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordBloodRequestTransition(string(StatusFulfilled), false)
	return updated, nil
}

func (s *Service) Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (*Detail, error) {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.RequireSelf(actor, d.PatientID, authz.ViewAllHistory); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) ListByPatient(ctx context.Context, actor authz.Actor, patientID uuid.UUID, status Status) ([]Detail, error) {
	if err := authz.RequireSelf(actor, patientID, authz.ViewAllHistory); err != nil {
		return nil, err
	}
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domainerr.ErrValidation, status)
	}
	return s.repo.ListByPatient(ctx, patientID, status)
}

func (s *Service) ListForAdmin(ctx context.Context, actor authz.Actor, f AdminFilter) ([]Detail, int, error) {
	if err := authz.Require(actor, authz.ReviewBloodRequest); err != nil {
		return nil, 0, err
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", domainerr.ErrValidation, f.Status)
	}
	return s.repo.ListForAdmin(ctx, f)
}

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

// UploadDocument stores a prescription and returns the key to pass to Create.
func (s *Service) UploadDocument(ctx context.Context, actor authz.Actor, filename, contentType string, r io.Reader, size int64) (string, error) {
	if err := authz.Require(actor, authz.SubmitBloodRequest); err != nil {
		return "", err
	}
	if s.store == nil {
		return "", ErrDocumentsDisabled
	}
	key := documentPrefix(actor.AccountID) + uuid.NewString() + strings.ToLower(path.Ext(filename))
	if err := s.store.Put(ctx, key, r, size, contentType); err != nil {
		return "", err
	}
	return key, nil
}

// DocumentURL returns a short-lived link to the request's prescription.
func (s *Service) DocumentURL(ctx context.Context, actor authz.Actor, id uuid.UUID) (string, error) {
	d, err := s.Get(ctx, actor, id)
	if err != nil {
		return "", err
	}
	if d.DocumentKey == nil {
		return "", ErrNoDocument
	}
	if s.store == nil {
		return "", ErrDocumentsDisabled
	}
	return s.store.PresignGet(ctx, *d.DocumentKey, 15*time.Minute)
}

func documentPrefix(accountID uuid.UUID) string {
	return fmt.Sprintf("prescriptions/%s/", accountID)
}

// ownsDocument reports whether key is a clean path under the account's
// upload prefix.
func ownsDocument(accountID uuid.UUID, key string) bool {
	prefix := documentPrefix(accountID)
	return path.Clean(key) == key && strings.HasPrefix(key, prefix) && len(key) > len(prefix)
}
