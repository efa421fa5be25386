package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hackgods/blood-bank/internal/authz"
	"github.com/hackgods/blood-bank/internal/clock"
	"github.com/hackgods/blood-bank/internal/domainerr"
)

var ErrInvalidCategory = fmt.Errorf("%w: unknown notification category", domainerr.ErrValidation)

// Sink is what the lifecycles write to. Writes join the caller's transaction.
type Sink interface {
	Notify(ctx context.Context, n Notification) error
	NotifyAdmins(ctx context.Context, title, message string, category Category) error
}

type Service struct {
	repo   Repository
	admins AdminDirectory
	clock  clock.Clock
}

func NewService(repo Repository, admins AdminDirectory, clk clock.Clock) *Service {
	return &Service{repo: repo, admins: admins, clock: clk}
}

func (s *Service) Notify(ctx context.Context, n Notification) error {
	if n.AccountID == uuid.Nil {
		return errors.New("notification without recipient")
	}
	if !n.Category.Valid() {
		return ErrInvalidCategory
	}
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	n.Read = false
	n.CreatedAt = s.clock.Now()
	return s.repo.Insert(ctx, &n)
}

// NotifyAdmins writes one notification per ADMIN account.
func (s *Service) NotifyAdmins(ctx context.Context, title, message string, category Category) error {
	ids, err := s.admins.ListAdminIDs(ctx)
	if err != nil {
		return fmt.Errorf("list admins: %w", err)
	}
	for _, id := range ids {
		err := s.Notify(ctx, Notification{
			AccountID: id,
			Title:     title,
			Message:   message,
			Category:  category,
		})
		if err != nil {
			return fmt.Errorf("notify admin %s: %w", id, err)
		}
	}
	return nil
}

// List returns the account's notifications, newest first.
func (s *Service) List(ctx context.Context, actor authz.Actor, accountID uuid.UUID, f Filter) ([]Notification, error) {
	if err := authz.RequireSelf(actor, accountID, authz.ManageAccounts); err != nil {
		return nil, err
	}
	if f.Category != "" && !f.Category.Valid() {
		return nil, ErrInvalidCategory
	}
	return s.repo.ListByAccount(ctx, accountID, f)
}

// MarkAllRead marks the unread notifications matching f as read and returns
// how many changed. UnreadOnly is implied.
func (s *Service) MarkAllRead(ctx context.Context, actor authz.Actor, accountID uuid.UUID, f Filter) (int64, error) {
	if err := authz.RequireSelf(actor, accountID, authz.ManageAccounts); err != nil {
		return 0, err
	}
	if f.Category != "" && !f.Category.Valid() {
		return 0, ErrInvalidCategory
	}
	return s.repo.MarkRead(ctx, accountID, f)
}
