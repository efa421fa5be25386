package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/hackgods/blood-bank/internal/authz"
	"github.com/hackgods/blood-bank/internal/bloodgroup"
	"github.com/hackgods/blood-bank/internal/db"
	"github.com/hackgods/blood-bank/internal/domainerr"
	"github.com/hackgods/blood-bank/internal/otp"
)

var (
	ErrInvalidRole        = fmt.Errorf("%w: role must be DONOR or PATIENT", domainerr.ErrValidation)
	ErrMissingUsername    = fmt.Errorf("%w: username is required", domainerr.ErrValidation)
	ErrInvalidEmail       = fmt.Errorf("%w: invalid email address", domainerr.ErrValidation)
	ErrNoEmail            = fmt.Errorf("%w: account has no email address", domainerr.ErrValidation)
	ErrWrongPassword      = fmt.Errorf("%w: current password is incorrect", domainerr.ErrValidation)
	ErrInvalidCredentials = fmt.Errorf("%w: invalid username or password", domainerr.ErrUnauthenticated)
	ErrAccountInactive    = fmt.Errorf("%w: account is not active", domainerr.ErrUnauthenticated)
	ErrAlreadyVerified    = fmt.Errorf("%w: account is already verified", domainerr.ErrState)
	ErrBloodGroupLocked   = fmt.Errorf("%w: blood group is already set", domainerr.ErrState)
	ErrSelfModification   = fmt.Errorf("%w: admins cannot deactivate or delete themselves", domainerr.ErrState)
	ErrNotAdmin           = fmt.Errorf("%w: username belongs to a non-admin account", domainerr.ErrConflict)
)

// Codes issues and verifies one-time codes.
type Codes interface {
	Issue(ctx context.Context, to otp.Recipient, purpose otp.Purpose) (string, error)
	Reissue(ctx context.Context, to otp.Recipient, purpose otp.Purpose) (string, error)
	Verify(ctx context.Context, accountID uuid.UUID, code string) error
}

type Service struct {
	repo   Repository
	tx     db.TxRunner
	codes  Codes
	hasher PasswordHasher
	tokens *TokenIssuer
}

func NewService(repo Repository, tx db.TxRunner, codes Codes, hasher PasswordHasher, tokens *TokenIssuer) *Service {
	return &Service{
		repo:   repo,
		tx:     tx,
		codes:  codes,
		hasher: hasher,
		tokens: tokens,
	}
}

func recipient(a *Account) otp.Recipient {
	return otp.Recipient{AccountID: a.ID, Email: a.Email, Name: a.FullName()}
}

func normalizeEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(addr.Address), nil
}

// Register creates an inactive donor or patient with an empty profile and
// issues a registration code.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Account, error) {
	if in.Role != authz.RoleDonor && in.Role != authz.RolePatient {
		return nil, ErrInvalidRole
	}
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, ErrMissingUsername
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	acc := &Account{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Phone:        strings.TrimSpace(in.Phone),
		DateOfBirth:  in.DateOfBirth,
		Address:      strings.TrimSpace(in.Address),
		Role:         in.Role,
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, acc, &Profile{})
	})
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	// A lost code is recovered through ResendCode.
	if _, err := s.codes.Issue(ctx, recipient(acc), otp.PurposeRegistration); err != nil {
		slog.WarnContext(ctx, "registration code not issued",
			slog.String("account_id", acc.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	slog.InfoContext(ctx, "account registered",
		slog.String("account_id", acc.ID.String()),
		slog.String("role", string(acc.Role)),
	)
	return acc, nil
}

// CompleteRegistration consumes a code and activates the account. The code is
// consumed outside the activating transaction.
func (s *Service) CompleteRegistration(ctx context.Context, accountID uuid.UUID, code string) (*Account, error) {
	if _, err := s.repo.GetByID(ctx, accountID); err != nil {
		return nil, err
	}
	if err := s.codes.Verify(ctx, accountID, code); err != nil {
		return nil, err
	}
	var acc *Account
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.GetByID(ctx, accountID)
		if err != nil {
			return err
		}
		a.Active = true
		a.EmailVerified = true
		if err := s.repo.Update(ctx, a); err != nil {
			return err
		}
		acc = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

func (s *Service) ResendCode(ctx context.Context, accountID uuid.UUID) error {
	acc, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if acc.EmailVerified && acc.Active {
		return ErrAlreadyVerified
	}
	_, err = s.codes.Reissue(ctx, recipient(acc), otp.PurposeRegistration)
	return err
}

// ForgotPassword issues a reset code and returns the account it was issued to.
func (s *Service) ForgotPassword(ctx context.Context, username string) (uuid.UUID, error) {
	acc, err := s.repo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return uuid.Nil, err
	}
	if acc.Email == "" {
		return uuid.Nil, ErrNoEmail
	}
	if _, err := s.codes.Reissue(ctx, recipient(acc), otp.PurposePasswordReset); err != nil {
		return uuid.Nil, err
	}
	return acc.ID, nil
}

func (s *Service) ResetPassword(ctx context.Context, accountID uuid.UUID, code, newPassword string) error {
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if _, err := s.repo.GetByID(ctx, accountID); err != nil {
		return err
	}
	if err := s.codes.Verify(ctx, accountID, code); err != nil {
		return err
	}
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		acc, err := s.repo.GetByID(ctx, accountID)
		if err != nil {
			return err
		}
		acc.PasswordHash = hash
		return s.repo.Update(ctx, acc)
	})
}

// Login checks credentials and returns a signed bearer token.
func (s *Service) Login(ctx context.Context, username, password string) (string, *Account, error) {
	acc, err := s.repo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if !s.hasher.Matches(acc.PasswordHash, password) {
		return "", nil, ErrInvalidCredentials
	}
	if !acc.Active {
		return "", nil, ErrAccountInactive
	}
	token, err := s.tokens.Issue(acc)
	if err != nil {
		return "", nil, err
	}
	return token, acc, nil
}

func (s *Service) ChangePassword(ctx context.Context, actor authz.Actor, oldPassword, newPassword string) error {
	acc, err := s.repo.GetByID(ctx, actor.AccountID)
	if err != nil {
		return err
	}
	if !s.hasher.Matches(acc.PasswordHash, oldPassword) {
		return ErrWrongPassword
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	acc.PasswordHash = hash
	return s.repo.Update(ctx, acc)
}

// Get returns an account with its profile.
func (s *Service) Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (*Account, *Profile, error) {
	if err := authz.RequireSelf(actor, id, authz.ManageAccounts); err != nil {
		return nil, nil, err
	}
	acc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	p, err := s.repo.GetProfile(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return acc, p, nil
}

// UpdateProfile applies the non-nil fields. The blood group can be set once;
// repeating the stored value is accepted, a different one is not.
func (s *Service) UpdateProfile(ctx context.Context, actor authz.Actor, id uuid.UUID, upd ProfileUpdate) (*Account, *Profile, error) {
	if err := authz.RequireSelf(actor, id, authz.ManageAccounts); err != nil {
		return nil, nil, err
	}

	var (
		acc  *Account
		prof *Profile
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		p, err := s.repo.GetProfile(ctx, id)
		if err != nil {
			return err
		}

		if upd.BloodGroup != nil {
			g, err := bloodgroup.Parse(string(*upd.BloodGroup))
			if err != nil {
				return err
			}
			if p.BloodGroup != "" && p.BloodGroup != g {
				return ErrBloodGroupLocked
			}
			p.BloodGroup = g
		}
		setString(&a.FirstName, upd.FirstName)
		setString(&a.LastName, upd.LastName)
		setString(&a.Phone, upd.Phone)
		setString(&a.Address, upd.Address)
		setString(&p.MedicalConditions, upd.MedicalConditions)
		setString(&p.EmergencyContact, upd.EmergencyContact)
		if upd.DateOfBirth != nil {
			a.DateOfBirth = upd.DateOfBirth
		}

		if err := s.repo.Update(ctx, a); err != nil {
			return err
		}
		if err := s.repo.UpdateProfile(ctx, p); err != nil {
			return err
		}
		acc, prof = a, p
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return acc, prof, nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

// Contact resolves the name, email and blood group of an account.
func (s *Service) Contact(ctx context.Context, id uuid.UUID) (Contact, error) {
	acc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Contact{}, err
	}
	p, err := s.repo.GetProfile(ctx, id)
	if err != nil {
		return Contact{}, err
	}
	return Contact{
		AccountID:  acc.ID,
		Name:       acc.FullName(),
		Email:      acc.Email,
		BloodGroup: p.BloodGroup,
	}, nil
}

func (s *Service) ListAccounts(ctx context.Context, actor authz.Actor, f ListFilter) ([]Member, int, error) {
	if err := authz.Require(actor, authz.ManageAccounts); err != nil {
		return nil, 0, err
	}
	if f.Role != "" && !f.Role.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown role %q", domainerr.ErrValidation, f.Role)
	}
	if f.BloodGroup != "" && !f.BloodGroup.Valid() {
		return nil, 0, bloodgroup.ErrInvalidGroup
	}
	return s.repo.List(ctx, f)
}

func (s *Service) SetActive(ctx context.Context, actor authz.Actor, id uuid.UUID, active bool) (*Account, error) {
	if err := authz.Require(actor, authz.ManageAccounts); err != nil {
		return nil, err
	}
	if id == actor.AccountID && !active {
		return nil, ErrSelfModification
	}
	acc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	acc.Active = active
	if err := s.repo.Update(ctx, acc); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "account activation changed",
		slog.String("account_id", id.String()),
		slog.Bool("active", active),
	)
	return acc, nil
}

func (s *Service) Delete(ctx context.Context, actor authz.Actor, id uuid.UUID) error {
	if err := authz.Require(actor, authz.ManageAccounts); err != nil {
		return err
	}
	if id == actor.AccountID {
		return ErrSelfModification
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "account deleted", slog.String("account_id", id.String()))
	return nil
}

// EnsureAdmin creates an active admin unless one with the username exists.
// It reports whether an account was created.
func (s *Service) EnsureAdmin(ctx context.Context, username, email, password string) (*Account, bool, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, false, ErrMissingUsername
	}
	existing, err := s.repo.GetByUsername(ctx, username)
	switch {
	case err == nil:
		if existing.Role != authz.RoleAdmin {
			return nil, false, ErrNotAdmin
		}
		return existing, false, nil
	case !errors.Is(err, ErrAccountNotFound):
		return nil, false, err
	}

	addr, err := normalizeEmail(email)
	if err != nil {
		return nil, false, err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, false, err
	}
	acc := &Account{
		ID:            uuid.New(),
		Username:      username,
		Email:         addr,
		PasswordHash:  hash,
		Role:          authz.RoleAdmin,
		Active:        true,
		EmailVerified: true,
	}
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, acc, &Profile{})
	})
	if err != nil {
		return nil, false, err
	}
	return acc, true, nil
}

// RoleCounts returns the number of accounts per role.
func (s *Service) RoleCounts(ctx context.Context) (map[authz.Role]int, error) {
	return s.repo.CountByRole(ctx)
}
