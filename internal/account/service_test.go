package account

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"github.com/hackgods/blood-bank/internal/authz"
	"github.com/hackgods/blood-bank/internal/bloodgroup"
	"github.com/hackgods/blood-bank/internal/clock"
	"github.com/hackgods/blood-bank/internal/db"
	"github.com/hackgods/blood-bank/internal/dispatch"
	"github.com/hackgods/blood-bank/internal/domainerr"
	"github.com/hackgods/blood-bank/internal/mailer"
	"github.com/hackgods/blood-bank/internal/otp"
)

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

type ServiceSuite struct {
	suite.Suite
	ctx   context.Context
	repo  *MemoryRepository
	codes *otp.MemoryStore
	box   *outbox
	svc   *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.repo = NewMemoryRepository()
	s.codes = otp.NewMemoryStore()
	s.box = &outbox{}
	verifier := otp.NewVerifier(s.codes, s.box, dispatch.Inline{}, otp.Options{Clock: clock.System()})
	s.svc = NewService(s.repo, db.NoopTxRunner{}, verifier,
		PasswordHasher{Cost: bcrypt.MinCost}, NewTokenIssuer("test-secret", time.Hour))
}

func (s *ServiceSuite) register(username string, role authz.Role) *Account {
	acc, err := s.svc.Register(s.ctx, RegisterInput{
		Username:  username,
		Email:     username + "@example.com",
		Password:  "correct-horse",
		FirstName: "Test",
		LastName:  username,
		Role:      role,
	})
	s.Require().NoError(err)
	return acc
}

func (s *ServiceSuite) lastCode(id uuid.UUID) string {
	issued := s.codes.Issued(id)
	s.Require().NotEmpty(issued)
	return issued[len(issued)-1].Code
}

func (s *ServiceSuite) TestRegisterCreatesInactiveAccountAndSendsCode() {
	acc := s.register("donor1", authz.RoleDonor)

	s.False(acc.Active)
	s.False(acc.EmailVerified)
	s.Len(s.codes.Issued(acc.ID), 1)
	s.Require().Len(s.box.sent, 1)
	s.Equal("donor1@example.com", s.box.sent[0].To)

	p, err := s.repo.GetProfile(s.ctx, acc.ID)
	s.Require().NoError(err)
	s.Empty(p.BloodGroup)
}

func (s *ServiceSuite) TestRegisterValidation() {
	_, err := s.svc.Register(s.ctx, RegisterInput{Username: "x", Password: "correct-horse", Role: authz.RoleAdmin})
	s.ErrorIs(err, ErrInvalidRole)

	_, err = s.svc.Register(s.ctx, RegisterInput{Username: "x", Password: "short", Role: authz.RoleDonor})
	s.ErrorIs(err, ErrWeakPassword)

	_, err = s.svc.Register(s.ctx, RegisterInput{Username: "x", Email: "not-an-email", Password: "correct-horse", Role: authz.RoleDonor})
	s.ErrorIs(err, ErrInvalidEmail)

	s.register("taken", authz.RolePatient)
	_, err = s.svc.Register(s.ctx, RegisterInput{Username: "taken", Password: "correct-horse", Role: authz.RoleDonor})
	s.ErrorIs(err, domainerr.ErrConflict)
}

func (s *ServiceSuite) TestCompleteRegistrationActivatesOnce() {
	acc := s.register("donor2", authz.RoleDonor)
	code := s.lastCode(acc.ID)

	_, _, err := s.svc.Login(s.ctx, "donor2", "correct-horse")
	s.ErrorIs(err, ErrAccountInactive)

	activated, err := s.svc.CompleteRegistration(s.ctx, acc.ID, code)
	s.Require().NoError(err)
	s.True(activated.Active)
	s.True(activated.EmailVerified)

	_, err = s.svc.CompleteRegistration(s.ctx, acc.ID, code)
	s.ErrorIs(err, domainerr.ErrInvalidCode)

	token, logged, err := s.svc.Login(s.ctx, "donor2", "correct-horse")
	s.Require().NoError(err)
	s.Equal(acc.ID, logged.ID)
	s.NotEmpty(token)
}

func (s *ServiceSuite) TestCompleteRegistrationWrongCode() {
	acc := s.register("donor3", authz.RoleDonor)
	code := s.lastCode(acc.ID)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	_, err := s.svc.CompleteRegistration(s.ctx, acc.ID, wrong)
	s.ErrorIs(err, domainerr.ErrInvalidCode)

	got, err := s.repo.GetByID(s.ctx, acc.ID)
	s.Require().NoError(err)
	s.False(got.Active)
}

func (s *ServiceSuite) TestResendCodeKeepsOlderCodesValid() {
	acc := s.register("patient1", authz.RolePatient)
	first := s.lastCode(acc.ID)

	s.Require().NoError(s.svc.ResendCode(s.ctx, acc.ID))
	s.Len(s.codes.Issued(acc.ID), 2)

	_, err := s.svc.CompleteRegistration(s.ctx, acc.ID, first)
	s.NoError(err)

	s.ErrorIs(s.svc.ResendCode(s.ctx, acc.ID), ErrAlreadyVerified)
}

func (s *ServiceSuite) TestForgotAndResetPassword() {
	acc := s.register("patient2", authz.RolePatient)
	_, err := s.svc.CompleteRegistration(s.ctx, acc.ID, s.lastCode(acc.ID))
	s.Require().NoError(err)

	id, err := s.svc.ForgotPassword(s.ctx, "patient2")
	s.Require().NoError(err)
	s.Equal(acc.ID, id)
	code := s.lastCode(acc.ID)

	s.Require().NoError(s.svc.ResetPassword(s.ctx, acc.ID, code, "new-password-1"))
	s.ErrorIs(s.svc.ResetPassword(s.ctx, acc.ID, code, "new-password-2"), domainerr.ErrInvalidCode)

	_, _, err = s.svc.Login(s.ctx, "patient2", "correct-horse")
	s.ErrorIs(err, ErrInvalidCredentials)
	_, _, err = s.svc.Login(s.ctx, "patient2", "new-password-1")
	s.NoError(err)
}

func (s *ServiceSuite) TestResetPasswordLocksOutGuessing() {
	acc := s.register("patient3", authz.RolePatient)
	_, err := s.svc.CompleteRegistration(s.ctx, acc.ID, s.lastCode(acc.ID))
	s.Require().NoError(err)
	_, err = s.svc.ForgotPassword(s.ctx, "patient3")
	s.Require().NoError(err)
	code := s.lastCode(acc.ID)

	var locked bool
	for i := 0; i < 20 && !locked; i++ {
		guess := fmt.Sprintf("%06d", i)
		if guess == code {
			continue
		}
		err := s.svc.ResetPassword(s.ctx, acc.ID, guess, "hijacked-password")
		locked = errors.Is(err, otp.ErrTooManyAttempts)
		if !locked {
			s.Require().ErrorIs(err, domainerr.ErrInvalidCode)
		}
	}
	s.Require().True(locked)

	s.ErrorIs(s.svc.ResetPassword(s.ctx, acc.ID, code, "hijacked-password"), otp.ErrTooManyAttempts)
	for _, c := range s.codes.Issued(acc.ID) {
		s.True(c.Consumed)
	}
	_, _, err = s.svc.Login(s.ctx, "patient3", "correct-horse")
	s.NoError(err)
}

// txTrackingRunner marks the context passed to fn so fakes can tell whether
// they run inside a transaction.
type txTrackingRunner struct{}

type inTxKey struct{}

func (txTrackingRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(context.WithValue(ctx, inTxKey{}, true))
}

type recordingCodes struct {
	issuedInTx bool
	issueErr   error
}

func (c *recordingCodes) Issue(ctx context.Context, _ otp.Recipient, _ otp.Purpose) (string, error) {
	if ctx.Value(inTxKey{}) != nil {
		c.issuedInTx = true
	}
	return "123456", c.issueErr
}

func (c *recordingCodes) Reissue(ctx context.Context, to otp.Recipient, p otp.Purpose) (string, error) {
	return c.Issue(ctx, to, p)
}

func (c *recordingCodes) Verify(context.Context, uuid.UUID, string) error { return nil }

func (s *ServiceSuite) TestRegisterIssuesCodeAfterCommit() {
	codes := &recordingCodes{issueErr: errors.New("code store down")}
	svc := NewService(s.repo, txTrackingRunner{}, codes,
		PasswordHasher{Cost: bcrypt.MinCost}, NewTokenIssuer("test-secret", time.Hour))

	acc, err := svc.Register(s.ctx, RegisterInput{
		Username: "late-code",
		Email:    "late@example.com",
		Password: "correct-horse",
		Role:     authz.RoleDonor,
	})
	s.Require().NoError(err)
	s.False(codes.issuedInTx)

	_, err = s.repo.GetByID(s.ctx, acc.ID)
	s.NoError(err)
}

func (s *ServiceSuite) TestForgotPasswordRequiresEmail() {
	acc, err := s.svc.Register(s.ctx, RegisterInput{Username: "nomail", Password: "correct-horse", Role: authz.RoleDonor})
	s.Require().NoError(err)
	s.Empty(acc.Email)

	_, err = s.svc.ForgotPassword(s.ctx, "nomail")
	s.ErrorIs(err, ErrNoEmail)

	_, err = s.svc.ForgotPassword(s.ctx, "ghost")
	s.ErrorIs(err, domainerr.ErrNotFound)
}

func (s *ServiceSuite) TestChangePassword() {
	acc := s.register("donor4", authz.RoleDonor)
	actor := acc.Actor()

	s.ErrorIs(s.svc.ChangePassword(s.ctx, actor, "wrong-password", "another-pass"), ErrWrongPassword)
	s.Require().NoError(s.svc.ChangePassword(s.ctx, actor, "correct-horse", "another-pass"))

	got, _ := s.repo.GetByID(s.ctx, acc.ID)
	s.True(s.svc.hasher.Matches(got.PasswordHash, "another-pass"))
}

func (s *ServiceSuite) TestBloodGroupIsSetOnce() {
	acc := s.register("donor5", authz.RoleDonor)
	actor := acc.Actor()
	aPos := bloodgroup.APos
	oNeg := bloodgroup.ONeg
	phone := "555-0100"

	_, p, err := s.svc.UpdateProfile(s.ctx, actor, acc.ID, ProfileUpdate{BloodGroup: &aPos, Phone: &phone})
	s.Require().NoError(err)
	s.Equal(bloodgroup.APos, p.BloodGroup)

	_, _, err = s.svc.UpdateProfile(s.ctx, actor, acc.ID, ProfileUpdate{BloodGroup: &aPos})
	s.NoError(err, "repeating the stored group is accepted")

	_, _, err = s.svc.UpdateProfile(s.ctx, actor, acc.ID, ProfileUpdate{BloodGroup: &oNeg})
	s.ErrorIs(err, ErrBloodGroupLocked)

	got, gotProfile, err := s.svc.Get(s.ctx, actor, acc.ID)
	s.Require().NoError(err)
	s.Equal(phone, got.Phone)
	s.Equal(bloodgroup.APos, gotProfile.BloodGroup)
}

func (s *ServiceSuite) TestUpdateProfileOfOtherAccountForbidden() {
	a := s.register("donor6", authz.RoleDonor)
	b := s.register("donor7", authz.RoleDonor)

	_, _, err := s.svc.UpdateProfile(s.ctx, a.Actor(), b.ID, ProfileUpdate{})
	s.ErrorIs(err, domainerr.ErrForbidden)
}

func (s *ServiceSuite) TestAdminManagement() {
	admin, created, err := s.svc.EnsureAdmin(s.ctx, "root", "root@example.com", "admin-password")
	s.Require().NoError(err)
	s.True(created)
	s.True(admin.Active)

	again, created, err := s.svc.EnsureAdmin(s.ctx, "root", "root@example.com", "admin-password")
	s.Require().NoError(err)
	s.False(created)
	s.Equal(admin.ID, again.ID)

	donor := s.register("donor8", authz.RoleDonor)
	s.register("patient3", authz.RolePatient)

	members, total, err := s.svc.ListAccounts(s.ctx, admin.Actor(), ListFilter{Role: authz.RoleDonor})
	s.Require().NoError(err)
	s.Equal(1, total)
	s.Equal(donor.ID, members[0].ID)

	inactive := false
	_, total, err = s.svc.ListAccounts(s.ctx, admin.Actor(), ListFilter{Active: &inactive})
	s.Require().NoError(err)
	s.Equal(2, total)

	_, total, err = s.svc.ListAccounts(s.ctx, admin.Actor(), ListFilter{Search: "PATIENT3"})
	s.Require().NoError(err)
	s.Equal(1, total)

	_, _, err = s.svc.ListAccounts(s.ctx, donor.Actor(), ListFilter{})
	s.ErrorIs(err, domainerr.ErrForbidden)

	updated, err := s.svc.SetActive(s.ctx, admin.Actor(), donor.ID, true)
	s.Require().NoError(err)
	s.True(updated.Active)

	_, err = s.svc.SetActive(s.ctx, admin.Actor(), admin.ID, false)
	s.ErrorIs(err, ErrSelfModification)
	s.ErrorIs(s.svc.Delete(s.ctx, admin.Actor(), admin.ID), ErrSelfModification)

	s.Require().NoError(s.svc.Delete(s.ctx, admin.Actor(), donor.ID))
	_, err = s.repo.GetByID(s.ctx, donor.ID)
	s.ErrorIs(err, ErrAccountNotFound)

	counts, err := s.svc.RoleCounts(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, counts[authz.RoleAdmin])
	s.Equal(1, counts[authz.RolePatient])
}

func (s *ServiceSuite) TestEnsureAdminRefusesNonAdminUsername() {
	s.register("alice", authz.RoleDonor)
	_, _, err := s.svc.EnsureAdmin(s.ctx, "alice", "", "admin-password")
	s.ErrorIs(err, ErrNotAdmin)
}

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	acc := &Account{ID: uuid.New(), Username: "u", Role: authz.RolePatient}

	token, err := issuer.Issue(acc)
	require.NoError(t, err)

	actor, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, acc.ID, actor.AccountID)
	assert.Equal(t, authz.RolePatient, actor.Role)

	_, err = NewTokenIssuer("other", time.Hour).Parse(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenExpiry(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Minute)
	issued := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer.now = func() time.Time { return issued }

	token, err := issuer.Issue(&Account{ID: uuid.New(), Role: authz.RoleDonor})
	require.NoError(t, err)

	issuer.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = issuer.Parse(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.ErrorIs(t, err, domainerr.ErrUnauthenticated)
}
