// Package otp issues and verifies the six-digit one-time codes used for
// registration and password reset.
package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/blood-bank/internal/clock"
	"github.com/hackgods/blood-bank/internal/dispatch"
	"github.com/hackgods/blood-bank/internal/domainerr"
	"github.com/hackgods/blood-bank/internal/mailer"
	"github.com/hackgods/blood-bank/internal/metrics"
)

const (
	codeLength = 6

	defaultMaxAttempts   = 5
	defaultAttemptWindow = 15 * time.Minute
)

var (
	ErrInvalidCode   = fmt.Errorf("%w: code does not match", domainerr.ErrInvalidCode)
	ErrResendTooSoon = fmt.Errorf("%w: a code was sent recently, please wait", domainerr.ErrValidation)
	// ErrTooManyAttempts is returned once an account exhausts its failed
	// verifications; its outstanding codes are revoked at that point.
	ErrTooManyAttempts = fmt.Errorf("%w: too many failed attempts, request a new code later", domainerr.ErrValidation)
)

// Throttle limits how often a key may trigger an event.
type Throttle interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type Options struct {
	// TTL bounds how long a code stays valid. Zero means codes never expire.
	TTL      time.Duration
	Throttle Throttle
	// Attempts counts failed verifications. Nil uses an in-process counter
	// with AttemptWindow.
	Attempts      AttemptLimiter
	MaxAttempts   int
	AttemptWindow time.Duration
	Clock         clock.Clock
	Metrics       metrics.Recorder
}

type Verifier struct {
	store    Store
	mail     mailer.Mailer
	runner   dispatch.Runner
	ttl      time.Duration
	throttle Throttle
	attempts AttemptLimiter
	maxTries int
	clock    clock.Clock
	metrics  metrics.Recorder
}

func NewVerifier(store Store, mail mailer.Mailer, runner dispatch.Runner, opts Options) *Verifier {
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.Attempts == nil {
		window := opts.AttemptWindow
		if window <= 0 {
			window = defaultAttemptWindow
		}
		opts.Attempts = NewLocalAttempts(window, opts.Clock)
	}
	return &Verifier{
		store:    store,
		mail:     mail,
		runner:   runner,
		ttl:      opts.TTL,
		throttle: opts.Throttle,
		attempts: opts.Attempts,
		maxTries: opts.MaxAttempts,
		clock:    opts.Clock,
		metrics:  opts.Metrics,
	}
}

// Issue stores a fresh code for the recipient and hands it to the mailer.
// Older codes stay valid. Delivery failures are logged, not returned.
func (v *Verifier) Issue(ctx context.Context, to Recipient, purpose Purpose) (string, error) {
	code, err := generateNumericCode(codeLength)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}

	rec := &Code{
		ID:        uuid.New(),
		AccountID: to.AccountID,
		Code:      code,
		CreatedAt: v.clock.Now(),
	}
	if err := v.store.Insert(ctx, rec); err != nil {
		return "", err
	}

	if to.Email != "" {
		msg := message(to, purpose, code)
		v.runner.Go(ctx, "otp_mail", func(ctx context.Context) error {
			return v.mail.Send(ctx, msg)
		})
	} else {
		slog.WarnContext(ctx, "one-time code issued without email",
			slog.String("account_id", to.AccountID.String()))
	}
	return code, nil
}

// Reissue is Issue behind the resend throttle.
func (v *Verifier) Reissue(ctx context.Context, to Recipient, purpose Purpose) (string, error) {
	if v.throttle != nil {
		ok, err := v.throttle.Allow(ctx, string(purpose)+":"+to.AccountID.String())
		if err != nil {
			return "", err
		}
		if !ok {
			return "", ErrResendTooSoon
		}
	}
	return v.Issue(ctx, to, purpose)
}

// Verify consumes one matching unconsumed code. A code verifies at most once.
// After MaxAttempts failures every outstanding code of the account is revoked
// and further attempts fail with ErrTooManyAttempts until the window passes.
func (v *Verifier) Verify(ctx context.Context, accountID uuid.UUID, code string) error {
	key := accountID.String()
	failures, err := v.attempts.Failures(ctx, key)
	if err != nil {
		return err
	}
	if failures >= v.maxTries {
		v.metrics.RecordOTPVerification(false)
		return ErrTooManyAttempts
	}

	code = strings.TrimSpace(code)
	ok := false
	if len(code) == codeLength {
		var issuedAfter time.Time
		if v.ttl > 0 {
			issuedAfter = v.clock.Now().Add(-v.ttl)
		}
		ok, err = v.store.Consume(ctx, accountID, code, issuedAfter)
		if err != nil {
			return err
		}
	}
	v.metrics.RecordOTPVerification(ok)

	if ok {
		if err := v.attempts.Reset(ctx, key); err != nil {
			slog.WarnContext(ctx, "reset verification attempts",
				slog.String("account_id", key), slog.String("error", err.Error()))
		}
		return nil
	}

	n, err := v.attempts.Fail(ctx, key)
	if err != nil {
		return err
	}
	if n >= v.maxTries {
		if err := v.store.Revoke(ctx, accountID); err != nil {
			return err
		}
		slog.WarnContext(ctx, "one-time codes revoked after repeated failures",
			slog.String("account_id", key), slog.Int("attempts", n))
		return ErrTooManyAttempts
	}
	return ErrInvalidCode
}

func message(to Recipient, purpose Purpose, code string) mailer.Message {
	switch purpose {
	case PurposePasswordReset:
		return mailer.Message{
			To:      to.Email,
			Subject: "Your Blood Bank password reset code",
			Body:    fmt.Sprintf("Hello %s,\n\nYour password reset code is: %s\n", to.Name, code),
		}
	default:
		return mailer.Message{
			To:      to.Email,
			Subject: "Your Blood Bank registration code",
			Body:    fmt.Sprintf("Hello %s,\n\nYour registration code is: %s\n", to.Name, code),
		}
	}
}

func generateNumericCode(length int) (string, error) {
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
