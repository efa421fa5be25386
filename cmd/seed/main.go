package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/hackgods/blood-bank/internal/account"
	"github.com/hackgods/blood-bank/internal/appointment"
	"github.com/hackgods/blood-bank/internal/authz"
	"github.com/hackgods/blood-bank/internal/bloodgroup"
	"github.com/hackgods/blood-bank/internal/config"
	"github.com/hackgods/blood-bank/internal/db"
	"github.com/hackgods/blood-bank/internal/logger"
	"github.com/hackgods/blood-bank/internal/stock"
)

// seedPassword is shared by every generated account.
const seedPassword = "password123"

func main() {
	donors := flag.Int("donors", 50, "donor accounts to create")
	patients := flag.Int("patients", 20, "patient accounts to create")
	centers := flag.Int("centers", 5, "donation centers to create")
	units := flag.Int("max-units", 15, "upper bound of seeded units per blood group")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load error", slog.Any("error", err))
		os.Exit(1)
	}
	log := logger.SetupDefault(os.Stdout, cfg.LogLevel)
	log.Info("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := db.RunMigrations(cfg.PostgresDSN); err != nil {
		log.Error("migrations failed", slog.Any("error", err))
		os.Exit(1)
	}
	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	gofakeit.Seed(0)

	s := seeder{
		accounts: account.NewPgRepository(pool),
		centers:  appointment.NewPgRepository(pool),
		ledger:   stock.NewPgLedger(pool),
		tx:       db.NewTxRunner(pool),
		hasher:   account.PasswordHasher{},
		log:      log,
	}
	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"centers", func(ctx context.Context) error { return s.seedCenters(ctx, *centers) }},
		{"donors", func(ctx context.Context) error { return s.seedAccounts(ctx, authz.RoleDonor, *donors) }},
		{"patients", func(ctx context.Context) error { return s.seedAccounts(ctx, authz.RolePatient, *patients) }},
		{"stock", func(ctx context.Context) error { return s.seedStock(ctx, *units) }},
	}
	for _, step := range steps {
		if err := step.run(ctx); err != nil {
			log.Error("seed failed", slog.String("step", step.name), slog.Any("error", err))
			os.Exit(1)
		}
	}

	log.Info("seed complete")
}

type seeder struct {
	accounts account.Repository
	centers  appointment.Repository
	ledger   stock.Ledger
	tx       db.TxRunner
	hasher   account.PasswordHasher
	log      *slog.Logger
}

func (s seeder) seedCenters(ctx context.Context, count int) error {
	for i := 0; i < count; i++ {
		c := &appointment.Center{
			ID:      uuid.New(),
			Name:    gofakeit.City() + " Blood Center",
			Address: gofakeit.Street() + ", " + gofakeit.City(),
		}
		if err := s.centers.CreateCenter(ctx, c); err != nil {
			return err
		}
	}
	s.log.Info("centers seeded", slog.Int("count", count))
	return nil
}

// seedAccounts creates active, verified accounts. Donors get a blood group.
func (s seeder) seedAccounts(ctx context.Context, role authz.Role, count int) error {
	hash, err := s.hasher.Hash(seedPassword)
	if err != nil {
		return err
	}
	groups := bloodgroup.All()

	const batchSize = 100
	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)
		err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
			for i := offset; i < end; i++ {
				first, last := gofakeit.FirstName(), gofakeit.LastName()
				dob := gofakeit.DateRange(time.Now().AddDate(-60, 0, 0), time.Now().AddDate(-18, 0, 0))
				acc := &account.Account{
					ID:            uuid.New(),
					Username:      fmt.Sprintf("%s_%s_%d", strings.ToLower(string(role)), strings.ToLower(first), i),
					Email:         strings.ToLower(fmt.Sprintf("%s.%s.%d@example.com", first, last, i)),
					PasswordHash:  hash,
					FirstName:     first,
					LastName:      last,
					Phone:         gofakeit.Phone(),
					DateOfBirth:   &dob,
					Address:       gofakeit.Street() + ", " + gofakeit.City(),
					Role:          role,
					Active:        true,
					EmailVerified: true,
				}
				profile := &account.Profile{EmergencyContact: gofakeit.Phone()}
				if role == authz.RoleDonor {
					profile.BloodGroup = groups[gofakeit.Number(0, len(groups)-1)]
				}
				if err := s.accounts.Create(ctx, acc, profile); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		s.log.Info("accounts seeded",
			slog.String("role", string(role)),
			slog.Int("done", end),
			slog.Int("total", count),
		)
	}
	return nil
}

func (s seeder) seedStock(ctx context.Context, maxUnits int) error {
	for _, g := range bloodgroup.All() {
		n := gofakeit.Number(1, max(maxUnits, 1))
		if _, err := s.ledger.Credit(ctx, g, n); err != nil {
			return err
		}
	}
	s.log.Info("stock seeded")
	return nil
}
