package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/hackgods/blood-bank/internal/account"
	"github.com/hackgods/blood-bank/internal/config"
	"github.com/hackgods/blood-bank/internal/db"
	"github.com/hackgods/blood-bank/internal/logger"
)

// createadmin provisions the back-office account. Running it twice is a no-op.
func main() {
	username := flag.String("username", "admin", "admin username")
	email := flag.String("email", "admin@bloodbank.com", "admin email")
	password := flag.String("password", os.Getenv("ADMIN_PASSWORD"), "admin password (defaults to $ADMIN_PASSWORD)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load error", slog.Any("error", err))
		os.Exit(1)
	}
	log := logger.SetupDefault(os.Stdout, cfg.LogLevel)

	if *password == "" {
		log.Error("admin password is required")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
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

	// Admin creation never issues codes.
	svc := account.NewService(account.NewPgRepository(pool), db.NewTxRunner(pool), nil, account.PasswordHasher{}, nil)
	acc, created, err := svc.EnsureAdmin(ctx, *username, *email, *password)
	if err != nil {
		log.Error("create admin failed", slog.Any("error", err))
		os.Exit(1)
	}
	if created {
		log.Info("admin created", slog.String("username", acc.Username), slog.String("account_id", acc.ID.String()))
		return
	}
	log.Info("admin already exists", slog.String("username", acc.Username))
}
