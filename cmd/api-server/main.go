package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/blood-bank/internal/account"
	"github.com/hackgods/blood-bank/internal/api"
	"github.com/hackgods/blood-bank/internal/appointment"
	"github.com/hackgods/blood-bank/internal/bloodrequest"
	"github.com/hackgods/blood-bank/internal/clock"
	"github.com/hackgods/blood-bank/internal/config"
	"github.com/hackgods/blood-bank/internal/dashboard"
	"github.com/hackgods/blood-bank/internal/db"
	"github.com/hackgods/blood-bank/internal/dispatch"
	"github.com/hackgods/blood-bank/internal/document"
	"github.com/hackgods/blood-bank/internal/logger"
	"github.com/hackgods/blood-bank/internal/mailer"
	"github.com/hackgods/blood-bank/internal/metrics"
	"github.com/hackgods/blood-bank/internal/notification"
	"github.com/hackgods/blood-bank/internal/otp"
	redisclient "github.com/hackgods/blood-bank/internal/redis"
	"github.com/hackgods/blood-bank/internal/stock"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load error", slog.Any("error", err))
		os.Exit(1)
	}
	log := logger.SetupDefault(os.Stdout, cfg.LogLevel)
	log.Info("api-server starting up",
		slog.String("env", cfg.Env),
		slog.String("http_port", cfg.HTTPPort),
		slog.String("version", version),
	)

	if err := run(cfg, log); err != nil {
		log.Error("api-server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MigrateOnStart {
		if err := db.RunMigrations(cfg.PostgresDSN); err != nil {
			return err
		}
		log.Info("migrations applied")
	}

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		return err
	}
	defer pgPool.Close()
	log.Info("connected to Postgres")

	var (
		rdb       *redis.Client
		locker    redisclient.Locker = redisclient.NewLocalLocker()
		throttle  otp.Throttle
		attempts  otp.AttemptLimiter
		redisPing func(ctx context.Context) error
	)
	if cfg.RedisAddr != "" {
		rdb, err = redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			return err
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Warn("error closing redis", slog.Any("error", err))
			}
		}()
		locker = redisclient.NewRedisLocker(rdb, cfg.LockTTL, cfg.LockWait)
		if cfg.OTPResendInterval > 0 {
			throttle = redisclient.NewThrottle(rdb, "otp_resend", cfg.OTPResendInterval)
		}
		attempts = redisclient.NewAttemptCounter(rdb, "otp_attempts", cfg.OTPAttemptWindow)
		redisPing = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		log.Info("connected to Redis")
	} else {
		log.Warn("redis disabled, using in-process stock locks")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	var mail mailer.Mailer = mailer.LogMailer{Logger: log}
	if cfg.SMTPEnabled() {
		mail = mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	} else {
		log.Warn("smtp disabled, mail will only be logged")
	}

	var store document.ObjectStore
	if cfg.MinioEnabled() {
		minioStore, err := document.NewMinioStore(rootCtx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			return err
		}
		store = minioStore
		log.Info("document store ready", slog.String("bucket", cfg.MinioBucket))
	}

	dispatcher := dispatch.New(cfg.DispatchConcurrency, 30*time.Second, log, collector)
	defer dispatcher.Wait()

	clk := clock.System()
	tx := db.NewTxRunner(pgPool)
	ledger := stock.NewPgLedger(pgPool)
	renderer := document.NewPDFRenderer("Blood Bank")

	accountRepo := account.NewPgRepository(pgPool)
	tokens := account.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	verifier := otp.NewVerifier(otp.NewPgStore(pgPool), mail, dispatcher, otp.Options{
		TTL:           cfg.OTPTTL,
		Throttle:      throttle,
		Attempts:      attempts,
		MaxAttempts:   cfg.OTPMaxAttempts,
		AttemptWindow: cfg.OTPAttemptWindow,
		Clock:         clk,
		Metrics:       collector,
	})
	accounts := account.NewService(accountRepo, tx, verifier, account.PasswordHasher{}, tokens)
	notes := notification.NewService(notification.NewPgRepository(pgPool), accountRepo, clk)

	appts := appointment.NewService(appointment.Deps{
		Repo:     appointment.NewPgRepository(pgPool),
		Tx:       tx,
		Locker:   locker,
		Ledger:   ledger,
		Sink:     notes,
		Donors:   accounts,
		Runner:   dispatcher,
		Mailer:   mail,
		Renderer: renderer,
		Store:    store,
		Clock:    clk,
		Metrics:  collector,
	})
	requests, err := bloodrequest.NewService(bloodrequest.Deps{
		Repo:         bloodrequest.NewPgRepository(pgPool),
		Tx:           tx,
		Locker:       locker,
		Ledger:       ledger,
		Sink:         notes,
		Patients:     accounts,
		Store:        store,
		RejectPolicy: bloodrequest.RejectPolicy(cfg.RejectPolicy),
		Clock:        clk,
		Metrics:      collector,
	})
	if err != nil {
		return err
	}
	stockSvc := stock.NewService(ledger, tx, locker, collector, cfg.LowStockThreshold)

	router := api.NewRouter(api.RouterConfig{
		Accounts:      accounts,
		Tokens:        tokens,
		Appointments:  appts,
		BloodRequests: requests,
		Stock:         stockSvc,
		Notifications: notes,
		Dashboard:     dashboard.NewService(appts, requests, stockSvc, accounts, renderer, clk),
		Health:        api.NewHealthHandler(pgPool, redisPing, cfg.Env, version),
		Metrics:       metrics.Handler(registry),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-rootCtx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	log.Info("shutting down api-server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
