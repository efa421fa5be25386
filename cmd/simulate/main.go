package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/blood-bank/internal/bloodgroup"
	"github.com/hackgods/blood-bank/internal/config"
	"github.com/hackgods/blood-bank/internal/db"
	"github.com/hackgods/blood-bank/internal/logger"
)

// simulate hammers the approval path: workers submit blood requests as seeded
// patients and approve them as admin, all concurrently. At the end the units
// debited by approvals must equal the drop in stock.

type SimConfig struct {
	APIBaseURL    string
	Duration      time.Duration
	Workers       int
	MaxQuantity   int
	PatientLimit  int
	AdminUser     string
	AdminPassword string
	PatientPass   string
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case status >= 200 && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95 time.Duration) {
	om.mu.Lock()
	latencies := append([]time.Duration(nil), om.Latencies...)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	return sum / time.Duration(len(latencies)),
		latencies[len(latencies)*50/100],
		latencies[min(len(latencies)*95/100, len(latencies)-1)]
}

type Simulator struct {
	config   SimConfig
	client   *http.Client
	log      *slog.Logger
	admin    string
	patients []string

	submit  OperationMetrics
	approve OperationMetrics

	approvedUnits sync.Map // bloodgroup.Group -> *int64
	autoRejected  int64
}

func main() {
	base, err := config.Load()
	if err != nil {
		slog.Error("config load error", slog.Any("error", err))
		os.Exit(1)
	}
	log := logger.SetupDefault(os.Stdout, base.LogLevel)

	cfg := SimConfig{
		APIBaseURL:    getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:      getDuration("SIM_DURATION", 30*time.Second),
		Workers:       getInt("SIM_WORKERS", 10),
		MaxQuantity:   getInt("SIM_MAX_QUANTITY", 3),
		PatientLimit:  getInt("SIM_PATIENT_LIMIT", 20),
		AdminUser:     getEnv("SIM_ADMIN_USERNAME", "admin"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		PatientPass:   getEnv("SIM_PATIENT_PASSWORD", "password123"),
	}
	if cfg.Workers <= 0 || cfg.MaxQuantity <= 0 || cfg.AdminPassword == "" {
		log.Error("invalid simulator config: workers and max quantity must be positive, ADMIN_PASSWORD is required")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	pool, err := db.ConnectPostgres(ctx, base.PostgresDSN)
	if err != nil {
		cancel()
		log.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	usernames, err := loadPatients(ctx, pool, cfg.PatientLimit)
	cancel()
	pool.Close()
	if err != nil {
		log.Error("load patients", slog.Any("error", err))
		os.Exit(1)
	}

	sim := &Simulator{config: cfg, client: &http.Client{Timeout: 10 * time.Second}, log: log}
	if err := sim.login(usernames); err != nil {
		log.Error("login failed", slog.Any("error", err))
		os.Exit(1)
	}

	before, err := sim.stock()
	if err != nil {
		log.Error("read stock", slog.Any("error", err))
		os.Exit(1)
	}
	sim.run()
	after, err := sim.stock()
	if err != nil {
		log.Error("read stock", slog.Any("error", err))
		os.Exit(1)
	}

	if !sim.report(before, after) {
		os.Exit(1)
	}
}

func loadPatients(ctx context.Context, pool *pgxpool.Pool, limit int) ([]string, error) {
	rows, err := pool.Query(ctx, `
		SELECT username FROM accounts
		WHERE role = 'PATIENT' AND is_active
		ORDER BY created_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.New("no active patients, run cmd/seed first")
	}
	return out, nil
}

func (s *Simulator) login(patients []string) error {
	token, err := s.token(s.config.AdminUser, s.config.AdminPassword)
	if err != nil {
		return fmt.Errorf("admin: %w", err)
	}
	s.admin = token
	for _, u := range patients {
		t, err := s.token(u, s.config.PatientPass)
		if err != nil {
			s.log.Warn("patient login failed", slog.String("username", u), slog.Any("error", err))
			continue
		}
		s.patients = append(s.patients, t)
	}
	if len(s.patients) == 0 {
		return errors.New("no patient could log in")
	}
	return nil
}

func (s *Simulator) token(username, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	status, err := s.call(http.MethodPost, "/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	}, &out)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("login returned %d", status)
	}
	return out.Token, nil
}

func (s *Simulator) run() {
	deadline := time.Now().Add(s.config.Duration)
	groups := bloodgroup.All()

	var wg sync.WaitGroup
	for w := 0; w < s.config.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(deadline) {
				group := groups[rand.IntN(len(groups))]
				s.cycle(group, 1+rand.IntN(s.config.MaxQuantity))
			}
		}()
	}
	wg.Wait()
}

// cycle submits one request and immediately approves it.
func (s *Simulator) cycle(group bloodgroup.Group, qty int) {
	patient := s.patients[rand.IntN(len(s.patients))]

	var created struct {
		ID uuid.UUID `json:"id"`
	}
	start := time.Now()
	status, err := s.call(http.MethodPost, "/blood-requests", patient, map[string]any{
		"blood_group":      group,
		"quantity":         qty,
		"notes":            "simulated request",
		"preferred_center": "simulator",
	}, &created)
	s.submit.Record(time.Since(start), status)
	if err != nil || status != http.StatusCreated {
		return
	}

	var outcome struct {
		Result string `json:"result"`
	}
	start = time.Now()
	status, err = s.call(http.MethodPost, "/blood-requests/"+created.ID.String()+"/approve", s.admin, nil, &outcome)
	s.approve.Record(time.Since(start), status)
	if err != nil || status != http.StatusOK {
		return
	}
	switch outcome.Result {
	case "APPROVED":
		v, _ := s.approvedUnits.LoadOrStore(group, new(int64))
		atomic.AddInt64(v.(*int64), int64(qty))
	case "AUTO_REJECTED":
		atomic.AddInt64(&s.autoRejected, 1)
	}
}

func (s *Simulator) stock() (map[bloodgroup.Group]int, error) {
	var levels []struct {
		BloodGroup bloodgroup.Group `json:"blood_group"`
		Units      int              `json:"units"`
	}
	status, err := s.call(http.MethodGet, "/stock", s.admin, nil, &levels)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("stock returned %d", status)
	}
	out := make(map[bloodgroup.Group]int, len(levels))
	for _, l := range levels {
		out[l.BloodGroup] = l.Units
	}
	return out, nil
}

func (s *Simulator) call(method, path, token string, body, dst any) (int, error) {
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		r = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.config.APIBaseURL+path, r)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if dst != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

// report logs the run and checks the ledger. It returns false on a mismatch.
func (s *Simulator) report(before, after map[bloodgroup.Group]int) bool {
	for name, m := range map[string]*OperationMetrics{"submit": &s.submit, "approve": &s.approve} {
		avg, p50, p95 := m.Stats()
		s.log.Info("operation stats",
			slog.String("operation", name),
			slog.Int64("total", m.Total),
			slog.Int64("success", m.Success),
			slog.Int64("conflict", m.Conflict),
			slog.Int64("error", m.Error),
			slog.Duration("avg", avg),
			slog.Duration("p50", p50),
			slog.Duration("p95", p95),
		)
	}
	s.log.Info("auto rejected", slog.Int64("count", atomic.LoadInt64(&s.autoRejected)))

	ok := true
	for _, g := range bloodgroup.All() {
		var debited int64
		if v, found := s.approvedUnits.Load(g); found {
			debited = atomic.LoadInt64(v.(*int64))
		}
		drop := int64(before[g] - after[g])
		if after[g] < 0 || drop != debited {
			ok = false
			s.log.Error("ledger mismatch",
				slog.String("blood_group", string(g)),
				slog.Int("before", before[g]),
				slog.Int("after", after[g]),
				slog.Int64("approved_units", debited),
			)
		}
	}
	if ok {
		s.log.Info("ledger consistent")
	}
	return ok
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return def
}
