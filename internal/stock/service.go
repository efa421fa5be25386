package stock

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hackgods/blood-bank/internal/authz"
	"github.com/hackgods/blood-bank/internal/bloodgroup"
	"github.com/hackgods/blood-bank/internal/db"
	"github.com/hackgods/blood-bank/internal/metrics"
	redisclient "github.com/hackgods/blood-bank/internal/redis"
)

type Service struct {
	ledger       Ledger
	tx           db.TxRunner
	locker       redisclient.Locker
	metrics      metrics.Recorder
	lowThreshold int
}

func NewService(ledger Ledger, tx db.TxRunner, locker redisclient.Locker, rec metrics.Recorder, lowThreshold int) *Service {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Service{
		ledger:       ledger,
		tx:           tx,
		locker:       locker,
		metrics:      rec,
		lowThreshold: lowThreshold,
	}
}

// AddUnits is the back-office manual credit.
func (s *Service) AddUnits(ctx context.Context, actor authz.Actor, group bloodgroup.Group, units int) (Entry, error) {
	if err := authz.Require(actor, authz.ManageStock); err != nil {
		return Entry{}, err
	}
	if !group.Valid() {
		return Entry{}, bloodgroup.ErrInvalidGroup
	}
	if units < 1 {
		return Entry{}, ErrInvalidUnits
	}

	var entry Entry
	err := WithGroupLock(ctx, s.locker, s.tx, group, func(ctx context.Context) error {
		e, err := s.ledger.Credit(ctx, group, units)
		if err != nil {
			return err
		}
		entry = e
		return nil
	})
	if err != nil {
		return Entry{}, fmt.Errorf("add units: %w", err)
	}

	s.metrics.RecordStockUnits(string(group), entry.Units)
	slog.InfoContext(ctx, "stock credited",
		slog.String("blood_group", string(group)),
		slog.Int("added", units),
		slog.Int("units", entry.Units),
	)
	return entry, nil
}

// Snapshot lists every blood group, zero-filled, flagging groups below the
// low-stock threshold.
func (s *Service) Snapshot(ctx context.Context) ([]Level, error) {
	entries, err := s.ledger.List(ctx)
	if err != nil {
		return nil, err
	}
	byGroup := make(map[bloodgroup.Group]Entry, len(entries))
	for _, e := range entries {
		byGroup[e.BloodGroup] = e
	}

	levels := make([]Level, 0, len(bloodgroup.All()))
	for _, g := range bloodgroup.All() {
		lvl := Level{BloodGroup: g}
		if e, ok := byGroup[g]; ok {
			lvl.Units = e.Units
			updated := e.LastUpdated
			lvl.LastUpdated = &updated
		}
		lvl.Low = lvl.Units < s.lowThreshold
		levels = append(levels, lvl)
	}
	return levels, nil
}

// LowStock returns the snapshot rows flagged low.
func (s *Service) LowStock(ctx context.Context) ([]Level, error) {
	levels, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	var low []Level
	for _, l := range levels {
		if l.Low {
			low = append(low, l)
		}
	}
	return low, nil
}
