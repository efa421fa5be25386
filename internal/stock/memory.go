package stock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hackgods/blood-bank/internal/bloodgroup"
)

// MemoryLedger is an in-process Ledger. Lock does not block; callers
// serialise through a Locker as they do in production.
type MemoryLedger struct {
	mu      sync.Mutex
	entries map[bloodgroup.Group]Entry
	now     func() time.Time
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{entries: make(map[bloodgroup.Group]Entry), now: time.Now}
}

// Set overwrites a group's units. Tests use it to arrange stock.
func (l *MemoryLedger) Set(group bloodgroup.Group, units int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[group] = Entry{BloodGroup: group, Units: units, LastUpdated: l.now()}
}

func (l *MemoryLedger) Get(_ context.Context, group bloodgroup.Group) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entries[group].Units, nil
}

func (l *MemoryLedger) Credit(_ context.Context, group bloodgroup.Group, delta int) (Entry, error) {
	if delta < 1 {
		return Entry{}, ErrInvalidUnits
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entries[group]
	e.BloodGroup = group
	e.Units += delta
	e.LastUpdated = l.now()
	l.entries[group] = e
	return e, nil
}

func (l *MemoryLedger) Debit(_ context.Context, group bloodgroup.Group, amount int) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[group]
	if !ok || e.Units-amount < 0 {
		return Entry{}, ErrNegativeStock
	}
	e.Units -= amount
	e.LastUpdated = l.now()
	l.entries[group] = e
	return e, nil
}

func (l *MemoryLedger) Lock(_ context.Context, group bloodgroup.Group) (Entry, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[group]
	return e, ok, nil
}

func (l *MemoryLedger) List(context.Context) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BloodGroup < out[j].BloodGroup })
	return out, nil
}
