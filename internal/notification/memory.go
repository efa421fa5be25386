package notification

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepository keeps notifications in process. Lifecycle tests use it as
// their sink's backing store.
type MemoryRepository struct {
	mu    sync.Mutex
	items []Notification
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Insert(_ context.Context, n *Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, *n)
	return nil
}

func (r *MemoryRepository) ListByAccount(_ context.Context, accountID uuid.UUID, f Filter) ([]Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Notification
	for _, n := range r.items {
		if n.AccountID == accountID && matches(n, f) {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryRepository) MarkRead(_ context.Context, accountID uuid.UUID, f Filter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for i := range r.items {
		it := &r.items[i]
		if it.AccountID == accountID && !it.Read && (f.Category == "" || it.Category == f.Category) {
			it.Read = true
			n++
		}
	}
	return n, nil
}

// All returns a copy of every stored notification in insertion order.
func (r *MemoryRepository) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

func matches(n Notification, f Filter) bool {
	if f.Category != "" && n.Category != f.Category {
		return false
	}
	if f.UnreadOnly && n.Read {
		return false
	}
	return true
}

// StaticAdmins is an AdminDirectory over a fixed list.
type StaticAdmins []uuid.UUID

func (s StaticAdmins) ListAdminIDs(context.Context) ([]uuid.UUID, error) {
	return append([]uuid.UUID(nil), s...), nil
}
