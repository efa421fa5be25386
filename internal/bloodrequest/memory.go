package bloodrequest

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process Repository.
type MemoryRepository struct {
	mu    sync.Mutex
	items map[uuid.UUID]Request
	names map[uuid.UUID]string
	last  time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		items: make(map[uuid.UUID]Request),
		names: make(map[uuid.UUID]string),
	}
}

func (m *MemoryRepository) SetPatientName(id uuid.UUID, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names[id] = name
}

func (m *MemoryRepository) Create(_ context.Context, r *Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	if !now.After(m.last) {
		now = m.last.Add(time.Microsecond)
	}
	m.last = now
	r.CreatedAt, r.UpdatedAt = now, now
	m.items[r.ID] = *r
	return nil
}

func (m *MemoryRepository) Get(_ context.Context, id uuid.UUID) (*Detail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.items[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	return &Detail{Request: r, PatientName: m.names[r.PatientID]}, nil
}

func (m *MemoryRepository) UpdateStatus(_ context.Context, id uuid.UUID, from []Status, to Status) (*Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.items[id]
	if !ok || (len(from) > 0 && !slices.Contains(from, r.Status)) {
		return nil, ErrInvalidState
	}
	r.Status = to
	r.UpdatedAt = time.Now()
	m.items[id] = r
	return &r, nil
}

func (m *MemoryRepository) selectLocked(keep func(Request) bool) []Detail {
	var out []Detail
	for _, r := range m.items {
		if keep(r) {
			out = append(out, Detail{Request: r, PatientName: m.names[r.PatientID]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *MemoryRepository) ListByPatient(_ context.Context, patientID uuid.UUID, status Status) ([]Detail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selectLocked(func(r Request) bool {
		return r.PatientID == patientID && (status == "" || r.Status == status)
	}), nil
}

func (m *MemoryRepository) ListForAdmin(_ context.Context, f AdminFilter) ([]Detail, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := f.Status
	if want == "" {
		want = StatusPending
	}
	all := m.selectLocked(func(r Request) bool {
		if f.History {
			return r.Status != StatusPending
		}
		return r.Status == want
	})
	limit, offset := pageBounds(f.Page, f.Size)
	if offset >= len(all) {
		return nil, len(all), nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], len(all), nil
}

func (m *MemoryRepository) Recent(_ context.Context, limit int) ([]Detail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.selectLocked(func(Request) bool { return true })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *MemoryRepository) CountByStatus(context.Context) (map[Status]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[Status]int)
	for _, r := range m.items {
		counts[r.Status]++
	}
	return counts, nil
}
