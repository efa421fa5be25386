package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process Repository.
type MemoryRepository struct {
	mu      sync.Mutex
	centers map[uuid.UUID]Center
	appts   map[uuid.UUID]Appointment
	names   map[uuid.UUID]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		centers: make(map[uuid.UUID]Center),
		appts:   make(map[uuid.UUID]Appointment),
		names:   make(map[uuid.UUID]string),
	}
}

// SetDonorName records the display name joined into details.
func (r *MemoryRepository) SetDonorName(id uuid.UUID, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names[id] = name
}

func (r *MemoryRepository) GetCenter(_ context.Context, id uuid.UUID) (*Center, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.centers[id]
	if !ok {
		return nil, ErrCenterNotFound
	}
	return &c, nil
}

func (r *MemoryRepository) ListCenters(context.Context) ([]Center, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Center, 0, len(r.centers))
	for _, c := range r.centers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepository) CreateCenter(_ context.Context, c *Center) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.CreatedAt = time.Now()
	r.centers[c.ID] = *c
	return nil
}

func (r *MemoryRepository) HasActive(_ context.Context, donorID, centerID uuid.UUID, date time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasActiveLocked(donorID, centerID, date), nil
}

func (r *MemoryRepository) hasActiveLocked(donorID, centerID uuid.UUID, date time.Time) bool {
	for _, a := range r.appts {
		if a.DonorID == donorID && a.CenterID == centerID && a.Date.Equal(date) && a.Status.Active() {
			return true
		}
	}
	return false
}

// Create enforces the active-appointment uniqueness the database index does.
func (r *MemoryRepository) Create(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hasActiveLocked(a.DonorID, a.CenterID, a.Date) {
		return ErrDuplicateAppointment
	}
	now := time.Now()
	a.CreatedAt, a.UpdatedAt = now, now
	r.appts[a.ID] = *a
	return nil
}

func (r *MemoryRepository) detailLocked(a Appointment) Detail {
	c := r.centers[a.CenterID]
	return Detail{
		Appointment:   a,
		DonorName:     r.names[a.DonorID],
		CenterName:    c.Name,
		CenterAddress: c.Address,
	}
}

func (r *MemoryRepository) Get(_ context.Context, id uuid.UUID) (*Detail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	d := r.detailLocked(a)
	return &d, nil
}

func (r *MemoryRepository) UpdateStatus(_ context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok || a.Status != from {
		return nil, ErrInvalidState
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	r.appts[id] = a
	return &a, nil
}

func (r *MemoryRepository) ConfirmedDates(_ context.Context, donorID uuid.UUID) ([]time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []time.Time
	for _, a := range r.appts {
		if a.DonorID == donorID && a.Status == StatusConfirmed {
			out = append(out, a.Date)
		}
	}
	return out, nil
}

func (r *MemoryRepository) selectLocked(keep func(Appointment) bool) []Detail {
	var out []Detail
	for _, a := range r.appts {
		if keep(a) {
			out = append(out, r.detailLocked(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Date.After(out[j].Date)
	})
	return out
}

func paginate(list []Detail, page, size int) []Detail {
	limit, offset := pageBounds(page, size)
	if offset >= len(list) {
		return nil
	}
	end := offset + limit
	if end > len(list) {
		end = len(list)
	}
	return list[offset:end]
}

func (r *MemoryRepository) ListByDonor(_ context.Context, donorID uuid.UUID, page, size int) ([]Detail, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.selectLocked(func(a Appointment) bool { return a.DonorID == donorID })
	return paginate(all, page, size), len(all), nil
}

func (r *MemoryRepository) NextActive(_ context.Context, donorID uuid.UUID, from time.Time) (*Detail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.selectLocked(func(a Appointment) bool {
		return a.DonorID == donorID && a.Status.Active() && !a.Date.Before(from)
	})
	if len(all) == 0 {
		return nil, nil
	}
	next := all[len(all)-1]
	return &next, nil
}

func (r *MemoryRepository) ListForAdmin(_ context.Context, f AdminFilter) ([]Detail, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := f.Status
	if want == "" {
		want = StatusPending
	}
	all := r.selectLocked(func(a Appointment) bool {
		if f.History {
			return a.Status != StatusPending
		}
		return a.Status == want
	})
	return paginate(all, f.Page, f.Size), len(all), nil
}

func (r *MemoryRepository) Recent(_ context.Context, limit int) ([]Detail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.selectLocked(func(Appointment) bool { return true })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *MemoryRepository) CountByStatus(context.Context) (map[Status]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[Status]int)
	for _, a := range r.appts {
		counts[a.Status]++
	}
	return counts, nil
}
