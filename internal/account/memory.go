package account

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/blood-bank/internal/authz"
)

// MemoryRepository is an in-process Repository.
type MemoryRepository struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]Account
	profiles map[uuid.UUID]Profile
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		accounts: make(map[uuid.UUID]Account),
		profiles: make(map[uuid.UUID]Profile),
	}
}

func (r *MemoryRepository) Create(_ context.Context, a *Account, p *Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.accounts {
		if existing.Username == a.Username {
			return ErrDuplicateUsername
		}
	}
	now := time.Now()
	a.CreatedAt, a.UpdatedAt = now, now
	r.accounts[a.ID] = *a
	p.AccountID = a.ID
	r.profiles[a.ID] = *p
	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) GetByUsername(_ context.Context, username string) (*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.Username == username {
			return &a, nil
		}
	}
	return nil, ErrAccountNotFound
}

func (r *MemoryRepository) GetProfile(_ context.Context, accountID uuid.UUID) (*Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[accountID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) Update(_ context.Context, a *Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[a.ID]; !ok {
		return ErrAccountNotFound
	}
	a.UpdatedAt = time.Now()
	r.accounts[a.ID] = *a
	return nil
}

func (r *MemoryRepository) UpdateProfile(_ context.Context, p *Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.profiles[p.AccountID]
	if !ok {
		return ErrAccountNotFound
	}
	if existing.BloodGroup != "" {
		p.BloodGroup = existing.BloodGroup
	}
	r.profiles[p.AccountID] = *p
	return nil
}

func (r *MemoryRepository) List(_ context.Context, f ListFilter) ([]Member, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var all []Member
	search := strings.ToLower(strings.TrimSpace(f.Search))
	for id, a := range r.accounts {
		p := r.profiles[id]
		switch {
		case f.Role != "" && a.Role != f.Role:
			continue
		case f.BloodGroup != "" && p.BloodGroup != f.BloodGroup:
			continue
		case f.Active != nil && a.Active != *f.Active:
			continue
		case search != "" && !containsAny(search, a.FirstName, a.LastName, a.Email, a.Phone):
			continue
		}
		all = append(all, Member{Account: a, BloodGroup: p.BloodGroup})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	limit, offset := pageBounds(f.Page, f.Size)
	if offset >= len(all) {
		return nil, len(all), nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func containsAny(needle string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[id]; !ok {
		return ErrAccountNotFound
	}
	delete(r.accounts, id)
	delete(r.profiles, id)
	return nil
}

func (r *MemoryRepository) ListAdminIDs(context.Context) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []uuid.UUID
	for id, a := range r.accounts {
		if a.Role == authz.RoleAdmin {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *MemoryRepository) CountByRole(context.Context) (map[authz.Role]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[authz.Role]int)
	for _, a := range r.accounts {
		counts[a.Role]++
	}
	return counts, nil
}
