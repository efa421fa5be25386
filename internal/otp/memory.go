package otp

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu    sync.Mutex
	codes []Code
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Insert(_ context.Context, c *Code) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes = append(s.codes, *c)
	return nil
}

func (s *MemoryStore) Consume(_ context.Context, accountID uuid.UUID, code string, issuedAfter time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.codes) - 1; i >= 0; i-- {
		c := &s.codes[i]
		if c.AccountID == accountID && c.Code == code && !c.Consumed && !c.CreatedAt.Before(issuedAfter) {
			c.Consumed = true
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) Revoke(_ context.Context, accountID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.codes {
		if s.codes[i].AccountID == accountID {
			s.codes[i].Consumed = true
		}
	}
	return nil
}

// Issued returns every code issued to accountID, oldest first.
func (s *MemoryStore) Issued(accountID uuid.UUID) []Code {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Code
	for _, c := range s.codes {
		if c.AccountID == accountID {
			out = append(out, c)
		}
	}
	return out
}
