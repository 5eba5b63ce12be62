package memory

import (
	"context"
	"sync"
	"time"
)

// TokenStore is an in-memory implementation of app.TokenStore.
type TokenStore struct {
	mu      sync.Mutex
	clock   func() time.Time
	revoked map[string]time.Time
}

func NewTokenStore() *TokenStore {
	return &TokenStore{
		clock:   time.Now,
		revoked: make(map[string]time.Time),
	}
}

func (s *TokenStore) Revoke(_ context.Context, tokenID string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
	s.revoked[tokenID] = expiresAt
	return nil
}

func (s *TokenStore) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiresAt, ok := s.revoked[tokenID]
	if !ok {
		return false, nil
	}
	if !expiresAt.After(s.clock()) {
		delete(s.revoked, tokenID)
		return false, nil
	}
	return true, nil
}

// pruneLocked drops entries whose tokens would be rejected as expired anyway.
func (s *TokenStore) pruneLocked() {
	now := s.clock()
	for id, exp := range s.revoked {
		if !exp.After(now) {
			delete(s.revoked, id)
		}
	}
}
