package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ggokuldas06/senior-launcher-sub001/internal/model"
)

// MemoryCodeStore is an in-process CodeStore with the same semantics as the
// Redis store. It backs tests and single-node development runs without a
// Redis instance.
type MemoryCodeStore struct {
	mu    sync.Mutex
	codes map[string]*model.PairingCode
	now   func() time.Time
}

// NewMemoryCodeStore returns an empty in-memory code store.
func NewMemoryCodeStore() *MemoryCodeStore {
	return &MemoryCodeStore{codes: make(map[string]*model.PairingCode), now: time.Now}
}

// SetClock overrides the time source, for expiry tests.
func (s *MemoryCodeStore) SetClock(now func() time.Time) { s.now = now }

// Generate creates a code that does not collide with any live code.
func (s *MemoryCodeStore) Generate(_ context.Context, elderID string, ttl time.Duration) (model.PairingCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		code, err := randomCode()
		if err != nil {
			return model.PairingCode{}, err
		}
		if cur, ok := s.codes[code]; ok && !cur.Consumed && now.Before(cur.ExpiresAt) {
			continue
		}
		pc := &model.PairingCode{
			Code:      code,
			ElderID:   elderID,
			IssuedAt:  now,
			ExpiresAt: now.Add(ttl),
		}
		s.codes[code] = pc
		return *pc, nil
	}
	return model.PairingCode{}, errors.New("could not allocate a unique pairing code")
}

// Redeem checks and consumes the code under one lock acquisition, matching
// the atomicity of the Lua script.
func (s *MemoryCodeStore) Redeem(_ context.Context, code string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pc, ok := s.codes[code]
	if !ok {
		return "", ErrCodeNotFound
	}
	if pc.Consumed {
		return "", ErrCodeConsumed
	}
	if !s.now().UTC().Before(pc.ExpiresAt) {
		return "", ErrCodeExpired
	}
	pc.Consumed = true
	return pc.ElderID, nil
}
