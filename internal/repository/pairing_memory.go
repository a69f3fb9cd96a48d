package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/ggokuldas06/senior-launcher-sub001/internal/model"
)

// MemoryPairingStore is an in-process PairingStore used by tests and
// development runs without MySQL.
type MemoryPairingStore struct {
	mu       sync.RWMutex
	pairings map[[2]string]model.Pairing // (elderID, guardianID) -> pairing
}

// NewMemoryPairingStore returns an empty in-memory pairing store.
func NewMemoryPairingStore() *MemoryPairingStore {
	return &MemoryPairingStore{pairings: make(map[[2]string]model.Pairing)}
}

// Upsert records or refreshes the pairing.
func (s *MemoryPairingStore) Upsert(_ context.Context, p model.Pairing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pairings[[2]string{p.ElderID, p.GuardianID}] = p
	return nil
}

// Delete removes the pairing; ErrNotFound when absent.
func (s *MemoryPairingStore) Delete(_ context.Context, elderID, guardianID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]string{elderID, guardianID}
	if _, ok := s.pairings[key]; !ok {
		return ErrNotFound
	}
	delete(s.pairings, key)
	return nil
}

// GuardianIDs lists guardians paired with the elder, oldest pairing first.
func (s *MemoryPairingStore) GuardianIDs(_ context.Context, elderID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Pairing
	for _, p := range s.pairings {
		if p.ElderID == elderID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PairedAt.Equal(out[j].PairedAt) {
			return out[i].GuardianID < out[j].GuardianID
		}
		return out[i].PairedAt.Before(out[j].PairedAt)
	})
	ids := make([]string, 0, len(out))
	for _, p := range out {
		ids = append(ids, p.GuardianID)
	}
	return ids, nil
}

// ListByElder lists the elder's pairings, oldest first.
func (s *MemoryPairingStore) ListByElder(_ context.Context, elderID string) ([]model.Pairing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Pairing
	for _, p := range s.pairings {
		if p.ElderID == elderID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PairedAt.Equal(out[j].PairedAt) {
			return out[i].GuardianID < out[j].GuardianID
		}
		return out[i].PairedAt.Before(out[j].PairedAt)
	})
	return out, nil
}

// ListByGuardian lists the guardian's pairings, oldest first.
func (s *MemoryPairingStore) ListByGuardian(_ context.Context, guardianID string) ([]model.Pairing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Pairing
	for _, p := range s.pairings {
		if p.GuardianID == guardianID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PairedAt.Before(out[j].PairedAt) })
	return out, nil
}
