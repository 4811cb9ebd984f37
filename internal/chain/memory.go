package chain

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store for the CLI and for tests. Chains live
// for the process lifetime; Delete is the only removal path.
type MemoryStore struct {
	mu     sync.RWMutex
	chains map[string]*Chain
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory chain store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chains: make(map[string]*Chain)}
}

// Get returns a copy of the chain for key, or (nil, nil) if absent.
func (s *MemoryStore) Get(ctx context.Context, key string) (*Chain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chains[key]
	if !ok {
		return nil, nil
	}
	cp := *c
	cp.History = append([]HistoryEntry(nil), c.History...)
	return &cp, nil
}

// Put stores a copy of the chain under its key.
func (s *MemoryStore) Put(ctx context.Context, c *Chain) error {
	cp := *c
	cp.History = append([]HistoryEntry(nil), c.History...)
	s.mu.Lock()
	s.chains[c.Key] = &cp
	s.mu.Unlock()
	return nil
}

// Delete removes the chain for key. Deleting an absent key is a no-op.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.chains, key)
	s.mu.Unlock()
	return nil
}

// Keys lists every stored canonical key.
func (s *MemoryStore) Keys(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.chains))
	for k := range s.chains {
		keys = append(keys, k)
	}
	return keys, nil
}

// MostRecentExplicit returns the most recently updated chain whose background
// is explicitly set, or (nil, nil) if none qualifies.
func (s *MemoryStore) MostRecentExplicit(ctx context.Context) (*Chain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *Chain
	for _, c := range s.chains {
		if c.Background.Kind != StateExplicit {
			continue
		}
		if best == nil || c.UpdatedAt.After(best.UpdatedAt) {
			best = c
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	cp.History = append([]HistoryEntry(nil), best.History...)
	return &cp, nil
}
