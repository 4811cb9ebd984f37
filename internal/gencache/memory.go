package gencache

import (
	"context"
	"sync"

	"github.com/fpang/design-refine/internal/chain"
)

// MemoryCache is an in-memory Cache for the CLI and for tests.
type MemoryCache struct {
	mu      sync.RWMutex
	records map[string]*Record
}

var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache creates an empty in-memory generation cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{records: make(map[string]*Record)}
}

// Get returns a copy of the record for imageURL, or (nil, nil) if absent.
func (c *MemoryCache) Get(ctx context.Context, imageURL string) (*Record, error) {
	key := chain.CanonicalKey(imageURL)
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.records[key]
	if !ok {
		return nil, nil
	}
	cp := *rec
	if rec.Structured != nil {
		sp := rec.Structured.Clone()
		cp.Structured = &sp
	}
	return &cp, nil
}

// Put stores a copy of the record under its canonical image URL.
func (c *MemoryCache) Put(ctx context.Context, rec *Record) error {
	cp := *rec
	if rec.Structured != nil {
		sp := rec.Structured.Clone()
		cp.Structured = &sp
	}
	key := chain.CanonicalKey(rec.ImageURL)
	c.mu.Lock()
	c.records[key] = &cp
	c.mu.Unlock()
	return nil
}
