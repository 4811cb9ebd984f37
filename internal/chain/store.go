package chain

import (
	"context"
	"time"
)

// ChainTTL is the default time-to-live for persisted chain records. Chains
// are never garbage-collected in process; the DynamoDB TTL attribute lets
// the table self-clean instead.
const ChainTTL = 24 * time.Hour

// HistoryEntry is one append-only history record on a chain.
type HistoryEntry struct {
	Instruction  string          `json:"instruction"`
	BackgroundOp bool            `json:"backgroundOp"`
	PriorState   BackgroundState `json:"priorState"`
	At           time.Time       `json:"at"`
}

// Chain is the refinement chain for one logical image lineage.
type Chain struct {
	// ID is a stable random identifier, kept across key migrations.
	ID string `json:"chainId" dynamodbav:"chainId"`

	// Key is the canonical image identity this chain is stored under.
	Key string `json:"key" dynamodbav:"-"`

	Background BackgroundState `json:"background" dynamodbav:"background"`

	// History is append-only; it is serialized as a compressed blob in the
	// DynamoDB implementation.
	History []HistoryEntry `json:"history" dynamodbav:"-"`

	CreatedAt time.Time `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" dynamodbav:"updatedAt"`
}

// Store is the persistence interface for refinement chains. Each method is
// safe for concurrent use. Get returns (nil, nil) when no chain exists for
// the key; Put performs full-record replacement.
//
// Keys lists every stored canonical key so the manager can run its
// query-stripped and path-id matching tiers; MostRecentExplicit serves the
// inheritance fallback.
type Store interface {
	Get(ctx context.Context, key string) (*Chain, error)
	Put(ctx context.Context, c *Chain) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	MostRecentExplicit(ctx context.Context) (*Chain, error)
}
