package chain

// manager.go is the background context manager: the owner of all chain reads
// and writes. Lookup is multi-tier because the same logical image appears
// under different URL shapes across a chain; mutation is serialized per key
// so concurrent refinements of the same image queue instead of interleaving
// (last writer wins).

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fpang/design-refine/internal/compile"
)

// Lookup tier names, recorded on results for observability.
const (
	TierExact     = "exact"
	TierNoQuery   = "no_query"
	TierPathID    = "path_id"
	TierInherited = "inherited"
	TierDefault   = "default"
)

// Lookup is the result of resolving an image identity to a chain.
type Lookup struct {
	// Chain is the resolved chain; nil only on the default tier.
	Chain *Chain
	// Tier names which matching tier succeeded.
	Tier string
	// State is always defined, degrading to DefaultState.
	State BackgroundState
}

// Manager owns the refinement-chain store and serializes access per
// canonical key.
type Manager struct {
	store Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager creates a Manager over the given store.
func NewManager(store Store) *Manager {
	return &Manager{
		store: store,
		locks: make(map[string]*sync.Mutex),
	}
}

// keyLock returns the mutex serializing mutations for one canonical key.
func (m *Manager) keyLock(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}

// Lookup resolves an image URL to its chain. Tiers, in order:
//
//  1. exact canonical-key match
//  2. same URL ignoring query string (presigned-URL drift)
//  3. path-id match between a cached filename and a hosted identifier
//  4. inherit from the most recently modified chain with an explicit
//     background (assumed accidental key mismatch)
//  5. default transparent state
//
// For every non-background refinement the background description must be
// byte-identical before and after; silently resetting it on a missed lookup
// is the failure mode the tiers exist to prevent.
func (m *Manager) Lookup(ctx context.Context, imageURL string) (Lookup, error) {
	key := CanonicalKey(imageURL)

	// Tier 1: exact.
	c, err := m.store.Get(ctx, key)
	if err != nil {
		return Lookup{State: DefaultState(), Tier: TierDefault}, err
	}
	if c != nil {
		return Lookup{Chain: c, Tier: TierExact, State: c.Background}, nil
	}

	keys, err := m.store.Keys(ctx)
	if err != nil {
		return Lookup{State: DefaultState(), Tier: TierDefault}, err
	}

	// Tier 2: same URL ignoring query string.
	stripped := CanonicalKey(StripQuery(imageURL))
	for _, k := range keys {
		if StripQuery(k) == stripped {
			if c, err = m.store.Get(ctx, k); err == nil && c != nil {
				log.Debug().Str("requested", key).Str("matched", k).Msg("Chain matched ignoring query string")
				return Lookup{Chain: c, Tier: TierNoQuery, State: c.Background}, nil
			}
		}
	}

	// Tier 3: path-id match between URL shapes.
	for _, k := range keys {
		if SamePathID(imageURL, k) {
			if c, err = m.store.Get(ctx, k); err == nil && c != nil {
				log.Debug().Str("requested", key).Str("matched", k).Msg("Chain matched by path id")
				return Lookup{Chain: c, Tier: TierPathID, State: c.Background}, nil
			}
		}
	}

	// Tier 4: inherit from the most recent explicit chain.
	donor, err := m.store.MostRecentExplicit(ctx)
	if err != nil {
		return Lookup{State: DefaultState(), Tier: TierDefault}, err
	}
	if donor != nil {
		inherited := m.newChain(key)
		inherited.Background = donor.Background.Inherited()
		if err := m.store.Put(ctx, inherited); err != nil {
			return Lookup{State: DefaultState(), Tier: TierDefault}, err
		}
		log.Warn().
			Str("requested", key).
			Str("donorChain", donor.ID).
			Str("background", donor.Background.Description).
			Msg("No chain found; inherited background from most recent explicit chain")
		return Lookup{Chain: inherited, Tier: TierInherited, State: inherited.Background}, nil
	}

	// Tier 5: default.
	return Lookup{State: DefaultState(), Tier: TierDefault}, nil
}

// CurrentState returns the background state for an image identity. The
// state is always defined; misses degrade through inheritance to default.
func (m *Manager) CurrentState(ctx context.Context, imageURL string) (BackgroundState, error) {
	lu, err := m.Lookup(ctx, imageURL)
	return lu.State, err
}

// UpdateChainBackground is the single mutation path for chain state. It
// records the instruction in the chain history and, when op is a background
// operation, applies the state transition. Non-background operations leave
// the background untouched. The chain is created lazily on first use.
func (m *Manager) UpdateChainBackground(ctx context.Context, imageURL, instruction string, op *compile.Operation) (BackgroundState, error) {
	key := CanonicalKey(imageURL)
	l := m.keyLock(key)
	l.Lock()
	defer l.Unlock()

	lu, err := m.Lookup(ctx, imageURL)
	if err != nil {
		return lu.State, err
	}

	c := lu.Chain
	if c == nil {
		c = m.newChain(key)
	}

	prior := c.Background
	isBackgroundOp := op != nil && op.Kind == compile.KindBackground && op.Valid
	if isBackgroundOp {
		c.Background = prior.Apply(*op)
	}

	c.History = append(c.History, HistoryEntry{
		Instruction:  instruction,
		BackgroundOp: isBackgroundOp,
		PriorState:   prior,
		At:           time.Now().UTC(),
	})
	c.UpdatedAt = time.Now().UTC()

	if err := m.store.Put(ctx, c); err != nil {
		return prior, err
	}

	log.Debug().
		Str("chainId", c.ID).
		Str("key", c.Key).
		Bool("backgroundOp", isBackgroundOp).
		Str("state", string(c.Background.Kind)).
		Str("description", c.Background.Description).
		Msg("Chain updated")
	return c.Background, nil
}

// Seed creates or replaces a chain from recorded generation metadata, so a
// refinement of a previously generated image starts from that image's
// background rather than from default.
func (m *Manager) Seed(ctx context.Context, imageURL string, bg BackgroundState) error {
	key := CanonicalKey(imageURL)
	l := m.keyLock(key)
	l.Lock()
	defer l.Unlock()

	existing, err := m.store.Get(ctx, key)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil // never clobber a live chain with seed data
	}

	c := m.newChain(key)
	c.Background = bg
	return m.store.Put(ctx, c)
}

// Clear removes the chain for an image identity. Explicit cleanup is the
// only removal path.
func (m *Manager) Clear(ctx context.Context, imageURL string) error {
	key := CanonicalKey(imageURL)
	l := m.keyLock(key)
	l.Lock()
	defer l.Unlock()
	return m.store.Delete(ctx, key)
}

func (m *Manager) newChain(key string) *Chain {
	now := time.Now().UTC()
	return &Chain{
		ID:         "chain-" + uuid.NewString(),
		Key:        key,
		Background: DefaultState(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
