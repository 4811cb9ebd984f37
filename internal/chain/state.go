// Package chain tracks refinement chains: the ordered history of edits
// applied to one logical image lineage, plus its current background state.
// The chain is the single source of truth for "what background should
// persist" across a sequence of refinements, the external generation
// service has no memory of prior backgrounds, so every outgoing prompt must
// re-carry the chain's current description.
package chain

import (
	"time"

	"github.com/fpang/design-refine/internal/compile"
)

// StateKind is the background state machine's discriminator.
type StateKind string

const (
	// StateDefault: never explicitly set; description is always transparent.
	StateDefault StateKind = "default"
	// StateExplicit: the user named a concrete background.
	StateExplicit StateKind = "explicit"
	// StateRemoved: the user explicitly asked for no background.
	StateRemoved StateKind = "removed"
	// StateInherited: no chain matched this image identity, so the state was
	// borrowed from the most recently modified chain with an explicit
	// background, assuming an accidental key mismatch.
	StateInherited StateKind = "inherited"
)

// DefaultDescription is the background description in the default and
// removed states.
const DefaultDescription = "transparent background"

// BackgroundState is the per-chain background state machine value.
type BackgroundState struct {
	Kind          StateKind `json:"kind" dynamodbav:"kind"`
	Description   string    `json:"description" dynamodbav:"description"`
	ExplicitlySet bool      `json:"explicitlySet" dynamodbav:"explicitlySet"`

	// PreserveAcrossRefinements marks descriptions that must be re-applied
	// into every outgoing prompt until replaced or removed.
	PreserveAcrossRefinements bool `json:"preserveAcrossRefinements" dynamodbav:"preserveAcrossRefinements"`

	SetAt time.Time `json:"setAt" dynamodbav:"setAt"`
}

// DefaultState returns the state of a chain whose background was never set.
// A chain's current state is always defined; lookups that find nothing
// degrade to this value.
func DefaultState() BackgroundState {
	return BackgroundState{
		Kind:        StateDefault,
		Description: DefaultDescription,
	}
}

// Apply transitions the state for one classified operation.
//
// Background replacement fully supersedes the previous description, no
// merging or concatenation. Background removal moves to StateRemoved with
// the transparent description. Any non-background operation leaves the
// state untouched.
func (s BackgroundState) Apply(op compile.Operation) BackgroundState {
	if op.Kind != compile.KindBackground || !op.Valid {
		return s
	}

	now := time.Now().UTC()
	if op.IsRemoval {
		return BackgroundState{
			Kind:          StateRemoved,
			Description:   DefaultDescription,
			ExplicitlySet: true,
			SetAt:         now,
		}
	}

	// The stored description is exactly the string the prompt mutator emits,
	// so persistence round-trips byte-identically.
	return BackgroundState{
		Kind:                      StateExplicit,
		Description:               op.Value + " background",
		ExplicitlySet:             true,
		PreserveAcrossRefinements: true,
		SetAt:                     now,
	}
}

// Inherited derives the state a borrowing chain starts with.
func (s BackgroundState) Inherited() BackgroundState {
	return BackgroundState{
		Kind:                      StateInherited,
		Description:               s.Description,
		ExplicitlySet:             false,
		PreserveAcrossRefinements: s.PreserveAcrossRefinements,
		SetAt:                     time.Now().UTC(),
	}
}
