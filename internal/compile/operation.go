// Package compile turns a free-text "refine my design" instruction into a
// validated, ordered set of atomic edit operations. It is a deterministic,
// rule-based compiler over surface text: synonym normalization, multi-edit
// segmentation, pattern-family classification, and conflict resolution.
//
// The pipeline is Normalize -> Segment -> Classify (per segment) -> Resolve.
// Compile runs the whole chain and returns a Plan.
package compile

// Kind identifies the variant of an Operation.
type Kind string

const (
	KindBackground   Kind = "background"
	KindAddition     Kind = "addition"
	KindModification Kind = "modification"
	KindRemoval      Kind = "removal"
	KindGeneral      Kind = "general"
)

// Resolution priorities, lower resolved first. Background edits are applied
// before object edits so the scene the objects land in is already settled.
const (
	PriorityBackground   = 1
	PriorityAddition     = 2
	PriorityModification = 3
	PriorityRemoval      = 4
	PriorityGeneral      = 5
)

// MainSubjectTarget is the implicit target for phrasings that name no object
// ("make it more red", "turn blue").
const MainSubjectTarget = "main subject"

// ReasonNoPattern is the invalid reason set when a sub-instruction matches no
// pattern family and contains no recognized action verb. Callers must treat
// such operations as unparsed, never as a default edit.
const ReasonNoPattern = "no_recognizable_action_pattern"

// Operation is one atomic edit extracted from user text.
//
// The variant is selected by Kind:
//   - KindBackground: Value holds the background description, IsRemoval marks
//     "remove background" style requests. Target is always "background".
//   - KindAddition: Target is the object to add, Location optionally places it.
//   - KindModification: Target is the object, Value the new color/state.
//   - KindRemoval: Target is the object to delete.
//   - KindGeneral: low-confidence fallback; Note carries the raw request.
type Operation struct {
	Kind     Kind   `json:"kind"`
	Target   string `json:"target,omitempty"`
	Value    string `json:"value,omitempty"`
	Location string `json:"location,omitempty"`
	Note     string `json:"note,omitempty"`

	// IsRemoval is set on background operations that clear the background
	// rather than replace it.
	IsRemoval bool `json:"isRemoval,omitempty"`

	// SourceText is the (possibly verb-inherited) text this operation was
	// classified from. Re-running Classify on it reproduces the same
	// kind/target/value.
	SourceText string `json:"sourceText"`

	// Confidence is in [0,1]. Operations recovered through a lossy strategy
	// (verb inheritance) carry a reduced confidence.
	Confidence float64 `json:"confidence"`

	// Priority orders application; lower is applied first.
	Priority int `json:"priority"`

	// Recovered marks operations rebuilt via a lossy fallback strategy.
	// The conflict resolver's specificity scoring down-weights them.
	Recovered bool `json:"recovered,omitempty"`

	Valid         bool   `json:"valid"`
	InvalidReason string `json:"invalidReason,omitempty"`
}

// Specificity is the heuristic score the conflict resolver uses to break ties
// between operations competing for the same target. Weighted by operation
// type and by how much explicit detail the operation carries; recovered
// operations are penalized.
func (o Operation) Specificity() float64 {
	var base float64
	switch o.Kind {
	case KindBackground, KindModification:
		base = 0.5
	case KindRemoval:
		base = 0.45
	case KindAddition:
		base = 0.4
	default:
		base = 0.1
	}
	if o.Target != "" {
		base += 0.2
	}
	if o.Value != "" {
		base += 0.2
	}
	if o.Location != "" {
		base += 0.1
	}
	if o.Recovered {
		base -= 0.25
	}
	if base < 0 {
		base = 0
	}
	if base > 1 {
		base = 1
	}
	return base
}
