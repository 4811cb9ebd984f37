package compile

// classify.go converts one sub-instruction into an Operation. The heavy
// lifting is the normalizer's ordered pattern table; classification is a
// dispatch over the normalized category plus the vague-edit and unparsed
// fallbacks. Family order (background before modification before addition
// before removal) is enforced by the pattern table itself.

import "strings"

// Per-family base confidence. Background phrasings are the most specific
// pattern family; the general fallback is deliberately low so the conflict
// resolver down-weights it.
const (
	confidenceBackground   = 0.95
	confidenceRemoval      = 0.92
	confidenceModification = 0.9
	confidenceAddition     = 0.9
	confidenceGeneral      = 0.3

	// recoveredFactor scales confidence for operations rebuilt through verb
	// inheritance.
	recoveredFactor = 0.85
)

// opBuilder turns a normalized sub-instruction into an Operation variant.
type opBuilder func(n Normalized, src string) Operation

// classifierTable maps normalized categories onto operation builders.
// Inserting a new phrasing means adding a pattern row in normalize.go; the
// dispatch here never changes.
var classifierTable = map[Category]opBuilder{
	CategoryBackground:   buildBackgroundOp,
	CategoryColorChange:  buildModificationOp,
	CategoryModification: buildModificationOp,
	CategoryAddition:     buildAdditionOp,
	CategoryRemoval:      buildRemovalOp,
}

// Classify converts one sub-instruction into an Operation. A sub-instruction
// matching no family but containing a recognized action verb becomes a
// low-confidence general edit; anything else is invalid with
// ReasonNoPattern and must be treated as unparsed by callers.
func Classify(sub string) Operation {
	src := CanonicalText(sub)
	n := Normalize(src)

	if builder, ok := classifierTable[n.Category]; ok {
		return builder(n, src)
	}

	if hasActionVerb(src) {
		return Operation{
			Kind:       KindGeneral,
			Target:     MainSubjectTarget,
			Note:       src,
			SourceText: src,
			Confidence: confidenceGeneral,
			Priority:   PriorityGeneral,
			Valid:      true,
		}
	}

	return Operation{
		SourceText:    src,
		Priority:      PriorityGeneral,
		Valid:         false,
		InvalidReason: ReasonNoPattern,
	}
}

func buildBackgroundOp(n Normalized, src string) Operation {
	op := Operation{
		Kind:       KindBackground,
		Target:     "background",
		SourceText: src,
		Confidence: confidenceBackground,
		Priority:   PriorityBackground,
		Valid:      true,
	}
	if n.Fields["removal"] == "true" {
		op.IsRemoval = true
		return op
	}
	op.Value = n.Fields["desc"]
	return op
}

func buildModificationOp(n Normalized, src string) Operation {
	return Operation{
		Kind:       KindModification,
		Target:     n.Fields["target"],
		Value:      n.Fields["value"],
		SourceText: src,
		Confidence: confidenceModification,
		Priority:   PriorityModification,
		Valid:      true,
	}
}

func buildAdditionOp(n Normalized, src string) Operation {
	return Operation{
		Kind:       KindAddition,
		Target:     n.Fields["object"],
		Location:   n.Fields["location"],
		SourceText: src,
		Confidence: confidenceAddition,
		Priority:   PriorityAddition,
		Valid:      true,
	}
}

func buildRemovalOp(n Normalized, src string) Operation {
	return Operation{
		Kind:       KindRemoval,
		Target:     n.Fields["target"],
		SourceText: src,
		Confidence: confidenceRemoval,
		Priority:   PriorityRemoval,
		Valid:      true,
	}
}

// classifyWithInheritance classifies a segment, retrying with the inherited
// action verb when the segment alone is a bare noun phrase. Recovered
// operations keep the reconstructed text as SourceText so re-parsing them is
// idempotent.
func classifyWithInheritance(seg, inheritedVerb string) Operation {
	op := Classify(seg)
	if op.Valid || inheritedVerb == "" {
		return op
	}
	rebuilt := inheritedVerb + " " + strings.TrimSpace(seg)
	recovered := Classify(rebuilt)
	if !recovered.Valid {
		return op
	}
	recovered.Recovered = true
	recovered.Confidence *= recoveredFactor
	return recovered
}
