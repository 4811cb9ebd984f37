package compile

import (
	"github.com/rs/zerolog/log"
)

// Plan is the compiled form of one refine instruction: the resolved operation
// list plus everything a caller needs to explain the outcome, segments,
// conflict overrides, unparsed fragments, and segmentation warnings.
type Plan struct {
	Instruction string      `json:"instruction"`
	Segments    []string    `json:"segments"`
	Operations  []Operation `json:"operations"`
	Overrides   []Override  `json:"overrides"`
	Unparsed    []string    `json:"unparsed,omitempty"`
	Warnings    []string    `json:"warnings,omitempty"`
}

// HasBackgroundOp reports whether any resolved operation edits the background.
func (p Plan) HasBackgroundOp() bool {
	return p.BackgroundOp() != nil
}

// BackgroundOp returns the resolved background operation, or nil. The
// resolver guarantees at most one.
func (p Plan) BackgroundOp() *Operation {
	for i := range p.Operations {
		if p.Operations[i].Kind == KindBackground {
			return &p.Operations[i]
		}
	}
	return nil
}

// Compile runs the full instruction pipeline: normalize, segment, classify
// each segment (with action-verb inheritance for bare noun phrases), and
// resolve conflicts. It never fails; an instruction with nothing parseable
// produces a Plan with no operations and the fragments listed in Unparsed.
func Compile(text string) Plan {
	plan := Plan{Instruction: CanonicalText(text)}
	plan.Segments = Segment(text)

	// Verb inheritance: a later segment that is a bare noun phrase inherits
	// the nearest preceding action verb, seeded from the instruction head so
	// hoisted comma lists ("add a hat, cigar and a snake") classify fully.
	lastVerb := LeadingActionVerb(text)

	var ops []Operation
	for _, seg := range plan.Segments {
		op := classifyWithInheritance(seg, lastVerb)
		if v := LeadingActionVerb(seg); v != "" {
			lastVerb = v
		}
		if !op.Valid {
			plan.Unparsed = append(plan.Unparsed, seg)
			log.Warn().
				Str("segment", seg).
				Str("reason", op.InvalidReason).
				Msg("Unparsed sub-instruction")
			continue
		}
		ops = append(ops, op)
	}

	// Segmentation ambiguity: fewer operations recovered than the
	// conjunction/verb-count heuristics predicted. A warning, never fatal;
	// the partial result is still returned.
	if predicted := predictedEditCount(plan.Instruction); len(ops) < predicted {
		plan.Warnings = append(plan.Warnings, "segmentation_ambiguity")
		log.Warn().
			Int("predicted", predicted).
			Int("recovered", len(ops)).
			Str("instruction", plan.Instruction).
			Msg("Recovered fewer operations than predicted")
	}

	resolution := Resolve(ops)
	plan.Operations = resolution.Operations
	plan.Overrides = resolution.Overrides

	log.Debug().
		Int("segments", len(plan.Segments)).
		Int("operations", len(plan.Operations)).
		Int("overrides", len(plan.Overrides)).
		Int("unparsed", len(plan.Unparsed)).
		Msg("Instruction compiled")
	return plan
}

// predictedEditCount estimates how many edits an instruction requests, from
// its action-verb count and conjunction signals. Used only to flag
// segmentation ambiguity.
func predictedEditCount(t string) int {
	if verbs := countActionVerbs(t); verbs >= 1 {
		return verbs
	}
	// No verbs at all: each conjunction still suggests one more edit.
	return len(conjunctionRe.FindAllString(t, -1)) + 1
}
