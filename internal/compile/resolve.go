package compile

// resolve.go picks one survivor when multiple operations target the same
// logical subject. Precedence, in order: explicit removal always wins;
// background-type operations win on background targets; then specificity,
// then confidence, then temporal order (the last word wins). Every discarded
// operation is recorded with the rule that discarded it, for observability.

import (
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// Resolver precedence rule names, recorded on every override.
const (
	RuleRemovalWins    = "removal_wins"
	RuleBackgroundWins = "background_wins"
	RuleSpecificity    = "specificity"
	RuleConfidence     = "confidence"
	RuleTemporal       = "temporal"
)

// Thresholds for the specificity rule: an operation must be both markedly
// specific and confidently classified to win on specificity alone.
const (
	specificityThreshold = 0.8
	confidenceThreshold  = 0.7
)

// Override records that one operation displaced another on the same target.
// It is informational, not an error; results always carry their overrides so
// callers can explain what was dropped and why.
type Override struct {
	Target string    `json:"target"`
	Winner Operation `json:"winner"`
	Loser  Operation `json:"loser"`
	Rule   string    `json:"rule"`
}

// Resolution is the conflict resolver's output: at most one operation per
// normalized target, in original appearance order, plus the override records.
type Resolution struct {
	Operations []Operation `json:"operations"`
	Overrides  []Override  `json:"overrides"`
}

// indexedOp pairs an operation with its position in the original instruction.
type indexedOp struct {
	op  Operation
	idx int
}

// Resolve reduces a list of operations to at most one per normalized target.
// Invalid operations are ignored; callers surface them as unparsed input
// separately. Output order follows original appearance order of survivors.
func Resolve(ops []Operation) Resolution {
	groups := make(map[string][]indexedOp)
	var order []string

	for i, op := range ops {
		if !op.Valid {
			continue
		}
		key := conflictKey(op)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], indexedOp{op: op, idx: i})
	}

	var res Resolution
	var survivors []indexedOp

	for _, key := range order {
		group := groups[key]
		winner, rule := pickSurvivor(key, group)
		survivors = append(survivors, winner)

		for _, cand := range group {
			if cand.idx == winner.idx {
				continue
			}
			res.Overrides = append(res.Overrides, Override{
				Target: key,
				Winner: winner.op,
				Loser:  cand.op,
				Rule:   rule,
			})
			log.Debug().
				Str("target", key).
				Str("rule", rule).
				Str("winner", winner.op.SourceText).
				Str("loser", cand.op.SourceText).
				Msg("Conflict resolved")
		}
	}

	sort.Slice(survivors, func(i, j int) bool { return survivors[i].idx < survivors[j].idx })
	for _, s := range survivors {
		res.Operations = append(res.Operations, s.op)
	}
	return res
}

// conflictKey groups operations by their normalized logical subject.
// All background operations share the "background" key.
func conflictKey(op Operation) string {
	if op.Kind == KindBackground {
		return "background"
	}
	return NormalizeTarget(op.Target)
}

// pickSurvivor applies the precedence rules to one conflict group.
func pickSurvivor(key string, group []indexedOp) (indexedOp, string) {
	if len(group) == 1 {
		return group[0], ""
	}

	// Rule 1: explicit removal wins over any other operation on the target,
	// regardless of order. Multiple removals: the latest.
	var removal *indexedOp
	for i := range group {
		if group[i].op.Kind == KindRemoval {
			removal = &group[i]
		}
	}
	if removal != nil {
		return *removal, RuleRemovalWins
	}

	// Rule 2: on background targets the background-type operation wins.
	if strings.Contains(key, "background") {
		for i := len(group) - 1; i >= 0; i-- {
			if group[i].op.Kind == KindBackground {
				return group[i], RuleBackgroundWins
			}
		}
	}

	// Rule 3: prefer a markedly specific, confidently classified operation.
	var specific *indexedOp
	for i := range group {
		op := group[i].op
		if op.Specificity() > specificityThreshold && op.Confidence > confidenceThreshold {
			// >= so equally specific later operations win (the last word).
			if specific == nil || op.Specificity() >= specific.op.Specificity() {
				specific = &group[i]
			}
		}
	}
	if specific != nil {
		return *specific, RuleSpecificity
	}

	// Rule 4: the single highest confidence, when unambiguous.
	best := group[0]
	tied := false
	for _, cand := range group[1:] {
		if cand.op.Confidence > best.op.Confidence {
			best = cand
			tied = false
		} else if cand.op.Confidence == best.op.Confidence {
			tied = true
		}
	}
	if !tied {
		return best, RuleConfidence
	}

	// Rule 5: temporal precedence, the operation that appeared latest wins.
	return group[len(group)-1], RuleTemporal
}
