package scene

// mutate.go applies a resolved operation list to a structured prompt. The
// operations arrive in resolver output order and are applied in that order,
// so an addition a later modification depends on exists before the
// modification runs. Background persistence and the per-request background
// override share a single code path: the outgoing background is always the
// chain's current state description unless this request carries an explicit
// background edit.

import (
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fpang/design-refine/internal/chain"
	"github.com/fpang/design-refine/internal/compile"
)

// Apply produces the prompt to submit to the generation service. The input
// prompt is never mutated.
func Apply(p Prompt, ops []compile.Operation, bg chain.BackgroundState) Prompt {
	out := p.Clone()
	var changes []string
	backgroundEdited := false

	for _, op := range ops {
		if !op.Valid {
			continue
		}
		switch op.Kind {
		case compile.KindBackground:
			applyBackground(&out, op)
			backgroundEdited = true
			if op.IsRemoval {
				changes = append(changes, "background removed")
			} else {
				changes = append(changes, op.Value+" background")
			}
		case compile.KindAddition:
			applyAddition(&out, op)
			changes = append(changes, "with "+op.Target)
		case compile.KindModification:
			applyModification(&out, op)
			changes = append(changes, op.Value+" "+op.Target)
		case compile.KindRemoval:
			if applyRemoval(&out, op) {
				changes = append(changes, "without "+op.Target)
			}
		case compile.KindGeneral:
			// Vague edits carry no structured change; the note rides along in
			// the description so the service still sees the intent.
			changes = append(changes, op.Note)
		}
	}

	// Background persistence: every outgoing prompt re-carries the chain's
	// current description, never a hardcoded default. The service has no
	// memory of prior backgrounds.
	if !backgroundEdited {
		out.Background = bg.Description
	}

	appendSummary(&out, changes)

	log.Debug().
		Int("objects", len(out.Objects)).
		Str("background", out.Background).
		Int("changes", len(changes)).
		Msg("Structured prompt mutated")
	return out
}

func applyBackground(p *Prompt, op compile.Operation) {
	if op.IsRemoval {
		p.Background = chain.DefaultDescription
		return
	}
	// Full replacement, never a merge with the previous description.
	p.Background = op.Value + " background"
}

func applyAddition(p *Prompt, op compile.Operation) {
	p.Objects = append(p.Objects, templateFor(op.Target, op.Location))
}

// applyModification rewrites the color/value of the first object record
// matching the target, textually or via the related-parts table. When
// nothing matches, the modification materializes as a new object so the
// request is never silently dropped.
func applyModification(p *Prompt, op compile.Operation) {
	target := op.Target
	candidates := []string{target}
	if host, ok := compile.RelatedPart(target); ok {
		candidates = append(candidates, host)
	}

	for i := range p.Objects {
		for _, cand := range candidates {
			if cand == compile.MainSubjectTarget {
				continue
			}
			if p.Objects[i].matchesTarget(cand) {
				p.Objects[i].ShapeColor = op.Value
				if cand != target {
					// The matched record hosts the target part; scope the
					// rewrite to the part in its description.
					p.Objects[i].Description = strings.TrimSpace(p.Objects[i].Description + " with " + op.Value + " " + target)
				}
				return
			}
		}
	}

	if target == compile.MainSubjectTarget {
		// Implicit target: recolor the whole design rather than invent an
		// object record for "main subject".
		p.Style = strings.TrimSpace(p.Style + " predominantly " + op.Value)
		return
	}

	p.Objects = append(p.Objects, Object{
		Description: "a " + target,
		ShapeColor:  op.Value,
	})
}

// applyRemoval deletes every object record matching the target. Reports
// whether anything was removed.
func applyRemoval(p *Prompt, op compile.Operation) bool {
	kept := p.Objects[:0]
	removed := false
	for _, obj := range p.Objects {
		if obj.matchesTarget(op.Target) {
			removed = true
			continue
		}
		kept = append(kept, obj)
	}
	p.Objects = kept
	if !removed {
		log.Debug().Str("target", op.Target).Msg("Removal target not present in prompt objects")
	}
	return removed
}

// appendSummary adds a human-readable change summary to the short
// description, skipping any phrase the description already contains (the
// background phrase in particular must not duplicate).
func appendSummary(p *Prompt, changes []string) {
	existing := strings.ToLower(p.ShortDescription)
	var fresh []string
	for _, c := range changes {
		if c == "" || strings.Contains(existing, strings.ToLower(c)) {
			continue
		}
		fresh = append(fresh, c)
	}
	if len(fresh) == 0 {
		return
	}
	summary := strings.Join(fresh, ", ")
	if p.ShortDescription == "" {
		p.ShortDescription = summary
		return
	}
	p.ShortDescription = strings.TrimSuffix(p.ShortDescription, ".") + ", " + summary
}
