package refiner

import (
	"strings"

	"github.com/fpang/design-refine/internal/chain"
	"github.com/fpang/design-refine/internal/compile"
)

// operationText renders one operation as an imperative edit phrase for the
// text-based strategies. SourceText is preferred because it is already a
// parseable imperative; it is only reconstructed for operations that somehow
// lack one.
func operationText(op compile.Operation) string {
	if op.SourceText != "" {
		return op.SourceText
	}
	switch op.Kind {
	case compile.KindBackground:
		if op.IsRemoval {
			return "remove the background"
		}
		return "change the background to " + op.Value
	case compile.KindAddition:
		if op.Location != "" {
			return "add " + op.Target + " " + op.Location
		}
		return "add " + op.Target
	case compile.KindModification:
		return "make the " + op.Target + " " + op.Value
	case compile.KindRemoval:
		return "remove the " + op.Target
	default:
		return op.Note
	}
}

// augmentedPrompt builds the plain-text prompt for the text and direct
// rungs: the original generation prompt when known, the edit phrases, and
// the background carried explicitly so persistence survives rungs that
// never see the structured descriptor.
func augmentedPrompt(plan compile.Plan, state chain.BackgroundState, originalPrompt string) string {
	var b strings.Builder
	if originalPrompt != "" {
		b.WriteString(originalPrompt)
		b.WriteString(". ")
	}

	phrases := make([]string, 0, len(plan.Operations))
	for _, op := range plan.Operations {
		phrases = append(phrases, operationText(op))
	}
	b.WriteString("Apply these edits: ")
	b.WriteString(strings.Join(phrases, "; "))
	b.WriteString(".")

	if !plan.HasBackgroundOp() {
		b.WriteString(" Keep the ")
		b.WriteString(state.Description)
		b.WriteString(".")
	}
	return b.String()
}
