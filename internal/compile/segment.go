package compile

// segment.go splits one free-text instruction into candidate sub-instructions
// when it detects multiple requested edits. Recognition order:
//
//  1. Mixed dual-operation templates short-circuit into exactly two
//     fully-formed parts, so an object phrase containing "and" ("sausage and
//     peppers") is not mis-segmented by the generic splitter.
//  2. A leading action verb over a comma list is hoisted, and each comma unit
//     is re-split on "and" so "add a hat, cigar and a snake" yields three
//     items, not two.
//  3. Otherwise a generic splitter tries several strategies and keeps
//     whichever yields the most non-trivial parts.
//
// Segmentation never returns fewer than one part and never drops a detected
// sub-instruction.

import (
	"regexp"
	"strings"
)

var (
	conjunctionRe = regexp.MustCompile(`\s+(?:and|&|plus|also|then)\s+`)

	backgroundVerbAlt = `(?:change|make|set|turn|switch)`
	additionVerbAlt   = `(?:add|put|give|place|attach|draw)`

	// Dual-operation templates. Each expands directly into two fully-formed
	// sub-instructions. The lazy object capture backtracks across interior
	// "and"s until the second clause's verb lines up.
	dualTemplates = []struct {
		re     *regexp.Regexp
		expand func(m []string) []string
	}{
		// "add X and change background to Y"
		{regexp.MustCompile(`^` + additionVerbAlt + `\s+(.+?)\s+and\s+` + backgroundVerbAlt + `\s+(?:the\s+)?` + backgroundWordAlt + `\s*(?:to|into)?\s+(.+)$`),
			func(m []string) []string {
				return []string{"add " + m[1], "change background to " + m[2]}
			}},
		// "change background to Y and add X"
		{regexp.MustCompile(`^` + backgroundVerbAlt + `\s+(?:the\s+)?` + backgroundWordAlt + `\s*(?:to|into)?\s+(.+?)\s+and\s+` + additionVerbAlt + `\s+(.+)$`),
			func(m []string) []string {
				return []string{"change background to " + m[1], "add " + m[2]}
			}},
		// "add X and make Y Z"
		{regexp.MustCompile(`^` + additionVerbAlt + `\s+(.+?)\s+and\s+(make|turn|paint|color)\s+(?:the\s+)?(.+?)\s+(?:to\s+|into\s+)?([a-z]+)$`),
			func(m []string) []string {
				return []string{"add " + m[1], m[2] + " the " + m[3] + " " + m[4]}
			}},
		// "make Y Z and add X"
		{regexp.MustCompile(`^(make|turn|paint|color)\s+(?:the\s+)?(.+?)\s+(?:to\s+|into\s+)?([a-z]+)\s+and\s+` + additionVerbAlt + `\s+(.+)$`),
			func(m []string) []string {
				return []string{m[1] + " the " + m[2] + " " + m[3], "add " + m[4]}
			}},
	}

	leadVerbRe = regexp.MustCompile(`^([a-z]+)\s+(.+)$`)
)

// Segment splits an instruction into one or more sub-instructions.
// The output is canonicalized text; parts produced by verb hoisting are bare
// noun phrases that inherit their action verb during compilation.
func Segment(text string) []string {
	t := CanonicalText(text)
	if t == "" {
		return []string{t}
	}

	for _, tmpl := range dualTemplates {
		if m := tmpl.re.FindStringSubmatch(t); m != nil {
			return tmpl.expand(m)
		}
	}

	// Leading verb over a comma list: hoist the verb and split the list.
	if m := leadVerbRe.FindStringSubmatch(t); m != nil && isActionVerb(m[1]) && strings.Contains(m[2], ",") {
		parts := splitCommaAndConjunction(m[2])
		if len(parts) >= 2 && noneHasActionVerb(parts) {
			return parts
		}
	}

	if !looksMultiEdit(t) {
		return []string{t}
	}

	best := bestSplit(t)
	if len(best) < 2 {
		return []string{t}
	}
	return best
}

// looksMultiEdit detects signals that the instruction requests more than one
// edit: conjunctions, a comma list followed by an action verb, or two or more
// action-verb occurrences.
func looksMultiEdit(t string) bool {
	if conjunctionRe.MatchString(t) {
		return true
	}
	if idx := strings.Index(t, ","); idx >= 0 && hasActionVerb(t[idx:]) {
		return true
	}
	return countActionVerbs(t) >= 2
}

// bestSplit tries the generic strategies and keeps whichever yields the most
// non-empty, non-trivial parts. Ties go to the earliest strategy.
func bestSplit(t string) []string {
	strategies := [][]string{
		splitCommaAndConjunction(t),
		cleanParts(conjunctionRe.Split(t, -1)),
		splitVerbSpans(t),
	}
	best := strategies[0]
	for _, s := range strategies[1:] {
		if len(s) > len(best) {
			best = s
		}
	}
	return best
}

// splitCommaAndConjunction splits on commas, then re-splits each unit on
// conjunctions, so a final "X and Y" pair is not undercounted.
func splitCommaAndConjunction(t string) []string {
	var parts []string
	for _, unit := range strings.Split(t, ",") {
		parts = append(parts, conjunctionRe.Split(unit, -1)...)
	}
	return cleanParts(parts)
}

// splitVerbSpans slices the text at each action-verb occurrence, recovering
// segments from instructions with verbs but no separators.
func splitVerbSpans(t string) []string {
	indexes := actionVerbIndexes(t)
	if len(indexes) < 2 {
		return []string{t}
	}
	var parts []string
	for i, start := range indexes {
		end := len(t)
		if i+1 < len(indexes) {
			end = indexes[i+1]
		}
		parts = append(parts, t[start:end])
	}
	return cleanParts(parts)
}

// cleanParts trims separators and drops empty or trivial fragments.
func cleanParts(raw []string) []string {
	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.Trim(p, " ,.")
		if len(p) < 2 {
			continue
		}
		if stripArticles(p) == "" {
			continue
		}
		parts = append(parts, p)
	}
	return parts
}

// --- Action-verb helpers ---

func isActionVerb(w string) bool {
	for _, v := range actionVerbs() {
		if w == v {
			return true
		}
	}
	return false
}

func hasActionVerb(s string) bool {
	return countActionVerbs(s) > 0
}

func countActionVerbs(s string) int {
	n := 0
	for _, w := range strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ','
	}) {
		if isActionVerb(w) {
			n++
		}
	}
	return n
}

func noneHasActionVerb(parts []string) bool {
	for _, p := range parts {
		if hasActionVerb(p) {
			return false
		}
	}
	return true
}

// actionVerbIndexes returns the byte offsets of each action-verb word in s.
func actionVerbIndexes(s string) []int {
	var indexes []int
	offset := 0
	for _, w := range strings.Fields(s) {
		idx := strings.Index(s[offset:], w) + offset
		if isActionVerb(strings.Trim(w, ",.")) {
			indexes = append(indexes, idx)
		}
		offset = idx + len(w)
	}
	return indexes
}

// LeadingActionVerb returns the first action verb in canonical text, or ""
// if none is present. Used to seed verb inheritance for bare noun segments.
func LeadingActionVerb(text string) string {
	for _, w := range strings.Fields(CanonicalText(text)) {
		if isActionVerb(strings.Trim(w, ",.")) {
			return strings.Trim(w, ",.")
		}
	}
	return ""
}
