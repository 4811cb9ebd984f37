package compile

// normalize.go is the synonym normalizer: an ordered list of regular
// expression families that maps many surface phrasings of the same intent
// onto one canonical (category, form) pair. Classification consumes the
// normalizer's output, so two instructions that normalize identically always
// classify identically.
//
// Family order is load-bearing: background patterns run first because they
// are the most specific and must not be absorbed by the permissive addition
// patterns ("forest background" is a background, not an object named
// "forest background").

import (
	"regexp"
	"strings"
	"sync"
)

// Category is the normalized intent family of an instruction.
type Category string

const (
	CategoryBackground   Category = "background"
	CategoryColorChange  Category = "colorChange"
	CategoryModification Category = "modification"
	CategoryAddition     Category = "addition"
	CategoryRemoval      Category = "removal"
	CategoryUnknown      Category = "unknown"
)

// Normalized is the result of normalizing one sub-instruction.
// Two inputs are equivalent iff their (Category, Form) pairs match.
type Normalized struct {
	Category   Category
	Form       string
	Fields     map[string]string
	Confidence float64
}

// patternRule is one row of the normalization table: a category, a compiled
// pattern, and a builder that turns the named captures into a canonical form.
type patternRule struct {
	category Category
	re       *regexp.Regexp
	build    func(fields map[string]string) (Category, string, map[string]string)
}

var patternRules = buildPatternRules()

func buildPatternRules() []patternRule {
	bg := backgroundWordAlt
	rules := []patternRule{
		// --- Background family ---

		// "remove the background", "delete backgound", "remove the city background"
		{CategoryBackground, regexp.MustCompile(`^(?:please\s+)?(?:remove|delete|clear|erase|drop)\s+(?:the\s+)?(?:[\w ]+\s+)?` + bg + `$`),
			func(f map[string]string) (Category, string, map[string]string) {
				return CategoryBackground, "background:remove", map[string]string{"removal": "true"}
			}},
		// "no background", "without a background"
		{CategoryBackground, regexp.MustCompile(`^(?:no|without\s+(?:a\s+)?)\s*` + bg + `$`),
			func(f map[string]string) (Category, string, map[string]string) {
				return CategoryBackground, "background:remove", map[string]string{"removal": "true"}
			}},
		// "make the background transparent/blank"
		{CategoryBackground, regexp.MustCompile(`^(?:make|set)\s+(?:the\s+)?` + bg + `\s+(?:transparent|empty|blank|clear)$`),
			func(f map[string]string) (Category, string, map[string]string) {
				return CategoryBackground, "background:remove", map[string]string{"removal": "true"}
			}},
		// "change background to forest", "make the backgound a city", "set background: sunset"
		{CategoryBackground, regexp.MustCompile(`^(?:change|make|set|turn|switch|update)\s+(?:the\s+)?` + bg + `\s*(?:to|into|be|:)?\s+(?P<desc>.+)$`),
			buildBackgroundDesc},
		// "add a forest background", "put city backdrop", "with snow background"
		{CategoryBackground, regexp.MustCompile(`^(?:add|put|use|with|give\s+(?:it|him|her)?)\s*(?:a\s+|an\s+|the\s+|some\s+)?(?P<desc>.+?)\s+` + bg + `$`),
			buildBackgroundDesc},
		// "forest background", "city scene"
		{CategoryBackground, regexp.MustCompile(`^(?:a\s+|an\s+|the\s+)?(?P<desc>.+?)\s+(?:` + bg + `|scene)$`),
			buildBackgroundDesc},
		// "mountains behind him", "put a sunset behind it"
		{CategoryBackground, regexp.MustCompile(`^(?:put\s+|add\s+)?(?:a\s+|an\s+|the\s+)?(?P<desc>.+?)\s+behind\s+(?:him|her|it|them|us|the\s+\w+)$`),
			buildBackgroundDesc},

		// --- Modification family ---

		// "change the hat to blue", "turn the teeth into gold"
		{CategoryModification, regexp.MustCompile(`^(?:change|turn|switch)\s+(?:the\s+)?(?P<target>.+?)\s+(?:to|into)\s+(?P<value>.+)$`),
			buildModification},
		// "make the teeth golden", "make it more red", "make everything darker"
		{CategoryModification, regexp.MustCompile(`^make\s+(?:the\s+)?(?P<target>.+?)\s+(?:more\s+)?(?P<value>[a-z]+)$`),
			buildModification},
		// "paint the skull green", "color the hat red", "dye it blue"
		{CategoryModification, regexp.MustCompile(`^(?:paint|color|colour|recolor|dye)\s+(?:the\s+)?(?P<target>.+?)\s+(?P<value>[a-z]+)$`),
			buildModification},
		// "put some red on it", "put some gold on the teeth"
		{CategoryModification, regexp.MustCompile(`^put\s+some\s+(?P<value>[a-z]+)\s+on\s+(?:it|the\s+(?P<target>.+)|(?P<target2>.+))$`),
			buildModification},
		// "turn blue", implicit main-subject target
		{CategoryModification, regexp.MustCompile(`^turn\s+(?P<value>[a-z]+)$`),
			buildModification},

		// --- Addition family ---

		// "add a hat", "give him a cigar", "put sunglasses on his face"
		{CategoryAddition, regexp.MustCompile(`^(?:add|put|give|place|attach|include|draw|stick)\s+(?:him\s+|her\s+|it\s+|them\s+)?(?:a\s+|an\s+|the\s+|some\s+)?(?P<obj>.+?)(?:\s+(?:on|in|at|over|around)\s+(?:his|her|its|their|the)\s+(?P<loc>.+))?$`),
			buildAddition},

		// --- Removal family ---

		// "remove the hat", "delete his cigar"
		{CategoryRemoval, regexp.MustCompile(`^(?:remove|delete|erase|drop)\s+(?:the\s+|his\s+|her\s+|its\s+|their\s+|a\s+|an\s+)?(?P<target>.+)$`),
			buildRemoval},
		// "get rid of the hat", "take off the sunglasses"
		{CategoryRemoval, regexp.MustCompile(`^(?:get\s+rid\s+of|take\s+(?:off|away|out))\s+(?:the\s+|his\s+|her\s+)?(?P<target>.+)$`),
			buildRemoval},
		// "take the hat off"
		{CategoryRemoval, regexp.MustCompile(`^take\s+(?:the\s+|his\s+|her\s+)?(?P<target>.+?)\s+(?:off|away|out)$`),
			buildRemoval},
	}
	return rules
}

func buildBackgroundDesc(f map[string]string) (Category, string, map[string]string) {
	raw := strings.TrimSpace(f["desc"])
	// A description opening with an action verb means the pattern swallowed a
	// different edit ("make the hat scene..."); let a later family claim it.
	first, _, _ := strings.Cut(strings.ToLower(raw), " ")
	for _, v := range actionVerbs() {
		if first == v {
			return CategoryUnknown, "", nil
		}
	}
	desc := canonicalBackground(raw)
	if desc == "" {
		return CategoryUnknown, "", nil
	}
	return CategoryBackground, "background:" + desc, map[string]string{"desc": desc}
}

func buildModification(f map[string]string) (Category, string, map[string]string) {
	target := f["target"]
	if target == "" {
		target = f["target2"]
	}
	target = NormalizeTarget(target)
	value := strings.TrimSpace(stripArticles(strings.TrimSpace(f["value"])))
	if value == "" {
		return CategoryUnknown, "", nil
	}
	fields := map[string]string{"target": target, "value": value}
	if isColor(value) {
		return CategoryColorChange, "color:" + target + ":" + value, fields
	}
	return CategoryModification, "mod:" + target + ":" + value, fields
}

func buildAddition(f map[string]string) (Category, string, map[string]string) {
	obj := NormalizeTarget(f["obj"])
	if obj == "" || obj == MainSubjectTarget {
		return CategoryUnknown, "", nil
	}
	loc := strings.TrimSpace(f["loc"])
	fields := map[string]string{"object": obj}
	form := "add:" + obj
	if loc != "" {
		fields["location"] = loc
		form += "@" + loc
	}
	return CategoryAddition, form, fields
}

func buildRemoval(f map[string]string) (Category, string, map[string]string) {
	target := NormalizeTarget(f["target"])
	if target == "" || target == MainSubjectTarget {
		return CategoryUnknown, "", nil
	}
	return CategoryRemoval, "remove:" + target, map[string]string{"target": target}
}

// canonicalBackground reduces a background description to its canonical form:
// articles and trailing background/scene words stripped.
func canonicalBackground(desc string) string {
	desc = stripArticles(strings.ToLower(strings.TrimSpace(desc)))
	trailing := regexp.MustCompile(`\s+(?:` + backgroundWordAlt + `|scene)$`)
	desc = trailing.ReplaceAllString(desc, "")
	return strings.TrimSpace(desc)
}

// --- Memoized entry points ---

// normalizeMemo caches canonical text -> Normalized. Normalization is pure
// and deterministic, so the cache never needs per-entry invalidation; it is
// reset wholesale when vocabulary overrides load.
var normalizeMemo sync.Map

func resetNormalizeMemo() {
	normalizeMemo = sync.Map{}
}

// Normalize maps one sub-instruction onto its canonical (category, form)
// pair. Confidence is 1.0 for any match and 0.0 for CategoryUnknown.
func Normalize(text string) Normalized {
	key := CanonicalText(text)
	if v, ok := normalizeMemo.Load(key); ok {
		return v.(Normalized)
	}
	n := runPatternRules(key)
	normalizeMemo.Store(key, n)
	return n
}

func runPatternRules(text string) Normalized {
	for _, rule := range patternRules {
		m := rule.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		fields := make(map[string]string)
		for i, name := range rule.re.SubexpNames() {
			if name != "" && m[i] != "" {
				fields[name] = m[i]
			}
		}
		cat, form, outFields := rule.build(fields)
		if cat == CategoryUnknown {
			continue
		}
		return Normalized{Category: cat, Form: form, Fields: outFields, Confidence: 1.0}
	}

	// Bare environment noun ("forest", "a snowy mountain") with no keyword
	// at all still reads as a background request.
	if isEnvironmentNoun(text) {
		desc := canonicalBackground(text)
		return Normalized{
			Category:   CategoryBackground,
			Form:       "background:" + desc,
			Fields:     map[string]string{"desc": desc},
			Confidence: 1.0,
		}
	}

	return Normalized{Category: CategoryUnknown, Confidence: 0}
}

// Equivalent reports whether two instructions normalize to the same
// (category, form) pair, the testable equivalence predicate.
func Equivalent(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	return na.Category == nb.Category && na.Form == nb.Form
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// CanonicalText lowercases, collapses whitespace, trims terminal
// punctuation, and drops leading politeness. All pattern families match
// against canonical text.
func CanonicalText(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(s, ".!?")
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	for _, p := range []string{"can you ", "could you ", "please "} {
		s = strings.TrimPrefix(s, p)
	}
	return s
}
