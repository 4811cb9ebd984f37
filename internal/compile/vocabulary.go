package compile

// vocabulary.go holds the word tables the pattern families draw from: action
// verbs, environment nouns, color words, target synonyms, related scene parts,
// and the misspellings of "background" users actually type. New phrasings are
// supported by adding table rows, not by editing control flow.

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// backgroundWordAlt is the regex alternation matching "background" and the
// typo variants seen in real instructions.
const backgroundWordAlt = `(?:background|backgound|backround|bakground|back\s?ground|backdrop|bg)`

var (
	additionVerbs     = []string{"add", "put", "give", "place", "attach", "include", "draw", "stick"}
	removalVerbs      = []string{"remove", "delete", "erase", "drop", "clear"}
	modificationVerbs = []string{"change", "make", "turn", "set", "switch", "paint", "color", "recolor", "dye"}
)

// vocabMu guards the mutable tables below. They are written only by
// LoadVocabulary at startup; all later access is read-only.
var vocabMu sync.RWMutex

// environmentNouns are bare nouns that read as a background request on their
// own ("forest", "snow behind him") without any background keyword.
var environmentNouns = map[string]bool{
	"forest": true, "jungle": true, "beach": true, "ocean": true, "sea": true,
	"city": true, "street": true, "mountain": true, "mountains": true,
	"snow": true, "desert": true, "space": true, "galaxy": true, "sky": true,
	"clouds": true, "sunset": true, "sunrise": true, "night": true,
	"rain": true, "fire": true, "flames": true, "underwater": true,
	"park": true, "garden": true, "studio": true, "stage": true,
	"graveyard": true, "castle": true, "cave": true, "volcano": true,
}

// colorWords detect the colorChange category and the odd "put some red on it"
// phrasings.
var colorWords = map[string]bool{
	"red": true, "blue": true, "green": true, "yellow": true, "orange": true,
	"purple": true, "pink": true, "black": true, "white": true, "grey": true,
	"gray": true, "brown": true, "gold": true, "golden": true, "silver": true,
	"bronze": true, "teal": true, "cyan": true, "magenta": true, "maroon": true,
	"navy": true, "crimson": true, "turquoise": true, "neon": true,
	"darker": true, "lighter": true, "brighter": true,
}

// targetSynonyms maps surface words onto the canonical target used for
// conflict grouping and object matching.
var targetSynonyms = map[string]string{
	"glasses":    "sunglasses",
	"shades":     "sunglasses",
	"specs":      "sunglasses",
	"spectacles": "sunglasses",
	"cigarette":  "cigar",
	"smoke":      "cigar",
	"stogie":     "cigar",
	"tooth":      "teeth",
	"fangs":      "teeth",
	"cap":        "hat",
	"beanie":     "hat",
	"fedora":     "hat",
	"necklace":   "chain",
	"chains":     "chain",
	"sneakers":   "shoes",
	"kicks":      "shoes",
	"bandanna":   "bandana",
}

// relatedParts maps a modification target onto the scene object that hosts it,
// for targets that are parts rather than whole objects ("the teeth" live on
// the skull).
var relatedParts = map[string]string{
	"teeth": "skull",
	"eyes":  "skull",
	"mouth": "skull",
	"grin":  "skull",
	"smile": "skull",
	"jaw":   "skull",
	"horns": "skull",
	"laces": "shoes",
	"lens":  "sunglasses",
}

// VocabularyFile is the YAML shape accepted by LoadVocabulary.
type VocabularyFile struct {
	TargetSynonyms map[string]string `yaml:"target_synonyms"`
	Environments   []string          `yaml:"environments"`
	Colors         []string          `yaml:"colors"`
	RelatedParts   map[string]string `yaml:"related_parts"`
}

// LoadVocabulary merges word-table overrides from a YAML file into the
// built-in tables. Intended to be called once at startup, before any
// instruction is compiled; it resets the normalization memo.
func LoadVocabulary(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read vocabulary file: %w", err)
	}
	var vf VocabularyFile
	if err := yaml.Unmarshal(data, &vf); err != nil {
		return fmt.Errorf("parse vocabulary file %s: %w", path, err)
	}

	vocabMu.Lock()
	for k, v := range vf.TargetSynonyms {
		targetSynonyms[strings.ToLower(k)] = strings.ToLower(v)
	}
	for _, e := range vf.Environments {
		environmentNouns[strings.ToLower(e)] = true
	}
	for _, c := range vf.Colors {
		colorWords[strings.ToLower(c)] = true
	}
	for k, v := range vf.RelatedParts {
		relatedParts[strings.ToLower(k)] = strings.ToLower(v)
	}
	vocabMu.Unlock()

	resetNormalizeMemo()

	log.Info().
		Str("path", path).
		Int("synonyms", len(vf.TargetSynonyms)).
		Int("environments", len(vf.Environments)).
		Int("colors", len(vf.Colors)).
		Msg("Vocabulary overrides loaded")
	return nil
}

// actionVerbs returns every verb that signals an edit intent.
func actionVerbs() []string {
	verbs := make([]string, 0, len(additionVerbs)+len(removalVerbs)+len(modificationVerbs))
	verbs = append(verbs, additionVerbs...)
	verbs = append(verbs, removalVerbs...)
	verbs = append(verbs, modificationVerbs...)
	return verbs
}

// isColor reports whether w is a known color word.
func isColor(w string) bool {
	vocabMu.RLock()
	defer vocabMu.RUnlock()
	return colorWords[strings.ToLower(strings.TrimSpace(w))]
}

// isEnvironmentNoun reports whether the first word of phrase (articles
// stripped) is a known environment noun.
func isEnvironmentNoun(phrase string) bool {
	p := stripArticles(strings.ToLower(strings.TrimSpace(phrase)))
	first, _, _ := strings.Cut(p, " ")
	vocabMu.RLock()
	defer vocabMu.RUnlock()
	return environmentNouns[first]
}

// NormalizeTarget maps a surface target phrase onto its canonical form:
// lowercased, articles and possessives stripped, synonyms applied.
// "the glasses" and "sunglasses" normalize to the same target.
func NormalizeTarget(t string) string {
	t = stripArticles(strings.ToLower(strings.TrimSpace(t)))
	t = strings.TrimSuffix(t, ".")
	if t == "it" || t == "everything" || t == "" {
		return MainSubjectTarget
	}
	vocabMu.RLock()
	defer vocabMu.RUnlock()
	if canonical, ok := targetSynonyms[t]; ok {
		return canonical
	}
	// Apply synonyms word-by-word for multi-word targets ("left tooth").
	words := strings.Fields(t)
	for i, w := range words {
		if canonical, ok := targetSynonyms[w]; ok {
			words[i] = canonical
		}
	}
	return strings.Join(words, " ")
}

// RelatedPart returns the scene object hosting the given target, if the
// target is a known part ("teeth" -> "skull"). The second return is false
// when no relation is known.
func RelatedPart(target string) (string, bool) {
	vocabMu.RLock()
	defer vocabMu.RUnlock()
	host, ok := relatedParts[normalizeTargetLocked(target)]
	return host, ok
}

// normalizeTargetLocked is NormalizeTarget without the lock, for callers
// already holding vocabMu.
func normalizeTargetLocked(t string) string {
	t = stripArticles(strings.ToLower(strings.TrimSpace(t)))
	if canonical, ok := targetSynonyms[t]; ok {
		return canonical
	}
	return t
}

// stripArticles removes leading articles and possessives from a phrase.
func stripArticles(s string) string {
	for {
		trimmed := s
		for _, a := range []string{"a ", "an ", "the ", "some ", "his ", "her ", "its ", "their ", "my "} {
			if strings.HasPrefix(trimmed, a) {
				trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, a))
			}
		}
		if trimmed == s {
			return s
		}
		s = trimmed
	}
}
