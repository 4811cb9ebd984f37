package compile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizeTarget(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"the glasses", "sunglasses"},
		{"his cigarette", "cigar"},
		{"it", MainSubjectTarget},
		{"everything", MainSubjectTarget},
		{"", MainSubjectTarget},
		{"left tooth", "left teeth"},
		{"hat", "hat"},
	}
	for _, tt := range tests {
		if got := NormalizeTarget(tt.input); got != tt.want {
			t.Errorf("NormalizeTarget(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestRelatedPart(t *testing.T) {
	host, ok := RelatedPart("teeth")
	if !ok || host != "skull" {
		t.Errorf("RelatedPart(teeth) = %q, %v, want skull, true", host, ok)
	}
	if _, ok := RelatedPart("hat"); ok {
		t.Error("RelatedPart(hat) reported a host, want none")
	}
}

func TestLoadVocabulary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.yaml")
	data := []byte(`target_synonyms:
  topper: hat
environments:
  - swamp
colors:
  - chartreuse
related_parts:
  brim: hat
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := LoadVocabulary(path); err != nil {
		t.Fatalf("LoadVocabulary: %v", err)
	}

	if got := NormalizeTarget("the topper"); got != "hat" {
		t.Errorf("NormalizeTarget(topper) = %q, want hat", got)
	}
	if n := Normalize("swamp"); n.Category != CategoryBackground || n.Form != "background:swamp" {
		t.Errorf("bare swamp = %q/%q, want background/background:swamp", n.Category, n.Form)
	}
	if n := Normalize("make the hat chartreuse"); n.Category != CategoryColorChange {
		t.Errorf("chartreuse category = %q, want %q", n.Category, CategoryColorChange)
	}
	if host, ok := RelatedPart("brim"); !ok || host != "hat" {
		t.Errorf("RelatedPart(brim) = %q, %v, want hat, true", host, ok)
	}
}

func TestLoadVocabularyMissingFile(t *testing.T) {
	if err := LoadVocabulary(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
