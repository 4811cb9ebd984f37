package chain

import (
	"testing"

	"github.com/fpang/design-refine/internal/compile"
)

func TestDefaultState(t *testing.T) {
	s := DefaultState()
	if s.Kind != StateDefault {
		t.Errorf("kind = %q, want %q", s.Kind, StateDefault)
	}
	if s.Description != DefaultDescription {
		t.Errorf("description = %q, want %q", s.Description, DefaultDescription)
	}
	if s.ExplicitlySet {
		t.Error("ExplicitlySet = true on default state")
	}
}

func TestApplyExplicitBackground(t *testing.T) {
	op := compile.Compile("change the background to a forest").Operations[0]
	s := DefaultState().Apply(op)
	if s.Kind != StateExplicit {
		t.Errorf("kind = %q, want %q", s.Kind, StateExplicit)
	}
	if s.Description != "forest background" {
		t.Errorf("description = %q, want \"forest background\"", s.Description)
	}
	if !s.ExplicitlySet || !s.PreserveAcrossRefinements {
		t.Errorf("flags = %v/%v, want both set", s.ExplicitlySet, s.PreserveAcrossRefinements)
	}
}

func TestApplyReplacementSupersedes(t *testing.T) {
	forest := DefaultState().Apply(compile.Compile("change the background to a forest").Operations[0])
	city := forest.Apply(compile.Compile("change the background to a city").Operations[0])
	if city.Description != "city background" {
		t.Errorf("description = %q, want \"city background\" with no forest residue", city.Description)
	}
}

func TestApplyRemoval(t *testing.T) {
	forest := DefaultState().Apply(compile.Compile("change the background to a forest").Operations[0])
	s := forest.Apply(compile.Compile("remove the background").Operations[0])
	if s.Kind != StateRemoved {
		t.Errorf("kind = %q, want %q", s.Kind, StateRemoved)
	}
	if s.Description != DefaultDescription {
		t.Errorf("description = %q, want %q", s.Description, DefaultDescription)
	}
	if s.PreserveAcrossRefinements {
		t.Error("PreserveAcrossRefinements = true after removal")
	}
}

func TestApplyIgnoresNonBackgroundOps(t *testing.T) {
	forest := DefaultState().Apply(compile.Compile("change the background to a forest").Operations[0])
	after := forest.Apply(compile.Compile("add a hat").Operations[0])
	if after != forest {
		t.Errorf("state changed on a non-background op: %+v -> %+v", forest, after)
	}
}

func TestInherited(t *testing.T) {
	forest := DefaultState().Apply(compile.Compile("change the background to a forest").Operations[0])
	in := forest.Inherited()
	if in.Kind != StateInherited {
		t.Errorf("kind = %q, want %q", in.Kind, StateInherited)
	}
	if in.Description != "forest background" {
		t.Errorf("description = %q, want \"forest background\"", in.Description)
	}
	if in.ExplicitlySet {
		t.Error("ExplicitlySet = true on an inherited state")
	}
}
