package compile

import "testing"

func TestCompileSingleEdit(t *testing.T) {
	plan := Compile("Remove the hat!")
	if len(plan.Operations) != 1 {
		t.Fatalf("got %d operations, want 1: %+v", len(plan.Operations), plan.Operations)
	}
	op := plan.Operations[0]
	if op.Kind != KindRemoval || op.Target != "hat" {
		t.Errorf("kind/target = %q/%q, want removal/hat", op.Kind, op.Target)
	}
	if len(plan.Unparsed) != 0 {
		t.Errorf("unparsed = %v, want none", plan.Unparsed)
	}
}

func TestCompileCommaListInheritsVerb(t *testing.T) {
	plan := Compile("add a hat, cigar and a snake")
	if len(plan.Operations) != 3 {
		t.Fatalf("got %d operations, want 3: %+v", len(plan.Operations), plan.Operations)
	}
	wantTargets := []string{"hat", "cigar", "snake"}
	for i, op := range plan.Operations {
		if op.Kind != KindAddition {
			t.Errorf("op %d kind = %q, want %q", i, op.Kind, KindAddition)
		}
		if op.Target != wantTargets[i] {
			t.Errorf("op %d target = %q, want %q", i, op.Target, wantTargets[i])
		}
		if !op.Recovered {
			t.Errorf("op %d not marked recovered", i)
		}
	}
	if len(plan.Warnings) != 0 {
		t.Errorf("warnings = %v, want none", plan.Warnings)
	}
}

func TestCompileMixedOperations(t *testing.T) {
	plan := Compile("add a hat and change the background to a forest")
	if len(plan.Operations) != 2 {
		t.Fatalf("got %d operations, want 2: %+v", len(plan.Operations), plan.Operations)
	}
	addOp, bgOp := plan.Operations[0], plan.Operations[1]
	if addOp.Kind != KindAddition || addOp.Target != "hat" {
		t.Errorf("first op = %q/%q, want addition/hat", addOp.Kind, addOp.Target)
	}
	if bgOp.Kind != KindBackground || bgOp.Value != "forest" {
		t.Errorf("second op = %q/%q, want background/forest", bgOp.Kind, bgOp.Value)
	}
	if got := plan.BackgroundOp(); got == nil || got.Value != "forest" {
		t.Errorf("BackgroundOp() = %+v, want the forest edit", got)
	}
	if bgOp.Priority >= addOp.Priority {
		t.Errorf("background priority %d not below addition priority %d", bgOp.Priority, addOp.Priority)
	}
}

func TestCompileConflict(t *testing.T) {
	plan := Compile("add a hat and remove the hat")
	if len(plan.Operations) != 1 {
		t.Fatalf("got %d operations, want 1: %+v", len(plan.Operations), plan.Operations)
	}
	if plan.Operations[0].Kind != KindRemoval {
		t.Errorf("survivor kind = %q, want %q", plan.Operations[0].Kind, KindRemoval)
	}
	if len(plan.Overrides) != 1 || plan.Overrides[0].Rule != RuleRemovalWins {
		t.Fatalf("overrides = %+v, want one removal_wins record", plan.Overrides)
	}
}

func TestCompileUnparsed(t *testing.T) {
	plan := Compile("sparkles everywhere")
	if len(plan.Operations) != 0 {
		t.Fatalf("got %d operations, want 0: %+v", len(plan.Operations), plan.Operations)
	}
	if len(plan.Unparsed) != 1 || plan.Unparsed[0] != "sparkles everywhere" {
		t.Errorf("unparsed = %v, want [sparkles everywhere]", plan.Unparsed)
	}
}

func TestCompileAmbiguityWarning(t *testing.T) {
	// Two conjoined fragments, neither parseable, no verb to inherit.
	plan := Compile("sparkles everywhere and purple vibes")
	if len(plan.Operations) != 0 {
		t.Fatalf("got %d operations, want 0: %+v", len(plan.Operations), plan.Operations)
	}
	if len(plan.Unparsed) != 2 {
		t.Fatalf("unparsed = %v, want 2 fragments", plan.Unparsed)
	}
	found := false
	for _, w := range plan.Warnings {
		if w == "segmentation_ambiguity" {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %v, want segmentation_ambiguity", plan.Warnings)
	}
}

func TestCompileIdempotentReparse(t *testing.T) {
	// Re-classifying any resolved operation's source text reproduces it.
	instructions := []string{
		"add a hat, cigar and a snake",
		"add a hat and make the teeth golden",
		"change the background to a city and add sunglasses",
		"remove the background",
	}
	for _, instr := range instructions {
		for _, op := range Compile(instr).Operations {
			re := Classify(op.SourceText)
			if !re.Valid {
				t.Errorf("%q: reparse of %q invalid", instr, op.SourceText)
				continue
			}
			if re.Kind != op.Kind || re.Target != op.Target || re.Value != op.Value {
				t.Errorf("%q: reparse of %q = %q/%q/%q, want %q/%q/%q",
					instr, op.SourceText, re.Kind, re.Target, re.Value, op.Kind, op.Target, op.Value)
			}
		}
	}
}

func TestCompileNoiseTolerance(t *testing.T) {
	plan := Compile("  Please   ADD a   hat!! ")
	if len(plan.Operations) != 1 {
		t.Fatalf("got %d operations, want 1: %+v", len(plan.Operations), plan.Operations)
	}
	op := plan.Operations[0]
	if op.Kind != KindAddition || op.Target != "hat" {
		t.Errorf("op = %q/%q, want addition/hat", op.Kind, op.Target)
	}
}
