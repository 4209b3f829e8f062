package types

import "testing"

func TestNextStage_WalksTheFullChain(t *testing.T) {
	seen := map[Stage]bool{StagePending: true}
	current := StagePending
	for {
		next, ok := NextStage(current)
		if !ok {
			break
		}
		if seen[next] {
			t.Fatalf("stage %s visited twice", next)
		}
		if StageOrder(next) != StageOrder(current)+1 {
			t.Fatalf("order not monotonic: %s -> %s", current, next)
		}
		seen[next] = true
		current = next
	}
	if current != StageDone {
		t.Fatalf("chain ended at %s, want %s", current, StageDone)
	}
}

func TestNextStage_TerminalAndUnknown(t *testing.T) {
	if _, ok := NextStage(StageDone); ok {
		t.Fatalf("Done must be terminal")
	}
	if _, ok := NextStage(StageInvalid); ok {
		t.Fatalf("Invalid must be terminal")
	}
	if _, ok := NextStage(Stage("nonsense")); ok {
		t.Fatalf("unknown stages must not advance")
	}
}

func TestTerminal(t *testing.T) {
	if !StageDone.Terminal() || !StageInvalid.Terminal() {
		t.Fatalf("Done and Invalid are terminal")
	}
	if StageValidation.Terminal() {
		t.Fatalf("Validation is not terminal")
	}
}

func TestStageOrder_InvalidIsOffChain(t *testing.T) {
	if StageOrder(StageInvalid) != -1 {
		t.Fatalf("Invalid has no chain position")
	}
}
