package core

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type testState struct {
	Log []string
}

// TestConcat_EmptyFailsFast tests construction-time rejection of empty sequences
// Main test items:
// 1. Concat with zero effects returns ErrNoEffects
// 2. The error is returned at construction, before any execution
func TestConcat_EmptyFailsFast(t *testing.T) {
	_, err := Concat[testState, string]()
	if !errors.Is(err, ErrNoEffects) {
		t.Fatalf("Expected ErrNoEffects, got %v", err)
	}
}

// TestConcat_SingleEffect tests that a one-element sequence is the element itself
func TestConcat_SingleEffect(t *testing.T) {
	eff, err := Concat(Immediate[testState, string]("only"))
	if err != nil {
		t.Fatalf("Concat failed: %v", err)
	}
	if eff.kind != effectImmediate || eff.value != "only" {
		t.Errorf("Expected the single effect back, got %v", eff)
	}
}

// TestConcat_IdentityCollapses tests the monoid identity law
// Main test items:
// 1. Concat(None, task) collapses to task
// 2. Concat(task, None) collapses to task
// 3. None never adds a runtime step
func TestConcat_IdentityCollapses(t *testing.T) {
	task := Task(func(ctx context.Context, state *StateRef[testState]) (string, error) {
		return "work", nil
	}).WithID("work")

	left, err := Concat(None[testState, string](), task)
	if err != nil {
		t.Fatalf("Concat failed: %v", err)
	}
	if left.kind != effectTask || left.id != "work" {
		t.Errorf("None on the left did not collapse: %v", left)
	}

	right, err := Concat(task, None[testState, string]())
	if err != nil {
		t.Fatalf("Concat failed: %v", err)
	}
	if right.kind != effectTask || right.id != "work" {
		t.Errorf("None on the right did not collapse: %v", right)
	}

	both, err := Concat(None[testState, string](), task, None[testState, string]())
	if err != nil {
		t.Fatalf("Concat failed: %v", err)
	}
	if got := len(both.flatten()); got != 1 {
		t.Errorf("Expected 1 step after identity collapse, got %d", got)
	}
}

// TestConcat_OnlyIdentity tests that a sequence of identities is still valid
func TestConcat_OnlyIdentity(t *testing.T) {
	eff, err := Concat(None[testState, string](), None[testState, string]())
	if err != nil {
		t.Fatalf("Concat of identities failed: %v", err)
	}
	if !eff.isIdentity() {
		t.Errorf("Expected identity effect, got %v", eff)
	}
}

// TestFlatten_PreservesDeclaredOrder tests flattening of a nested tree
// Main test items:
// 1. Leaf effects appear in declared order
// 2. Nested Concat trees flatten to the same linear sequence
func TestFlatten_PreservesDeclaredOrder(t *testing.T) {
	mk := func(v string) Effect[testState, string] {
		return Immediate[testState, string](v)
	}

	ab, _ := Concat(mk("a"), mk("b"))
	cd, _ := Concat(mk("c"), mk("d"))
	all, _ := Concat(ab, cd)

	steps := all.flatten()
	if len(steps) != 4 {
		t.Fatalf("Expected 4 steps, got %d", len(steps))
	}
	var got []string
	for _, s := range steps {
		got = append(got, s.value)
	}
	want := "a,b,c,d"
	if strings.Join(got, ",") != want {
		t.Errorf("Expected order %s, got %s", want, strings.Join(got, ","))
	}
}

// TestFlatten_DeepChainIsIterative tests stack safety of deep sequences
// Main test items:
// 1. A 500-level concat chain flattens without recursion
// 2. Every step is visited exactly once
func TestFlatten_DeepChainIsIterative(t *testing.T) {
	const depth = 500

	acc := Immediate[testState, int](0)
	for i := 1; i < depth; i++ {
		acc = concatPair(acc, Immediate[testState, int](i))
	}

	steps := acc.flatten()
	if len(steps) != depth {
		t.Fatalf("Expected %d steps, got %d", depth, len(steps))
	}
	for i, s := range steps {
		if s.value != i {
			t.Fatalf("Step %d carries value %d", i, s.value)
		}
	}
}

// TestEffect_FluentCopies tests copy-on-write reconfiguration
// Main test items:
// 1. With* methods return modified copies
// 2. The original effect is never mutated
func TestEffect_FluentCopies(t *testing.T) {
	base := Task(func(ctx context.Context, state *StateRef[testState]) (string, error) {
		return "", nil
	})

	named := base.WithName("fetch")
	pinned := named.CancellableAs("fetch-1", true)
	ranked := pinned.WithPriority(PriorityUserBlocking)

	if base.name != "" || base.cancelInFlight {
		t.Error("Base effect was mutated by fluent calls")
	}
	if named.id != base.id {
		t.Error("WithName should not change the identity")
	}
	if !pinned.cancelInFlight || pinned.id != "fetch-1" {
		t.Errorf("CancellableAs not applied: %+v", pinned)
	}
	if ranked.priority != PriorityUserBlocking {
		t.Errorf("WithPriority not applied: %v", ranked.priority)
	}
	if pinned.priority != PriorityUserVisible {
		t.Error("WithPriority mutated its receiver")
	}
}

// TestEffect_FluentNoOpOnWrongKind tests that task-only settings leave other
// kinds unchanged
func TestEffect_FluentNoOpOnWrongKind(t *testing.T) {
	imm := Immediate[testState, string]("v").WithID("x").WithName("y").WithPriority(PriorityBestEffort)
	if imm.id != "" || imm.name != "" {
		t.Errorf("Immediate should ignore task settings: %+v", imm)
	}
}

// TestEffect_AutoIdentity tests auto-generated task identities
// Main test items:
// 1. Every Task gets a non-empty identity
// 2. Identities are unique across constructions
func TestEffect_AutoIdentity(t *testing.T) {
	op := func(ctx context.Context, state *StateRef[testState]) (string, error) {
		return "", nil
	}

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		e := Task(op)
		if e.id == "" {
			t.Fatal("Task identity is empty")
		}
		if seen[e.id] {
			t.Fatalf("Duplicate auto identity %s", e.id)
		}
		seen[e.id] = true
	}
}

// TestEffect_String tests the compact log rendering
func TestEffect_String(t *testing.T) {
	op := func(ctx context.Context, state *StateRef[testState]) (string, error) {
		return "", nil
	}

	if got := None[testState, string]().String(); got != "none" {
		t.Errorf("None renders as %q", got)
	}
	if got := Immediate[testState, string]("x").String(); got != "immediate" {
		t.Errorf("Immediate renders as %q", got)
	}
	if got := Task(op).CancellableAs("dl", false).String(); got != "task(dl)" {
		t.Errorf("Task renders as %q", got)
	}
	if got := CancelTasks[testState, string]("done", "a", "b").String(); got != "cancel(a,b)" {
		t.Errorf("Cancel renders as %q", got)
	}
	seq, _ := Concat(Immediate[testState, string]("a"), Immediate[testState, string]("b"))
	if got := seq.String(); got != "concat(2)" {
		t.Errorf("Concat renders as %q", got)
	}
}
