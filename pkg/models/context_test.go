package models

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestStatusValid(t *testing.T) {
	valid := []Status{StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled}
	for _, s := range valid {
		if !s.Valid() {
			t.Errorf("expected %q to be valid", s)
		}
	}
	if Status("bogus").Valid() {
		t.Error("expected 'bogus' to be invalid")
	}
}

func TestStatusTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		terminal bool
	}{
		{StatusPending, false},
		{StatusRunning, false},
		{StatusCompleted, true},
		{StatusFailed, true},
		{StatusCancelled, true},
	}
	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.terminal {
			t.Errorf("%s.Terminal() = %v, want %v", tt.status, got, tt.terminal)
		}
	}
}

func TestSetStatusRejectsTerminalTransitions(t *testing.T) {
	uif := NewExecutionContext("t1", "query", nil)

	if err := uif.SetStatus(StatusRunning); err != nil {
		t.Fatalf("pending -> running: %v", err)
	}
	if err := uif.SetStatus(StatusFailed); err != nil {
		t.Fatalf("running -> failed: %v", err)
	}
	if err := uif.SetStatus(StatusRunning); err == nil {
		t.Error("expected transition out of terminal status to fail")
	}
	if uif.Status() != StatusFailed {
		t.Errorf("status changed after rejected transition: %s", uif.Status())
	}
}

func TestSetStatusRejectsInvalid(t *testing.T) {
	uif := NewExecutionContext("t1", "query", nil)
	if err := uif.SetStatus(Status("bogus")); err == nil {
		t.Error("expected invalid status to be rejected")
	}
}

func TestPlanFreeze(t *testing.T) {
	uif := NewExecutionContext("t1", "query", nil)

	if err := uif.SetPlan([]string{"retrieve", "respond"}); err != nil {
		t.Fatalf("SetPlan: %v", err)
	}
	uif.FreezePlan()

	if err := uif.SetPlan([]string{"respond"}); err == nil {
		t.Error("expected SetPlan to fail after freeze")
	}

	plan := uif.Plan()
	if len(plan) != 2 || plan[0] != "retrieve" || plan[1] != "respond" {
		t.Errorf("plan mutated after rejected SetPlan: %v", plan)
	}
}

func TestPlanReturnsCopy(t *testing.T) {
	uif := NewExecutionContext("t1", "query", nil)
	uif.SetPlan([]string{"retrieve", "respond"})

	plan := uif.Plan()
	plan[0] = "mutated"

	if uif.Plan()[0] != "retrieve" {
		t.Error("Plan() exposed internal slice")
	}
}

func TestFinalResponseWriteOnce(t *testing.T) {
	uif := NewExecutionContext("t1", "query", nil)

	if err := uif.SetFinalResponse("first", 0.7); err != nil {
		t.Fatalf("first SetFinalResponse: %v", err)
	}
	if err := uif.SetFinalResponse("second", 0.9); err == nil {
		t.Error("expected second SetFinalResponse to fail")
	}

	resp, ok := uif.FinalResponse()
	if !ok || resp != "first" {
		t.Errorf("got response %q (set %v), want 'first'", resp, ok)
	}
	if uif.Confidence() != 0.7 {
		t.Errorf("confidence = %v, want 0.7", uif.Confidence())
	}
}

func TestFinalResponseClampsConfidence(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{-0.5, 0},
		{0.5, 0.5},
		{1.5, 1},
	}
	for _, tt := range tests {
		uif := NewExecutionContext("t1", "query", nil)
		uif.SetFinalResponse("r", tt.in)
		if got := uif.Confidence(); got != tt.want {
			t.Errorf("confidence(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIntermediateData(t *testing.T) {
	uif := NewExecutionContext("t1", "query", map[string]any{"seed": "value"})

	if !uif.Has("seed") {
		t.Error("expected seeded key to be present")
	}

	uif.Set("context", "some text")
	v, ok := uif.Get("context")
	if !ok || v != "some text" {
		t.Errorf("Get(context) = %v, %v", v, ok)
	}

	keys := uif.Keys()
	if !keys["seed"] || !keys["context"] {
		t.Errorf("Keys() = %v, want seed and context", keys)
	}
}

func TestVettingFlagSticky(t *testing.T) {
	uif := NewExecutionContext("t1", "query", nil)

	if uif.RequiresVetting() {
		t.Error("new context should not require vetting")
	}
	uif.FlagRequiresVetting()
	uif.FlagRequiresVetting()
	if !uif.RequiresVetting() {
		t.Error("vetting flag did not stick")
	}
}

func TestLogTraceOrdered(t *testing.T) {
	uif := NewExecutionContext("t1", "query", nil)
	for i := 0; i < 5; i++ {
		uif.Log("skill", "entry %d", i)
	}

	trace := uif.LogTrace()
	if len(trace) != 5 {
		t.Fatalf("trace length = %d, want 5", len(trace))
	}
	for i, entry := range trace {
		if want := fmt.Sprintf("entry %d", i); entry.Message != want {
			t.Errorf("trace[%d] = %q, want %q", i, entry.Message, want)
		}
	}
}

func TestScratchIsolation(t *testing.T) {
	uif := NewExecutionContext("t1", "query", map[string]any{"seed": 1})

	scratch := uif.Scratch()
	scratch.Set("private", "x")

	if uif.Has("private") {
		t.Error("scratch write leaked into root context before Absorb")
	}
	if !scratch.Has("seed") {
		t.Error("scratch missing snapshot of root data")
	}
	if len(uif.WrittenKeys()) != 0 {
		t.Errorf("root context tracked writes: %v", uif.WrittenKeys())
	}
	if got := scratch.WrittenKeys(); len(got) != 1 || got[0] != "private" {
		t.Errorf("scratch WrittenKeys = %v, want [private]", got)
	}
}

func TestAbsorbDeclaredOrderWins(t *testing.T) {
	uif := NewExecutionContext("t1", "query", nil)

	first := uif.Scratch()
	second := uif.Scratch()

	first.Set("shared", "from-first")
	second.Set("shared", "from-second")

	// Merging in declared plan order makes the later member's write final.
	uif.Absorb(first)
	uif.Absorb(second)

	v, _ := uif.Get("shared")
	if v != "from-second" {
		t.Errorf("shared = %v, want from-second", v)
	}
}

func TestAbsorbCarriesSideState(t *testing.T) {
	uif := NewExecutionContext("t1", "query", nil)

	scratch := uif.Scratch()
	scratch.Set("out", 42)
	scratch.MarkExecuted("web-fetch")
	scratch.RecordTiming("web-fetch", 10*time.Millisecond)
	scratch.Log("web-fetch", "fetched")
	scratch.Warn("web-fetch", "slow", "took a while")
	scratch.FlagRequiresVetting()

	uif.Absorb(scratch)

	if v, _ := uif.Get("out"); v != 42 {
		t.Errorf("out = %v, want 42", v)
	}
	if executed := uif.ExecutedSkills(); len(executed) != 1 || executed[0] != "web-fetch" {
		t.Errorf("executed = %v", executed)
	}
	if uif.Timings()["web-fetch"] != 10*time.Millisecond {
		t.Errorf("timing not absorbed: %v", uif.Timings())
	}
	if len(uif.LogTrace()) != 1 {
		t.Errorf("trace not absorbed: %v", uif.LogTrace())
	}
	if warnings := uif.Warnings(); len(warnings) != 1 || warnings[0].Code != "slow" {
		t.Errorf("warnings = %v", warnings)
	}
	if !uif.RequiresVetting() {
		t.Error("vetting flag not absorbed")
	}
}

func TestConcurrentAccess(t *testing.T) {
	uif := NewExecutionContext("t1", "query", nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", n)
			uif.Set(key, n)
			uif.Get(key)
			uif.Log("", "write %d", n)
			uif.MarkExecuted(key)
		}(i)
	}
	wg.Wait()

	if len(uif.Keys()) != 10 {
		t.Errorf("expected 10 keys, got %d", len(uif.Keys()))
	}
	if len(uif.ExecutedSkills()) != 10 {
		t.Errorf("expected 10 executed entries, got %d", len(uif.ExecutedSkills()))
	}
}
