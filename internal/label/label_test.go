package label

import (
	"errors"
	"testing"

	"github.com/avolkmann/erp-deconv/go-pipeline/internal/recording"
)

func TestParseSet(t *testing.T) {
	got := ParseSet(" face , house ,, tool ")
	want := []string{"face", "house", "tool"}
	if len(got) != len(want) {
		t.Fatalf("ParseSet: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ParseSet[%d]: got %q, want %q", i, got[i], want[i])
		}
	}
	if ParseSet("  ") != nil {
		t.Fatal("expected nil set for blank input")
	}
}

func TestValidateOverlap(t *testing.T) {
	sets := Sets{FactorA: []string{"face", "house"}, FactorB: []string{"tool", "face"}}
	err := sets.Validate()
	if !errors.Is(err, ErrOverlappingSets) {
		t.Fatalf("expected ErrOverlappingSets, got %v", err)
	}

	sets = Sets{FactorA: []string{"face", "face"}}
	if sets.Validate() == nil {
		t.Fatal("expected duplicate-label error")
	}

	sets = Sets{FactorA: []string{"face"}, FactorB: []string{"tool"}}
	if err := sets.Validate(); err != nil {
		t.Fatalf("valid sets rejected: %v", err)
	}
}

// Factor values must be the 1-based set position of the matched label;
// unmatched events get 0 for both factors and keep their type.
func TestApplyFactorAssignment(t *testing.T) {
	events := []recording.Event{
		{Latency: 100, Type: " house "},
		{Latency: 200, Type: "face"},
		{Latency: 300, Type: "tool"},
		{Latency: 400, Type: "boundary"},
	}
	sets := Sets{
		FactorA: []string{"face", "house"},
		FactorB: []string{"tool"},
	}
	if err := sets.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	st := Apply(events, sets)

	if events[0].FactorA != 2 || events[0].FactorB != 0 {
		t.Fatalf("house: got A=%d B=%d, want A=2 B=0", events[0].FactorA, events[0].FactorB)
	}
	if events[0].Type != TypeCondA {
		t.Fatalf("house: type %q, want %q", events[0].Type, TypeCondA)
	}
	if events[1].FactorA != 1 {
		t.Fatalf("face: got A=%d, want 1", events[1].FactorA)
	}
	if events[2].FactorB != 1 || events[2].Type != TypeCondB {
		t.Fatalf("tool: got B=%d type=%q", events[2].FactorB, events[2].Type)
	}
	if events[3].FactorA != 0 || events[3].FactorB != 0 {
		t.Fatalf("boundary: got A=%d B=%d, want 0 0", events[3].FactorA, events[3].FactorB)
	}
	if events[3].Type != "boundary" {
		t.Fatalf("unmatched event type rewritten to %q", events[3].Type)
	}

	if st.MatchedA != 2 || st.MatchedB != 1 || st.Unmatched != 1 {
		t.Fatalf("stats: %+v", st)
	}
}

func TestApplyEmptySets(t *testing.T) {
	events := []recording.Event{{Latency: 10, Type: "x"}}
	st := Apply(events, Sets{})
	if st.Unmatched != 1 || events[0].FactorA != 0 || events[0].FactorB != 0 {
		t.Fatalf("empty sets should match nothing: %+v %+v", st, events[0])
	}
}
