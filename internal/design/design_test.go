package design

import (
	"errors"
	"testing"

	"github.com/avolkmann/erp-deconv/go-pipeline/internal/label"
	"github.com/avolkmann/erp-deconv/go-pipeline/internal/recording"
)

func TestParseFormula(t *testing.T) {
	f, err := ParseFormula("amp ~ 1 + factorA + factorB")
	if err != nil {
		t.Fatalf("ParseFormula: %v", err)
	}
	if f.Response != "amp" {
		t.Fatalf("response: got %q", f.Response)
	}
	want := []string{"1", "factorA", "factorB"}
	if len(f.Terms) != len(want) {
		t.Fatalf("terms: got %v", f.Terms)
	}
	for i := range want {
		if f.Terms[i] != want[i] {
			t.Fatalf("term %d: got %q, want %q", i, f.Terms[i], want[i])
		}
	}
}

func TestParseFormulaErrors(t *testing.T) {
	cases := []string{
		"amp + factorA",       // no tilde
		" ~ 1 + factorA",      // empty response
		"amp ~ ",              // no terms
		"amp ~ factorA + 1",   // intercept not first
		"amp ~ 1 + + factorA", // empty term
	}
	for _, c := range cases {
		if _, err := ParseFormula(c); !errors.Is(err, ErrBadFormula) {
			t.Fatalf("%q: expected ErrBadFormula, got %v", c, err)
		}
	}
}

// Row count must equal the number of events in the modeled categories,
// column count the number of formula terms.
func TestBuildDims(t *testing.T) {
	events := []recording.Event{
		{Latency: 100, Type: label.TypeCondA, FactorA: 1},
		{Latency: 300, Type: label.TypeCondB, FactorB: 2},
		{Latency: 500, Type: "boundary"},
		{Latency: 700, Type: label.TypeCondA, FactorA: 2},
	}
	f, err := ParseFormula("amp ~ 1 + factorA + factorB")
	if err != nil {
		t.Fatalf("ParseFormula: %v", err)
	}

	dm, err := Build(events, []string{label.TypeCondA, label.TypeCondB}, f)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if dm.NumEvents() != 3 || dm.NumTerms() != 3 {
		t.Fatalf("dims: %d x %d, want 3 x 3", dm.NumEvents(), dm.NumTerms())
	}
	r, c := dm.X.Dims()
	if r != 3 || c != 3 {
		t.Fatalf("X dims: %d x %d", r, c)
	}

	// intercept first, factor values as assigned
	if dm.X.At(0, 0) != 1 || dm.X.At(0, 1) != 1 || dm.X.At(0, 2) != 0 {
		t.Fatalf("row 0: [%v %v %v]", dm.X.At(0, 0), dm.X.At(0, 1), dm.X.At(0, 2))
	}
	if dm.X.At(1, 2) != 2 {
		t.Fatalf("row 1 factorB: %v, want 2", dm.X.At(1, 2))
	}
	if dm.Latencies[2] != 700 {
		t.Fatalf("latency row 2: %d, want 700", dm.Latencies[2])
	}
}

func TestBuildUnknownTerm(t *testing.T) {
	f, err := ParseFormula("amp ~ 1 + factorC")
	if err != nil {
		t.Fatalf("ParseFormula: %v", err)
	}
	_, err = Build(nil, []string{label.TypeCondA}, f)
	if !errors.Is(err, ErrUnknownTerm) {
		t.Fatalf("expected ErrUnknownTerm, got %v", err)
	}
}

func TestBuildNoModeledEvents(t *testing.T) {
	f, _ := ParseFormula("amp ~ 1")
	dm, err := Build([]recording.Event{{Type: "other"}}, []string{label.TypeCondA}, f)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if dm.NumEvents() != 0 {
		t.Fatalf("expected zero rows, got %d", dm.NumEvents())
	}
}
