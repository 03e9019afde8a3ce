// Package label assigns experimental factor values to raw stimulus events.
//
// Each event's marker string is matched against two ordered label sets
// (factor A and factor B). A match stores the 1-based position of the label
// within its set on the event and rewrites the event's type to the fixed
// condition marker, so the design-matrix builder can select modeled events
// by exactly two categories.
package label

import (
	"errors"
	"fmt"
	"strings"

	"github.com/avolkmann/erp-deconv/go-pipeline/internal/recording"
)

// #region markers

// Rewritten event types for events matching a factor's label set.
const (
	TypeCondA = "condA"
	TypeCondB = "condB"
)

// #endregion markers

// #region config

// ErrOverlappingSets reports a label appearing in both factor sets.
// Overlapping membership would make the rewritten event type depend on
// evaluation order, so it is rejected up front as a configuration error.
var ErrOverlappingSets = errors.New("label appears in both factor sets")

// Sets holds the two ordered label sets defining factor membership.
// Both sets may be empty; an empty set matches nothing.
type Sets struct {
	FactorA []string
	FactorB []string
}

// ParseSet splits a comma-separated label list, trimming whitespace and
// dropping empty entries. Order is preserved: position defines the factor
// value assigned to matching events.
func ParseSet(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate rejects label sets with duplicate entries within a set or any
// label shared between the two sets.
func (s Sets) Validate() error {
	seenA := make(map[string]bool, len(s.FactorA))
	for _, l := range s.FactorA {
		if seenA[l] {
			return fmt.Errorf("duplicate label %q in factor A set", l)
		}
		seenA[l] = true
	}
	seenB := make(map[string]bool, len(s.FactorB))
	for _, l := range s.FactorB {
		if seenB[l] {
			return fmt.Errorf("duplicate label %q in factor B set", l)
		}
		seenB[l] = true
		if seenA[l] {
			return fmt.Errorf("%w: %q", ErrOverlappingSets, l)
		}
	}
	return nil
}

// #endregion config

// #region apply

// Stats summarizes one labeling pass.
type Stats struct {
	MatchedA  int
	MatchedB  int
	Unmatched int
}

// Apply labels every event in place. The trimmed marker string is looked up
// in each factor's set; a hit stores the 1-based set position and rewrites
// the event type to the factor's condition marker. Events in neither set
// keep their original type and get 0 for both factors.
//
// Sets must have passed Validate, so no event can match both factors.
func Apply(events []recording.Event, sets Sets) Stats {
	var st Stats
	for i := range events {
		ev := &events[i]
		raw := strings.TrimSpace(ev.Type)
		ev.FactorA = setIndex(sets.FactorA, raw)
		ev.FactorB = setIndex(sets.FactorB, raw)

		switch {
		case ev.FactorA > 0:
			ev.Type = TypeCondA
			st.MatchedA++
		case ev.FactorB > 0:
			ev.Type = TypeCondB
			st.MatchedB++
		default:
			st.Unmatched++
		}
	}
	return st
}

// setIndex returns the 1-based position of raw in set, or 0.
func setIndex(set []string, raw string) int {
	for i, l := range set {
		if l == raw {
			return i + 1
		}
	}
	return 0
}

// #endregion apply
