// Package design builds the per-event linear-model design matrix.
//
// A formula of the form "amp ~ 1 + factorA + factorB" declares the model
// terms. Each term resolves against an event attribute (the factor values
// assigned by the label package) or the constant intercept term "1".
// Rows are restricted to events whose rewritten type is one of the modeled
// categories; column order follows formula term order, intercept first.
package design

import (
	"errors"
	"fmt"
	"strings"

	"github.com/avolkmann/erp-deconv/go-pipeline/internal/recording"
	"gonum.org/v1/gonum/mat"
)

// #region errors

// ErrBadFormula reports a formula string that does not parse.
var ErrBadFormula = errors.New("malformed formula")

// ErrUnknownTerm reports a formula term with no per-event attribute.
var ErrUnknownTerm = errors.New("unknown formula term")

// #endregion errors

// #region formula

// Formula is a parsed linear-model declaration.
type Formula struct {
	Response string
	Terms    []string // in declared order; "1" is the intercept
}

// ParseFormula parses "response ~ term + term + ...". Terms are trimmed;
// the intercept term "1", when present, must come first.
func ParseFormula(s string) (Formula, error) {
	parts := strings.SplitN(s, "~", 2)
	if len(parts) != 2 {
		return Formula{}, fmt.Errorf("%w: %q (missing '~')", ErrBadFormula, s)
	}
	resp := strings.TrimSpace(parts[0])
	if resp == "" {
		return Formula{}, fmt.Errorf("%w: %q (empty response)", ErrBadFormula, s)
	}

	var terms []string
	for _, raw := range strings.Split(parts[1], "+") {
		term := strings.TrimSpace(raw)
		if term == "" {
			return Formula{}, fmt.Errorf("%w: %q (empty term)", ErrBadFormula, s)
		}
		if term == "1" && len(terms) > 0 {
			return Formula{}, fmt.Errorf("%w: %q (intercept must be first)", ErrBadFormula, s)
		}
		terms = append(terms, term)
	}
	if len(terms) == 0 {
		return Formula{}, fmt.Errorf("%w: %q (no terms)", ErrBadFormula, s)
	}
	return Formula{Response: resp, Terms: terms}, nil
}

// #endregion formula

// #region matrix

// Matrix is the flat (pre-expansion) design matrix: one row per modeled
// event, one column per formula term.
type Matrix struct {
	X         *mat.Dense // nEvents x nTerms
	Terms     []string   // column names, formula order
	Latencies []int      // per-row event latency in samples
}

// NumEvents returns the row count.
func (m *Matrix) NumEvents() int { return len(m.Latencies) }

// NumTerms returns the column count.
func (m *Matrix) NumTerms() int { return len(m.Terms) }

// Build evaluates the formula against every event whose type is in the
// modeled category list. A term that names no event attribute fails with
// ErrUnknownTerm.
func Build(events []recording.Event, categories []string, f Formula) (*Matrix, error) {
	modeled := make(map[string]bool, len(categories))
	for _, c := range categories {
		modeled[c] = true
	}

	var rows []recording.Event
	for _, ev := range events {
		if modeled[ev.Type] {
			rows = append(rows, ev)
		}
	}

	// validate terms even when no event qualifies, so a bad formula is a
	// configuration error regardless of the event stream
	for _, term := range f.Terms {
		if _, err := termValue(recording.Event{}, term); err != nil {
			return nil, err
		}
	}

	nr := len(rows)
	latencies := make([]int, nr)
	var x *mat.Dense
	if nr > 0 {
		x = mat.NewDense(nr, len(f.Terms), nil)
		for i, ev := range rows {
			latencies[i] = ev.Latency
			for j, term := range f.Terms {
				v, _ := termValue(ev, term)
				x.Set(i, j, v)
			}
		}
	}

	// X stays nil for an empty row set; the fitter rejects empty designs
	return &Matrix{X: x, Terms: append([]string(nil), f.Terms...), Latencies: latencies}, nil
}

// termValue resolves one formula term against one event.
func termValue(ev recording.Event, term string) (float64, error) {
	switch term {
	case "1":
		return 1, nil
	case "factorA":
		return float64(ev.FactorA), nil
	case "factorB":
		return float64(ev.FactorB), nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownTerm, term)
	}
}

// #endregion matrix
