// Package expand implements the time-expansion ("stick function") transform
// at the heart of overlap correction.
//
// Each flat design-matrix row is replicated across a discretized lag axis
// spanning the peri-event window, placed at the sample rows covered by that
// event's own window. Where the windows of temporally adjacent events
// overlap, their contributions add — the additive structure is what lets a
// single regression separate overlapping responses.
//
// The full matrix has one row per signal sample and (terms x lags) columns
// but is almost entirely zero, so it is stored as per-event spans and
// materialized row-by-row on demand.
package expand

import (
	"fmt"
	"math"
	"sort"

	"github.com/avolkmann/erp-deconv/go-pipeline/internal/design"
)

// #region types

// span is one event's clipped contribution range on the lag axis.
type span struct {
	row     int // design-matrix row
	start   int // first covered sample index (clipped)
	end     int // last covered sample index (clipped, inclusive)
	lagBase int // lag bin corresponding to sample index start
}

// Expanded is the time-expanded design matrix for one recording.
type Expanded struct {
	Design   *design.Matrix
	NSamples int
	NLags    int
	Rate     float64
	WinStart float64 // seconds relative to event onset
	WinEnd   float64

	lagSample0 int // sample offset of lag bin 0 relative to event latency
	lagTimes   []float64
	spans      []span // sorted by start sample
}

// #endregion types

// #region construction

// New builds the time-expanded view of a design matrix over a recording of
// nSamples samples at the given rate, with a peri-event window of
// [winStart, winEnd] seconds. Event windows crossing either edge of the
// recording are clipped sample-by-sample; clipping never changes the matrix
// dimensions and never fails.
func New(dm *design.Matrix, nSamples int, rate, winStart, winEnd float64) (*Expanded, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("sampling rate %v not positive", rate)
	}
	if winEnd < winStart {
		return nil, fmt.Errorf("window end %v before start %v", winEnd, winStart)
	}
	if nSamples <= 0 {
		return nil, fmt.Errorf("sample count %d not positive", nSamples)
	}

	lagSample0 := int(math.Round(winStart * rate))
	nLags := int(math.Round((winEnd-winStart)*rate)) + 1

	lagTimes := make([]float64, nLags)
	for l := 0; l < nLags; l++ {
		lagTimes[l] = float64(lagSample0+l) / rate
	}

	ex := &Expanded{
		Design:     dm,
		NSamples:   nSamples,
		NLags:      nLags,
		Rate:       rate,
		WinStart:   winStart,
		WinEnd:     winEnd,
		lagSample0: lagSample0,
		lagTimes:   lagTimes,
	}

	for row, latency := range dm.Latencies {
		first := latency + lagSample0 // unclipped window start sample
		start, end := first, first+nLags-1
		if start < 0 {
			start = 0
		}
		if end > nSamples-1 {
			end = nSamples - 1
		}
		if start > end {
			continue // window entirely outside the recording
		}
		ex.spans = append(ex.spans, span{
			row:     row,
			start:   start,
			end:     end,
			lagBase: start - first,
		})
	}
	sort.Slice(ex.spans, func(i, j int) bool { return ex.spans[i].start < ex.spans[j].start })

	return ex, nil
}

// #endregion construction

// #region accessors

// Dims returns the figurative dense dimensions: total signal samples by
// (design columns x lag bins).
func (ex *Expanded) Dims() (rows, cols int) {
	return ex.NSamples, ex.Design.NumTerms() * ex.NLags
}

// LagTimes returns the lag-time axis in seconds relative to event onset.
// It is monotonically increasing and spans [WinStart, WinEnd].
func (ex *Expanded) LagTimes() []float64 {
	return ex.lagTimes
}

// Col returns the expanded column index for a term and lag bin.
// Columns are term-major: all lags of term 0, then all lags of term 1, ...
func (ex *Expanded) Col(term, lag int) int {
	return term*ex.NLags + lag
}

// Row materializes one dense sample row, summing contributions from every
// event whose window covers the sample. Intended for tests and inspection;
// the fitter uses Scan.
func (ex *Expanded) Row(sample int) []float64 {
	_, cols := ex.Dims()
	out := make([]float64, cols)
	nTerms := ex.Design.NumTerms()
	for _, sp := range ex.spans {
		if sp.start > sample {
			break
		}
		if sp.end < sample {
			continue
		}
		lag := sp.lagBase + (sample - sp.start)
		for t := 0; t < nTerms; t++ {
			out[ex.Col(t, lag)] += ex.Design.X.At(sp.row, t)
		}
	}
	return out
}

// #endregion accessors

// #region scan

// Entry is one non-zero contribution within a sample row. Several entries
// in the same row may share a column; the row value is their sum.
type Entry struct {
	Col int
	Val float64
}

// Scan visits every sample row that has at least one contribution, in
// ascending sample order. The entries slice is reused between calls and
// must not be retained.
func (ex *Expanded) Scan(visit func(sample int, entries []Entry)) {
	nTerms := ex.Design.NumTerms()
	var active []span
	next := 0
	var buf []Entry

	for s := 0; s < ex.NSamples; s++ {
		for next < len(ex.spans) && ex.spans[next].start == s {
			active = append(active, ex.spans[next])
			next++
		}
		if len(active) == 0 {
			if next < len(ex.spans) {
				s = ex.spans[next].start - 1 // skip the empty gap
				continue
			}
			break
		}

		buf = buf[:0]
		live := active[:0]
		for _, sp := range active {
			if sp.end < s {
				continue
			}
			live = append(live, sp)
			lag := sp.lagBase + (s - sp.start)
			for t := 0; t < nTerms; t++ {
				v := ex.Design.X.At(sp.row, t)
				if v != 0 {
					buf = append(buf, Entry{Col: ex.Col(t, lag), Val: v})
				}
			}
		}
		active = live
		if len(buf) > 0 {
			visit(s, buf)
		}
	}
}

// #endregion scan
