// Package condense reshapes fitted coefficients into per-condition virtual
// ERPs and applies baseline correction and output validation.
package condense

import (
	"fmt"
	"math"

	"github.com/avolkmann/erp-deconv/go-pipeline/internal/expand"
	"github.com/avolkmann/erp-deconv/go-pipeline/internal/glm"
)

// #region cube

// Cube is the condensed fit result: channel x lag x predictor. Slicing the
// predictor axis at k recovers exactly the time-resolved response
// attributable to model term k.
type Cube struct {
	Data     [][][]float64 // [channel][lag][term]
	LagTimes []float64
	Terms    []string
	Channels []string
	Rate     float64
}

// FromBetas rearranges the flattened (term x lag) beta rows into the cube.
func FromBetas(res *glm.Result, ex *expand.Expanded, channels []string) *Cube {
	nTerms := ex.Design.NumTerms()
	nLags := ex.NLags
	nch := len(channels)

	data := make([][][]float64, nch)
	for ch := 0; ch < nch; ch++ {
		data[ch] = make([][]float64, nLags)
		for l := 0; l < nLags; l++ {
			data[ch][l] = make([]float64, nTerms)
			for t := 0; t < nTerms; t++ {
				data[ch][l][t] = res.Beta.At(ex.Col(t, l), ch)
			}
		}
	}

	return &Cube{
		Data:     data,
		LagTimes: append([]float64(nil), ex.LagTimes()...),
		Terms:    append([]string(nil), ex.Design.Terms...),
		Channels: append([]string(nil), channels...),
		Rate:     ex.Rate,
	}
}

// NumConditions returns the number of non-intercept predictors.
func (c *Cube) NumConditions() int {
	n := len(c.Terms)
	if n > 0 && c.Terms[0] == "1" {
		n--
	}
	return n
}

// Condition extracts the virtual ERP for 1-based condition k. When the
// model carries an intercept the condition index is offset past it, so
// condition 1 is the first factor predictor.
func (c *Cube) Condition(k int) (*ERP, error) {
	term := k
	if len(c.Terms) == 0 || c.Terms[0] != "1" {
		term = k - 1
	}
	if k < 1 || term >= len(c.Terms) {
		return nil, fmt.Errorf("condition %d out of range (model has %d)", k, c.NumConditions())
	}

	data := make([][]float64, len(c.Data))
	for ch := range c.Data {
		data[ch] = make([]float64, len(c.LagTimes))
		for l := range c.LagTimes {
			data[ch][l] = c.Data[ch][l][term]
		}
	}
	return &ERP{
		Data:      data,
		LagTimes:  append([]float64(nil), c.LagTimes...),
		Channels:  c.Channels,
		Rate:      c.Rate,
		Condition: k,
	}, nil
}

// #endregion cube

// #region erp

// ERP is one condition's condensed, time-resolved response.
type ERP struct {
	Data      [][]float64 // [channel][lag]
	LagTimes  []float64   // seconds relative to event onset
	Channels  []string
	Rate      float64
	Condition int // 1-based condition index the slice came from
}

// BaselineCorrect subtracts each channel's mean amplitude over the
// [bStart, bEnd] lag window from the whole channel. Fails when the window
// contains no lag samples.
func (e *ERP) BaselineCorrect(bStart, bEnd float64) error {
	lo, hi, ok := e.window(bStart, bEnd)
	if !ok {
		return fmt.Errorf("baseline window [%v, %v] outside lag axis [%v, %v]",
			bStart, bEnd, e.LagTimes[0], e.LagTimes[len(e.LagTimes)-1])
	}
	n := float64(hi - lo + 1)
	for ch := range e.Data {
		var sum float64
		for l := lo; l <= hi; l++ {
			sum += e.Data[ch][l]
		}
		mean := sum / n
		for l := range e.Data[ch] {
			e.Data[ch][l] -= mean
		}
	}
	return nil
}

// Trim drops all lag samples before the cutoff (seconds), discarding the
// leading segment near stimulus onset that carries baseline-removal
// artifacts. A cutoff at or before the first lag is a no-op.
func (e *ERP) Trim(cutoff float64) {
	start := 0
	for start < len(e.LagTimes) && e.LagTimes[start] < cutoff-1e-9 {
		start++
	}
	if start == 0 {
		return
	}
	e.LagTimes = e.LagTimes[start:]
	for ch := range e.Data {
		e.Data[ch] = e.Data[ch][start:]
	}
}

// window returns the inclusive lag-index range covering [bStart, bEnd].
func (e *ERP) window(bStart, bEnd float64) (lo, hi int, ok bool) {
	lo = -1
	for i, tv := range e.LagTimes {
		if tv >= bStart-1e-9 && tv <= bEnd+1e-9 {
			if lo < 0 {
				lo = i
			}
			hi = i
		}
	}
	return lo, hi, lo >= 0
}

// #endregion erp

// #region validation

// Validation is the outcome of checking a condensed output for usability.
// A failed validation is an ordinary value, not an error: the pipeline
// completed, but the overlap correction produced no usable estimate.
type Validation struct {
	Passed    bool
	BadValues int // count of NaN/Inf samples
	Reason    string
}

// Validate scans the full output array for non-finite values.
func (e *ERP) Validate() Validation {
	bad := 0
	for ch := range e.Data {
		for _, v := range e.Data[ch] {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				bad++
			}
		}
	}
	if bad > 0 {
		return Validation{
			Passed:    false,
			BadValues: bad,
			Reason:    fmt.Sprintf("%d non-finite values in condensed output", bad),
		}
	}
	return Validation{Passed: true}
}

// #endregion validation
