// Package glm solves the overlap-correction regression: the least-squares
// mapping from the time-expanded design matrix onto the continuous
// multichannel signal.
//
// The expanded matrix is tall and extremely sparse, so the normal equations
// X'X and X'Y are accumulated directly from the per-sample stick entries
// (skipping artifact-masked rows) and solved once for all channels jointly.
// The fast path is a Cholesky factorization; for exactly collinear designs
// it falls back to an SVD minimum-norm solve, which matches the
// pseudoinverse behavior expected of this model family. A design whose
// normal matrix has no usable rank fails with ErrRankDeficient.
package glm

import (
	"errors"
	"fmt"
	"log"

	"github.com/avolkmann/erp-deconv/go-pipeline/internal/artifacts"
	"github.com/avolkmann/erp-deconv/go-pipeline/internal/expand"
	"gonum.org/v1/gonum/mat"
)

// #region errors

// ErrRankDeficient reports a design the solver cannot fit.
var ErrRankDeficient = errors.New("design matrix rank deficient")

// ErrNoEvents reports an expanded design with no surviving events.
var ErrNoEvents = errors.New("no modeled events in design")

// #endregion errors

// #region config

// Config holds fitter parameters.
type Config struct {
	// Ridge is added to the normal-matrix diagonal. The canonical
	// two-condition model is collinear by construction (the intercept is
	// the sum of the condition indicators), so a small positive value
	// keeps the fast Cholesky path usable; 0 forces the SVD fallback for
	// such designs.
	Ridge float64
}

// DefaultConfig returns the fitter defaults.
func DefaultConfig() Config {
	return Config{Ridge: 1e-6}
}

// #endregion config

// #region result

// Result holds the fitted coefficients.
type Result struct {
	// Beta is (terms x lags) rows by channel columns; row indexing follows
	// expand.Expanded.Col.
	Beta *mat.Dense
}

// #endregion result

// #region fit

// Fit solves Y ~ X beta over the non-excluded sample rows, all channels
// jointly. data is [channel][sample] and must match the expanded row count.
func Fit(ex *expand.Expanded, data [][]float64, mask *artifacts.Mask, cfg Config) (*Result, error) {
	if ex.Design.NumEvents() == 0 {
		return nil, ErrNoEvents
	}
	rows, p := ex.Dims()
	if len(data) == 0 || len(data[0]) != rows {
		return nil, fmt.Errorf("signal shape does not match expanded rows %d", rows)
	}
	nch := len(data)

	xtx := mat.NewSymDense(p, nil)
	xty := mat.NewDense(p, nch, nil)

	used := 0
	ex.Scan(func(sample int, entries []expand.Entry) {
		if mask != nil && mask.Excluded(sample) {
			return
		}
		used++
		// outer product of the sparse sample row with itself; two entries
		// sharing a column are distinct sticks summing on that column, so
		// their cross term lands on the diagonal twice
		for i, a := range entries {
			for j := i; j < len(entries); j++ {
				b := entries[j]
				prod := a.Val * b.Val
				switch {
				case i == j:
					xtx.SetSym(a.Col, a.Col, xtx.At(a.Col, a.Col)+prod)
				case a.Col == b.Col:
					xtx.SetSym(a.Col, a.Col, xtx.At(a.Col, a.Col)+2*prod)
				default:
					r, c := a.Col, b.Col
					if r > c {
						r, c = c, r
					}
					xtx.SetSym(r, c, xtx.At(r, c)+prod)
				}
			}
			for ch := 0; ch < nch; ch++ {
				xty.Set(a.Col, ch, xty.At(a.Col, ch)+a.Val*data[ch][sample])
			}
		}
	})
	if used == 0 {
		return nil, fmt.Errorf("%w: every covered sample is excluded", ErrRankDeficient)
	}

	if cfg.Ridge > 0 {
		for i := 0; i < p; i++ {
			xtx.SetSym(i, i, xtx.At(i, i)+cfg.Ridge)
		}
	}

	beta := mat.NewDense(p, nch, nil)

	var chol mat.Cholesky
	if chol.Factorize(xtx) {
		if err := chol.SolveTo(beta, xty); err == nil {
			return &Result{Beta: beta}, nil
		}
	}

	// exact collinearity: minimum-norm solve on the normal equations
	log.Printf("[FIT] normal matrix not positive definite, using SVD fallback")
	var svd mat.SVD
	if !svd.Factorize(xtx, mat.SVDThin) {
		return nil, fmt.Errorf("%w: SVD did not converge", ErrRankDeficient)
	}
	values := svd.Values(nil)
	rank := 0
	tol := 1e-12 * values[0] * float64(p)
	for _, v := range values {
		if v > tol {
			rank++
		}
	}
	if rank == 0 {
		return nil, fmt.Errorf("%w: zero-rank normal matrix", ErrRankDeficient)
	}
	svd.SolveTo(beta, xty, rank)

	return &Result{Beta: beta}, nil
}

// #endregion fit
