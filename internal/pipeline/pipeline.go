// Package pipeline runs the per-subject deconvolution state machine and the
// batch loop around it.
//
// One subject walks Loaded -> Labeled -> DesignBuilt -> TimeExpanded ->
// ArtifactMasked -> Fitted -> Condensed -> Validated -> Saved. Every stage
// returns a typed result; any failure (including a recovered panic) routes
// the subject to Failed with the stage and reason recorded, and the batch
// moves on to the next subject.
package pipeline

import (
	"errors"
	"fmt"
	"log"

	"github.com/avolkmann/erp-deconv/go-pipeline/internal/artifacts"
	"github.com/avolkmann/erp-deconv/go-pipeline/internal/condense"
	"github.com/avolkmann/erp-deconv/go-pipeline/internal/design"
	"github.com/avolkmann/erp-deconv/go-pipeline/internal/expand"
	"github.com/avolkmann/erp-deconv/go-pipeline/internal/filterbank"
	"github.com/avolkmann/erp-deconv/go-pipeline/internal/glm"
	"github.com/avolkmann/erp-deconv/go-pipeline/internal/label"
	"github.com/avolkmann/erp-deconv/go-pipeline/internal/recording"
	"github.com/avolkmann/erp-deconv/go-pipeline/internal/runlog"
	"github.com/avolkmann/erp-deconv/go-pipeline/internal/store"
)

// #region runner

// Runner executes subjects against one immutable BatchConfig.
type Runner struct {
	cfg   BatchConfig
	store *store.Store
	rlog  *runlog.Logger
}

// NewRunner wires a runner. The config must have passed Validate.
func NewRunner(cfg BatchConfig, st *store.Store, rlog *runlog.Logger) *Runner {
	return &Runner{cfg: cfg, store: st, rlog: rlog}
}

// #endregion runner

// #region subject

// RunSubject executes the full pipeline for one loaded recording. It never
// panics: recovered panics become io-kind failures, matching the rule that
// nothing escapes the subject boundary.
func (r *Runner) RunSubject(rec *recording.Recording) (result SubjectResult) {
	result = SubjectResult{Subject: rec.Source}
	defer func() {
		if p := recover(); p != nil {
			result.State = StateFailed
			result.Failure = &Failure{
				Kind:   FailIO,
				Stage:  StateLoaded,
				Reason: fmt.Sprintf("panic: %v", p),
			}
		}
	}()

	fail := func(stage State, kind FailureKind, err error) SubjectResult {
		result.State = StateFailed
		result.Failure = &Failure{Kind: kind, Stage: stage, Reason: err.Error(), Err: err}
		return result
	}

	// prefilter (collaborator stage, runs before the core)
	if err := filterbank.Apply(rec.Data, rec.Rate, r.cfg.BandLow, r.cfg.BandHigh); err != nil {
		return fail(StateLoaded, FailConfig, err)
	}

	// Loaded -> Labeled
	stats := label.Apply(rec.Events, r.cfg.Sets())
	log.Printf("[SUBJ] %s: labeled %d A, %d B, %d unmatched", rec.Source, stats.MatchedA, stats.MatchedB, stats.Unmatched)

	// Labeled -> DesignBuilt
	formula, err := design.ParseFormula(r.cfg.Formula)
	if err != nil {
		return fail(StateDesignBuilt, FailConfig, err)
	}
	dm, err := design.Build(rec.Events, []string{label.TypeCondA, label.TypeCondB}, formula)
	if err != nil {
		return fail(StateDesignBuilt, FailConfig, err)
	}

	// DesignBuilt -> TimeExpanded
	ex, err := expand.New(dm, rec.Samples(), rec.Rate, r.cfg.WinStart, r.cfg.WinEnd)
	if err != nil {
		return fail(StateTimeExpanded, FailConfig, err)
	}

	// TimeExpanded -> ArtifactMasked
	winSamples := int(r.cfg.ArtifactWindow * rec.Rate)
	if winSamples < 1 {
		winSamples = 1
	}
	intervals, err := artifacts.Detect(rec.Data, r.cfg.Threshold, winSamples)
	if err != nil {
		return fail(StateArtifactMasked, FailConfig, err)
	}
	mask := artifacts.NewMask(rec.Samples())
	mask.Exclude(intervals)
	if len(intervals) > 0 {
		log.Printf("[SUBJ] %s: %d artifact intervals, %d samples excluded", rec.Source, len(intervals), mask.Count())
	}

	// ArtifactMasked -> Fitted
	fit, err := glm.Fit(ex, rec.Data, mask, glm.Config{Ridge: r.cfg.Ridge})
	if err != nil {
		kind := FailIO
		if errors.Is(err, glm.ErrRankDeficient) || errors.Is(err, glm.ErrNoEvents) {
			kind = FailFit
		}
		return fail(StateFitted, kind, err)
	}

	// Fitted -> Condensed
	cube := condense.FromBetas(fit, ex, rec.Channels)
	erp, err := cube.Condition(r.cfg.Condition)
	if err != nil {
		return fail(StateCondensed, FailConfig, err)
	}
	if err := erp.BaselineCorrect(r.cfg.BaselineStart, r.cfg.BaselineEnd); err != nil {
		return fail(StateCondensed, FailConfig, err)
	}

	// Condensed -> Validated; a non-finite output is a flagged outcome,
	// not an error
	if v := erp.Validate(); !v.Passed {
		result.State = StateFailed
		result.Failure = &Failure{Kind: FailValidation, Stage: StateValidated, Reason: v.Reason}
		return result
	}
	erp.Trim(r.cfg.Cutoff)

	// Validated -> Saved
	art, err := r.store.SaveERP(rec.Source, r.cfg.Tag, erp)
	if err != nil {
		return fail(StateSaved, FailIO, err)
	}

	result.State = StateSaved
	result.ArtifactID = art.ID
	log.Printf("[SUBJ] %s: saved artifact %s (%s)", rec.Source, art.ID, r.cfg.ConditionLabel())
	return result
}

// #endregion subject

// #region batch

// Source supplies one subject's recording. Loading is deferred so a read
// failure counts against that subject alone.
type Source struct {
	Name string
	Load func() (*recording.Recording, error)
}

// RunBatch processes every source strictly in order. Per-subject failures
// are recorded and the loop continues; the error log is flushed at the end
// regardless of outcome.
func (r *Runner) RunBatch(sources []Source) (BatchSummary, error) {
	var sum BatchSummary
	for _, src := range sources {
		sum.Processed++

		rec, err := src.Load()
		if err != nil {
			sum.Failed++
			log.Printf("[BATCH] %s: load failed: %v", src.Name, err)
			if lerr := r.rlog.Fail(src.Name, string(StateLoaded), r.cfg.ConditionLabel(), err.Error()); lerr != nil {
				return sum, lerr
			}
			continue
		}

		res := r.RunSubject(rec)
		if res.Saved() {
			sum.Saved++
			continue
		}
		sum.Failed++
		log.Printf("[BATCH] %s: failed at %s (%s): %s", res.Subject, res.Failure.Stage, res.Failure.Kind, res.Failure.Reason)
		if lerr := r.rlog.Fail(res.Subject, string(res.Failure.Stage), r.cfg.ConditionLabel(), res.Failure.Reason); lerr != nil {
			return sum, lerr
		}
	}

	if err := r.rlog.Flush(); err != nil {
		return sum, err
	}
	log.Printf("[BATCH] processed %d subjects: %d saved, %d failed", sum.Processed, sum.Saved, sum.Failed)
	return sum, nil
}

// #endregion batch
