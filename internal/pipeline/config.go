package pipeline

import (
	"fmt"

	"github.com/avolkmann/erp-deconv/go-pipeline/internal/design"
	"github.com/avolkmann/erp-deconv/go-pipeline/internal/label"
)

// #region batch-config

// BatchConfig is the immutable configuration for one batch run. It is built
// once before the subject loop and passed by value into every subject
// invocation; nothing re-derives configuration inside the loop.
type BatchConfig struct {
	// Factor label sets; comma-separated input is parsed with label.ParseSet.
	FactorA []string
	FactorB []string

	// Formula declares the model terms, e.g. "amp ~ 1 + factorA + factorB".
	Formula string

	// Peri-event window in seconds relative to event onset.
	WinStart float64
	WinEnd   float64

	// Baseline reference window in seconds.
	BaselineStart float64
	BaselineEnd   float64

	// Cutoff drops lag samples before this offset from the saved output,
	// after baseline correction.
	Cutoff float64

	// Threshold is the absolute amplitude (uV) above which a scan window is
	// marked artifactual; ArtifactWindow is the scan window length in
	// seconds.
	Threshold      float64
	ArtifactWindow float64

	// Condition selects which factor predictor's virtual ERP is saved
	// (1-based, past the intercept).
	Condition int

	// Tag is an optional suffix for artifact names.
	Tag string

	// Band-pass prefilter cutoffs in Hz; both zero disables filtering.
	BandLow  float64
	BandHigh float64

	// Ridge is the fitter's diagonal regularization.
	Ridge float64
}

// DefaultConfig returns the standard batch parameters.
func DefaultConfig() BatchConfig {
	return BatchConfig{
		Formula:        "amp ~ 1 + factorA + factorB",
		WinStart:       -0.2,
		WinEnd:         0.8,
		BaselineStart:  -0.2,
		BaselineEnd:    0,
		Cutoff:         0,
		Threshold:      250,
		ArtifactWindow: 1.0,
		Condition:      1,
		Ridge:          1e-6,
	}
}

// Sets returns the label sets view of the configuration.
func (c BatchConfig) Sets() label.Sets {
	return label.Sets{FactorA: c.FactorA, FactorB: c.FactorB}
}

// ConditionLabel names the configured target condition for logs.
func (c BatchConfig) ConditionLabel() string {
	return fmt.Sprintf("condition %d", c.Condition)
}

// Validate rejects configurations the pipeline cannot run. Overlapping
// factor label sets are a configuration error here, before any subject is
// touched.
func (c BatchConfig) Validate() error {
	if err := c.Sets().Validate(); err != nil {
		return err
	}
	f, err := design.ParseFormula(c.Formula)
	if err != nil {
		return err
	}
	conditions := 0
	for _, term := range f.Terms {
		if term != "1" {
			conditions++
		}
	}
	if c.Condition < 1 || c.Condition > conditions {
		return fmt.Errorf("condition %d out of range: model has %d condition predictors", c.Condition, conditions)
	}
	if c.WinEnd <= c.WinStart {
		return fmt.Errorf("window end %v not after start %v", c.WinEnd, c.WinStart)
	}
	if c.BaselineEnd < c.BaselineStart {
		return fmt.Errorf("baseline end %v before start %v", c.BaselineEnd, c.BaselineStart)
	}
	if c.BaselineStart < c.WinStart || c.BaselineEnd > c.WinEnd {
		return fmt.Errorf("baseline window [%v, %v] outside peri-event window [%v, %v]",
			c.BaselineStart, c.BaselineEnd, c.WinStart, c.WinEnd)
	}
	if c.Threshold <= 0 {
		return fmt.Errorf("artifact threshold %v not positive", c.Threshold)
	}
	if c.ArtifactWindow <= 0 {
		return fmt.Errorf("artifact scan window %v not positive", c.ArtifactWindow)
	}
	if c.Ridge < 0 {
		return fmt.Errorf("ridge %v negative", c.Ridge)
	}
	return nil
}

// #endregion batch-config
