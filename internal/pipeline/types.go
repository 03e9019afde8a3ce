package pipeline

// #region states

// State is a stage of the per-subject pipeline. Each transition corresponds
// to one processing step; Saved and Failed are terminal.
type State string

const (
	StateLoaded         State = "Loaded"
	StateLabeled        State = "Labeled"
	StateDesignBuilt    State = "DesignBuilt"
	StateTimeExpanded   State = "TimeExpanded"
	StateArtifactMasked State = "ArtifactMasked"
	StateFitted         State = "Fitted"
	StateCondensed      State = "Condensed"
	StateValidated      State = "Validated"
	StateSaved          State = "Saved"
	StateFailed         State = "Failed"
)

// #endregion states

// #region failure

// FailureKind classifies why a subject failed.
type FailureKind string

const (
	// FailConfig covers malformed formulas, unknown factor references and
	// other configuration problems surfacing mid-pipeline.
	FailConfig FailureKind = "config"
	// FailFit covers rank-deficient or non-convergent regression.
	FailFit FailureKind = "fit"
	// FailIO covers collaborator read/write failures and recovered panics.
	FailIO FailureKind = "io"
	// FailValidation marks a completed pipeline whose condensed output
	// contained non-finite values. It is an ordinary outcome, not an error.
	FailValidation FailureKind = "validation"
)

// Failure describes a subject-level failure. The batch never aborts on one.
type Failure struct {
	Kind   FailureKind
	Stage  State // the stage that was being entered when the failure hit
	Reason string
	Err    error // nil for validation failures
}

// #endregion failure

// #region results

// SubjectResult is the terminal outcome of one subject's pipeline run.
type SubjectResult struct {
	Subject    string
	State      State // StateSaved or StateFailed
	ArtifactID string
	Failure    *Failure
}

// Saved reports whether the run produced a persisted artifact.
func (r SubjectResult) Saved() bool {
	return r.State == StateSaved
}

// BatchSummary is the aggregate outcome of a batch run.
type BatchSummary struct {
	Processed int
	Saved     int
	Failed    int
}

// #endregion results
