// Package task runs the analysis pipelines as durable Temporal workflows.
// Every pipeline stage is one workflow backed by one activity of the same
// name, so task triggers, retries and progress queries share one vocabulary.
package task

// Task names. Each is both a workflow type and an activity type.
const (
	ApplyLens         = "lens.apply-lens"
	ApplyAllLenses    = "lens.apply-all-lenses"
	SynthesizeSummary = "lens.synthesize-summary"
	ApplyQALens       = "lens.apply-qa-lens"
	SynthesizeCross   = "lens.synthesize-cross-lens"
	EvidenceAnalysis  = "research.evidence-analysis"

	// resolveLensSet is the activity that picks the lenses for apply-all.
	resolveLensSet = "lens.resolve-lens-set"
)

// QueryProgress is the query type every workflow answers with a lens.Progress.
const QueryProgress = "progress"

// ErrTypeInput is the application error type of caller input errors. The
// retry policy never retries it.
const ErrTypeInput = "InputError"

// Names lists every task name a client may trigger.
var Names = []string{
	ApplyLens,
	ApplyAllLenses,
	SynthesizeSummary,
	ApplyQALens,
	SynthesizeCross,
	EvidenceAnalysis,
}

// Known reports whether name is a triggerable task.
func Known(name string) bool {
	for _, n := range Names {
		if n == name {
			return true
		}
	}
	return false
}
