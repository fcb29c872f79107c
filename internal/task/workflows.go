package task

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/sells-group/lens-cli/internal/lens"
	"github.com/sells-group/lens-cli/internal/research"
)

// Default activity timeouts.
const (
	lensTimeout     = 10 * time.Minute
	analysisTimeout = 20 * time.Minute
	resolveTimeout  = time.Minute
)

// Workflows holds the settings shared by every workflow.
type Workflows struct {
	Retry *temporal.RetryPolicy
	// MaxInFlight bounds concurrent lens activities in apply-all.
	MaxInFlight int
}

func (w *Workflows) options(ctx workflow.Context, timeout time.Duration) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		RetryPolicy:         w.Retry,
	})
}

// progress registers the progress query and returns a setter for it.
func progress(ctx workflow.Context) (func(lens.Progress), error) {
	current := lens.Progress{}
	if err := workflow.SetQueryHandler(ctx, QueryProgress, func() (lens.Progress, error) {
		return current, nil
	}); err != nil {
		return nil, err
	}
	return func(p lens.Progress) { current = p }, nil
}

// ApplyLens applies one lens to one interview.
func (w *Workflows) ApplyLens(ctx workflow.Context, req lens.ApplyRequest) (*lens.ApplyResult, error) {
	return w.applyOne(ctx, ApplyLens, req)
}

// ApplyQALens applies the Q&A lens to one interview.
func (w *Workflows) ApplyQALens(ctx workflow.Context, req lens.ApplyRequest) (*lens.ApplyResult, error) {
	return w.applyOne(ctx, ApplyQALens, req)
}

func (w *Workflows) applyOne(ctx workflow.Context, activityName string, req lens.ApplyRequest) (*lens.ApplyResult, error) {
	set, err := progress(ctx)
	if err != nil {
		return nil, err
	}
	set(lens.NewProgress(lens.StageLoading, req.TemplateKey))

	var res lens.ApplyResult
	if err := workflow.ExecuteActivity(w.options(ctx, lensTimeout), activityName, req).Get(ctx, &res); err != nil {
		workflow.GetLogger(ctx).Error("lens apply failed", "template_key", req.TemplateKey, "error", err)
		return nil, err
	}
	set(lens.NewProgress(lens.StageComplete, req.TemplateKey))
	return &res, nil
}

// ApplyAllLenses resolves the lens set and applies each lens as its own
// activity, at most MaxInFlight at a time. A failed lens is reported in its
// result slot and does not fail the workflow.
func (w *Workflows) ApplyAllLenses(ctx workflow.Context, req lens.ApplyAllRequest) (*lens.ApplyAllResult, error) {
	set, err := progress(ctx)
	if err != nil {
		return nil, err
	}
	logger := workflow.GetLogger(ctx)

	var keys []string
	err = workflow.ExecuteActivity(w.options(ctx, resolveTimeout), resolveLensSet, ResolveLensSetInput{
		ProjectID: req.ProjectID,
		AccountID: req.AccountID,
		Override:  req.TemplateKeys,
	}).Get(ctx, &keys)
	if err != nil {
		return nil, err
	}

	limit := w.MaxInFlight
	if limit < 1 {
		limit = 1
	}
	total := len(keys)
	out := &lens.ApplyAllResult{InterviewID: req.InterviewID, Results: make([]lens.ApplyResult, total)}
	actx := w.options(ctx, lensTimeout)

	type pending struct {
		idx    int
		future workflow.Future
	}
	var inFlight []pending
	completed := 0

	collect := func(p pending) {
		var res lens.ApplyResult
		if err := p.future.Get(ctx, &res); err != nil {
			logger.Error("lens failed", "template_key", keys[p.idx], "error", err)
			res = lens.ApplyResult{TemplateKey: keys[p.idx], Error: errorMessage(err)}
		}
		out.Results[p.idx] = res
		completed++
	}

	for i, key := range keys {
		if len(inFlight) == limit {
			collect(inFlight[0])
			inFlight = inFlight[1:]
		}
		set(lens.Progress{Completed: completed, Total: total, CurrentLens: key, Percent: completed * 100 / total})
		inFlight = append(inFlight, pending{idx: i, future: workflow.ExecuteActivity(actx, ApplyLens, lens.ApplyRequest{
			InterviewID:        req.InterviewID,
			TemplateKey:        key,
			AccountID:          req.AccountID,
			ProjectID:          req.ProjectID,
			CustomInstructions: req.CustomInstructions,
			ProcessedBy:        req.ProcessedBy,
		})})
	}
	for _, p := range inFlight {
		collect(p)
	}

	out.Tally()
	set(lens.Progress{Completed: completed, Total: total, Percent: 100})
	logger.Info("lens set applied", "succeeded", out.Succeeded, "skipped", out.Skipped, "failed", out.Failed)
	return out, nil
}

// SynthesizeSummary rolls up one template of a project.
func (w *Workflows) SynthesizeSummary(ctx workflow.Context, req lens.SynthesizeRequest) (*lens.SynthesizeResult, error) {
	return w.synthesize(ctx, SynthesizeSummary, req)
}

// SynthesizeCrossLens rolls up every template of a project.
func (w *Workflows) SynthesizeCrossLens(ctx workflow.Context, req lens.SynthesizeRequest) (*lens.SynthesizeResult, error) {
	return w.synthesize(ctx, SynthesizeCross, req)
}

func (w *Workflows) synthesize(ctx workflow.Context, activityName string, req lens.SynthesizeRequest) (*lens.SynthesizeResult, error) {
	set, err := progress(ctx)
	if err != nil {
		return nil, err
	}
	set(lens.Progress{Stage: lens.StageExtracting, Percent: 10, StageLabel: "Synthesizing..."})

	var res lens.SynthesizeResult
	if err := workflow.ExecuteActivity(w.options(ctx, lensTimeout), activityName, req).Get(ctx, &res); err != nil {
		return nil, err
	}
	set(lens.NewProgress(lens.StageComplete, ""))
	return &res, nil
}

// EvidenceAnalysis links a project's evidence to its research questions.
func (w *Workflows) EvidenceAnalysis(ctx workflow.Context, req research.Request) (*research.Result, error) {
	set, err := progress(ctx)
	if err != nil {
		return nil, err
	}
	set(lens.Progress{Stage: lens.StageExtracting, Percent: 10, StageLabel: "Analyzing evidence..."})

	var res research.Result
	if err := workflow.ExecuteActivity(w.options(ctx, analysisTimeout), EvidenceAnalysis, req).Get(ctx, &res); err != nil {
		return nil, err
	}
	set(lens.NewProgress(lens.StageComplete, ""))
	return &res, nil
}
