package scheduler

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lens-cli/internal/lens"
	"github.com/sells-group/lens-cli/internal/model"
)

// TargetLister lists the (project, template) pairs that have completed analyses.
type TargetLister interface {
	ListSynthesisTargets(ctx context.Context) ([]model.SynthesisTarget, error)
}

// Synthesizer produces per-template and cross-lens summaries.
type Synthesizer interface {
	Synthesize(ctx context.Context, req lens.SynthesizeRequest) (*lens.SynthesizeResult, error)
	SynthesizeCrossLens(ctx context.Context, req lens.SynthesizeRequest) (*lens.SynthesizeResult, error)
}

// SweepResult counts what one sweep did.
type SweepResult struct {
	Targets     int
	Synthesized int
	UpToDate    int
	Failed      int
}

// SweepJob re-synthesizes every stale summary. It implements cron.Job.
type SweepJob struct {
	targets TargetLister
	synth   Synthesizer
	// CrossLens adds one cross-lens synthesis per project after its templates.
	CrossLens bool
	// Timeout bounds one sweep when run from cron. Zero means no bound.
	Timeout time.Duration
}

// NewSweepJob creates a sweep with cross-lens synthesis enabled.
func NewSweepJob(targets TargetLister, synth Synthesizer) *SweepJob {
	return &SweepJob{targets: targets, synth: synth, CrossLens: true}
}

// Run is the cron entry point.
func (j *SweepJob) Run() {
	ctx := context.Background()
	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}
	res, err := j.Sweep(ctx)
	if err != nil {
		zap.L().Error("scheduler: sweep failed", zap.Error(err))
		return
	}
	zap.L().Info("scheduler: sweep complete",
		zap.Int("targets", res.Targets),
		zap.Int("synthesized", res.Synthesized),
		zap.Int("up_to_date", res.UpToDate),
		zap.Int("failed", res.Failed),
	)
}

// Sweep synthesizes each target in turn. Fresh summaries come back
// up_to_date from the synthesizer and cost no LLM call. A failing target is
// logged and counted; the sweep continues.
func (j *SweepJob) Sweep(ctx context.Context) (*SweepResult, error) {
	targets, err := j.targets.ListSynthesisTargets(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "scheduler: list targets")
	}

	res := &SweepResult{}
	var projects []model.SynthesisTarget
	seen := make(map[string]bool)
	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return res, eris.Wrap(err, "scheduler: sweep")
		}
		if !seen[t.ProjectID] {
			seen[t.ProjectID] = true
			projects = append(projects, t)
		}
		res.Targets++
		j.record(res, t, "synthesize", func() (*lens.SynthesizeResult, error) {
			return j.synth.Synthesize(ctx, lens.SynthesizeRequest{
				ProjectID:   t.ProjectID,
				AccountID:   t.AccountID,
				TemplateKey: t.TemplateKey,
				ProcessedBy: "scheduler",
			})
		})
	}

	if !j.CrossLens {
		return res, nil
	}
	for _, p := range projects {
		if err := ctx.Err(); err != nil {
			return res, eris.Wrap(err, "scheduler: sweep")
		}
		res.Targets++
		p.TemplateKey = model.CrossLensKey
		j.record(res, p, "synthesize cross-lens", func() (*lens.SynthesizeResult, error) {
			return j.synth.SynthesizeCrossLens(ctx, lens.SynthesizeRequest{
				ProjectID:   p.ProjectID,
				AccountID:   p.AccountID,
				ProcessedBy: "scheduler",
			})
		})
	}
	return res, nil
}

func (j *SweepJob) record(res *SweepResult, t model.SynthesisTarget, action string, fn func() (*lens.SynthesizeResult, error)) {
	log := zap.L().With(zap.String("project_id", t.ProjectID), zap.String("template_key", t.TemplateKey))
	out, err := fn()
	if err != nil {
		res.Failed++
		log.Warn("scheduler: "+action+" failed", zap.Error(err))
		return
	}
	switch out.Status {
	case lens.SynthesisCompleted:
		res.Synthesized++
		log.Info("scheduler: summary refreshed", zap.Int("interviews", out.InterviewCount))
	default:
		res.UpToDate++
	}
}
