package task

import (
	"context"

	"go.temporal.io/sdk/activity"

	"github.com/sells-group/lens-cli/internal/lens"
	"github.com/sells-group/lens-cli/internal/model"
	"github.com/sells-group/lens-cli/internal/research"
)

// Analyzer runs one evidence analysis.
type Analyzer interface {
	Run(ctx context.Context, req research.Request) (*research.Result, error)
}

// LensApplier applies lenses to interviews.
type LensApplier interface {
	Apply(ctx context.Context, req lens.ApplyRequest, progress lens.ProgressFunc) (*lens.ApplyResult, error)
	ApplyQA(ctx context.Context, req lens.ApplyRequest, progress lens.ProgressFunc) (*lens.ApplyResult, error)
}

// LensSynthesizer maintains project summaries.
type LensSynthesizer interface {
	Synthesize(ctx context.Context, req lens.SynthesizeRequest) (*lens.SynthesizeResult, error)
	SynthesizeCrossLens(ctx context.Context, req lens.SynthesizeRequest) (*lens.SynthesizeResult, error)
}

// SettingsReader is the slice of the store lens set resolution reads.
type SettingsReader interface {
	GetProject(ctx context.Context, projectID string) (*model.Project, error)
	GetAccountSettings(ctx context.Context, accountID string) (*model.AccountSettings, error)
}

// Activities binds the pipeline components to Temporal activities.
type Activities struct {
	Analyzer         Analyzer
	Lenses           LensApplier
	Synthesizer      LensSynthesizer
	Settings         SettingsReader
	PlatformDefaults []string
}

// ResolveLensSetInput selects the lenses for one interview.
type ResolveLensSetInput struct {
	ProjectID string   `json:"project_id,omitempty"`
	AccountID string   `json:"account_id"`
	Override  []string `json:"override,omitempty"`
}

// ApplyLens applies one lens, heartbeating each stage.
func (a *Activities) ApplyLens(ctx context.Context, req lens.ApplyRequest) (*lens.ApplyResult, error) {
	res, err := a.Lenses.Apply(ctx, req, heartbeat(ctx))
	return res, activityError(err)
}

// ApplyQALens applies the Q&A lens.
func (a *Activities) ApplyQALens(ctx context.Context, req lens.ApplyRequest) (*lens.ApplyResult, error) {
	res, err := a.Lenses.ApplyQA(ctx, req, heartbeat(ctx))
	return res, activityError(err)
}

// SynthesizeSummary rolls up one template.
func (a *Activities) SynthesizeSummary(ctx context.Context, req lens.SynthesizeRequest) (*lens.SynthesizeResult, error) {
	res, err := a.Synthesizer.Synthesize(ctx, req)
	return res, activityError(err)
}

// SynthesizeCrossLens rolls up every template of a project.
func (a *Activities) SynthesizeCrossLens(ctx context.Context, req lens.SynthesizeRequest) (*lens.SynthesizeResult, error) {
	res, err := a.Synthesizer.SynthesizeCrossLens(ctx, req)
	return res, activityError(err)
}

// EvidenceAnalysis runs the evidence linker and answer aggregation.
func (a *Activities) EvidenceAnalysis(ctx context.Context, req research.Request) (*research.Result, error) {
	res, err := a.Analyzer.Run(ctx, req)
	return res, activityError(err)
}

// ResolveLensSet resolves the lens set for apply-all.
func (a *Activities) ResolveLensSet(ctx context.Context, in ResolveLensSetInput) ([]string, error) {
	keys, err := lens.ResolveLensSet(ctx, a.Settings, in.ProjectID, in.AccountID, in.Override, a.PlatformDefaults)
	return keys, activityError(err)
}

func heartbeat(ctx context.Context) lens.ProgressFunc {
	if !activity.IsActivity(ctx) {
		return nil
	}
	return func(p lens.Progress) {
		activity.RecordHeartbeat(ctx, p)
	}
}
