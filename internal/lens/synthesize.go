package lens

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lens-cli/internal/llm"
	"github.com/sells-group/lens-cli/internal/model"
	"github.com/sells-group/lens-cli/internal/store"
)

// SynthesisStatus is the outcome of a synthesis request.
type SynthesisStatus string

const (
	SynthesisCompleted SynthesisStatus = "completed"
	SynthesisUpToDate  SynthesisStatus = "up_to_date"
	SynthesisNoData    SynthesisStatus = "no_data"
)

// SynthesisLLM is the set of LLM functions used for rollups.
type SynthesisLLM interface {
	SynthesizeLensInsights(ctx context.Context, in llm.SynthesisInput) (*llm.LensInsights, error)
	SynthesizeCrossLensInsights(ctx context.Context, in llm.CrossLensInput) (*llm.CrossLensInsights, error)
}

// SynthesizeRequest rolls up one project. TemplateKey is ignored by the
// cross-lens synthesis.
type SynthesizeRequest struct {
	ProjectID          string `json:"project_id"`
	AccountID          string `json:"account_id,omitempty"`
	TemplateKey        string `json:"template_key,omitempty"`
	CustomInstructions string `json:"custom_instructions,omitempty"`
	Force              bool   `json:"force,omitempty"`
	ProcessedBy        string `json:"processed_by,omitempty"`
}

// SynthesizeResult reports what a synthesis did.
type SynthesizeResult struct {
	Status         SynthesisStatus `json:"status"`
	TemplateKey    string          `json:"template_key"`
	SummaryID      string          `json:"summary_id,omitempty"`
	InterviewCount int             `json:"interview_count"`
}

// Synthesizer maintains LensSummary rows.
type Synthesizer struct {
	store   store.Store
	catalog *Catalog
	llm     SynthesisLLM
	now     func() time.Time
}

// NewSynthesizer creates a Synthesizer.
func NewSynthesizer(st store.Store, catalog *Catalog, l SynthesisLLM) *Synthesizer {
	return &Synthesizer{store: st, catalog: catalog, llm: l, now: func() time.Time { return time.Now().UTC() }}
}

// Fingerprint hashes the content of a set of analyses independent of order.
// It changes when any analysis is added, removed or edited.
func Fingerprint(analyses []model.LensAnalysis) string {
	lines := make([]string, 0, len(analyses))
	for _, a := range analyses {
		data, err := json.Marshal(a.Data)
		if err != nil {
			data = nil
		}
		sum := sha256.Sum256(data)
		lines = append(lines, fmt.Sprintf("%s|%s|%.4f|%s", a.InterviewID, a.TemplateKey, a.ConfidenceScore, hex.EncodeToString(sum[:])))
	}
	sort.Strings(lines)
	h := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(h[:])
}

// upToDate reports whether existing already reflects analyses.
func upToDate(existing *model.LensSummary, count int, fingerprint string) bool {
	return existing != nil &&
		existing.Status == model.SummaryStatusCompleted &&
		existing.InterviewCount == count &&
		existing.InputFingerprint == fingerprint
}

// Synthesize rolls the completed analyses of one template up into its
// project summary. It skips the LLM when the stored summary is completed and
// was built from the same analyses, unless Force is set.
func (s *Synthesizer) Synthesize(ctx context.Context, req SynthesizeRequest) (*SynthesizeResult, error) {
	if err := model.Required("project_id", req.ProjectID); err != nil {
		return nil, err
	}
	if err := model.Required("template_key", req.TemplateKey); err != nil {
		return nil, err
	}
	tmpl, err := s.catalog.Get(req.TemplateKey)
	if err != nil {
		return nil, err
	}
	log := zap.L().With(zap.String("project_id", req.ProjectID), zap.String("template_key", req.TemplateKey))

	analyses, err := s.store.ListCompletedLensAnalyses(ctx, req.ProjectID, req.TemplateKey)
	if err != nil {
		return nil, eris.Wrap(err, "lens: list completed analyses")
	}
	if len(analyses) == 0 {
		log.Info("lens: no completed analyses to synthesize")
		return &SynthesizeResult{Status: SynthesisNoData, TemplateKey: req.TemplateKey}, nil
	}
	if req.AccountID == "" {
		req.AccountID = analyses[0].AccountID
	}

	existing, err := s.store.GetLensSummary(ctx, req.ProjectID, req.TemplateKey)
	if err != nil {
		return nil, eris.Wrap(err, "lens: get summary")
	}
	fingerprint := Fingerprint(analyses)
	if !req.Force && upToDate(existing, len(analyses), fingerprint) {
		log.Info("lens: summary up to date", zap.Int("analyses", len(analyses)))
		return &SynthesizeResult{Status: SynthesisUpToDate, TemplateKey: req.TemplateKey, SummaryID: existing.ID, InterviewCount: existing.InterviewCount}, nil
	}

	summary, err := s.markProcessing(ctx, existing, req, req.TemplateKey)
	if err != nil {
		return nil, err
	}

	log.Info("lens: synthesizing", zap.Int("analyses", len(analyses)))
	out, err := s.llm.SynthesizeLensInsights(ctx, llm.SynthesisInput{
		TemplateName: tmpl.DisplayName(),
		Definition:   tmpl.DefinitionJSON(),
		Analyses:     digests(analyses),
		Instructions: req.CustomInstructions,
	})
	if err != nil {
		return nil, s.markFailed(ctx, summary, err)
	}

	raw, err := json.Marshal(out)
	if err != nil {
		return nil, s.markFailed(ctx, summary, eris.Wrap(err, "lens: marshal synthesis"))
	}
	now := s.now()
	summary.Status = model.SummaryStatusCompleted
	summary.InterviewCount = len(analyses)
	summary.InputFingerprint = fingerprint
	summary.SynthesisData = raw
	summary.ExecutiveSummary = out.ExecutiveSummary
	summary.KeyTakeaways = nonNil(out.KeyTakeaways)
	summary.Recommendations = nonNil(out.Recommendations)
	summary.ConflictsToReview = nonNil(out.ConflictsToReview)
	summary.OverallConfidence = clamp(out.OverallConfidence)
	summary.ErrorMessage = ""
	summary.ProcessedAt = &now
	if err := s.store.UpsertLensSummary(ctx, summary); err != nil {
		return nil, eris.Wrap(err, "lens: store summary")
	}

	log.Info("lens: summary synthesized", zap.Float64("confidence", summary.OverallConfidence))
	return &SynthesizeResult{Status: SynthesisCompleted, TemplateKey: req.TemplateKey, SummaryID: summary.ID, InterviewCount: len(analyses)}, nil
}

// SynthesizeCrossLens combines every completed analysis of the project,
// across templates, with the completed per-template summaries into one
// summary stored under model.CrossLensKey.
func (s *Synthesizer) SynthesizeCrossLens(ctx context.Context, req SynthesizeRequest) (*SynthesizeResult, error) {
	if err := model.Required("project_id", req.ProjectID); err != nil {
		return nil, err
	}
	log := zap.L().With(zap.String("project_id", req.ProjectID), zap.String("template_key", model.CrossLensKey))

	project, err := s.store.GetProject(ctx, req.ProjectID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, model.NewInputError("project_id", "project %s not found", req.ProjectID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "lens: get project")
	}
	if req.AccountID == "" {
		req.AccountID = project.AccountID
	}

	analyses, err := s.store.ListCompletedLensAnalyses(ctx, req.ProjectID, "")
	if err != nil {
		return nil, eris.Wrap(err, "lens: list completed analyses")
	}
	if len(analyses) == 0 {
		log.Info("lens: no completed analyses to synthesize")
		return &SynthesizeResult{Status: SynthesisNoData, TemplateKey: model.CrossLensKey}, nil
	}

	existing, err := s.store.GetLensSummary(ctx, req.ProjectID, model.CrossLensKey)
	if err != nil {
		return nil, eris.Wrap(err, "lens: get cross-lens summary")
	}
	fingerprint := Fingerprint(analyses)
	if !req.Force && upToDate(existing, len(analyses), fingerprint) {
		log.Info("lens: cross-lens summary up to date", zap.Int("analyses", len(analyses)))
		return &SynthesizeResult{Status: SynthesisUpToDate, TemplateKey: model.CrossLensKey, SummaryID: existing.ID, InterviewCount: existing.InterviewCount}, nil
	}

	summaries, err := s.store.ListLensSummaries(ctx, req.ProjectID)
	if err != nil {
		return nil, eris.Wrap(err, "lens: list summaries")
	}
	var perLens []llm.SummaryDigest
	for _, sum := range summaries {
		if sum.TemplateKey == model.CrossLensKey || sum.Status != model.SummaryStatusCompleted {
			continue
		}
		perLens = append(perLens, llm.SummaryDigest{
			TemplateKey:      sum.TemplateKey,
			ExecutiveSummary: sum.ExecutiveSummary,
			KeyTakeaways:     sum.KeyTakeaways,
		})
	}

	summary, err := s.markProcessing(ctx, existing, req, model.CrossLensKey)
	if err != nil {
		return nil, err
	}

	log.Info("lens: synthesizing across lenses", zap.Int("analyses", len(analyses)), zap.Int("summaries", len(perLens)))
	out, err := s.llm.SynthesizeCrossLensInsights(ctx, llm.CrossLensInput{
		ProjectName:        project.Name,
		ProjectDescription: project.Description,
		Summaries:          perLens,
		Analyses:           digests(analyses),
		Instructions:       req.CustomInstructions,
	})
	if err != nil {
		return nil, s.markFailed(ctx, summary, err)
	}

	raw, err := json.Marshal(out)
	if err != nil {
		return nil, s.markFailed(ctx, summary, eris.Wrap(err, "lens: marshal cross-lens synthesis"))
	}
	now := s.now()
	summary.Status = model.SummaryStatusCompleted
	summary.InterviewCount = len(analyses)
	summary.InputFingerprint = fingerprint
	summary.SynthesisData = raw
	summary.ExecutiveSummary = out.ExecutiveSummary
	summary.KeyTakeaways = nonNil(out.KeyFindings)
	summary.Recommendations = nonNil(out.RecommendedActions)
	summary.ConflictsToReview = nonNil(out.Risks)
	summary.OverallConfidence = clamp(out.OverallConfidence)
	summary.ErrorMessage = ""
	summary.ProcessedAt = &now
	if err := s.store.UpsertLensSummary(ctx, summary); err != nil {
		return nil, eris.Wrap(err, "lens: store cross-lens summary")
	}

	log.Info("lens: cross-lens summary synthesized", zap.Float64("confidence", summary.OverallConfidence))
	return &SynthesizeResult{Status: SynthesisCompleted, TemplateKey: model.CrossLensKey, SummaryID: summary.ID, InterviewCount: len(analyses)}, nil
}

// markProcessing flips the summary to processing, keeping any previous
// content so readers still see the last completed rollup.
func (s *Synthesizer) markProcessing(ctx context.Context, existing *model.LensSummary, req SynthesizeRequest, templateKey string) (*model.LensSummary, error) {
	var sum model.LensSummary
	if existing != nil {
		sum = *existing
	} else {
		sum = model.LensSummary{
			ProjectID:         req.ProjectID,
			TemplateKey:       templateKey,
			KeyTakeaways:      []string{},
			Recommendations:   []string{},
			ConflictsToReview: []string{},
		}
	}
	sum.AccountID = req.AccountID
	sum.Status = model.SummaryStatusProcessing
	sum.CustomInstructions = req.CustomInstructions
	sum.ProcessedBy = req.ProcessedBy
	if err := s.store.UpsertLensSummary(ctx, &sum); err != nil {
		return nil, eris.Wrap(err, "lens: mark summary processing")
	}
	return &sum, nil
}

// markFailed stores the failure on the summary and returns cause.
func (s *Synthesizer) markFailed(ctx context.Context, sum *model.LensSummary, cause error) error {
	zap.L().Error("lens: synthesis failed",
		zap.String("project_id", sum.ProjectID),
		zap.String("template_key", sum.TemplateKey),
		zap.Error(cause),
	)
	sum.Status = model.SummaryStatusFailed
	sum.ErrorMessage = cause.Error()
	if err := s.store.UpsertLensSummary(ctx, sum); err != nil {
		zap.L().Error("lens: store failed summary", zap.Error(err))
	}
	return eris.Wrapf(cause, "lens: synthesize %s", sum.TemplateKey)
}

func digests(analyses []model.LensAnalysis) []llm.AnalysisDigest {
	out := make([]llm.AnalysisDigest, 0, len(analyses))
	for _, a := range analyses {
		out = append(out, llm.AnalysisDigest{
			InterviewID: a.InterviewID,
			TemplateKey: a.TemplateKey,
			Confidence:  a.ConfidenceScore,
			Data:        a.Data,
		})
	}
	return out
}
