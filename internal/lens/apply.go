// Package lens applies analysis templates ("lenses") to interviews and rolls
// the per-interview results up into project summaries.
package lens

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lens-cli/internal/llm"
	"github.com/sells-group/lens-cli/internal/model"
	"github.com/sells-group/lens-cli/internal/store"
)

// Skip reasons.
const (
	ReasonTemplateInactive = "template_inactive"
	ReasonPrivate          = "private"
)

// Extractor is the set of LLM functions a lens can dispatch to.
type Extractor interface {
	ExtractSalesBANTLens(ctx context.Context, in llm.LensInput) (*llm.SalesBANT, error)
	ExtractCustomerDiscoveryLens(ctx context.Context, in llm.LensInput) (*llm.CustomerDiscovery, error)
	ExtractProductInsightsLens(ctx context.Context, in llm.LensInput) (*llm.ProductInsights, error)
	ExtractProjectQALens(ctx context.Context, in llm.LensInput, questions []llm.QAQuestion) (*llm.ProjectQA, error)
	ApplyConversationLens(ctx context.Context, in llm.LensInput) (*llm.ConversationLens, error)
}

// ApplyRequest applies one template to one interview.
type ApplyRequest struct {
	InterviewID string `json:"interview_id"`
	TemplateKey string `json:"template_key"`
	// AccountID and ProjectID default to the interview's own values.
	AccountID          string `json:"account_id,omitempty"`
	ProjectID          string `json:"project_id,omitempty"`
	CustomInstructions string `json:"custom_instructions,omitempty"`
	ProcessedBy        string `json:"processed_by,omitempty"`
}

// ApplyResult reports the outcome of one lens application.
type ApplyResult struct {
	TemplateKey     string  `json:"template_key"`
	Success         bool    `json:"success"`
	Skipped         bool    `json:"skipped,omitempty"`
	Reason          string  `json:"reason,omitempty"`
	EvidenceCount   int     `json:"evidence_count"`
	ConfidenceScore float64 `json:"confidence_score"`
	MatchedPeople   int     `json:"matched_people,omitempty"`
	Error           string  `json:"error,omitempty"`
}

// Applicator runs the per-interview lens state machine:
// pending, extracting, then completed or failed.
type Applicator struct {
	store     store.Store
	catalog   *Catalog
	extractor Extractor
	now       func() time.Time
}

// NewApplicator creates an Applicator.
func NewApplicator(st store.Store, catalog *Catalog, ex Extractor) *Applicator {
	return &Applicator{
		store:     st,
		catalog:   catalog,
		extractor: ex,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Catalog returns the template catalog the applicator resolves keys against.
func (a *Applicator) Catalog() *Catalog { return a.catalog }

// Apply extracts the template from the interview's evidence and upserts the
// analysis row. Private interviews and interviews without evidence store an
// empty completed analysis without calling the LLM. When extraction fails a
// failed row is stored and the error is returned.
func (a *Applicator) Apply(ctx context.Context, req ApplyRequest, progress ProgressFunc) (*ApplyResult, error) {
	if err := model.Required("interview_id", req.InterviewID); err != nil {
		return nil, err
	}
	if err := model.Required("template_key", req.TemplateKey); err != nil {
		return nil, err
	}
	tmpl, err := a.catalog.Get(req.TemplateKey)
	if err != nil {
		return nil, err
	}

	log := zap.L().With(zap.String("interview_id", req.InterviewID), zap.String("template_key", req.TemplateKey))
	name := tmpl.DisplayName()
	progress.report(StageLoading, name)

	if !tmpl.Active() {
		log.Warn("lens: template inactive, skipping")
		return &ApplyResult{TemplateKey: tmpl.Key, Skipped: true, Reason: ReasonTemplateInactive}, nil
	}

	iv, err := a.store.GetInterview(ctx, req.InterviewID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, model.NewInputError("interview_id", "interview %s not found", req.InterviewID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "lens: get interview")
	}
	if req.AccountID == "" {
		req.AccountID = iv.AccountID
	}
	if req.ProjectID == "" {
		req.ProjectID = iv.ProjectID
	}
	if err := model.Required("account_id", req.AccountID); err != nil {
		return nil, err
	}

	if iv.IsPrivate() {
		log.Info("lens: private interview, storing empty analysis")
		if err := a.save(ctx, req, model.EmptyAnalysisData(), 0, model.LensStatusCompleted, ""); err != nil {
			return nil, err
		}
		return &ApplyResult{TemplateKey: tmpl.Key, Success: true, Skipped: true, Reason: ReasonPrivate}, nil
	}

	evidence, err := a.store.ListInterviewEvidence(ctx, req.InterviewID)
	if err != nil {
		return nil, eris.Wrap(err, "lens: list interview evidence")
	}
	if len(evidence) == 0 {
		log.Warn("lens: no evidence, storing empty analysis")
		if err := a.save(ctx, req, model.EmptyAnalysisData(), 0, model.LensStatusCompleted, ""); err != nil {
			return nil, err
		}
		return &ApplyResult{TemplateKey: tmpl.Key, Success: true}, nil
	}

	participants, err := a.store.ListParticipants(ctx, req.InterviewID)
	if err != nil {
		return nil, eris.Wrap(err, "lens: list participants")
	}

	progress.report(StageExtracting, name)
	in := llm.LensInput{
		TemplateKey:      tmpl.Key,
		TemplateName:     name,
		Definition:       tmpl.DefinitionJSON(),
		Evidence:         lensEvidence(evidence),
		InterviewContext: InterviewContext(*iv),
		Instructions:     req.CustomInstructions,
	}
	log.Info("lens: extracting", zap.String("kind", tmpl.ExtractionKind()), zap.Int("evidence", len(evidence)))

	data, confidence, err := a.extract(ctx, tmpl, req.ProjectID, in)
	if err != nil {
		if model.IsInputError(err) {
			return nil, err
		}
		log.Error("lens: extraction failed", zap.Error(err))
		if saveErr := a.save(ctx, req, model.EmptyAnalysisData(), 0, model.LensStatusFailed, err.Error()); saveErr != nil {
			log.Error("lens: store failed status", zap.Error(saveErr))
		}
		return nil, eris.Wrapf(err, "lens: apply %s", tmpl.Key)
	}

	progress.report(StageEnriching, name)
	matched := EnrichEntities(&data, participants)

	progress.report(StageSaving, name)
	if err := a.save(ctx, req, data, confidence, model.LensStatusCompleted, ""); err != nil {
		return nil, err
	}
	progress.report(StageComplete, name)

	log.Info("lens: applied",
		zap.Float64("confidence", confidence),
		zap.Int("evidence", len(evidence)),
		zap.Int("matched_people", matched),
	)
	return &ApplyResult{
		TemplateKey:     tmpl.Key,
		Success:         true,
		EvidenceCount:   len(evidence),
		ConfidenceScore: confidence,
		MatchedPeople:   matched,
	}, nil
}

// ApplyQA applies the Q&A lens, which answers the project's research questions.
func (a *Applicator) ApplyQA(ctx context.Context, req ApplyRequest, progress ProgressFunc) (*ApplyResult, error) {
	req.TemplateKey = KindQA
	return a.Apply(ctx, req, progress)
}

func (a *Applicator) extract(ctx context.Context, tmpl Template, projectID string, in llm.LensInput) (model.AnalysisData, float64, error) {
	switch tmpl.ExtractionKind() {
	case KindSalesBANT:
		out, err := a.extractor.ExtractSalesBANTLens(ctx, in)
		if err != nil {
			return model.AnalysisData{}, 0, err
		}
		data, c := NormalizeSalesBANT(out)
		return data, c, nil
	case KindCustomerDiscovery:
		out, err := a.extractor.ExtractCustomerDiscoveryLens(ctx, in)
		if err != nil {
			return model.AnalysisData{}, 0, err
		}
		data, c := NormalizeCustomerDiscovery(out)
		return data, c, nil
	case KindProductInsights:
		out, err := a.extractor.ExtractProductInsightsLens(ctx, in)
		if err != nil {
			return model.AnalysisData{}, 0, err
		}
		data, c := NormalizeProductInsights(out)
		return data, c, nil
	case KindQA:
		questions, err := a.qaQuestions(ctx, projectID)
		if err != nil {
			return model.AnalysisData{}, 0, err
		}
		out, err := a.extractor.ExtractProjectQALens(ctx, in, questions)
		if err != nil {
			return model.AnalysisData{}, 0, err
		}
		data, c := NormalizeProjectQA(out)
		return data, c, nil
	default:
		out, err := a.extractor.ApplyConversationLens(ctx, in)
		if err != nil {
			return model.AnalysisData{}, 0, err
		}
		data, c := NormalizeConversation(out)
		return data, c, nil
	}
}

func (a *Applicator) qaQuestions(ctx context.Context, projectID string) ([]llm.QAQuestion, error) {
	if err := model.Required("project_id", projectID); err != nil {
		return nil, err
	}
	rqs, err := a.store.ListResearchQuestions(ctx, projectID)
	if err != nil {
		return nil, eris.Wrap(err, "lens: list research questions")
	}
	out := make([]llm.QAQuestion, 0, len(rqs))
	for _, rq := range rqs {
		out = append(out, llm.QAQuestion{ID: rq.ID, Text: rq.Text, Rationale: rq.Rationale})
	}
	return out, nil
}

func (a *Applicator) save(
	ctx context.Context,
	req ApplyRequest,
	data model.AnalysisData,
	confidence float64,
	status model.LensStatus,
	errMsg string,
) error {
	now := a.now()
	row := &model.LensAnalysis{
		ID:              uuid.NewString(),
		InterviewID:     req.InterviewID,
		TemplateKey:     req.TemplateKey,
		AccountID:       req.AccountID,
		ProjectID:       req.ProjectID,
		Data:            data,
		ConfidenceScore: confidence,
		Status:          status,
		ErrorMessage:    errMsg,
		ProcessedBy:     req.ProcessedBy,
		ProcessedAt:     &now,
	}
	return eris.Wrapf(a.store.UpsertLensAnalysis(ctx, row), "lens: upsert %s analysis", status)
}
