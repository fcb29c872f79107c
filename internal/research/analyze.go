// Package research links interview evidence to a project's research
// questions and aggregates the accepted links into persisted answers.
package research

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lens-cli/internal/llm"
	"github.com/sells-group/lens-cli/internal/model"
	"github.com/sells-group/lens-cli/internal/store"
)

// Linker classifies evidence against the question catalog.
type Linker interface {
	LinkEvidenceToResearchStructure(ctx context.Context, in llm.LinkInput) (*llm.LinkOutput, error)
}

// Options configures an Analyzer.
type Options struct {
	MinConfidence   float64
	ValidationGates []string
}

// Request is one evidence analysis invocation.
type Request struct {
	ProjectID string `json:"project_id"`
	// InterviewID limits the evidence to one interview.
	InterviewID        string `json:"interview_id,omitempty"`
	CustomInstructions string `json:"custom_instructions,omitempty"`
	// MinConfidence overrides the configured threshold when set.
	MinConfidence *float64 `json:"min_confidence,omitempty"`
}

// Summary counts what a run did.
type Summary struct {
	EvidenceAnalyzed int `json:"evidence_analyzed"`
	EvidenceLinked   int `json:"evidence_linked"`
	AnswersCreated   int `json:"answers_created"`
	AnswersUpdated   int `json:"answers_updated"`
}

// Result is returned by Analyzer.Run.
type Result struct {
	Success            bool                     `json:"success"`
	RunID              string                   `json:"run_id,omitempty"`
	GlobalGoalSummary  string                   `json:"global_goal_summary,omitempty"`
	RecommendedActions []string                 `json:"recommended_actions"`
	Summary            Summary                  `json:"summary"`
	QuestionAnalyses   []model.QuestionAnalysis `json:"question_summaries"`
}

// Analyzer runs the evidence analysis for a project.
type Analyzer struct {
	store  store.Store
	linker Linker
	opts   Options
	now    func() time.Time
}

// NewAnalyzer creates an Analyzer. A non-positive MinConfidence uses
// DefaultMinConfidence.
func NewAnalyzer(st store.Store, linker Linker, opts Options) *Analyzer {
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = DefaultMinConfidence
	}
	return &Analyzer{store: st, linker: linker, opts: opts, now: func() time.Time { return time.Now().UTC() }}
}

// Run links the project's evidence to its research questions and upserts
// answers, evidence links, evidence back-pointers and per-question rows.
// Writes are not transactional; every one is an upsert or guarded by the
// existing-answer index, so a failed run is safe to repeat.
func (a *Analyzer) Run(ctx context.Context, req Request) (*Result, error) {
	if err := model.Required("project_id", req.ProjectID); err != nil {
		return nil, err
	}
	minConfidence := a.opts.MinConfidence
	if req.MinConfidence != nil {
		if *req.MinConfidence < 0 || *req.MinConfidence > 1 {
			return nil, model.NewInputError("min_confidence", "must be between 0 and 1, got %v", *req.MinConfidence)
		}
		minConfidence = *req.MinConfidence
	}

	log := zap.L().With(zap.String("project_id", req.ProjectID), zap.String("interview_id", req.InterviewID))

	project, err := a.store.GetProject(ctx, req.ProjectID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, model.NewInputError("project_id", "project %s not found", req.ProjectID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "research: get project")
	}

	var (
		decisions []model.DecisionQuestion
		research  []model.ResearchQuestion
		evidence  []model.Evidence
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		decisions, err = a.store.ListDecisionQuestions(gCtx, req.ProjectID)
		return eris.Wrap(err, "research: list decision questions")
	})
	g.Go(func() error {
		var err error
		research, err = a.store.ListResearchQuestions(gCtx, req.ProjectID)
		return eris.Wrap(err, "research: list research questions")
	})
	g.Go(func() error {
		var err error
		evidence, err = a.store.ListEvidence(gCtx, req.ProjectID, nil)
		return eris.Wrap(err, "research: list evidence")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if req.InterviewID != "" {
		evidence = filterInterview(evidence, req.InterviewID)
	}
	if len(evidence) == 0 {
		log.Info("research: no evidence to analyze")
		return &Result{Success: true, RecommendedActions: []string{}, QuestionAnalyses: []model.QuestionAnalysis{}}, nil
	}

	input := BuildLinkInput(*project, evidence, decisions, research, req.CustomInstructions, a.opts.ValidationGates)
	log.Info("research: calling evidence linker",
		zap.Int("evidence", len(input.Evidence)),
		zap.Int("questions", len(input.Questions)),
		zap.Float64("min_confidence", minConfidence),
	)
	out, err := a.linker.LinkEvidenceToResearchStructure(ctx, input)
	if err != nil {
		return nil, eris.Wrap(err, "research: link evidence")
	}

	now := a.now()
	run := &model.AnalysisRun{
		ID:                 uuid.NewString(),
		ProjectID:          req.ProjectID,
		CustomInstructions: req.CustomInstructions,
		MinConfidence:      minConfidence,
		RunSummary:         out.GlobalGoalSummary,
		RecommendedActions: nonEmpty(out.RecommendedActions),
		CreatedAt:          now,
	}
	if err := a.store.CreateAnalysisRun(ctx, run); err != nil {
		return nil, eris.Wrap(err, "research: create analysis run")
	}
	log = log.With(zap.String("run_id", run.ID))

	existing, err := a.store.ListAnswers(ctx, req.ProjectID)
	if err != nil {
		return nil, eris.Wrap(err, "research: list answers")
	}
	// Scoped to this run; never shared across runs.
	answers := make(map[model.AnswerKey]*model.Answer, len(existing))
	for i := range existing {
		answers[existing[i].Key()] = &existing[i]
	}

	evidenceByID := make(map[string]model.Evidence, len(evidence))
	for _, e := range evidence {
		evidenceByID[e.ID] = e
	}
	researchByID := make(map[string]model.ResearchQuestion, len(research))
	for _, rq := range research {
		researchByID[rq.ID] = rq
	}

	grouping := GroupLinks(out.EvidenceResults, evidenceByID, researchByID, minConfidence)
	for _, r := range grouping.Rejections {
		switch r.Reason {
		case RejectLowConfidence:
			log.Debug("research: link below threshold", zap.String("evidence_id", r.EvidenceID), zap.String("question_id", r.QuestionID))
		default:
			log.Warn("research: link rejected",
				zap.String("reason", r.Reason),
				zap.String("evidence_id", r.EvidenceID),
				zap.String("question_id", r.QuestionID),
			)
		}
	}

	result := &Result{
		Success:            true,
		RunID:              run.ID,
		GlobalGoalSummary:  out.GlobalGoalSummary,
		RecommendedActions: run.RecommendedActions,
		Summary: Summary{
			EvidenceAnalyzed: len(evidence),
			EvidenceLinked:   grouping.Accepted,
		},
	}

	respondents := newRespondentCache(a.store)
	primary := NewPrimaryAnswers()
	var links []model.EvidenceLink

	for _, agg := range grouping.Aggregates {
		prev := answers[agg.Key]

		var respondent string
		if prev != nil {
			respondent = prev.RespondentPersonID
		}
		if respondent == "" {
			if respondent, err = respondents.get(ctx, agg.InterviewID); err != nil {
				return nil, err
			}
		}

		answer, created := ApplyAggregate(req.ProjectID, agg, prev, run.ID, respondent, now)
		if created {
			if err := a.store.InsertAnswer(ctx, answer); err != nil {
				return nil, eris.Wrapf(err, "research: insert answer %s", agg.Key)
			}
			result.Summary.AnswersCreated++
		} else {
			if err := a.store.UpdateAnswer(ctx, answer); err != nil {
				return nil, eris.Wrapf(err, "research: update answer %s", agg.Key)
			}
			result.Summary.AnswersUpdated++
		}
		answers[agg.Key] = answer

		links = append(links, EvidenceLinks(req.ProjectID, answer.ID, run.ID, agg, evidenceByID)...)
		for _, l := range agg.Links {
			primary.Observe(l.EvidenceID, answer.ID, l.Confidence)
		}
	}

	if len(links) > 0 {
		if _, err := a.store.UpsertEvidenceLinks(ctx, links); err != nil {
			return nil, eris.Wrap(err, "research: upsert evidence links")
		}
	}

	err = primary.Each(func(evidenceID, answerID string) error {
		return eris.Wrapf(a.store.SetEvidencePriorAnswer(ctx, evidenceID, answerID),
			"research: set prior answer for %s", evidenceID)
	})
	if err != nil {
		return nil, err
	}

	result.QuestionAnalyses = QuestionAnalyses(run.ID, req.ProjectID, out, researchByID)
	if len(result.QuestionAnalyses) > 0 {
		if err := a.store.AppendQuestionAnalyses(ctx, result.QuestionAnalyses); err != nil {
			return nil, eris.Wrap(err, "research: append question analyses")
		}
	}

	log.Info("research: analysis complete",
		zap.Int("evidence_analyzed", result.Summary.EvidenceAnalyzed),
		zap.Int("links_considered", grouping.Considered),
		zap.Int("links_accepted", grouping.Accepted),
		zap.Int("answers_created", result.Summary.AnswersCreated),
		zap.Int("answers_updated", result.Summary.AnswersUpdated),
		zap.Int("primary_attributions", primary.Len()),
	)
	return result, nil
}

func filterInterview(evidence []model.Evidence, interviewID string) []model.Evidence {
	out := evidence[:0:0]
	for _, e := range evidence {
		if e.InterviewID == interviewID {
			out = append(out, e)
		}
	}
	return out
}

func nonEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it != "" {
			out = append(out, it)
		}
	}
	return out
}
