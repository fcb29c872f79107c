package store

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lens-cli/internal/model"
)

// ErrNotFound is returned when a required row does not exist.
var ErrNotFound = eris.New("store: not found")

// Conflict keys. Each one equals the identity key of its row type and is the
// only concurrency control on that table: every write path upserts on it.
var (
	EvidenceLinkConflictKey = []string{"project_id", "answer_id", "evidence_id"}
	LensAnalysisConflictKey = []string{"interview_id", "template_key"}
	LensSummaryConflictKey  = []string{"project_id", "template_key"}
)

func conflictClause(keys []string) string {
	return "ON CONFLICT (" + strings.Join(keys, ", ") + ")"
}

// Store defines the persistence interface for the analysis pipelines.
type Store interface {
	// Projects and settings
	GetProject(ctx context.Context, projectID string) (*model.Project, error)
	GetAccountSettings(ctx context.Context, accountID string) (*model.AccountSettings, error)

	// Question catalog
	ListDecisionQuestions(ctx context.Context, projectID string) ([]model.DecisionQuestion, error)
	ListResearchQuestions(ctx context.Context, projectID string) ([]model.ResearchQuestion, error)

	// Evidence
	ListEvidence(ctx context.Context, projectID string, evidenceIDs []string) ([]model.Evidence, error)
	ListInterviewEvidence(ctx context.Context, interviewID string) ([]model.Evidence, error)
	SetEvidencePriorAnswer(ctx context.Context, evidenceID, answerID string) error

	// Answers and links
	ListAnswers(ctx context.Context, projectID string) ([]model.Answer, error)
	InsertAnswer(ctx context.Context, a *model.Answer) error
	UpdateAnswer(ctx context.Context, a *model.Answer) error
	UpsertEvidenceLinks(ctx context.Context, links []model.EvidenceLink) (int64, error)
	ListEvidenceLinks(ctx context.Context, projectID string) ([]model.EvidenceLink, error)

	// Analysis runs
	CreateAnalysisRun(ctx context.Context, run *model.AnalysisRun) error
	ListAnalysisRuns(ctx context.Context, projectID string, limit int) ([]model.AnalysisRun, error)
	AppendQuestionAnalyses(ctx context.Context, rows []model.QuestionAnalysis) error

	// Interviews
	GetInterview(ctx context.Context, interviewID string) (*model.Interview, error)
	ListParticipants(ctx context.Context, interviewID string) ([]model.Participant, error)

	// Lens analyses and summaries
	UpsertLensAnalysis(ctx context.Context, a *model.LensAnalysis) error
	GetLensAnalysis(ctx context.Context, interviewID, templateKey string) (*model.LensAnalysis, error)
	ListCompletedLensAnalyses(ctx context.Context, projectID, templateKey string) ([]model.LensAnalysis, error)
	GetLensSummary(ctx context.Context, projectID, templateKey string) (*model.LensSummary, error)
	UpsertLensSummary(ctx context.Context, s *model.LensSummary) error
	ListLensSummaries(ctx context.Context, projectID string) ([]model.LensSummary, error)
	ListSynthesisTargets(ctx context.Context) ([]model.SynthesisTarget, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
