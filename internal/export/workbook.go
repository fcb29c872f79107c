// Package export writes a project's answers, evidence links and lens
// summaries to an XLSX workbook.
package export

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/lens-cli/internal/model"
	"github.com/sells-group/lens-cli/internal/store"
)

// Sheet names.
const (
	SheetAnswers   = "Answers"
	SheetEvidence  = "Evidence Links"
	SheetSummaries = "Lens Summaries"
)

const timeLayout = "2006-01-02 15:04:05"

var (
	answerHeader = []string{
		"Answer ID", "Kind", "Question ID", "Question", "Interview ID", "Status", "Origin",
		"Confidence", "Answer", "Summary", "Rationale", "Next Steps", "Respondent", "Last Run", "Answered At",
	}
	evidenceHeader = []string{
		"Answer ID", "Question", "Evidence ID", "Interview ID", "Relationship", "Confidence",
		"Rationale", "Run ID", "Evidence Text",
	}
	summaryHeader = []string{
		"Template", "Status", "Interviews", "Confidence", "Executive Summary",
		"Key Takeaways", "Recommendations", "Conflicts", "Processed At",
	}
)

// Reader is the slice of the store an export reads.
type Reader interface {
	GetProject(ctx context.Context, projectID string) (*model.Project, error)
	ListAnswers(ctx context.Context, projectID string) ([]model.Answer, error)
	ListEvidenceLinks(ctx context.Context, projectID string) ([]model.EvidenceLink, error)
	ListLensSummaries(ctx context.Context, projectID string) ([]model.LensSummary, error)
}

// Stats counts the rows written per sheet.
type Stats struct {
	Answers   int
	Links     int
	Summaries int
}

// Build assembles the workbook for projectID.
func Build(ctx context.Context, r Reader, projectID string) (*xlsx.File, *Stats, error) {
	if err := model.Required("project_id", projectID); err != nil {
		return nil, nil, err
	}
	if _, err := r.GetProject(ctx, projectID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, model.NewInputError("project_id", "project %s not found", projectID)
		}
		return nil, nil, eris.Wrap(err, "export: get project")
	}

	answers, err := r.ListAnswers(ctx, projectID)
	if err != nil {
		return nil, nil, eris.Wrap(err, "export: list answers")
	}
	links, err := r.ListEvidenceLinks(ctx, projectID)
	if err != nil {
		return nil, nil, eris.Wrap(err, "export: list evidence links")
	}
	summaries, err := r.ListLensSummaries(ctx, projectID)
	if err != nil {
		return nil, nil, eris.Wrap(err, "export: list lens summaries")
	}

	f := xlsx.NewFile()
	questions := make(map[string]string, len(answers))

	sheet, err := addSheet(f, SheetAnswers, answerHeader)
	if err != nil {
		return nil, nil, err
	}
	for _, a := range answers {
		questions[a.ID] = a.QuestionText
		kind, qid := "decision", a.DecisionQuestionID
		if a.ResearchQuestionID != "" {
			kind, qid = "research", a.ResearchQuestionID
		}
		row := sheet.AddRow()
		addStrings(row, a.ID, kind, qid, a.QuestionText, a.InterviewID, string(a.Status), a.Origin)
		row.AddCell().SetFloatWithFormat(a.Confidence, "0.00")
		addStrings(row, a.AnswerText, a.AnalysisSummary, a.AnalysisRationale, a.AnalysisNextSteps,
			a.RespondentPersonID, a.RunMetadata.LastRunID, formatTime(a.AnsweredAt))
	}

	sheet, err = addSheet(f, SheetEvidence, evidenceHeader)
	if err != nil {
		return nil, nil, err
	}
	for _, l := range links {
		row := sheet.AddRow()
		addStrings(row, l.AnswerID, questions[l.AnswerID], l.EvidenceID, l.InterviewID, string(l.Payload.Relationship))
		row.AddCell().SetFloatWithFormat(l.Payload.Confidence, "0.00")
		addStrings(row, l.Payload.Rationale, l.Payload.RunID, l.Text)
	}

	sheet, err = addSheet(f, SheetSummaries, summaryHeader)
	if err != nil {
		return nil, nil, err
	}
	for _, s := range summaries {
		row := sheet.AddRow()
		addStrings(row, s.TemplateKey, string(s.Status))
		row.AddCell().SetInt(s.InterviewCount)
		row.AddCell().SetFloatWithFormat(s.OverallConfidence, "0.00")
		addStrings(row, s.ExecutiveSummary, bullets(s.KeyTakeaways), bullets(s.Recommendations),
			bullets(s.ConflictsToReview), formatTime(s.ProcessedAt))
	}

	stats := &Stats{Answers: len(answers), Links: len(links), Summaries: len(summaries)}
	zap.L().Debug("export: workbook built",
		zap.String("project_id", projectID),
		zap.Int("answers", stats.Answers),
		zap.Int("links", stats.Links),
		zap.Int("summaries", stats.Summaries),
	)
	return f, stats, nil
}

// WriteFile builds the workbook and saves it to path.
func WriteFile(ctx context.Context, r Reader, projectID, path string) (*Stats, error) {
	f, stats, err := Build(ctx, r, projectID)
	if err != nil {
		return nil, err
	}
	if err := f.Save(path); err != nil {
		return nil, eris.Wrapf(err, "export: save %s", path)
	}
	return stats, nil
}

func addSheet(f *xlsx.File, name string, header []string) (*xlsx.Sheet, error) {
	sheet, err := f.AddSheet(name)
	if err != nil {
		return nil, eris.Wrapf(err, "export: add sheet %s", name)
	}
	addStrings(sheet.AddRow(), header...)
	return sheet, nil
}

func addStrings(row *xlsx.Row, values ...string) {
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func bullets(items []string) string {
	if len(items) == 0 {
		return ""
	}
	return "• " + strings.Join(items, "\n• ")
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(timeLayout)
}
