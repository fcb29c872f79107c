package export

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lens-cli/internal/model"
	"github.com/sells-group/lens-cli/internal/store"
)

type mockReader struct {
	mock.Mock
}

func (m *mockReader) GetProject(ctx context.Context, projectID string) (*model.Project, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Project), args.Error(1)
}

func (m *mockReader) ListAnswers(ctx context.Context, projectID string) ([]model.Answer, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Answer), args.Error(1)
}

func (m *mockReader) ListEvidenceLinks(ctx context.Context, projectID string) ([]model.EvidenceLink, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.EvidenceLink), args.Error(1)
}

func (m *mockReader) ListLensSummaries(ctx context.Context, projectID string) ([]model.LensSummary, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.LensSummary), args.Error(1)
}

func seededReader() *mockReader {
	answered := time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC)
	r := &mockReader{}
	r.On("GetProject", mock.Anything, "p1").Return(&model.Project{ID: "p1", AccountID: "acc1"}, nil)
	r.On("ListAnswers", mock.Anything, "p1").Return([]model.Answer{
		{
			ID: "a1", ProjectID: "p1", InterviewID: "i1", ResearchQuestionID: "rq1", DecisionQuestionID: "dq1",
			QuestionText: "What blocks adoption?", Status: model.AnswerStatusAnswered, Origin: model.OriginAnalysis,
			AnswerText: "Procurement cycles", Confidence: 0.82, AnsweredAt: &answered,
			RunMetadata: model.RunMetadata{LastRunID: "run-1"},
		},
		{ID: "a2", ProjectID: "p1", DecisionQuestionID: "dq1", QuestionText: "Should we expand?", Status: model.AnswerStatusPending},
	}, nil)
	r.On("ListEvidenceLinks", mock.Anything, "p1").Return([]model.EvidenceLink{
		{
			ProjectID: "p1", AnswerID: "a1", EvidenceID: "e1", InterviewID: "i1", Source: model.LinkSourceAnalysis,
			Text:    "Legal review takes a quarter",
			Payload: model.EvidenceLinkPayload{RunID: "run-1", Relationship: "supports", Confidence: 0.9, Rationale: "direct quote"},
		},
	}, nil)
	r.On("ListLensSummaries", mock.Anything, "p1").Return([]model.LensSummary{
		{
			ProjectID: "p1", TemplateKey: "sales-bant", Status: model.SummaryStatusCompleted, InterviewCount: 3,
			ExecutiveSummary: "Budget is confirmed", KeyTakeaways: []string{"budget set", "timeline Q3"},
			OverallConfidence: 0.7,
		},
	}, nil)
	return r
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p1.xlsx")
	stats, err := WriteFile(context.Background(), seededReader(), "p1", path)
	require.NoError(t, err)
	assert.Equal(t, &Stats{Answers: 2, Links: 1, Summaries: 1}, stats)

	rows, err := ReadSheet(path, SheetAnswers)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, answerHeader, rows[0])
	assert.Equal(t, "a1", rows[1][0])
	assert.Equal(t, "research", rows[1][1])
	assert.Equal(t, "rq1", rows[1][2])
	assert.Contains(t, rows[1][7], "0.82")
	assert.Equal(t, "Procurement cycles", rows[1][8])
	assert.Equal(t, "run-1", rows[1][13])
	assert.Equal(t, "2026-03-04 15:30:00", rows[1][14])
	assert.Equal(t, "decision", rows[2][1])
	assert.Equal(t, "dq1", rows[2][2])

	rows, err = ReadSheet(path, SheetEvidence)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "What blocks adoption?", rows[1][1])
	assert.Equal(t, "supports", rows[1][4])
	assert.Equal(t, "Legal review takes a quarter", rows[1][8])

	rows, err = ReadSheet(path, SheetSummaries)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "sales-bant", rows[1][0])
	assert.Equal(t, "3", rows[1][2])
	assert.Equal(t, "• budget set\n• timeline Q3", rows[1][5])
}

func TestBuild_Errors(t *testing.T) {
	_, _, err := Build(context.Background(), &mockReader{}, "")
	assert.True(t, model.IsInputError(err))

	r := &mockReader{}
	r.On("GetProject", mock.Anything, "missing").Return(nil, store.ErrNotFound)
	_, _, err = Build(context.Background(), r, "missing")
	assert.True(t, model.IsInputError(err))

	r = &mockReader{}
	r.On("GetProject", mock.Anything, "p1").Return(&model.Project{ID: "p1"}, nil)
	r.On("ListAnswers", mock.Anything, "p1").Return(nil, errors.New("db down"))
	_, _, err = Build(context.Background(), r, "p1")
	require.Error(t, err)
	assert.False(t, model.IsInputError(err))
	assert.Contains(t, err.Error(), "db down")
}

func TestReadSheet_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p1.xlsx")
	_, err := WriteFile(context.Background(), seededReader(), "p1", path)
	require.NoError(t, err)

	_, err = ReadSheet(path, "Nope")
	assert.Error(t, err)

	_, err = ReadSheet(filepath.Join(t.TempDir(), "absent.xlsx"), SheetAnswers)
	assert.Error(t, err)
}
