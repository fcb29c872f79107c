package lens

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lens-cli/internal/llm"
	"github.com/sells-group/lens-cli/internal/model"
	"github.com/sells-group/lens-cli/internal/store"
)

func seedAnalysis(t *testing.T, st store.Store, interviewID, templateKey, value string) {
	t.Helper()
	data := model.EmptyAnalysisData()
	data.Sections = append(data.Sections, model.Section{Key: "s", Fields: []model.Field{{Key: "f", Value: value, EvidenceIDs: []string{}}}})
	require.NoError(t, st.UpsertLensAnalysis(context.Background(), &model.LensAnalysis{
		InterviewID:     interviewID,
		TemplateKey:     templateKey,
		AccountID:       "acc1",
		ProjectID:       "p1",
		Data:            data,
		ConfidenceScore: 0.8,
		Status:          model.LensStatusCompleted,
	}))
}

func insights() *llm.LensInsights {
	return &llm.LensInsights{
		ExecutiveSummary:  "Budget is not the blocker",
		KeyTakeaways:      []string{"CFO decides"},
		Recommendations:   []string{"Engage finance early"},
		OverallConfidence: 0.75,
	}
}

func TestSynthesize_Staleness(t *testing.T) {
	st := newLensStore(t)
	ctx := context.Background()
	seedAnalysis(t, st, "i1", "sales-bant", "v1")

	l := &mockSynthesisLLM{}
	l.On("SynthesizeLensInsights", mock.Anything, mock.Anything).Return(insights(), nil)
	s := NewSynthesizer(st, testCatalog(t), l)
	req := SynthesizeRequest{ProjectID: "p1", TemplateKey: "sales-bant"}

	res, err := s.Synthesize(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, SynthesisCompleted, res.Status)
	assert.Equal(t, 1, res.InterviewCount)

	sum, err := st.GetLensSummary(ctx, "p1", "sales-bant")
	require.NoError(t, err)
	require.NotNil(t, sum)
	assert.Equal(t, model.SummaryStatusCompleted, sum.Status)
	assert.Equal(t, "acc1", sum.AccountID)
	assert.Equal(t, "Budget is not the blocker", sum.ExecutiveSummary)
	assert.Equal(t, []string{"CFO decides"}, sum.KeyTakeaways)
	assert.Equal(t, []string{}, sum.ConflictsToReview)
	assert.NotEmpty(t, sum.InputFingerprint)

	// unchanged inputs
	res, err = s.Synthesize(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, SynthesisUpToDate, res.Status)
	assert.Equal(t, sum.ID, res.SummaryID)
	l.AssertNumberOfCalls(t, "SynthesizeLensInsights", 1)

	// one more completed analysis
	seedAnalysis(t, st, "i3", "sales-bant", "v1")
	res, err = s.Synthesize(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, SynthesisCompleted, res.Status)
	assert.Equal(t, 2, res.InterviewCount)
	l.AssertNumberOfCalls(t, "SynthesizeLensInsights", 2)

	// edited content with the same interview count
	seedAnalysis(t, st, "i3", "sales-bant", "v2")
	res, err = s.Synthesize(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, SynthesisCompleted, res.Status)
	l.AssertNumberOfCalls(t, "SynthesizeLensInsights", 3)

	// force
	res, err = s.Synthesize(ctx, SynthesizeRequest{ProjectID: "p1", TemplateKey: "sales-bant", Force: true})
	require.NoError(t, err)
	assert.Equal(t, SynthesisCompleted, res.Status)
	l.AssertNumberOfCalls(t, "SynthesizeLensInsights", 4)
}

func TestSynthesize_NoData(t *testing.T) {
	st := newLensStore(t)
	l := &mockSynthesisLLM{}
	s := NewSynthesizer(st, testCatalog(t), l)

	res, err := s.Synthesize(context.Background(), SynthesizeRequest{ProjectID: "p1", TemplateKey: "empathy-map"})
	require.NoError(t, err)
	assert.Equal(t, SynthesisNoData, res.Status)
	l.AssertNotCalled(t, "SynthesizeLensInsights", mock.Anything, mock.Anything)
}

func TestSynthesize_FailureMarksFailed(t *testing.T) {
	st := newLensStore(t)
	ctx := context.Background()
	seedAnalysis(t, st, "i1", "sales-bant", "v1")

	l := &mockSynthesisLLM{}
	l.On("SynthesizeLensInsights", mock.Anything, mock.Anything).Return(nil, errors.New("context window exceeded")).Once()
	s := NewSynthesizer(st, testCatalog(t), l)

	_, err := s.Synthesize(ctx, SynthesizeRequest{ProjectID: "p1", TemplateKey: "sales-bant"})
	require.Error(t, err)

	sum, err := st.GetLensSummary(ctx, "p1", "sales-bant")
	require.NoError(t, err)
	require.NotNil(t, sum)
	assert.Equal(t, model.SummaryStatusFailed, sum.Status)
	assert.Equal(t, "context window exceeded", sum.ErrorMessage)
}

func TestSynthesize_InputErrors(t *testing.T) {
	s := NewSynthesizer(newLensStore(t), testCatalog(t), &mockSynthesisLLM{})
	ctx := context.Background()

	_, err := s.Synthesize(ctx, SynthesizeRequest{TemplateKey: "sales-bant"})
	assert.True(t, model.IsInputError(err))
	_, err = s.Synthesize(ctx, SynthesizeRequest{ProjectID: "p1"})
	assert.True(t, model.IsInputError(err))
	_, err = s.SynthesizeCrossLens(ctx, SynthesizeRequest{ProjectID: "p404"})
	assert.True(t, model.IsInputError(err))
}

func TestSynthesizeCrossLens(t *testing.T) {
	st := newLensStore(t)
	ctx := context.Background()
	seedAnalysis(t, st, "i1", "sales-bant", "v1")
	seedAnalysis(t, st, "i1", "empathy-map", "v1")

	l := &mockSynthesisLLM{}
	l.On("SynthesizeLensInsights", mock.Anything, mock.Anything).Return(insights(), nil).Once()
	l.On("SynthesizeCrossLensInsights", mock.Anything, mock.MatchedBy(func(in llm.CrossLensInput) bool {
		return in.ProjectName == "Pipeline review" &&
			in.ProjectDescription == "Q1 deals" &&
			len(in.Analyses) == 2 &&
			len(in.Summaries) == 1 && in.Summaries[0].TemplateKey == "sales-bant"
	})).Return(&llm.CrossLensInsights{
		ExecutiveSummary:   "Deals stall in finance",
		KeyFindings:        []string{"CFO gatekeeps"},
		RecommendedActions: []string{"Build an ROI sheet"},
		Risks:              []string{"Small sample"},
		OverallConfidence:  0.6,
	}, nil).Once()
	s := NewSynthesizer(st, testCatalog(t), l)

	_, err := s.Synthesize(ctx, SynthesizeRequest{ProjectID: "p1", TemplateKey: "sales-bant"})
	require.NoError(t, err)

	res, err := s.SynthesizeCrossLens(ctx, SynthesizeRequest{ProjectID: "p1", ProcessedBy: "scheduler"})
	require.NoError(t, err)
	assert.Equal(t, SynthesisCompleted, res.Status)
	assert.Equal(t, model.CrossLensKey, res.TemplateKey)
	assert.Equal(t, 2, res.InterviewCount)

	sum, err := st.GetLensSummary(ctx, "p1", model.CrossLensKey)
	require.NoError(t, err)
	require.NotNil(t, sum)
	assert.Equal(t, []string{"CFO gatekeeps"}, sum.KeyTakeaways)
	assert.Equal(t, []string{"Build an ROI sheet"}, sum.Recommendations)
	assert.Equal(t, []string{"Small sample"}, sum.ConflictsToReview)
	assert.Equal(t, "scheduler", sum.ProcessedBy)
	assert.InDelta(t, 0.6, sum.OverallConfidence, 1e-9)

	res, err = s.SynthesizeCrossLens(ctx, SynthesizeRequest{ProjectID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, SynthesisUpToDate, res.Status)
	l.AssertExpectations(t)
}

func TestFingerprint(t *testing.T) {
	a := model.LensAnalysis{InterviewID: "i1", TemplateKey: "t", ConfidenceScore: 0.5, Data: model.EmptyAnalysisData()}
	b := model.LensAnalysis{InterviewID: "i2", TemplateKey: "t", ConfidenceScore: 0.5, Data: model.EmptyAnalysisData()}

	assert.Equal(t, Fingerprint([]model.LensAnalysis{a, b}), Fingerprint([]model.LensAnalysis{b, a}))

	edited := b
	edited.ConfidenceScore = 0.6
	assert.NotEqual(t, Fingerprint([]model.LensAnalysis{a, b}), Fingerprint([]model.LensAnalysis{a, edited}))
}
