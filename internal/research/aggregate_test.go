package research

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lens-cli/internal/llm"
	"github.com/sells-group/lens-cli/internal/model"
)

func testCatalog() (map[string]model.Evidence, map[string]model.ResearchQuestion) {
	evidence := map[string]model.Evidence{
		"e1": {ID: "e1", InterviewID: "i1", Verbatim: "Too expensive"},
		"e2": {ID: "e2", InterviewID: "i1", Verbatim: "We churned on price"},
		"e3": {ID: "e3", InterviewID: "i2", Verbatim: "Price was fine"},
	}
	research := map[string]model.ResearchQuestion{
		"rq1": {ID: "rq1", DecisionQuestionID: "dq1", Text: "Is price the churn driver?"},
		"rq2": {ID: "rq2", DecisionQuestionID: "dq1"},
	}
	return evidence, research
}

func link(q string, conf float64, summary string) llm.RawLink {
	return llm.RawLink{QuestionID: q, QuestionKind: "research", Relationship: "supports", Confidence: conf, AnswerSummary: summary}
}

func TestGroupLinks_ConfidenceThreshold(t *testing.T) {
	t.Parallel()
	evidence, research := testCatalog()

	g := GroupLinks([]llm.EvidenceResult{
		{EvidenceID: "e1", Links: []llm.RawLink{link("rq1", 0.59, "low")}},
		{EvidenceID: "e2", Links: []llm.RawLink{link("rq1", 0.6, "exact")}},
	}, evidence, research, 0.6)

	assert.Equal(t, 2, g.Considered)
	assert.Equal(t, 1, g.Accepted)
	require.Len(t, g.Aggregates, 1)
	require.Len(t, g.Aggregates[0].Links, 1)
	assert.Equal(t, "e2", g.Aggregates[0].Links[0].EvidenceID)
	require.Len(t, g.Rejections, 1)
	assert.Equal(t, RejectLowConfidence, g.Rejections[0].Reason)
}

func TestGroupLinks_Rejections(t *testing.T) {
	t.Parallel()
	evidence, research := testCatalog()

	g := GroupLinks([]llm.EvidenceResult{
		{EvidenceID: "e1", Links: []llm.RawLink{{QuestionID: "dq1", QuestionKind: "decision", Confidence: 0.95}}},
		{EvidenceID: "ghost", Links: []llm.RawLink{link("rq1", 0.9, "x")}},
		{EvidenceID: "e2", Links: []llm.RawLink{link("rq-missing", 0.9, "x")}},
	}, evidence, research, 0.6)

	assert.Empty(t, g.Aggregates)
	assert.Equal(t, 0, g.Accepted)
	reasons := make([]string, 0, len(g.Rejections))
	for _, r := range g.Rejections {
		reasons = append(reasons, r.Reason)
	}
	assert.ElementsMatch(t, []string{RejectDecisionLink, RejectUnknownEvidence, RejectUnknownQuestion}, reasons)
}

func TestGroupLinks_KeysByInterview(t *testing.T) {
	t.Parallel()
	evidence, research := testCatalog()

	g := GroupLinks([]llm.EvidenceResult{
		{EvidenceID: "e1", Links: []llm.RawLink{link("rq1", 0.7, "a"), link("rq2", 0.8, "b")}},
		{EvidenceID: "e2", Links: []llm.RawLink{link("rq1", 0.9, "c")}},
		{EvidenceID: "e3", Links: []llm.RawLink{link("rq1", 0.65, "d")}},
	}, evidence, research, 0.6)

	require.Len(t, g.Aggregates, 3)
	first := g.Aggregates[0]
	assert.Equal(t, model.AnswerKey{Kind: model.QuestionKindResearch, ResearchQuestionID: "rq1", DecisionQuestionID: "dq1", InterviewID: "i1"}, first.Key)
	assert.Len(t, first.Links, 2)
	assert.Equal(t, "Is price the churn driver?", first.QuestionText)
	assert.Equal(t, untitledQuestion, g.Aggregates[1].QuestionText)
	assert.Equal(t, "i2", g.Aggregates[2].InterviewID)
}

func TestGroupLinks_MissingKindTreatedAsResearch(t *testing.T) {
	t.Parallel()
	evidence, research := testCatalog()

	g := GroupLinks([]llm.EvidenceResult{
		{EvidenceID: "e1", Links: []llm.RawLink{{QuestionID: "rq1", Confidence: 0.8, Relationship: "bogus"}}},
	}, evidence, research, 0.6)

	require.Len(t, g.Aggregates, 1)
	assert.Equal(t, model.RelationshipSupports, g.Aggregates[0].Links[0].Relationship)
}

func TestAggregateMerge(t *testing.T) {
	t.Parallel()
	agg := &Aggregate{Links: []AcceptedLink{
		{Confidence: 0.7, AnswerSummary: "Price hurts", Rationale: "Direct quote", NextSteps: ""},
		{Confidence: 0.9, AnswerSummary: " Price hurts ", Rationale: "Second account", NextSteps: "Test a lower tier"},
		{Confidence: 0.65, AnswerSummary: "Budget frozen", Rationale: "Direct quote", NextSteps: "Test a lower tier"},
	}}

	m := agg.Merge()
	assert.InDelta(t, 0.9, m.Confidence, 1e-9)
	assert.Equal(t, "• Price hurts\n• Budget frozen", m.Summary)
	assert.Equal(t, "• Direct quote\n• Second account", m.Rationale)
	assert.Equal(t, "• Test a lower tier", m.NextSteps)
}

func TestBulletList(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "", bulletList(nil))
	assert.Equal(t, "", bulletList([]string{"", "  "}))
	assert.Equal(t, "• a\n• b", bulletList([]string{"a", "b", "a "}))
}

func TestClampConfidence(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0.0, clampConfidence(math.NaN()))
	assert.Equal(t, 0.0, clampConfidence(-0.2))
	assert.Equal(t, 1.0, clampConfidence(1.7))
	assert.Equal(t, 0.42, clampConfidence(0.42))
}

func testAggregate() *Aggregate {
	ref := model.ResearchRef{ResearchQuestionID: "rq1", DecisionQuestionID: "dq1"}
	return &Aggregate{
		Key:          model.KeyFor(ref, "i1"),
		Ref:          ref,
		InterviewID:  "i1",
		QuestionText: "Is price the churn driver?",
		Links: []AcceptedLink{
			{EvidenceID: "e1", Relationship: model.RelationshipSupports, Confidence: 0.8, AnswerSummary: "Price hurts", Rationale: "Quote"},
		},
	}
}

func TestApplyAggregate_Insert(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	a, created := ApplyAggregate("p1", testAggregate(), nil, "run1", "per1", now)
	require.True(t, created)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, model.OriginAnalysis, a.Origin)
	assert.Equal(t, model.AnswerStatusAnswered, a.Status)
	assert.Equal(t, "• Price hurts", a.AnswerText)
	assert.Equal(t, "• Price hurts", a.AnalysisSummary)
	assert.Equal(t, "per1", a.RespondentPersonID)
	assert.Equal(t, "run1", a.RunMetadata.LastRunID)
	require.Contains(t, a.RunMetadata.EvidenceLinks, "e1")
	assert.Equal(t, "run1", a.RunMetadata.EvidenceLinks["e1"].RunID)
	assert.Equal(t, a.Key(), testAggregate().Key)
}

func TestApplyAggregate_Update(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	earlier := now.Add(-24 * time.Hour)

	tests := []struct {
		name           string
		existing       model.Answer
		respondent     string
		wantAnswerText string
		wantOrigin     string
		wantRespondent string
	}{
		{
			name:           "analysis origin is overwritten",
			existing:       model.Answer{ID: "a1", Origin: model.OriginAnalysis, AnswerText: "old", RespondentPersonID: "per1"},
			respondent:     "per1",
			wantAnswerText: "• Price hurts",
			wantOrigin:     model.OriginAnalysis,
			wantRespondent: "per1",
		},
		{
			name:           "human answer is preserved",
			existing:       model.Answer{ID: "a1", Origin: "manual", AnswerText: "Typed by a researcher"},
			respondent:     "per2",
			wantAnswerText: "Typed by a researcher",
			wantOrigin:     "manual",
			wantRespondent: "per2",
		},
		{
			name:           "empty respondent keeps existing",
			existing:       model.Answer{ID: "a1", Origin: model.OriginAnalysis, RespondentPersonID: "per9"},
			wantAnswerText: "• Price hurts",
			wantOrigin:     model.OriginAnalysis,
			wantRespondent: "per9",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			existing := tt.existing
			existing.ProjectID = "p1"
			existing.InterviewID = "i1"
			existing.ResearchQuestionID = "rq1"
			existing.DecisionQuestionID = "dq1"
			existing.AnalysisNextSteps = "• Keep calling"
			existing.RunMetadata = model.RunMetadata{
				LastRunID:     "run0",
				EvidenceLinks: map[string]model.EvidenceLinkHistory{"e0": {RunID: "run0", Confidence: 0.7, UpdatedAt: earlier}},
			}

			a, created := ApplyAggregate("p1", testAggregate(), &existing, "run1", tt.respondent, now)
			require.False(t, created)
			assert.Equal(t, "a1", a.ID)
			assert.Equal(t, tt.wantAnswerText, a.AnswerText)
			assert.Equal(t, tt.wantOrigin, a.Origin)
			assert.Equal(t, tt.wantRespondent, a.RespondentPersonID)
			assert.Equal(t, "• Price hurts", a.AnalysisSummary)
			assert.Equal(t, "• Quote", a.AnalysisRationale)
			// no next steps this run: previous value kept
			assert.Equal(t, "• Keep calling", a.AnalysisNextSteps)
			assert.InDelta(t, 0.8, a.Confidence, 1e-9)
			assert.Equal(t, "Is price the churn driver?", a.QuestionText)
			assert.Equal(t, "run1", a.RunMetadata.LastRunID)
			assert.Len(t, a.RunMetadata.EvidenceLinks, 2)
			assert.Equal(t, "run0", a.RunMetadata.EvidenceLinks["e0"].RunID)
			// the input row is not mutated
			assert.Len(t, existing.RunMetadata.EvidenceLinks, 1)
		})
	}
}

func TestEvidenceLinks(t *testing.T) {
	t.Parallel()
	evidence, _ := testCatalog()
	links := EvidenceLinks("p1", "a1", "run1", testAggregate(), evidence)
	require.Len(t, links, 1)
	l := links[0]
	assert.Equal(t, "a1", l.AnswerID)
	assert.Equal(t, "i1", l.InterviewID)
	assert.Equal(t, model.LinkSourceAnalysis, l.Source)
	assert.Equal(t, "Too expensive", l.Text)
	assert.Equal(t, "run1", l.Payload.RunID)
	assert.Equal(t, "Price hurts", l.Payload.AnalysisSummary)
}

func TestPrimaryAnswers(t *testing.T) {
	t.Parallel()
	p := NewPrimaryAnswers()
	p.Observe("e1", "a1", 0.7)
	p.Observe("e1", "a2", 0.9)
	p.Observe("e1", "a3", 0.9)
	p.Observe("e2", "a1", 0.6)

	got := map[string]string{}
	var order []string
	require.NoError(t, p.Each(func(evidenceID, answerID string) error {
		got[evidenceID] = answerID
		order = append(order, evidenceID)
		return nil
	}))
	assert.Equal(t, map[string]string{"e1": "a2", "e2": "a1"}, got)
	assert.Equal(t, []string{"e1", "e2"}, order)
	assert.Equal(t, 2, p.Len())
}

func TestQuestionAnalyses(t *testing.T) {
	t.Parallel()
	_, research := testCatalog()
	rows := QuestionAnalyses("run1", "p1", &llm.LinkOutput{
		ResearchQuestionAnswers: []llm.ResearchQuestionAnswer{{ResearchQuestionID: "rq1", Findings: []string{"a", "b"}, Confidence: 1.4}},
		DecisionQuestionAnswers: []llm.DecisionQuestionAnswer{{
			DecisionQuestionID: "dq1", StrategicInsight: "Lower the entry tier",
			RecommendedActions: []string{"x", "y"}, Reasoning: "Most churn cites price", Confidence: 0.7,
		}},
	}, research)

	require.Len(t, rows, 2)
	assert.Equal(t, model.QuestionKindResearch, rows[0].QuestionKind)
	assert.Equal(t, "dq1", rows[0].DecisionQuestionID)
	assert.Equal(t, "a\n• b", rows[0].Summary)
	assert.Equal(t, 1.0, rows[0].Confidence)

	assert.Equal(t, model.QuestionKindDecision, rows[1].QuestionKind)
	assert.Equal(t, "Lower the entry tier", rows[1].Summary)
	assert.Equal(t, "x\n• y", rows[1].NextSteps)
	assert.Equal(t, "Most churn cites price", rows[1].GoalAchievementSummary)
}

func TestGroupLinks_DuplicateEvidenceKeepsHighestConfidence(t *testing.T) {
	t.Parallel()
	evidence, research := testCatalog()

	g := GroupLinks([]llm.EvidenceResult{
		{EvidenceID: "e1", Links: []llm.RawLink{link("rq1", 0.7, "first"), link("rq1", 0.9, "stronger")}},
		{EvidenceID: "e1", Links: []llm.RawLink{link("rq1", 0.8, "repeat entry")}},
		{EvidenceID: "e2", Links: []llm.RawLink{link("rq1", 0.6, "other evidence")}},
	}, evidence, research, 0.6)

	assert.Equal(t, 4, g.Considered)
	assert.Equal(t, 2, g.Accepted)
	require.Len(t, g.Aggregates, 1)
	links := g.Aggregates[0].Links
	require.Len(t, links, 2)
	assert.Equal(t, "e1", links[0].EvidenceID)
	assert.Equal(t, "stronger", links[0].AnswerSummary)
	assert.InDelta(t, 0.9, links[0].Confidence, 1e-9)
	assert.Equal(t, "e2", links[1].EvidenceID)

	require.Len(t, g.Rejections, 2)
	for _, r := range g.Rejections {
		assert.Equal(t, RejectDuplicateLink, r.Reason)
	}

	rows := EvidenceLinks("p1", "a1", "run1", g.Aggregates[0], evidence)
	assert.Len(t, rows, 2)
}
