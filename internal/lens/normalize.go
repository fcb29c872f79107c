package lens

import (
	"fmt"
	"math"

	"github.com/sells-group/lens-cli/internal/llm"
	"github.com/sells-group/lens-cli/internal/model"
)

// defaultConversationConfidence applies when the generic lens omits a score.
const defaultConversationConfidence = 0.5

// NormalizeSalesBANT maps a BANT extraction to the generic document. The
// confidence is the mean of the four BANT scores.
func NormalizeSalesBANT(out *llm.SalesBANT) (model.AnalysisData, float64) {
	data := model.EmptyAnalysisData()
	data.Sections = append(data.Sections,
		model.Section{Key: "bant", Fields: []model.Field{
			scoredField("budget", out.Budget),
			scoredField("authority", out.Authority),
			scoredField("need", out.Need),
			scoredField("timeline", out.Timeline),
		}},
		model.Section{Key: "deal", Fields: []model.Field{
			{Key: "deal_summary", Value: out.DealSummary, EvidenceIDs: []string{}},
		}},
	)
	data.Entities["stakeholders"] = entities(out.Stakeholders)
	data.Entities["objections"] = entities(out.Objections)
	data.Entities["next_steps"] = entities(out.NextSteps)
	data.Recommendations = recommendations(out.Recommendations)

	score := (out.Budget.Score + out.Authority.Score + out.Need.Score + out.Timeline.Score) / 4
	return data, clamp(score)
}

// NormalizeCustomerDiscovery maps a discovery extraction. The confidence is
// the goal completion score.
func NormalizeCustomerDiscovery(out *llm.CustomerDiscovery) (model.AnalysisData, float64) {
	data := model.EmptyAnalysisData()
	data.Sections = append(data.Sections, model.Section{Key: "problem", Fields: []model.Field{
		{Key: "problem_statement", Value: out.ProblemStatement, Confidence: clamp(out.GoalCompletionScore), EvidenceIDs: []string{}},
		scoredField("willingness_to_pay", out.WillingnessToPay),
	}})
	data.Entities["pains"] = entities(out.Pains)
	data.Entities["current_solutions"] = entities(out.CurrentSolutions)
	data.Entities["jobs_to_be_done"] = entities(out.JobsToBeDone)
	data.Entities["personas"] = entities(out.Personas)
	data.Recommendations = recommendations(out.Recommendations)
	return data, clamp(out.GoalCompletionScore)
}

// NormalizeProductInsights maps a product extraction. Each top insight
// becomes one field of the insights section.
func NormalizeProductInsights(out *llm.ProductInsights) (model.AnalysisData, float64) {
	data := model.EmptyAnalysisData()
	fields := make([]model.Field, 0, len(out.TopInsights))
	for i, insight := range out.TopInsights {
		fields = append(fields, model.Field{
			Key:         fmt.Sprintf("insight_%d", i+1),
			Value:       insight,
			Confidence:  clamp(out.OverallConfidence),
			EvidenceIDs: []string{},
		})
	}
	data.Sections = append(data.Sections, model.Section{Key: "insights", Fields: fields})
	data.Entities["feature_requests"] = entities(out.FeatureRequests)
	data.Entities["usability_issues"] = entities(out.UsabilityIssues)
	data.Entities["competitive_mentions"] = entities(out.CompetitiveMentions)
	data.Recommendations = recommendations(out.Recommendations)
	return data, clamp(out.OverallConfidence)
}

// NormalizeProjectQA maps a Q&A extraction. Answers are fields keyed by
// question id; open questions become follow_up recommendations.
func NormalizeProjectQA(out *llm.ProjectQA) (model.AnalysisData, float64) {
	data := model.EmptyAnalysisData()
	fields := make([]model.Field, 0, len(out.Answers))
	for _, a := range out.Answers {
		fields = append(fields, model.Field{
			Key:         a.QuestionID,
			Value:       a.Answer,
			Confidence:  clamp(a.Confidence),
			EvidenceIDs: nonNil(a.EvidenceIDs),
		})
	}
	data.Sections = append(data.Sections, model.Section{Key: "answers", Fields: fields})
	data.Recommendations = recommendations(out.Recommendations)
	for _, q := range out.OpenQuestions {
		if q == "" {
			continue
		}
		data.Recommendations = append(data.Recommendations, model.Recommendation{
			Type:        "follow_up",
			Description: q,
			EvidenceIDs: []string{},
		})
	}
	return data, clamp(out.GoalCompletionScore)
}

// NormalizeConversation copies the generic lens output, filling nil
// collections. A zero overall confidence falls back to 0.5.
func NormalizeConversation(out *llm.ConversationLens) (model.AnalysisData, float64) {
	data := model.EmptyAnalysisData()
	for _, s := range out.Sections {
		if s.Fields == nil {
			s.Fields = []model.Field{}
		}
		data.Sections = append(data.Sections, s)
	}
	for k, v := range out.Entities {
		if v == nil {
			v = []model.Entity{}
		}
		data.Entities[k] = v
	}
	data.Recommendations = recommendations(out.Recommendations)
	data.Hygiene = out.Hygiene

	confidence := out.OverallConfidence
	if confidence == 0 {
		confidence = defaultConversationConfidence
	}
	return data, clamp(confidence)
}

func scoredField(key string, s llm.Scored) model.Field {
	return model.Field{
		Key:         key,
		Value:       s.Summary,
		Confidence:  clamp(s.Score),
		EvidenceIDs: nonNil(s.EvidenceIDs),
	}
}

func entities(items []llm.Item) []model.Entity {
	out := make([]model.Entity, 0, len(items))
	for _, it := range items {
		out = append(out, model.Entity{
			Name:        it.Name,
			Description: it.Description,
			Role:        it.Role,
			Severity:    it.Severity,
			Frequency:   it.Frequency,
			Influence:   it.Influence,
			Status:      it.Status,
			Priority:    it.Priority,
			Owner:       it.Owner,
			DueDate:     it.DueDate,
			EvidenceIDs: it.EvidenceIDs,
		})
	}
	return out
}

func recommendations(in []model.Recommendation) []model.Recommendation {
	if in == nil {
		return []model.Recommendation{}
	}
	return in
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(1, math.Max(0, v))
}
