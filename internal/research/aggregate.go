package research

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/lens-cli/internal/llm"
	"github.com/sells-group/lens-cli/internal/model"
)

// DefaultMinConfidence is the link acceptance threshold when none is configured.
const DefaultMinConfidence = 0.6

const untitledQuestion = "Untitled research question"

// Rejection reasons.
const (
	RejectLowConfidence   = "below_min_confidence"
	RejectDecisionLink    = "decision_question_link"
	RejectUnknownEvidence = "unknown_evidence"
	RejectUnknownQuestion = "unknown_research_question"
	RejectDuplicateLink   = "duplicate_link"
)

// AcceptedLink is one evidence→research question link that passed filtering.
type AcceptedLink struct {
	EvidenceID    string
	Relationship  model.Relationship
	Confidence    float64
	AnswerSummary string
	Rationale     string
	NextSteps     string
}

// Aggregate collects every accepted link that shares one answer identity.
type Aggregate struct {
	Key          model.AnswerKey
	Ref          model.ResearchRef
	InterviewID  string
	QuestionText string
	Links        []AcceptedLink
}

// Rejection records a dropped link.
type Rejection struct {
	EvidenceID string
	QuestionID string
	Reason     string
}

// Grouping is the result of filtering and keying one linker response.
type Grouping struct {
	// Aggregates are in first-seen order.
	Aggregates []*Aggregate
	Considered int
	Accepted   int
	Rejections []Rejection
}

// GroupLinks filters raw linker links and groups the survivors by answer key.
// A link is dropped when its evidence is unknown, its confidence is below
// minConfidence, it points at a decision question, or its research question
// is not in the catalog. An aggregate holds at most one link per evidence
// id; repeats keep the highest confidence, first seen on ties.
func GroupLinks(
	results []llm.EvidenceResult,
	evidence map[string]model.Evidence,
	research map[string]model.ResearchQuestion,
	minConfidence float64,
) Grouping {
	var g Grouping
	index := make(map[model.AnswerKey]*Aggregate)

	for _, r := range results {
		ev, ok := evidence[r.EvidenceID]
		if !ok {
			g.Rejections = append(g.Rejections, Rejection{EvidenceID: r.EvidenceID, Reason: RejectUnknownEvidence})
			continue
		}

		for _, link := range r.Links {
			g.Considered++
			confidence := clampConfidence(link.Confidence)
			reject := func(reason string) {
				g.Rejections = append(g.Rejections, Rejection{EvidenceID: ev.ID, QuestionID: link.QuestionID, Reason: reason})
			}

			if confidence < minConfidence {
				reject(RejectLowConfidence)
				continue
			}
			if kind, err := model.ParseQuestionKind(link.QuestionKind); err == nil && kind == model.QuestionKindDecision {
				reject(RejectDecisionLink)
				continue
			}
			rq, ok := research[link.QuestionID]
			if !ok {
				reject(RejectUnknownQuestion)
				continue
			}

			ref := model.ResearchRef{ResearchQuestionID: rq.ID, DecisionQuestionID: rq.DecisionQuestionID}
			key := model.KeyFor(ref, ev.InterviewID)
			agg, ok := index[key]
			if !ok {
				text := rq.Text
				if text == "" {
					text = untitledQuestion
				}
				agg = &Aggregate{Key: key, Ref: ref, InterviewID: ev.InterviewID, QuestionText: text}
				index[key] = agg
				g.Aggregates = append(g.Aggregates, agg)
			}
			accepted := AcceptedLink{
				EvidenceID:    ev.ID,
				Relationship:  model.ParseRelationship(link.Relationship),
				Confidence:    confidence,
				AnswerSummary: link.AnswerSummary,
				Rationale:     link.Rationale,
				NextSteps:     link.NextSteps,
			}
			if i := agg.linkIndex(ev.ID); i >= 0 {
				if confidence > agg.Links[i].Confidence {
					agg.Links[i] = accepted
				}
				reject(RejectDuplicateLink)
				continue
			}
			agg.Links = append(agg.Links, accepted)
			g.Accepted++
		}
	}
	return g
}

func (a *Aggregate) linkIndex(evidenceID string) int {
	for i, l := range a.Links {
		if l.EvidenceID == evidenceID {
			return i
		}
	}
	return -1
}

// Merged is the combined text and confidence of an aggregate.
type Merged struct {
	Confidence float64
	Summary    string
	Rationale  string
	NextSteps  string
}

// Merge takes the maximum confidence and bullet-joins the distinct non-empty
// summaries, rationales and next steps in link order.
func (a *Aggregate) Merge() Merged {
	var m Merged
	summaries := make([]string, 0, len(a.Links))
	rationales := make([]string, 0, len(a.Links))
	steps := make([]string, 0, len(a.Links))
	for _, l := range a.Links {
		m.Confidence = math.Max(m.Confidence, l.Confidence)
		summaries = append(summaries, l.AnswerSummary)
		rationales = append(rationales, l.Rationale)
		steps = append(steps, l.NextSteps)
	}
	m.Summary = bulletList(summaries)
	m.Rationale = bulletList(rationales)
	m.NextSteps = bulletList(steps)
	return m
}

// bulletList trims, drops empties, dedupes, and renders "• item" lines.
func bulletList(items []string) string {
	seen := make(map[string]struct{}, len(items))
	var lines []string
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		if _, dup := seen[it]; dup {
			continue
		}
		seen[it] = struct{}{}
		lines = append(lines, "• "+it)
	}
	return strings.Join(lines, "\n")
}

func clampConfidence(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(1, math.Max(0, v))
}

// ApplyAggregate builds the Answer row for agg. When existing is nil a new
// analysis-origin answer is returned with created=true. Otherwise a copy of
// existing is updated: analysis fields and confidence always, answer_text
// only while the origin is still "analysis", and the respondent only when
// respondent is set and differs.
func ApplyAggregate(
	projectID string,
	agg *Aggregate,
	existing *model.Answer,
	runID string,
	respondent string,
	now time.Time,
) (answer *model.Answer, created bool) {
	m := agg.Merge()
	answeredAt := now

	if existing == nil {
		return &model.Answer{
			ID:                 uuid.NewString(),
			ProjectID:          projectID,
			InterviewID:        agg.InterviewID,
			ResearchQuestionID: agg.Ref.ResearchQuestionID,
			DecisionQuestionID: agg.Ref.DecisionQuestionID,
			QuestionText:       agg.QuestionText,
			Status:             model.AnswerStatusAnswered,
			Origin:             model.OriginAnalysis,
			AnswerText:         m.Summary,
			AnalysisSummary:    m.Summary,
			AnalysisRationale:  m.Rationale,
			AnalysisNextSteps:  m.NextSteps,
			RunMetadata:        mergeRunMetadata(model.RunMetadata{}, agg.Links, runID, now),
			Confidence:         m.Confidence,
			RespondentPersonID: respondent,
			AnsweredAt:         &answeredAt,
		}, true
	}

	a := *existing
	if a.QuestionText == "" {
		a.QuestionText = agg.QuestionText
	}
	a.Status = model.AnswerStatusAnswered
	a.AnalysisSummary = m.Summary
	if m.Rationale != "" {
		a.AnalysisRationale = m.Rationale
	}
	if m.NextSteps != "" {
		a.AnalysisNextSteps = m.NextSteps
	}
	a.RunMetadata = mergeRunMetadata(existing.RunMetadata, agg.Links, runID, now)
	a.Confidence = m.Confidence
	a.AnsweredAt = &answeredAt
	if existing.Origin == model.OriginAnalysis {
		if m.Summary != "" {
			a.AnswerText = m.Summary
		}
		a.Origin = model.OriginAnalysis
	}
	if respondent != "" && respondent != existing.RespondentPersonID {
		a.RespondentPersonID = respondent
	}
	return &a, false
}

func mergeRunMetadata(prev model.RunMetadata, links []AcceptedLink, runID string, now time.Time) model.RunMetadata {
	history := make(map[string]model.EvidenceLinkHistory, len(prev.EvidenceLinks)+len(links))
	for id, h := range prev.EvidenceLinks {
		history[id] = h
	}
	for _, l := range links {
		history[l.EvidenceID] = model.EvidenceLinkHistory{
			RunID:        runID,
			Relationship: l.Relationship,
			Confidence:   l.Confidence,
			UpdatedAt:    now,
		}
	}
	updated := now
	return model.RunMetadata{LastRunID: runID, UpdatedAt: &updated, EvidenceLinks: history}
}

// EvidenceLinks returns one link row per accepted link of agg, all pointing
// at answerID.
func EvidenceLinks(projectID, answerID, runID string, agg *Aggregate, evidence map[string]model.Evidence) []model.EvidenceLink {
	out := make([]model.EvidenceLink, 0, len(agg.Links))
	for _, l := range agg.Links {
		ev := evidence[l.EvidenceID]
		out = append(out, model.EvidenceLink{
			ProjectID:   projectID,
			AnswerID:    answerID,
			EvidenceID:  l.EvidenceID,
			InterviewID: ev.InterviewID,
			Source:      model.LinkSourceAnalysis,
			Text:        ev.Verbatim,
			Payload: model.EvidenceLinkPayload{
				RunID:           runID,
				Relationship:    l.Relationship,
				Confidence:      l.Confidence,
				Rationale:       l.Rationale,
				AnalysisSummary: l.AnswerSummary,
			},
		})
	}
	return out
}

type primaryPick struct {
	answerID   string
	confidence float64
}

// PrimaryAnswers tracks, per evidence id, the answer of its single
// highest-confidence link. Ties keep the first answer seen.
type PrimaryAnswers struct {
	picks map[string]primaryPick
	order []string
}

// NewPrimaryAnswers returns an empty tracker.
func NewPrimaryAnswers() *PrimaryAnswers {
	return &PrimaryAnswers{picks: make(map[string]primaryPick)}
}

// Observe offers a link of evidenceID to answerID.
func (p *PrimaryAnswers) Observe(evidenceID, answerID string, confidence float64) {
	cur, ok := p.picks[evidenceID]
	if !ok {
		p.order = append(p.order, evidenceID)
	}
	if !ok || confidence > cur.confidence {
		p.picks[evidenceID] = primaryPick{answerID: answerID, confidence: confidence}
	}
}

// Each calls fn for every evidence id in first-observed order.
func (p *PrimaryAnswers) Each(fn func(evidenceID, answerID string) error) error {
	for _, id := range p.order {
		if err := fn(id, p.picks[id].answerID); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of tracked evidence ids.
func (p *PrimaryAnswers) Len() int { return len(p.order) }

// QuestionAnalyses flattens the linker's per-question answers into
// append-only rows for runID.
func QuestionAnalyses(runID, projectID string, out *llm.LinkOutput, research map[string]model.ResearchQuestion) []model.QuestionAnalysis {
	rows := make([]model.QuestionAnalysis, 0, len(out.ResearchQuestionAnswers)+len(out.DecisionQuestionAnswers))
	for _, rqa := range out.ResearchQuestionAnswers {
		rows = append(rows, model.QuestionAnalysis{
			RunID:              runID,
			ProjectID:          projectID,
			QuestionKind:       model.QuestionKindResearch,
			QuestionID:         rqa.ResearchQuestionID,
			DecisionQuestionID: research[rqa.ResearchQuestionID].DecisionQuestionID,
			Summary:            strings.Join(rqa.Findings, "\n• "),
			Confidence:         clampConfidence(rqa.Confidence),
		})
	}
	for _, dqa := range out.DecisionQuestionAnswers {
		rows = append(rows, model.QuestionAnalysis{
			RunID:                  runID,
			ProjectID:              projectID,
			QuestionKind:           model.QuestionKindDecision,
			QuestionID:             dqa.DecisionQuestionID,
			DecisionQuestionID:     dqa.DecisionQuestionID,
			Summary:                dqa.StrategicInsight,
			Confidence:             clampConfidence(dqa.Confidence),
			NextSteps:              strings.Join(dqa.RecommendedActions, "\n• "),
			GoalAchievementSummary: dqa.Reasoning,
		})
	}
	return rows
}
