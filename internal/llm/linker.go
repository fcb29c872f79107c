package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
)

// LinkEvidence is one evidence item sent to the linker.
type LinkEvidence struct {
	ID             string `json:"id"`
	Verbatim       string `json:"verbatim"`
	Support        string `json:"support"`
	InterviewID    string `json:"interview_id,omitempty"`
	ContextSummary string `json:"context_summary,omitempty"`
}

// LinkQuestion is one entry of the question catalog sent to the linker.
type LinkQuestion struct {
	ID                 string `json:"id"`
	Kind               string `json:"kind"`
	Text               string `json:"text"`
	Rationale          string `json:"rationale,omitempty"`
	DecisionQuestionID string `json:"decision_question_id,omitempty"`
}

// LinkInput is the full payload of one linker call.
type LinkInput struct {
	Evidence     []LinkEvidence
	Questions    []LinkQuestion
	Instructions string
}

// RawLink is a candidate evidence→question link as returned by the model.
// Nothing here is validated; the aggregator filters it.
type RawLink struct {
	QuestionID         string  `json:"question_id"`
	QuestionKind       string  `json:"question_kind"`
	DecisionQuestionID string  `json:"decision_question_id,omitempty"`
	Relationship       string  `json:"relationship"`
	Confidence         float64 `json:"confidence"`
	AnswerSummary      string  `json:"answer_summary"`
	Rationale          string  `json:"rationale"`
	NextSteps          string  `json:"next_steps,omitempty"`
}

// EvidenceResult holds the candidate links of one evidence item.
type EvidenceResult struct {
	EvidenceID string    `json:"evidence_id"`
	Links      []RawLink `json:"links"`
}

// ResearchQuestionAnswer is the model's answer to one research question.
type ResearchQuestionAnswer struct {
	ResearchQuestionID string   `json:"research_question_id"`
	Findings           []string `json:"findings"`
	EvidenceIDs        []string `json:"evidence_ids"`
	Confidence         float64  `json:"confidence"`
	Reasoning          string   `json:"reasoning"`
}

// DecisionQuestionAnswer rolls research answers up into one decision question.
type DecisionQuestionAnswer struct {
	DecisionQuestionID  string   `json:"decision_question_id"`
	StrategicInsight    string   `json:"strategic_insight"`
	SupportingFindings  []string `json:"supporting_findings"`
	ResearchQuestionIDs []string `json:"research_question_ids"`
	RecommendedActions  []string `json:"recommended_actions"`
	Confidence          float64  `json:"confidence"`
	Reasoning           string   `json:"reasoning"`
}

// LinkOutput is the decoded linker response.
type LinkOutput struct {
	EvidenceResults         []EvidenceResult         `json:"evidence_results"`
	ResearchQuestionAnswers []ResearchQuestionAnswer `json:"research_question_answers"`
	DecisionQuestionAnswers []DecisionQuestionAnswer `json:"decision_question_answers"`
	GlobalGoalSummary       string                   `json:"global_goal_summary"`
	RecommendedActions      []string                 `json:"recommended_actions"`
}

// LinkEvidenceToResearchStructure classifies every evidence item against the
// research questions and answers each question from the evidence set.
func (c *Client) LinkEvidenceToResearchStructure(ctx context.Context, in LinkInput) (*LinkOutput, error) {
	evidence, err := json.Marshal(in.Evidence)
	if err != nil {
		return nil, eris.Wrap(err, "llm: marshal evidence")
	}
	questions, err := json.Marshal(in.Questions)
	if err != nil {
		return nil, eris.Wrap(err, "llm: marshal questions")
	}

	var out LinkOutput
	err = c.completeJSON(ctx, Request{
		Function: "LinkEvidenceToResearchStructure",
		Model:    c.models.Extraction,
		System:   linkSystemPrompt,
		User:     fmt.Sprintf(linkUserPrompt, questions, evidence, orNone(in.Instructions)),
		// A partial link set would be persisted as if complete.
		Strict: true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func orNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}
