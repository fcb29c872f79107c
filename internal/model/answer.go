package model

import "time"

// AnswerStatus is the lifecycle state of a project answer.
type AnswerStatus string

const (
	AnswerStatusPending  AnswerStatus = "pending"
	AnswerStatusAnswered AnswerStatus = "answered"
)

// OriginAnalysis marks answers whose text was written by the analysis pipeline.
// Any other origin is human-entered and its answer_text is never overwritten.
const OriginAnalysis = "analysis"

// EvidenceLinkHistory is one evidence entry in an answer's run metadata.
type EvidenceLinkHistory struct {
	RunID        string       `json:"run_id"`
	Relationship Relationship `json:"relationship"`
	Confidence   float64      `json:"confidence"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// RunMetadata is the audit trail kept on every analysis-produced answer.
type RunMetadata struct {
	LastRunID     string                         `json:"last_run_id,omitempty"`
	UpdatedAt     *time.Time                     `json:"updated_at,omitempty"`
	EvidenceLinks map[string]EvidenceLinkHistory `json:"evidence_links,omitempty"`
}

// Answer aggregates every accepted link for one question within one interview
// (or at project level when InterviewID is empty).
type Answer struct {
	ID                 string       `json:"id"`
	ProjectID          string       `json:"project_id"`
	InterviewID        string       `json:"interview_id,omitempty"`
	ResearchQuestionID string       `json:"research_question_id,omitempty"`
	DecisionQuestionID string       `json:"decision_question_id,omitempty"`
	QuestionText       string       `json:"question_text"`
	Status             AnswerStatus `json:"status"`
	Origin             string       `json:"origin,omitempty"`
	AnswerText         string       `json:"answer_text,omitempty"`
	AnalysisSummary    string       `json:"analysis_summary,omitempty"`
	AnalysisRationale  string       `json:"analysis_rationale,omitempty"`
	AnalysisNextSteps  string       `json:"analysis_next_steps,omitempty"`
	RunMetadata        RunMetadata  `json:"analysis_run_metadata"`
	Confidence         float64      `json:"confidence"`
	RespondentPersonID string       `json:"respondent_person_id,omitempty"`
	AnsweredAt         *time.Time   `json:"answered_at,omitempty"`
}

// Ref returns the question the answer is filed under. A row with a research
// question id is a research answer; otherwise it is a decision answer.
func (a Answer) Ref() QuestionRef {
	if a.ResearchQuestionID != "" {
		return ResearchRef{ResearchQuestionID: a.ResearchQuestionID, DecisionQuestionID: a.DecisionQuestionID}
	}
	return DecisionRef{DecisionQuestionID: a.DecisionQuestionID}
}

// Key returns the answer's identity key.
func (a Answer) Key() AnswerKey {
	return KeyFor(a.Ref(), a.InterviewID)
}

// EvidenceLinkPayload is the per-run detail stored on an evidence link.
type EvidenceLinkPayload struct {
	RunID           string       `json:"run_id"`
	Relationship    Relationship `json:"relationship"`
	Confidence      float64      `json:"confidence"`
	Rationale       string       `json:"rationale"`
	AnalysisSummary string       `json:"analysis_summary"`
}

// LinkSourceAnalysis is the source value of links written by the aggregator.
const LinkSourceAnalysis = "analysis"

// EvidenceLink joins an evidence row to the answer it supports. Identity is
// (ProjectID, AnswerID, EvidenceID).
type EvidenceLink struct {
	ProjectID   string              `json:"project_id"`
	AnswerID    string              `json:"answer_id"`
	EvidenceID  string              `json:"evidence_id"`
	InterviewID string              `json:"interview_id,omitempty"`
	Source      string              `json:"source"`
	Text        string              `json:"text,omitempty"`
	Payload     EvidenceLinkPayload `json:"payload"`
}

// AnalysisRun records one invocation of the evidence analysis.
type AnalysisRun struct {
	ID                 string    `json:"id"`
	ProjectID          string    `json:"project_id"`
	CustomInstructions string    `json:"custom_instructions,omitempty"`
	MinConfidence      float64   `json:"min_confidence"`
	RunSummary         string    `json:"run_summary,omitempty"`
	RecommendedActions []string  `json:"recommended_actions"`
	CreatedAt          time.Time `json:"created_at"`
}

// QuestionAnalysis is one append-only per-question summary row of a run.
type QuestionAnalysis struct {
	RunID                  string       `json:"run_id"`
	ProjectID              string       `json:"project_id"`
	QuestionKind           QuestionKind `json:"question_type"`
	QuestionID             string       `json:"question_id"`
	DecisionQuestionID     string       `json:"decision_question_id,omitempty"`
	Summary                string       `json:"summary"`
	Confidence             float64      `json:"confidence"`
	NextSteps              string       `json:"next_steps,omitempty"`
	GoalAchievementSummary string       `json:"goal_achievement_summary,omitempty"`
}
