package model

import (
	"encoding/json"
	"time"
)

// LensStatus is the state of one (interview, template) analysis.
type LensStatus string

const (
	LensStatusPending    LensStatus = "pending"
	LensStatusExtracting LensStatus = "extracting"
	LensStatusCompleted  LensStatus = "completed"
	LensStatusFailed     LensStatus = "failed"
)

// Field is one labeled value inside a section.
type Field struct {
	Key         string   `json:"field_key"`
	Value       string   `json:"value"`
	Confidence  float64  `json:"confidence"`
	EvidenceIDs []string `json:"evidence_ids,omitempty"`
}

// Section groups related fields under one heading.
type Section struct {
	Key    string  `json:"section_key"`
	Fields []Field `json:"fields"`
}

// Entity is a person, objection, next step or other typed item pulled out of
// an interview. Participant matching fills PersonID, EntityKey and CandidateName.
type Entity struct {
	Name          string   `json:"name,omitempty"`
	Description   string   `json:"description,omitempty"`
	Role          string   `json:"role,omitempty"`
	Severity      string   `json:"severity,omitempty"`
	Frequency     string   `json:"frequency,omitempty"`
	Influence     string   `json:"influence,omitempty"`
	Status        string   `json:"status,omitempty"`
	Priority      string   `json:"priority,omitempty"`
	Owner         string   `json:"owner,omitempty"`
	DueDate       string   `json:"due_date,omitempty"`
	Confidence    float64  `json:"confidence,omitempty"`
	EvidenceIDs   []string `json:"evidence_ids,omitempty"`
	PersonID      string   `json:"person_id,omitempty"`
	EntityKey     string   `json:"entity_key,omitempty"`
	CandidateName string   `json:"candidate_name,omitempty"`
}

// Recommendation is a suggested follow-up derived from the analysis.
type Recommendation struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Priority    string   `json:"priority,omitempty"`
	EvidenceIDs []string `json:"evidence_ids,omitempty"`
}

// AnalysisData is the template-independent lens document.
type AnalysisData struct {
	Sections        []Section           `json:"sections"`
	Entities        map[string][]Entity `json:"entities"`
	Recommendations []Recommendation    `json:"recommendations"`
	Hygiene         []string            `json:"hygiene,omitempty"`
}

// EmptyAnalysisData returns a document with non-nil, empty collections so it
// serializes as {"sections":[],"entities":{},"recommendations":[]}.
func EmptyAnalysisData() AnalysisData {
	return AnalysisData{
		Sections:        []Section{},
		Entities:        map[string][]Entity{},
		Recommendations: []Recommendation{},
	}
}

// IsEmpty reports whether the document carries no content.
func (d AnalysisData) IsEmpty() bool {
	if len(d.Sections) > 0 || len(d.Recommendations) > 0 {
		return false
	}
	for _, v := range d.Entities {
		if len(v) > 0 {
			return false
		}
	}
	return true
}

// LensAnalysis is the single stored result for one (interview, template).
type LensAnalysis struct {
	ID              string       `json:"id"`
	InterviewID     string       `json:"interview_id"`
	TemplateKey     string       `json:"template_key"`
	AccountID       string       `json:"account_id"`
	ProjectID       string       `json:"project_id,omitempty"`
	Data            AnalysisData `json:"analysis_data"`
	ConfidenceScore float64      `json:"confidence_score"`
	Status          LensStatus   `json:"status"`
	ErrorMessage    string       `json:"error_message,omitempty"`
	ProcessedBy     string       `json:"processed_by,omitempty"`
	ProcessedAt     *time.Time   `json:"processed_at,omitempty"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// SummaryStatus is the state of a stored LensSummary row.
type SummaryStatus string

const (
	SummaryStatusPending    SummaryStatus = "pending"
	SummaryStatusProcessing SummaryStatus = "processing"
	SummaryStatusCompleted  SummaryStatus = "completed"
	SummaryStatusFailed     SummaryStatus = "failed"
)

// CrossLensKey is the template key cross-lens summaries are stored under.
const CrossLensKey = "__cross_lens__"

// LensSummary is the cross-interview rollup for one (project, template).
type LensSummary struct {
	ID                 string          `json:"id"`
	ProjectID          string          `json:"project_id"`
	TemplateKey        string          `json:"template_key"`
	AccountID          string          `json:"account_id"`
	Status             SummaryStatus   `json:"status"`
	InterviewCount     int             `json:"interview_count"`
	InputFingerprint   string          `json:"input_fingerprint,omitempty"`
	SynthesisData      json.RawMessage `json:"synthesis_data,omitempty"`
	ExecutiveSummary   string          `json:"executive_summary,omitempty"`
	KeyTakeaways       []string        `json:"key_takeaways"`
	Recommendations    []string        `json:"recommendations"`
	ConflictsToReview  []string        `json:"conflicts_to_review"`
	OverallConfidence  float64         `json:"overall_confidence"`
	CustomInstructions string          `json:"custom_instructions,omitempty"`
	ErrorMessage       string          `json:"error_message,omitempty"`
	ProcessedBy        string          `json:"processed_by,omitempty"`
	ProcessedAt        *time.Time      `json:"processed_at,omitempty"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// SynthesisTarget is a (project, template) pair with completed analyses.
type SynthesisTarget struct {
	ProjectID   string `json:"project_id"`
	AccountID   string `json:"account_id"`
	TemplateKey string `json:"template_key"`
}
