package model

import "time"

// Relationship describes how a piece of evidence bears on a question.
type Relationship string

const (
	RelationshipSupports Relationship = "supports"
	RelationshipRefutes  Relationship = "refutes"
	RelationshipNeutral  Relationship = "neutral"
)

// ParseRelationship maps a raw value to a Relationship. Unknown or empty
// values default to supports.
func ParseRelationship(s string) Relationship {
	switch Relationship(s) {
	case RelationshipRefutes:
		return RelationshipRefutes
	case RelationshipNeutral:
		return RelationshipNeutral
	default:
		return RelationshipSupports
	}
}

// Evidence is a verbatim fragment captured from one interview.
type Evidence struct {
	ID             string       `json:"id"`
	ProjectID      string       `json:"project_id"`
	InterviewID    string       `json:"interview_id,omitempty"`
	Verbatim       string       `json:"verbatim"`
	Gist           string       `json:"gist,omitempty"`
	Support        Relationship `json:"support"`
	ContextSummary string       `json:"context_summary,omitempty"`
	PriorAnswerID  string       `json:"prior_answer_id,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

// LensVisibilityPrivate marks interviews (voice memos, notes) that lenses never read.
const LensVisibilityPrivate = "private"

// Interview holds the metadata lens extraction needs about a conversation.
type Interview struct {
	ID             string     `json:"id"`
	ProjectID      string     `json:"project_id,omitempty"`
	AccountID      string     `json:"account_id,omitempty"`
	Title          string     `json:"title,omitempty"`
	InterviewDate  *time.Time `json:"interview_date,omitempty"`
	DurationSec    int        `json:"duration_sec,omitempty"`
	LensVisibility string     `json:"lens_visibility,omitempty"`
}

// IsPrivate reports whether lenses must skip this interview.
func (i Interview) IsPrivate() bool {
	return i.LensVisibility == LensVisibilityPrivate
}

// Participant is a person linked to an interview through interview_people.
type Participant struct {
	InterviewID string `json:"interview_id"`
	PersonID    string `json:"person_id"`
	DisplayName string `json:"display_name,omitempty"`
	Role        string `json:"role,omitempty"`
}

// ResearchModeValidation marks a project running a validation study.
const ResearchModeValidation = "validation"

// Project is the slice of project settings the pipeline reads.
type Project struct {
	ID            string   `json:"id"`
	AccountID     string   `json:"account_id"`
	Name          string   `json:"name"`
	Description   string   `json:"description,omitempty"`
	ResearchMode  string   `json:"research_mode,omitempty"`
	EnabledLenses []string `json:"enabled_lenses,omitempty"`
}

// IsValidationStudy reports whether research questions carry validation gates.
func (p Project) IsValidationStudy() bool {
	return p.ResearchMode == ResearchModeValidation
}

// AccountSettings is the slice of account settings the pipeline reads.
type AccountSettings struct {
	AccountID       string   `json:"account_id"`
	DefaultLensKeys []string `json:"default_lens_keys,omitempty"`
}
