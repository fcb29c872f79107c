package model

import "fmt"

// QuestionKind discriminates the two tiers of the question catalog.
type QuestionKind string

const (
	QuestionKindDecision QuestionKind = "decision"
	QuestionKindResearch QuestionKind = "research"
)

// ParseQuestionKind validates a kind string coming back from the linker.
func ParseQuestionKind(s string) (QuestionKind, error) {
	switch QuestionKind(s) {
	case QuestionKindDecision, QuestionKindResearch:
		return QuestionKind(s), nil
	default:
		return "", fmt.Errorf("unknown question kind %q", s)
	}
}

// ValidationGate labels a research question in a validation study.
type ValidationGate string

const (
	GatePainExists       ValidationGate = "Pain Exists"
	GateAwareness        ValidationGate = "Awareness"
	GateQuantifiedImpact ValidationGate = "Quantified Impact"
	GateTakingAction     ValidationGate = "Taking Action"
)

// ValidationGates lists the gates in the order a prospect moves through them.
var ValidationGates = []ValidationGate{
	GatePainExists,
	GateAwareness,
	GateQuantifiedImpact,
	GateTakingAction,
}

// DecisionQuestion is a strategic question. Evidence never links to it directly.
type DecisionQuestion struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Text      string `json:"text"`
	Rationale string `json:"rationale,omitempty"`
}

// ResearchQuestion is a tactical question under exactly one decision question.
type ResearchQuestion struct {
	ID                 string         `json:"id"`
	ProjectID          string         `json:"project_id"`
	Text               string         `json:"text"`
	Rationale          string         `json:"rationale,omitempty"`
	DecisionQuestionID string         `json:"decision_question_id"`
	ValidationGate     ValidationGate `json:"validation_gate,omitempty"`
}

// QuestionRef identifies the question an answer is filed under. The only
// implementations are ResearchRef and DecisionRef.
type QuestionRef interface {
	Kind() QuestionKind
	isQuestionRef()
}

// ResearchRef points at a research question and carries its parent decision question.
type ResearchRef struct {
	ResearchQuestionID string
	DecisionQuestionID string
}

// Kind implements QuestionRef.
func (ResearchRef) Kind() QuestionKind { return QuestionKindResearch }
func (ResearchRef) isQuestionRef()     {}

// DecisionRef points at a decision question.
type DecisionRef struct {
	DecisionQuestionID string
}

// Kind implements QuestionRef.
func (DecisionRef) Kind() QuestionKind { return QuestionKindDecision }
func (DecisionRef) isQuestionRef()     {}

// AnswerKey is the identity of an Answer row. It is comparable so it can key a map.
type AnswerKey struct {
	Kind               QuestionKind
	ResearchQuestionID string
	DecisionQuestionID string
	InterviewID        string
}

// KeyFor builds the identity key for a question and interview. An empty
// interviewID denotes a project-level answer.
func KeyFor(ref QuestionRef, interviewID string) AnswerKey {
	switch r := ref.(type) {
	case ResearchRef:
		return AnswerKey{
			Kind:               QuestionKindResearch,
			ResearchQuestionID: r.ResearchQuestionID,
			DecisionQuestionID: r.DecisionQuestionID,
			InterviewID:        interviewID,
		}
	case DecisionRef:
		return AnswerKey{
			Kind:               QuestionKindDecision,
			DecisionQuestionID: r.DecisionQuestionID,
			InterviewID:        interviewID,
		}
	default:
		panic(fmt.Sprintf("model: unhandled question ref %T", ref))
	}
}

// String renders the key in the pipe-delimited form used in logs.
func (k AnswerKey) String() string {
	orNull := func(s string) string {
		if s == "" {
			return "null"
		}
		return s
	}
	return fmt.Sprintf("kind:%s|rq:%s|dq:%s|interview:%s",
		k.Kind, orNull(k.ResearchQuestionID), orNull(k.DecisionQuestionID), orNull(k.InterviewID))
}
