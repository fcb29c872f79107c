package research

import (
	"fmt"
	"strings"

	"github.com/sells-group/lens-cli/internal/llm"
	"github.com/sells-group/lens-cli/internal/model"
)

const validationHintHeader = `This project is a validation study. Each research question is tagged with the validation gate it tests. Gates, in the order a prospect moves through them:`

// BuildLinkInput assembles the linker payload. In validation studies every
// research question's rationale carries its gate label, and the instructions
// gain a block describing the gate ladder.
func BuildLinkInput(
	project model.Project,
	evidence []model.Evidence,
	decisions []model.DecisionQuestion,
	research []model.ResearchQuestion,
	instructions string,
	gates []string,
) llm.LinkInput {
	validation := project.IsValidationStudy()

	in := llm.LinkInput{
		Evidence:  make([]llm.LinkEvidence, 0, len(evidence)),
		Questions: make([]llm.LinkQuestion, 0, len(decisions)+len(research)),
	}
	for _, e := range evidence {
		support := e.Support
		if support == "" {
			support = model.RelationshipSupports
		}
		in.Evidence = append(in.Evidence, llm.LinkEvidence{
			ID:             e.ID,
			Verbatim:       e.Verbatim,
			Support:        string(support),
			InterviewID:    e.InterviewID,
			ContextSummary: e.ContextSummary,
		})
	}
	for _, dq := range decisions {
		in.Questions = append(in.Questions, llm.LinkQuestion{
			ID:                 dq.ID,
			Kind:               string(model.QuestionKindDecision),
			Text:               dq.Text,
			Rationale:          dq.Rationale,
			DecisionQuestionID: dq.ID,
		})
	}
	for _, rq := range research {
		rationale := rq.Rationale
		if validation && rq.ValidationGate != "" {
			rationale = withGate(rationale, rq.ValidationGate)
		}
		in.Questions = append(in.Questions, llm.LinkQuestion{
			ID:                 rq.ID,
			Kind:               string(model.QuestionKindResearch),
			Text:               rq.Text,
			Rationale:          rationale,
			DecisionQuestionID: rq.DecisionQuestionID,
		})
	}

	in.Instructions = strings.TrimSpace(instructions)
	if validation {
		in.Instructions = joinNonEmpty("\n\n", validationHint(gates), in.Instructions)
	}
	return in
}

func withGate(rationale string, gate model.ValidationGate) string {
	label := fmt.Sprintf("[Validation gate: %s]", gate)
	if rationale == "" {
		return label
	}
	return label + " " + rationale
}

func validationHint(gates []string) string {
	if len(gates) == 0 {
		for _, g := range model.ValidationGates {
			gates = append(gates, string(g))
		}
	}
	var b strings.Builder
	b.WriteString(validationHintHeader)
	for i, g := range gates {
		fmt.Fprintf(&b, "\n%d. %s", i+1, g)
	}
	b.WriteString("\nOnly link evidence to a question when it meets the bar of that question's gate.")
	return b.String()
}

func joinNonEmpty(sep string, parts ...string) string {
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
