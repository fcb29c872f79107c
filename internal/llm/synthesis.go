package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lens-cli/internal/model"
)

// AnalysisDigest is one completed lens analysis handed to synthesis.
type AnalysisDigest struct {
	InterviewID string             `json:"interview_id"`
	TemplateKey string             `json:"template_key,omitempty"`
	Confidence  float64            `json:"confidence_score"`
	Data        model.AnalysisData `json:"analysis_data"`
}

// SynthesisInput is the payload of a per-template synthesis.
type SynthesisInput struct {
	TemplateName string
	Definition   string
	Analyses     []AnalysisDigest
	Instructions string
}

// LensInsights is the per-template synthesis output.
type LensInsights struct {
	ExecutiveSummary  string   `json:"executive_summary"`
	KeyTakeaways      []string `json:"key_takeaways"`
	Recommendations   []string `json:"recommendations"`
	ConflictsToReview []string `json:"conflicts_to_review"`
	OverallConfidence float64  `json:"overall_confidence"`
}

// SummaryDigest is one completed per-template summary handed to cross-lens synthesis.
type SummaryDigest struct {
	TemplateKey      string   `json:"template_key"`
	ExecutiveSummary string   `json:"executive_summary"`
	KeyTakeaways     []string `json:"key_takeaways"`
}

// CrossLensInput is the payload of a cross-lens synthesis.
type CrossLensInput struct {
	ProjectName        string
	ProjectDescription string
	Summaries          []SummaryDigest
	Analyses           []AnalysisDigest
	Instructions       string
}

// CrossLensInsights is the cross-lens synthesis output.
type CrossLensInsights struct {
	ExecutiveSummary   string   `json:"executive_summary"`
	KeyFindings        []string `json:"key_findings"`
	RecommendedActions []string `json:"recommended_actions"`
	Risks              []string `json:"risks"`
	OverallConfidence  float64  `json:"overall_confidence"`
}

// SynthesizeLensInsights rolls the analyses of one template up to project level.
func (c *Client) SynthesizeLensInsights(ctx context.Context, in SynthesisInput) (*LensInsights, error) {
	analyses, err := json.Marshal(in.Analyses)
	if err != nil {
		return nil, eris.Wrap(err, "llm: marshal analyses")
	}

	var out LensInsights
	err = c.completeJSON(ctx, Request{
		Function:    "SynthesizeLensInsights",
		Model:       c.models.Synthesis,
		System:      synthesisSystemPrompt,
		User:        fmt.Sprintf(lensSynthesisPrompt, in.TemplateName, orNone(in.Definition), len(in.Analyses), analyses, orNone(in.Instructions)),
		CacheSystem: true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SynthesizeCrossLensInsights combines every lens of a project into one briefing.
func (c *Client) SynthesizeCrossLensInsights(ctx context.Context, in CrossLensInput) (*CrossLensInsights, error) {
	summaries, err := json.Marshal(in.Summaries)
	if err != nil {
		return nil, eris.Wrap(err, "llm: marshal summaries")
	}
	analyses, err := json.Marshal(in.Analyses)
	if err != nil {
		return nil, eris.Wrap(err, "llm: marshal analyses")
	}

	var out CrossLensInsights
	err = c.completeJSON(ctx, Request{
		Function: "SynthesizeCrossLensInsights",
		Model:    c.models.Synthesis,
		System:   synthesisSystemPrompt,
		User: fmt.Sprintf(crossLensSynthesisPrompt,
			in.ProjectName, in.ProjectDescription, summaries, len(in.Analyses), analyses, orNone(in.Instructions)),
		CacheSystem: true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
