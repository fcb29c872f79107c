package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lens-cli/internal/model"
)

// LensEvidence is one evidence item sent to a lens extraction.
type LensEvidence struct {
	ID       string `json:"id"`
	Gist     string `json:"gist,omitempty"`
	Verbatim string `json:"verbatim"`
	Support  string `json:"support,omitempty"`
}

// LensInput is the shared payload of every per-interview lens extraction.
type LensInput struct {
	TemplateKey  string
	TemplateName string
	// Definition is the template definition as JSON. Only the generic
	// conversation lens reads it.
	Definition       string
	Evidence         []LensEvidence
	InterviewContext string
	Instructions     string
}

// QAQuestion is one project research question answered by the Q&A lens.
type QAQuestion struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Rationale string `json:"rationale,omitempty"`
}

// Scored is a summary with a 0..1 score.
type Scored struct {
	Summary     string   `json:"summary"`
	Score       float64  `json:"score"`
	EvidenceIDs []string `json:"evidence_ids"`
}

// Item is the common shape of listed findings.
type Item struct {
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	Role        string   `json:"role,omitempty"`
	Severity    string   `json:"severity,omitempty"`
	Frequency   string   `json:"frequency,omitempty"`
	Influence   string   `json:"influence,omitempty"`
	Status      string   `json:"status,omitempty"`
	Priority    string   `json:"priority,omitempty"`
	Owner       string   `json:"owner,omitempty"`
	DueDate     string   `json:"due_date,omitempty"`
	EvidenceIDs []string `json:"evidence_ids,omitempty"`
}

// SalesBANT is the sales-bant template output.
type SalesBANT struct {
	Budget          Scored                 `json:"budget"`
	Authority       Scored                 `json:"authority"`
	Need            Scored                 `json:"need"`
	Timeline        Scored                 `json:"timeline"`
	Stakeholders    []Item                 `json:"stakeholders"`
	Objections      []Item                 `json:"objections"`
	NextSteps       []Item                 `json:"next_steps"`
	DealSummary     string                 `json:"deal_summary"`
	Recommendations []model.Recommendation `json:"recommendations"`
}

// CustomerDiscovery is the customer-discovery template output.
type CustomerDiscovery struct {
	ProblemStatement    string                 `json:"problem_statement"`
	Pains               []Item                 `json:"pains"`
	CurrentSolutions    []Item                 `json:"current_solutions"`
	JobsToBeDone        []Item                 `json:"jobs_to_be_done"`
	WillingnessToPay    Scored                 `json:"willingness_to_pay"`
	Personas            []Item                 `json:"personas"`
	GoalCompletionScore float64                `json:"goal_completion_score"`
	Recommendations     []model.Recommendation `json:"recommendations"`
}

// ProductInsights is the product-insights template output.
type ProductInsights struct {
	FeatureRequests     []Item                 `json:"feature_requests"`
	UsabilityIssues     []Item                 `json:"usability_issues"`
	CompetitiveMentions []Item                 `json:"competitive_mentions"`
	TopInsights         []string               `json:"top_insights"`
	OverallConfidence   float64                `json:"overall_confidence"`
	Recommendations     []model.Recommendation `json:"recommendations"`
}

// QAAnswer is the Q&A lens answer to one research question.
type QAAnswer struct {
	QuestionID  string   `json:"question_id"`
	Question    string   `json:"question"`
	Answer      string   `json:"answer"`
	Status      string   `json:"status"`
	Confidence  float64  `json:"confidence"`
	EvidenceIDs []string `json:"evidence_ids"`
}

// ProjectQA is the qa template output.
type ProjectQA struct {
	Answers             []QAAnswer             `json:"answers"`
	OpenQuestions       []string               `json:"open_questions"`
	GoalCompletionScore float64                `json:"goal_completion_score"`
	Recommendations     []model.Recommendation `json:"recommendations"`
}

// ConversationLens is the output of the definition-driven generic lens. It is
// already in the generic document shape.
type ConversationLens struct {
	Sections          []model.Section           `json:"sections"`
	Entities          map[string][]model.Entity `json:"entities"`
	Recommendations   []model.Recommendation    `json:"recommendations"`
	Hygiene           []string                  `json:"hygiene"`
	OverallConfidence float64                   `json:"overall_confidence"`
}

// ExtractSalesBANTLens qualifies a sales conversation.
func (c *Client) ExtractSalesBANTLens(ctx context.Context, in LensInput) (*SalesBANT, error) {
	var out SalesBANT
	if err := c.extractLens(ctx, "ExtractSalesBANTLens", salesBANTPrompt, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExtractCustomerDiscoveryLens analyzes a discovery conversation.
func (c *Client) ExtractCustomerDiscoveryLens(ctx context.Context, in LensInput) (*CustomerDiscovery, error) {
	var out CustomerDiscovery
	if err := c.extractLens(ctx, "ExtractCustomerDiscoveryLens", customerDiscoveryPrompt, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExtractProductInsightsLens pulls product feedback out of a conversation.
func (c *Client) ExtractProductInsightsLens(ctx context.Context, in LensInput) (*ProductInsights, error) {
	var out ProductInsights
	if err := c.extractLens(ctx, "ExtractProductInsightsLens", productInsightsPrompt, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExtractProjectQALens answers the project's research questions from one conversation.
func (c *Client) ExtractProjectQALens(ctx context.Context, in LensInput, questions []QAQuestion) (*ProjectQA, error) {
	qs, err := json.Marshal(questions)
	if err != nil {
		return nil, eris.Wrap(err, "llm: marshal questions")
	}
	evidence, err := json.Marshal(in.Evidence)
	if err != nil {
		return nil, eris.Wrap(err, "llm: marshal evidence")
	}

	var out ProjectQA
	err = c.completeJSON(ctx, Request{
		Function:    "ExtractProjectQALens",
		Model:       c.models.Extraction,
		System:      lensSystemPrompt,
		User:        fmt.Sprintf(projectQAPrompt, qs, in.InterviewContext, evidence, orNone(in.Instructions)),
		CacheSystem: true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ApplyConversationLens fills an arbitrary template definition.
func (c *Client) ApplyConversationLens(ctx context.Context, in LensInput) (*ConversationLens, error) {
	evidence, err := json.Marshal(in.Evidence)
	if err != nil {
		return nil, eris.Wrap(err, "llm: marshal evidence")
	}

	var out ConversationLens
	err = c.completeJSON(ctx, Request{
		Function:    "ApplyConversationLens",
		Model:       c.models.Extraction,
		System:      lensSystemPrompt,
		User:        fmt.Sprintf(conversationLensPrompt, in.TemplateName, in.Definition, in.InterviewContext, evidence, orNone(in.Instructions)),
		CacheSystem: true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) extractLens(ctx context.Context, function, prompt string, in LensInput, out any) error {
	evidence, err := json.Marshal(in.Evidence)
	if err != nil {
		return eris.Wrap(err, "llm: marshal evidence")
	}
	return c.completeJSON(ctx, Request{
		Function:    function,
		Model:       c.models.Extraction,
		System:      lensSystemPrompt,
		User:        fmt.Sprintf(prompt, in.TemplateName, in.InterviewContext, evidence, orNone(in.Instructions)),
		CacheSystem: true,
	}, out)
}
