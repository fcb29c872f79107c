package llm

import (
	"context"
	"strings"

	"github.com/sells-group/lens-cli/internal/resilience"
	"github.com/sells-group/lens-cli/pkg/anthropic"
	"github.com/sells-group/lens-cli/pkg/openai"
)

// assistant prefill so Anthropic models start directly with the JSON object
const jsonPrefill = "{"

// AnthropicProvider adapts an anthropic.Client.
type AnthropicProvider struct {
	client anthropic.Client
}

// NewAnthropicProvider wraps client.
func NewAnthropicProvider(client anthropic.Client) *AnthropicProvider {
	return &AnthropicProvider{client: client}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) Complete(ctx context.Context, req Request) (string, error) {
	system := []anthropic.SystemBlock{{Text: req.System}}
	if req.CacheSystem {
		system = anthropic.CachedSystem(req.System)
	}
	resp, err := p.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
		System:    system,
		Messages: []anthropic.Message{
			{Role: "user", Content: req.User},
			{Role: "assistant", Content: jsonPrefill},
		},
	})
	if err != nil {
		return "", classify(err, anthropic.StatusCode(err))
	}
	resp.Usage.LogCost(req.Model, req.Function)
	text := resp.Text()
	if strings.HasPrefix(strings.TrimSpace(text), jsonPrefill) {
		return text, nil
	}
	return jsonPrefill + text, nil
}

// OpenAIProvider adapts an openai.Client.
type OpenAIProvider struct {
	client openai.Client
}

// NewOpenAIProvider wraps client.
func NewOpenAIProvider(client openai.Client) *OpenAIProvider {
	return &OpenAIProvider{client: client}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := p.client.CreateChat(ctx, openai.ChatRequest{
		Model:     req.Model,
		System:    req.System,
		User:      req.User,
		MaxTokens: int(req.MaxTokens),
		JSONMode:  true,
	})
	if err != nil {
		return "", classify(err, openai.StatusCode(err))
	}
	return resp.Content, nil
}

func classify(err error, status int) error {
	if resilience.IsTransientHTTPStatus(status) {
		return resilience.NewTransientError(err, status)
	}
	return err
}
