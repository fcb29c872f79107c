// Package llm runs the structured LLM functions the research and lens
// pipelines depend on. Each function builds a prompt, calls the configured
// provider through a rate limiter, circuit breaker, and retry policy, and
// decodes the JSON answer into a typed result.
package llm

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/lens-cli/internal/resilience"
)

// ErrMalformedResponse is returned when the provider's answer cannot be
// decoded, even after fence stripping and truncation repair.
var ErrMalformedResponse = eris.New("llm: malformed JSON response")

// Request is one provider call.
type Request struct {
	// Function names the LLM function for logs and cost attribution.
	Function  string
	Model     string
	System    string
	User      string
	MaxTokens int64
	// CacheSystem marks the system prompt as reusable across calls.
	CacheSystem bool
	// Strict disables truncation repair. The answer, minus a markdown
	// fence, must be valid JSON as returned.
	Strict bool
}

// Provider sends a completion request and returns the raw text answer.
// Implementations mark retryable failures with resilience.TransientError.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// Models selects the model per function family.
type Models struct {
	Extraction string
	Synthesis  string
	MaxTokens  int64
}

// Client runs typed LLM functions against a Provider.
type Client struct {
	provider Provider
	models   Models
	limiter  *rate.Limiter
	breaker  *resilience.Breaker
	retry    resilience.Policy
}

// Option configures a Client.
type Option func(*Client)

// WithRateLimit throttles provider calls. rps <= 0 disables throttling.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

// WithBreaker sets the circuit breaker guarding the provider.
func WithBreaker(b *resilience.Breaker) Option {
	return func(c *Client) { c.breaker = b }
}

// WithRetry sets the in-process retry policy for transient provider errors.
func WithRetry(p resilience.Policy) Option {
	return func(c *Client) { c.retry = p }
}

// New creates a Client. Defaults: 2 req/s, a breaker named after the
// provider, and a single attempt (task-level retry handles the rest).
func New(p Provider, models Models, opts ...Option) *Client {
	if models.MaxTokens <= 0 {
		models.MaxTokens = 8192
	}
	if models.Synthesis == "" {
		models.Synthesis = models.Extraction
	}
	c := &Client{
		provider: p,
		models:   models,
		limiter:  rate.NewLimiter(2, 2),
		breaker:  resilience.NewBreaker(resilience.BreakerConfig{Name: p.Name()}),
		retry:    resilience.Policy{MaxAttempts: 1},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// completeJSON runs req and decodes the answer into out.
func (c *Client) completeJSON(ctx context.Context, req Request, out any) error {
	if req.MaxTokens <= 0 {
		req.MaxTokens = c.models.MaxTokens
	}
	log := zap.L().With(
		zap.String("provider", c.provider.Name()),
		zap.String("function", req.Function),
		zap.String("model", req.Model),
	)

	text, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (string, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", eris.Wrap(err, "llm: rate limit")
			}
		}
		return resilience.CallVal(ctx, c.breaker, func(ctx context.Context) (string, error) {
			return c.provider.Complete(ctx, req)
		})
	})
	if err != nil {
		log.Error("llm call failed", zap.String("class", resilience.ClassifyError(err)), zap.Error(err))
		return eris.Wrapf(err, "llm: %s", req.Function)
	}

	var cleaned string
	if req.Strict {
		cleaned = stripFences(text)
		if !json.Valid([]byte(cleaned)) {
			log.Warn("llm returned incomplete JSON", zap.Int("length", len(text)))
			return eris.Wrapf(ErrMalformedResponse, "llm: %s: incomplete JSON", req.Function)
		}
	} else {
		cleaned = cleanJSON(text)
	}
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		log.Warn("llm returned unparseable JSON", zap.Int("length", len(text)), zap.Error(err))
		return eris.Wrapf(ErrMalformedResponse, "llm: %s: %v", req.Function, err)
	}
	log.Debug("llm call complete", zap.Int("length", len(text)))
	return nil
}
