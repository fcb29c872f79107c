package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lens-cli/internal/lens"
	"github.com/sells-group/lens-cli/internal/llm"
	"github.com/sells-group/lens-cli/internal/research"
	"github.com/sells-group/lens-cli/internal/resilience"
	"github.com/sells-group/lens-cli/internal/store"
	"github.com/sells-group/lens-cli/pkg/anthropic"
	"github.com/sells-group/lens-cli/pkg/openai"
)

// pipelineEnv holds the wired pipeline components for a command.
type pipelineEnv struct {
	Store        store.Store
	LLM          *llm.Client
	Catalog      *lens.Catalog
	Analyzer     *research.Analyzer
	Applicator   *lens.Applicator
	Orchestrator *lens.Orchestrator
	Synthesizer  *lens.Synthesizer
}

// Close releases the store.
func (e *pipelineEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initPipeline validates cfg for mode, opens the store and wires every
// pipeline component.
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	catalog, err := lens.LoadCatalog(cfg.Lens.CatalogPath)
	if err != nil {
		return nil, eris.Wrap(err, "load lens catalog")
	}

	// Temporal owns retries on the worker; other modes retry in process.
	client, err := initLLM(mode != "worker")
	if err != nil {
		return nil, err
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	applicator := lens.NewApplicator(st, catalog, client)
	env := &pipelineEnv{
		Store:   st,
		LLM:     client,
		Catalog: catalog,
		Analyzer: research.NewAnalyzer(st, client, research.Options{
			MinConfidence:   cfg.Analysis.MinConfidence,
			ValidationGates: cfg.Analysis.ValidationGates,
		}),
		Applicator:   applicator,
		Orchestrator: lens.NewOrchestrator(st, applicator, cfg.Lens.PlatformDefaults, cfg.Lens.MaxInFlight),
		Synthesizer:  lens.NewSynthesizer(st, catalog, client),
	}

	zap.L().Debug("pipeline initialized",
		zap.String("store", cfg.Store.Driver),
		zap.String("llm", cfg.LLM.Provider),
		zap.Int("templates", len(catalog.Keys())),
	)
	return env, nil
}

// initLLM builds the LLM client for the configured provider.
func initLLM(retry bool) (*llm.Client, error) {
	var provider llm.Provider
	switch cfg.LLM.Provider {
	case "anthropic":
		provider = llm.NewAnthropicProvider(anthropic.NewClient(cfg.Anthropic.Key))
	case "openai":
		provider = llm.NewOpenAIProvider(openai.NewClient(cfg.OpenAI.Key, cfg.OpenAI.BaseURL))
	default:
		return nil, eris.Errorf("unsupported llm provider: %s", cfg.LLM.Provider)
	}

	breaker := resilience.NewBreaker(resilience.BreakerFromConfig(
		provider.Name(), cfg.LLM.BreakerThreshold, cfg.LLM.BreakerResetSecs,
	))
	opts := []llm.Option{
		llm.WithRateLimit(cfg.LLM.RequestsPerSecond),
		llm.WithBreaker(breaker),
	}
	if retry {
		p := retryPolicy()
		p.ShouldRetry = resilience.IsTransient
		p.OnRetry = resilience.RetryLogger(provider.Name(), "complete")
		opts = append(opts, llm.WithRetry(p))
	}
	return llm.New(provider, llm.Models{
		Extraction: cfg.LLM.Model,
		Synthesis:  cfg.LLM.SynthesisModel,
		MaxTokens:  cfg.LLM.MaxTokens,
	}, opts...), nil
}

// retryPolicy is the configured task retry policy.
func retryPolicy() resilience.Policy {
	return resilience.PolicyFromConfig(
		cfg.Retry.MaxAttempts, cfg.Retry.Factor,
		cfg.Retry.MinTimeoutMs, cfg.Retry.MaxTimeoutMs, cfg.Retry.Randomize,
	)
}
