package lens

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/lens-cli/internal/llm"
)

// --- Extractor Mock ---

type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) ExtractSalesBANTLens(ctx context.Context, in llm.LensInput) (*llm.SalesBANT, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.SalesBANT), args.Error(1)
}

func (m *mockExtractor) ExtractCustomerDiscoveryLens(ctx context.Context, in llm.LensInput) (*llm.CustomerDiscovery, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.CustomerDiscovery), args.Error(1)
}

func (m *mockExtractor) ExtractProductInsightsLens(ctx context.Context, in llm.LensInput) (*llm.ProductInsights, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.ProductInsights), args.Error(1)
}

func (m *mockExtractor) ExtractProjectQALens(ctx context.Context, in llm.LensInput, questions []llm.QAQuestion) (*llm.ProjectQA, error) {
	args := m.Called(ctx, in, questions)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.ProjectQA), args.Error(1)
}

func (m *mockExtractor) ApplyConversationLens(ctx context.Context, in llm.LensInput) (*llm.ConversationLens, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.ConversationLens), args.Error(1)
}

// --- Synthesis LLM Mock ---

type mockSynthesisLLM struct {
	mock.Mock
}

func (m *mockSynthesisLLM) SynthesizeLensInsights(ctx context.Context, in llm.SynthesisInput) (*llm.LensInsights, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.LensInsights), args.Error(1)
}

func (m *mockSynthesisLLM) SynthesizeCrossLensInsights(ctx context.Context, in llm.CrossLensInput) (*llm.CrossLensInsights, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.CrossLensInsights), args.Error(1)
}

// --- Applier Mock ---

type mockApplier struct {
	mock.Mock
}

func (m *mockApplier) Apply(ctx context.Context, req ApplyRequest, progress ProgressFunc) (*ApplyResult, error) {
	args := m.Called(ctx, req, progress)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ApplyResult), args.Error(1)
}
