package task

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/lens-cli/internal/lens"
	"github.com/sells-group/lens-cli/internal/model"
	"github.com/sells-group/lens-cli/internal/research"
)

// --- Analyzer Mock ---

type mockAnalyzer struct {
	mock.Mock
}

func (m *mockAnalyzer) Run(ctx context.Context, req research.Request) (*research.Result, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*research.Result), args.Error(1)
}

// --- Lens Applier Mock ---

type mockLensApplier struct {
	mock.Mock
}

func (m *mockLensApplier) Apply(ctx context.Context, req lens.ApplyRequest, progress lens.ProgressFunc) (*lens.ApplyResult, error) {
	args := m.Called(ctx, req)
	if progress != nil {
		progress(lens.NewProgress(lens.StageComplete, req.TemplateKey))
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lens.ApplyResult), args.Error(1)
}

func (m *mockLensApplier) ApplyQA(ctx context.Context, req lens.ApplyRequest, _ lens.ProgressFunc) (*lens.ApplyResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lens.ApplyResult), args.Error(1)
}

// --- Lens Synthesizer Mock ---

type mockLensSynthesizer struct {
	mock.Mock
}

func (m *mockLensSynthesizer) Synthesize(ctx context.Context, req lens.SynthesizeRequest) (*lens.SynthesizeResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lens.SynthesizeResult), args.Error(1)
}

func (m *mockLensSynthesizer) SynthesizeCrossLens(ctx context.Context, req lens.SynthesizeRequest) (*lens.SynthesizeResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lens.SynthesizeResult), args.Error(1)
}

// --- Settings Reader Mock ---

type mockSettings struct {
	mock.Mock
}

func (m *mockSettings) GetProject(ctx context.Context, projectID string) (*model.Project, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Project), args.Error(1)
}

func (m *mockSettings) GetAccountSettings(ctx context.Context, accountID string) (*model.AccountSettings, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AccountSettings), args.Error(1)
}
