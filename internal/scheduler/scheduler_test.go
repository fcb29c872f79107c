package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sells-group/lens-cli/internal/lens"
	"github.com/sells-group/lens-cli/internal/model"
)

type mockTargets struct {
	mock.Mock
}

func (m *mockTargets) ListSynthesisTargets(ctx context.Context) ([]model.SynthesisTarget, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SynthesisTarget), args.Error(1)
}

type mockSynth struct {
	mock.Mock
}

func (m *mockSynth) Synthesize(ctx context.Context, req lens.SynthesizeRequest) (*lens.SynthesizeResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lens.SynthesizeResult), args.Error(1)
}

func (m *mockSynth) SynthesizeCrossLens(ctx context.Context, req lens.SynthesizeRequest) (*lens.SynthesizeResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lens.SynthesizeResult), args.Error(1)
}

func synthReq(project, account, key string) lens.SynthesizeRequest {
	return lens.SynthesizeRequest{ProjectID: project, AccountID: account, TemplateKey: key, ProcessedBy: "scheduler"}
}

func TestSweep(t *testing.T) {
	targets := &mockTargets{}
	targets.On("ListSynthesisTargets", mock.Anything).Return([]model.SynthesisTarget{
		{ProjectID: "p1", AccountID: "acc1", TemplateKey: "customer-discovery"},
		{ProjectID: "p1", AccountID: "acc1", TemplateKey: "sales-bant"},
		{ProjectID: "p2", AccountID: "acc2", TemplateKey: "qa"},
	}, nil)

	synth := &mockSynth{}
	synth.On("Synthesize", mock.Anything, synthReq("p1", "acc1", "customer-discovery")).
		Return(&lens.SynthesizeResult{Status: lens.SynthesisCompleted, InterviewCount: 2}, nil).Once()
	synth.On("Synthesize", mock.Anything, synthReq("p1", "acc1", "sales-bant")).
		Return(&lens.SynthesizeResult{Status: lens.SynthesisUpToDate}, nil).Once()
	synth.On("Synthesize", mock.Anything, synthReq("p2", "acc2", "qa")).
		Return(nil, errors.New("llm: rate limited")).Once()
	synth.On("SynthesizeCrossLens", mock.Anything, synthReq("p1", "acc1", "")).
		Return(&lens.SynthesizeResult{Status: lens.SynthesisCompleted}, nil).Once()
	synth.On("SynthesizeCrossLens", mock.Anything, synthReq("p2", "acc2", "")).
		Return(&lens.SynthesizeResult{Status: lens.SynthesisUpToDate}, nil).Once()

	res, err := NewSweepJob(targets, synth).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &SweepResult{Targets: 5, Synthesized: 2, UpToDate: 2, Failed: 1}, res)
	synth.AssertExpectations(t)
}

func TestSweep_NoCrossLens(t *testing.T) {
	targets := &mockTargets{}
	targets.On("ListSynthesisTargets", mock.Anything).Return([]model.SynthesisTarget{
		{ProjectID: "p1", AccountID: "acc1", TemplateKey: "qa"},
	}, nil)
	synth := &mockSynth{}
	synth.On("Synthesize", mock.Anything, synthReq("p1", "acc1", "qa")).
		Return(&lens.SynthesizeResult{Status: lens.SynthesisNoData}, nil).Once()

	job := NewSweepJob(targets, synth)
	job.CrossLens = false
	res, err := job.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Targets)
	assert.Equal(t, 1, res.UpToDate)
	synth.AssertNotCalled(t, "SynthesizeCrossLens", mock.Anything, mock.Anything)
}

func TestSweep_ListError(t *testing.T) {
	targets := &mockTargets{}
	targets.On("ListSynthesisTargets", mock.Anything).Return(nil, errors.New("connection refused"))

	_, err := NewSweepJob(targets, &mockSynth{}).Sweep(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestSweep_Cancelled(t *testing.T) {
	targets := &mockTargets{}
	targets.On("ListSynthesisTargets", mock.Anything).Return([]model.SynthesisTarget{
		{ProjectID: "p1", AccountID: "acc1", TemplateKey: "qa"},
	}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	synth := &mockSynth{}
	_, err := NewSweepJob(targets, synth).Sweep(ctx)
	require.ErrorIs(t, err, context.Canceled)
	synth.AssertNotCalled(t, "Synthesize", mock.Anything, mock.Anything)
}

func TestSweepJob_RunLogs(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	defer zap.ReplaceGlobals(zap.New(core))()

	targets := &mockTargets{}
	targets.On("ListSynthesisTargets", mock.Anything).Return([]model.SynthesisTarget{}, nil)
	job := NewSweepJob(targets, &mockSynth{})
	job.Timeout = time.Second
	job.Run()

	entries := logs.FilterMessage("scheduler: sweep complete").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(0), entries[0].ContextMap()["targets"])
}

func TestNew(t *testing.T) {
	job := NewSweepJob(&mockTargets{}, &mockSynth{})

	_, err := New("", job)
	require.Error(t, err)

	_, err = New("every fifteen minutes", job)
	require.Error(t, err)

	s, err := New("0 */15 * * * *", job)
	require.NoError(t, err)
	s.Start()
	assert.False(t, s.Next().IsZero())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

func TestCronLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := cronLogger{log: zap.New(core)}

	l.Info("wake", "now", "t0")
	l.Error(errors.New("panic"), "job failed", "entry", 1)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "panic", entries[1].ContextMap()["error"])
}
