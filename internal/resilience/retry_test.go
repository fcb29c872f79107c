package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Factor:      1.8,
		MinTimeout:  time.Millisecond,
		MaxTimeout:  5 * time.Millisecond,
	}
}

func TestDo_SuccessOnFirstAttempt(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastPolicy(), func(_ context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_SuccessAfterRetry(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastPolicy(), func(_ context.Context) error {
		calls++
		if calls < 3 {
			return NewTransientError(errors.New("overloaded"), 529)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	var calls, retries int
	p := fastPolicy()
	p.OnRetry = func(int, error) { retries++ }

	err := Do(context.Background(), p, func(_ context.Context) error {
		calls++
		return NewTransientError(errors.New("always fails"), 500)
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if retries != 2 {
		t.Errorf("expected 2 retry callbacks, got %d", retries)
	}
}

func TestDo_PermanentErrorNotRetried(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastPolicy(), func(_ context.Context) error {
		calls++
		return errors.New("invalid input: project_id: required")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_CustomShouldRetry(t *testing.T) {
	var calls int
	p := fastPolicy()
	p.ShouldRetry = func(error) bool { return true }

	_ = Do(context.Background(), p, func(_ context.Context) error {
		calls++
		return errors.New("anything")
	})
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_ContextCancelStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	p := fastPolicy()
	p.MinTimeout = time.Hour
	p.MaxTimeout = time.Hour

	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, p, func(_ context.Context) error {
			calls++
			return NewTransientError(errors.New("busy"), 503)
		})
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected error")
		}
	case <-time.After(time.Second):
		t.Fatal("Do did not return after cancel")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoVal_ReturnsValue(t *testing.T) {
	var calls int
	val, err := DoVal(context.Background(), fastPolicy(), func(_ context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", NewTransientError(errors.New("429"), 429)
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "ok" {
		t.Errorf("expected ok, got %q", val)
	}
}

func TestPolicyBackoff(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 500 * time.Millisecond},
		{1, 900 * time.Millisecond},
		{2, 1620 * time.Millisecond},
		{20, 30 * time.Second},
	}
	for _, tt := range tests {
		got := p.Backoff(tt.attempt)
		diff := got - tt.want
		if diff < -time.Millisecond || diff > time.Millisecond {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestPolicyBackoff_Randomize(t *testing.T) {
	p := DefaultPolicy()
	p.Randomize = true
	for i := 0; i < 20; i++ {
		got := p.Backoff(0)
		if got < 500*time.Millisecond || got >= time.Second {
			t.Fatalf("randomized backoff %v out of [500ms, 1s)", got)
		}
	}
}

func TestPolicyFromConfig(t *testing.T) {
	p := PolicyFromConfig(5, 2, 100, 1000, true)
	if p.MaxAttempts != 5 || p.Factor != 2 || p.MinTimeout != 100*time.Millisecond ||
		p.MaxTimeout != time.Second || !p.Randomize {
		t.Errorf("unexpected policy: %+v", p)
	}

	d := PolicyFromConfig(0, 0, 0, 0, false)
	if d.MaxAttempts != 3 || d.Factor != 1.8 || d.MinTimeout != 500*time.Millisecond || d.MaxTimeout != 30*time.Second {
		t.Errorf("zero values should keep defaults: %+v", d)
	}
}
