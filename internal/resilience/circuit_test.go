package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errBusy = NewTransientError(errors.New("busy"), 503)

func newTestBreaker(threshold int, cooldown time.Duration) (*Breaker, *time.Time) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker(BreakerConfig{Name: "test", Threshold: threshold, Cooldown: cooldown})
	b.now = func() time.Time { return now }
	return b, &now
}

func fail(context.Context) error { return errBusy }
func ok(context.Context) error   { return nil }

func TestBreaker_ClosedPassesThrough(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)
	var calls int
	err := b.Call(context.Background(), func(context.Context) error {
		calls++
		return nil
	})
	if err != nil || calls != 1 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
	if b.State() != BreakerClosed {
		t.Errorf("expected closed, got %s", b.State())
	}
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)
	for i := 0; i < 3; i++ {
		_ = b.Call(context.Background(), fail)
	}
	if b.State() != BreakerOpen {
		t.Fatalf("expected open, got %s", b.State())
	}

	err := b.Call(context.Background(), func(context.Context) error {
		t.Error("should not be called while open")
		return nil
	})
	if !errors.Is(err, ErrBreakerOpen) {
		t.Errorf("expected ErrBreakerOpen, got %v", err)
	}
}

func TestBreaker_PermanentErrorsDoNotTrip(t *testing.T) {
	b, _ := newTestBreaker(2, time.Minute)
	for i := 0; i < 5; i++ {
		_ = b.Call(context.Background(), func(context.Context) error { return errors.New("bad request") })
	}
	if b.State() != BreakerClosed {
		t.Errorf("expected closed, got %s", b.State())
	}
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)
	_ = b.Call(context.Background(), fail)
	_ = b.Call(context.Background(), fail)
	_ = b.Call(context.Background(), ok)
	_ = b.Call(context.Background(), fail)
	_ = b.Call(context.Background(), fail)
	if b.State() != BreakerClosed {
		t.Errorf("expected closed, got %s", b.State())
	}
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	b, now := newTestBreaker(1, time.Minute)
	_ = b.Call(context.Background(), fail)
	if b.State() != BreakerOpen {
		t.Fatalf("expected open, got %s", b.State())
	}

	*now = now.Add(2 * time.Minute)
	if b.State() != BreakerHalfOpen {
		t.Fatalf("expected half-open after cooldown, got %s", b.State())
	}

	// Failed probe reopens.
	_ = b.Call(context.Background(), fail)
	if b.State() != BreakerOpen {
		t.Fatalf("expected reopened, got %s", b.State())
	}

	*now = now.Add(2 * time.Minute)
	if err := b.Call(context.Background(), ok); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if b.State() != BreakerClosed {
		t.Errorf("expected closed after successful probe, got %s", b.State())
	}
}

func TestCallVal(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)
	got, err := CallVal(context.Background(), b, func(context.Context) (int, error) { return 42, nil })
	if err != nil || got != 42 {
		t.Fatalf("got %d, %v", got, err)
	}
}

func TestBreaker_Concurrent(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "concurrent", Threshold: 1000})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_ = b.Call(context.Background(), fail)
			} else {
				_ = b.Call(context.Background(), ok)
			}
		}(i)
	}
	wg.Wait()
	if b.State() != BreakerClosed {
		t.Errorf("expected closed, got %s", b.State())
	}
}

func TestBreakerFromConfig(t *testing.T) {
	cfg := BreakerFromConfig("anthropic", 0, 0)
	if cfg.Threshold != 5 || cfg.Cooldown != 30*time.Second {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	cfg = BreakerFromConfig("anthropic", 2, 10)
	if cfg.Threshold != 2 || cfg.Cooldown != 10*time.Second {
		t.Errorf("unexpected values: %+v", cfg)
	}
}

func TestBreakerStateString(t *testing.T) {
	for state, want := range map[BreakerState]string{
		BreakerClosed: "closed", BreakerOpen: "open", BreakerHalfOpen: "half-open", BreakerState(9): "unknown",
	} {
		if state.String() != want {
			t.Errorf("%d: got %q want %q", state, state.String(), want)
		}
	}
}
