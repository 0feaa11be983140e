package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy(retries int) Policy {
	return Policy{
		Retries:    retries,
		BaseDelay:  1 * time.Millisecond,
		MaxDelay:   10 * time.Millisecond,
		Multiplier: 2.0,
	}
}

func TestRetry_SuccessOnFirstAttempt(t *testing.T) {
	var calls int
	got, err := Retry(context.Background(), fastPolicy(2), func(_ context.Context, _ int) (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Errorf("expected ok, got %q", got)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestRetry_SuccessAfterRetry(t *testing.T) {
	var attempts []int
	got, err := Retry(context.Background(), fastPolicy(2), func(_ context.Context, attempt int) (int, error) {
		attempts = append(attempts, attempt)
		if attempt < 2 {
			return 0, errors.New("temporary")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
	if len(attempts) != 3 || attempts[0] != 0 || attempts[2] != 2 {
		t.Errorf("unexpected attempts %v", attempts)
	}
}

func TestRetry_ExhaustsRetries_ReturnsLastError(t *testing.T) {
	var calls int
	_, err := Retry(context.Background(), fastPolicy(2), func(_ context.Context, attempt int) (int, error) {
		calls++
		return 0, errors.New([]string{"first", "second", "third"}[attempt])
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if err.Error() != "third" {
		t.Errorf("expected last error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetry_ZeroRetries_SingleAttempt(t *testing.T) {
	var calls int
	_, err := Retry(context.Background(), fastPolicy(0), func(_ context.Context, _ int) (int, error) {
		calls++
		return 0, errors.New("fail")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestRetry_ShouldRetryRejects(t *testing.T) {
	var calls int
	p := fastPolicy(3)
	p.ShouldRetry = func(err error) bool { return !errors.Is(err, ErrCircuitOpen) }

	_, err := Retry(context.Background(), p, func(_ context.Context, _ int) (int, error) {
		calls++
		return 0, ErrCircuitOpen
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestRetry_ContextCancelled_StopsRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	p := Policy{Retries: 5, BaseDelay: 50 * time.Millisecond, MaxDelay: 100 * time.Millisecond}

	_, err := Retry(ctx, p, func(_ context.Context, _ int) (int, error) {
		calls++
		if calls == 2 {
			cancel()
		}
		return 0, errors.New("fail")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 2 {
		t.Errorf("expected 2 calls after cancel, got %d", calls)
	}
}

func TestRetry_OnRetryCallback(t *testing.T) {
	var retried []int
	p := fastPolicy(2)
	p.OnRetry = func(attempt int, _ error) { retried = append(retried, attempt) }

	_, _ = Retry(context.Background(), p, func(_ context.Context, _ int) (int, error) {
		return 0, errors.New("fail")
	})
	if len(retried) != 2 || retried[0] != 1 || retried[1] != 2 {
		t.Errorf("expected OnRetry for attempts [1 2], got %v", retried)
	}
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	if p.Attempts() != 3 {
		t.Errorf("expected 3 attempts, got %d", p.Attempts())
	}
	if p.BaseDelay != 500*time.Millisecond {
		t.Errorf("expected 500ms base delay, got %s", p.BaseDelay)
	}
}

func TestBackoff_ExponentialGrowth(t *testing.T) {
	p := DefaultPolicy()
	want := []time.Duration{500 * time.Millisecond, 1000 * time.Millisecond, 2000 * time.Millisecond}
	for attempt, w := range want {
		if got := Backoff(attempt, p); got != w {
			t.Errorf("attempt %d: expected %s, got %s", attempt, w, got)
		}
	}
}

func TestBackoff_CapsAtMax(t *testing.T) {
	p := Policy{BaseDelay: time.Second, MaxDelay: 3 * time.Second, Multiplier: 2}
	if got := Backoff(10, p); got != 3*time.Second {
		t.Errorf("expected cap of 3s, got %s", got)
	}
}

func TestBackoff_WithJitter(t *testing.T) {
	p := Policy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2, JitterFraction: 0.5}
	for i := 0; i < 50; i++ {
		got := Backoff(0, p)
		if got < 50*time.Millisecond || got > 150*time.Millisecond {
			t.Fatalf("jittered delay %s outside [50ms, 150ms]", got)
		}
	}
}

func TestPolicyFrom(t *testing.T) {
	p := PolicyFrom(4, 20, 200)
	if p.Retries != 4 || p.BaseDelay != 20*time.Millisecond || p.MaxDelay != 200*time.Millisecond {
		t.Errorf("unexpected policy %+v", p)
	}

	d := PolicyFrom(-1, 0, 0)
	if d.Retries != 2 || d.BaseDelay != 500*time.Millisecond {
		t.Errorf("expected defaults, got %+v", d)
	}

	z := PolicyFrom(0, 0, 0)
	if z.Attempts() != 1 {
		t.Errorf("expected single attempt, got %d", z.Attempts())
	}
}

func TestRetryLogger(t *testing.T) {
	fn := RetryLogger("kiwi", "flights")
	// Must not panic with the no-op global logger.
	fn(1, errors.New("boom"))
}
