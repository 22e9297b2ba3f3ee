package wait

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmylchreest/educrawler/internal/failure"
)

// --- Until Tests ---

func TestUntil_ConditionHoldsImmediately(t *testing.T) {
	calls := 0
	err := Until(context.Background(), Options{Operation: "instant", Timeout: time.Second, Interval: time.Millisecond},
		func(context.Context) (bool, error) {
			calls++
			return true, nil
		})
	if err != nil {
		t.Fatalf("Until() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 evaluation, got %d", calls)
	}
}

func TestUntil_ConditionHoldsAfterPolls(t *testing.T) {
	calls := 0
	err := Until(context.Background(), Options{Operation: "third", Timeout: time.Second, Interval: time.Millisecond},
		func(context.Context) (bool, error) {
			calls++
			return calls == 3, nil
		})
	if err != nil {
		t.Fatalf("Until() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 evaluations, got %d", calls)
	}
}

func TestUntil_TimeoutIsBounded(t *testing.T) {
	timeouts := []time.Duration{0, 10 * time.Millisecond, 35 * time.Millisecond, 80 * time.Millisecond}
	interval := 20 * time.Millisecond
	// Scheduling slack on loaded CI machines.
	slack := 40 * time.Millisecond

	for _, timeout := range timeouts {
		start := time.Now()
		err := Until(context.Background(), Options{Operation: "never", Timeout: timeout, Interval: interval},
			func(context.Context) (bool, error) { return false, nil })
		elapsed := time.Since(start)

		if err == nil {
			t.Fatalf("timeout %s: expected error", timeout)
		}
		if elapsed > timeout+interval+slack {
			t.Errorf("timeout %s: returned after %s, want <= %s", timeout, elapsed, timeout+interval)
		}
		if elapsed < timeout {
			t.Errorf("timeout %s: returned early after %s", timeout, elapsed)
		}
	}
}

func TestUntil_TimeoutError(t *testing.T) {
	err := Until(context.Background(), Options{Operation: "load courses", Timeout: 5 * time.Millisecond, Interval: time.Millisecond},
		func(context.Context) (bool, error) { return false, nil })

	if !errors.Is(err, failure.ErrTimeout) {
		t.Errorf("expected failure.ErrTimeout, got %v", err)
	}
	if !IsTimeout(err) {
		t.Error("IsTimeout() should be true")
	}

	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TimeoutError, got %T", err)
	}
	if te.Operation != "load courses" {
		t.Errorf("Operation = %q", te.Operation)
	}
	if te.Timeout != 5*time.Millisecond {
		t.Errorf("Timeout = %s", te.Timeout)
	}
	if te.Polls < 1 {
		t.Errorf("Polls = %d, want >= 1", te.Polls)
	}
}

func TestUntil_ConditionErrorAborts(t *testing.T) {
	boom := errors.New("browser gone")
	calls := 0
	err := Until(context.Background(), Options{Operation: "abort", Timeout: time.Second, Interval: time.Millisecond},
		func(context.Context) (bool, error) {
			calls++
			return false, boom
		})
	if !errors.Is(err, boom) {
		t.Errorf("expected condition error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 evaluation, got %d", calls)
	}
}

func TestUntil_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Until(ctx, Options{Operation: "cancelled", Timeout: time.Second, Interval: 10 * time.Millisecond},
		func(context.Context) (bool, error) { return false, nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestUntil_BlockingConditionIsBounded(t *testing.T) {
	timeout, interval := 50*time.Millisecond, 10*time.Millisecond
	slack := 40 * time.Millisecond

	start := time.Now()
	err := Until(context.Background(), Options{Operation: "stalled read", Timeout: timeout, Interval: interval},
		func(ctx context.Context) (bool, error) {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(500 * time.Millisecond):
				return false, nil
			}
		})
	elapsed := time.Since(start)

	if !IsTimeout(err) {
		t.Fatalf("expected *TimeoutError, got %v", err)
	}
	if elapsed > timeout+interval+slack {
		t.Errorf("returned after %s, want <= %s", elapsed, timeout+interval)
	}
}

func TestUntil_BlockingConditionCancelledByCaller(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	err := Until(ctx, Options{Operation: "caller deadline", Timeout: time.Second, Interval: time.Millisecond},
		func(ctx context.Context) (bool, error) {
			<-ctx.Done()
			return false, ctx.Err()
		})
	if IsTimeout(err) {
		t.Errorf("caller cancellation reported as wait timeout: %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestUntil_DefaultInterval(t *testing.T) {
	start := time.Now()
	_ = Until(context.Background(), Options{Operation: "default", Timeout: time.Millisecond},
		func(context.Context) (bool, error) { return false, nil })
	if elapsed := time.Since(start); elapsed > DefaultInterval+50*time.Millisecond {
		t.Errorf("returned after %s", elapsed)
	}
}

// --- For Tests ---

func TestFor_ReturnsProbeValue(t *testing.T) {
	calls := 0
	v, err := For(context.Background(), Options{Operation: "value", Timeout: time.Second, Interval: time.Millisecond},
		func(context.Context) (string, bool, error) {
			calls++
			if calls < 2 {
				return "partial", false, nil
			}
			return "done", true, nil
		})
	if err != nil {
		t.Fatalf("For() error = %v", err)
	}
	if v != "done" {
		t.Errorf("value = %q, want %q", v, "done")
	}
}

func TestFor_TimeoutReturnsZero(t *testing.T) {
	v, err := For(context.Background(), Options{Operation: "zero", Timeout: 2 * time.Millisecond, Interval: time.Millisecond},
		func(context.Context) (int, bool, error) { return 42, false, nil })
	if err == nil {
		t.Fatal("expected timeout")
	}
	if v != 0 {
		t.Errorf("value = %d, want 0", v)
	}
}

// --- Sleep Tests ---

func TestSleep_Zero(t *testing.T) {
	if err := Sleep(context.Background(), 0); err != nil {
		t.Errorf("Sleep(0) error = %v", err)
	}
}

func TestSettle_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Settle(ctx, time.Second, "test"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
