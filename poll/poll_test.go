package poll

import (
	"context"
	"errors"
	"testing"
	"time"
)

var fastBudget = Budget{MaxAttempts: 4, MinDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

func TestUntil_ReadyFirstAttempt(t *testing.T) {
	out := Until(context.Background(), func(ctx context.Context) (bool, error) {
		return true, nil
	}, fastBudget)

	if out.State != Ready {
		t.Errorf("state = %v, want Ready", out.State)
	}
	if out.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", out.Attempts)
	}
}

func TestUntil_ReadyAfterRetries(t *testing.T) {
	calls := 0
	out := Until(context.Background(), func(ctx context.Context) (bool, error) {
		calls++
		return calls >= 3, nil
	}, fastBudget)

	if out.State != Ready {
		t.Errorf("state = %v, want Ready", out.State)
	}
	if out.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", out.Attempts)
	}
}

func TestUntil_BudgetExhausted(t *testing.T) {
	calls := 0
	out := Until(context.Background(), func(ctx context.Context) (bool, error) {
		calls++
		return false, nil
	}, fastBudget)

	if out.State != TimedOut {
		t.Errorf("state = %v, want TimedOut", out.State)
	}
	if out.Err != nil {
		t.Errorf("exhausted budget should carry no error, got %v", out.Err)
	}
	if calls != fastBudget.MaxAttempts {
		t.Errorf("check called %d times, want %d", calls, fastBudget.MaxAttempts)
	}
}

func TestUntil_TransientErrorRetried(t *testing.T) {
	calls := 0
	out := Until(context.Background(), func(ctx context.Context) (bool, error) {
		calls++
		if calls == 1 {
			return false, errors.New("execution context destroyed")
		}
		return true, nil
	}, fastBudget)

	if out.State != Ready {
		t.Errorf("state = %v, want Ready after transient error", out.State)
	}
	if out.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", out.Attempts)
	}
}

func TestUntil_PersistentErrorFails(t *testing.T) {
	probeErr := errors.New("page gone")
	out := Until(context.Background(), func(ctx context.Context) (bool, error) {
		return false, probeErr
	}, fastBudget)

	if out.State != Failed {
		t.Errorf("state = %v, want Failed", out.State)
	}
	if !errors.Is(out.Err, probeErr) {
		t.Errorf("err = %v, want %v", out.Err, probeErr)
	}
}

func TestUntil_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	out := Until(ctx, func(ctx context.Context) (bool, error) {
		calls++
		cancel()
		return false, nil
	}, Budget{MaxAttempts: 10, MinDelay: 50 * time.Millisecond, MaxDelay: time.Second})

	if out.State != Failed {
		t.Errorf("state = %v, want Failed on cancellation", out.State)
	}
	if !errors.Is(out.Err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", out.Err)
	}
	if calls != 1 {
		t.Errorf("check called %d times after cancellation, want 1", calls)
	}
}

func TestUntil_ZeroAttemptBudget(t *testing.T) {
	// A degenerate budget still probes once.
	calls := 0
	out := Until(context.Background(), func(ctx context.Context) (bool, error) {
		calls++
		return false, nil
	}, Budget{})

	if calls != 1 {
		t.Errorf("check called %d times, want 1", calls)
	}
	if out.State != TimedOut {
		t.Errorf("state = %v, want TimedOut", out.State)
	}
}

func TestBudget_DelayInterpolation(t *testing.T) {
	b := Budget{MaxAttempts: 5, MinDelay: 100 * time.Millisecond, MaxDelay: 400 * time.Millisecond}

	want := []time.Duration{
		100 * time.Millisecond, // before attempt 2
		200 * time.Millisecond, // before attempt 3
		300 * time.Millisecond, // before attempt 4
		400 * time.Millisecond, // before attempt 5
	}
	for i, w := range want {
		if got := b.delayFor(i + 2); got != w {
			t.Errorf("delayFor(%d) = %v, want %v", i+2, got, w)
		}
	}
}

func TestBudget_DelayDegenerate(t *testing.T) {
	b := Budget{MaxAttempts: 2, MinDelay: 10 * time.Millisecond, MaxDelay: 80 * time.Millisecond}
	if got := b.delayFor(2); got != 10*time.Millisecond {
		t.Errorf("two-attempt budget delay = %v, want MinDelay", got)
	}

	flat := Budget{MaxAttempts: 6, MinDelay: 30 * time.Millisecond, MaxDelay: 30 * time.Millisecond}
	if got := flat.delayFor(4); got != 30*time.Millisecond {
		t.Errorf("flat budget delay = %v, want 30ms", got)
	}
}
