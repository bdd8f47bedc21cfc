package poll

import (
	"context"
	"time"
)

// State classifies how a poll loop ended.
type State int

const (
	// Ready means the check reported success within the budget.
	Ready State = iota
	// TimedOut means the budget ran out with the check still reporting
	// not-ready. This is an ordinary outcome, not an error.
	TimedOut
	// Failed means the context was cancelled or the final attempt
	// returned an error.
	Failed
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case TimedOut:
		return "timed-out"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome reports the terminal state of a poll loop, the number of
// attempts consumed, and the underlying error when State is Failed.
type Outcome struct {
	State    State
	Attempts int
	Err      error
}

// CheckFunc probes the watched condition once. Returning (true, nil)
// ends the loop as Ready. An error is treated as not-ready and retried;
// only an error on the final attempt surfaces in the Outcome.
type CheckFunc func(ctx context.Context) (bool, error)

// Budget bounds a poll loop: how many attempts to make and the delay
// range between them. The gap after attempt n grows linearly from
// MinDelay toward MaxDelay across the budget, so early attempts are
// cheap and later ones give a slow page room to settle.
type Budget struct {
	MaxAttempts int
	MinDelay    time.Duration
	MaxDelay    time.Duration
}

// delayFor returns the wait before attempt n (1-based, n >= 2). The
// first gap is MinDelay, the last is MaxDelay, intermediate gaps are
// linearly interpolated.
func (b Budget) delayFor(n int) time.Duration {
	if b.MaxAttempts <= 2 || b.MaxDelay <= b.MinDelay {
		return b.MinDelay
	}
	frac := float64(n-2) / float64(b.MaxAttempts-2)
	return b.MinDelay + time.Duration(frac*float64(b.MaxDelay-b.MinDelay))
}

// Until runs check until it reports ready, the context is cancelled, or
// the budget is exhausted. Budget exhaustion never produces an error:
// a dynamically-loaded page that stays empty is a valid terminal state
// and the caller decides what an exhausted budget means. A check error
// is retried like a not-ready result, since probes against a page that
// is still navigating fail transiently; only an error on the last
// attempt is reported.
func Until(ctx context.Context, check CheckFunc, budget Budget) Outcome {
	attempts := budget.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for n := 1; n <= attempts; n++ {
		if n > 1 {
			select {
			case <-ctx.Done():
				return Outcome{State: Failed, Attempts: n - 1, Err: ctx.Err()}
			case <-time.After(budget.delayFor(n)):
			}
		}

		ok, err := check(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return Outcome{State: Failed, Attempts: n, Err: ctx.Err()}
			}
			lastErr = err
			continue
		}
		lastErr = nil
		if ok {
			return Outcome{State: Ready, Attempts: n}
		}
	}

	if lastErr != nil {
		return Outcome{State: Failed, Attempts: attempts, Err: lastErr}
	}
	return Outcome{State: TimedOut, Attempts: attempts}
}
