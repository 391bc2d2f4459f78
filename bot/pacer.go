package bot

import (
	"context"
	"time"
)

// Pacer performs the waits between actions. Tests replace it to record the
// requested durations without sleeping.
type Pacer interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type SleepPacer struct{}

func (SleepPacer) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Window is an inclusive range of whole seconds to wait.
type Window struct {
	Min, Max int
}

var (
	AfterPostWindow          = Window{Min: 60, Max: 120}
	AfterCommentWindow       = Window{Min: 60, Max: 180}
	AfterUpvoteWindow        = Window{Min: 10, Max: 30}
	AfterCommentUpvoteWindow = Window{Min: 5, Max: 15}
)

// Pick draws a duration uniformly from the window, both ends included.
func (w Window) Pick(r Rand) time.Duration {
	lo, hi := w.Min, w.Max
	if hi < lo {
		lo, hi = hi, lo
	}
	if lo < 0 {
		lo = 0
	}
	if hi <= lo {
		return time.Duration(lo) * time.Second
	}
	return time.Duration(lo+r.IntN(hi-lo+1)) * time.Second
}
