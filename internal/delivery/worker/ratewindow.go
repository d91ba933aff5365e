package worker

import (
	"context"
	"sync"
	"time"
)

// rateWindow limits submissions to max per rolling one-second window. This is
// a per-worker limit: operators running several worker processes against a
// shared provider quota must scale max down per process.
type rateWindow struct {
	mu    sync.Mutex
	max   int
	marks []time.Time
}

func newRateWindow(max int) *rateWindow {
	if max < 1 {
		max = 1
	}
	return &rateWindow{max: max}
}

// Wait blocks until a submission slot is available, then claims it.
func (w *rateWindow) Wait(ctx context.Context) error {
	for {
		w.mu.Lock()
		now := time.Now()
		cutoff := now.Add(-time.Second)
		kept := w.marks[:0]
		for _, m := range w.marks {
			if m.After(cutoff) {
				kept = append(kept, m)
			}
		}
		w.marks = kept

		if len(w.marks) < w.max {
			w.marks = append(w.marks, now)
			w.mu.Unlock()
			return nil
		}
		wait := w.marks[0].Add(time.Second).Sub(now)
		w.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
