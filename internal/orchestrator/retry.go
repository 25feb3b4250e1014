package orchestrator

// #region imports
import (
	"context"
	"time"
)

// #endregion

// #region constants

// maxBackoffShift bounds the exponential: the backoff interval stops
// doubling after this many retries.
const maxBackoffShift = 6

// #endregion constants

// #region engine

// RetryEngine runs a hardware call with bounded exponential backoff on
// transient faults. Non-transient errors are returned immediately.
type RetryEngine struct {
	cap  int           // retries after the first attempt
	base time.Duration // first backoff interval
}

// NewRetryEngine creates a retry engine with the given cap and base.
func NewRetryEngine(cap int, base time.Duration) *RetryEngine {
	return &RetryEngine{cap: cap, base: base}
}

// #endregion engine

// #region do

// Do invokes op up to cap+1 times. It returns the number of calls made
// and the final error (nil on success). A backend that fails K times
// then succeeds sees exactly min(K+1, cap+1) calls.
func (r *RetryEngine) Do(ctx context.Context, op func(context.Context) error) (int, error) {
	var err error
	calls := 0
	for attempt := 0; attempt <= r.cap; attempt++ {
		if attempt > 0 {
			shift := attempt - 1
			if shift > maxBackoffShift {
				shift = maxBackoffShift
			}
			time.Sleep(r.base << shift)
		}
		calls++
		err = op(ctx)
		if err == nil {
			return calls, nil
		}
		if !IsTransient(err) {
			return calls, err
		}
	}
	return calls, err
}

// #endregion do
