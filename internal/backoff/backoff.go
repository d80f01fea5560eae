// Package backoff provides a delay generator for retry/poll loops. The delay
// starts at an initial value and is raised to a higher power after a few
// hardcoded iteration thresholds, capped at a fixed maximum.
package backoff

import "time"

// maxDelay is the hard ceiling a generated delay can never exceed.
const maxDelay = 1000 * time.Millisecond

// thresholds are the iteration counts at which the exponent increases.
// The delay starts at initial^1, becomes initial^2 at the 10th call,
// initial^3 at the 15th, and initial^4 at the 17th, where it stays.
var thresholds = [...]int{10, 15, 17}

// DefaultInitial is the starting delay when none is given.
const DefaultInitial = 200 * time.Millisecond

// New returns a function producing the next delay on each call.
// The initial argument is in wall-clock duration; generated delays are
// clamped to maxDelay.
func New(initial time.Duration) func() time.Duration {
	if initial <= 0 {
		initial = DefaultInitial
	}
	initialMS := int64(initial / time.Millisecond)
	iteration := 0
	return func() time.Duration {
		d := powMS(initialMS, iterationPower(iteration))
		iteration++
		if d > maxDelay {
			return maxDelay
		}
		return d
	}
}

// iterationPower maps an iteration count to the exponent to apply.
func iterationPower(iteration int) int {
	for idx, threshold := range thresholds {
		if iteration < threshold {
			return idx + 1
		}
	}
	return len(thresholds) + 1
}

// powMS computes base^exp in milliseconds, saturating well above maxDelay
// so the caller's clamp applies.
func powMS(base int64, exp int) time.Duration {
	result := int64(1)
	for i := 0; i < exp; i++ {
		result *= base
		if time.Duration(result)*time.Millisecond > maxDelay {
			return maxDelay + time.Millisecond
		}
	}
	return time.Duration(result) * time.Millisecond
}
