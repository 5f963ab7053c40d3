package hub

import (
	"math"
	"math/rand"
	"time"
)

// backoff produces the delay before each reconnection attempt:
// exponential doubling from initial up to max, with a random jitter of
// ±jitter fraction applied to each delay so that many clients restarting
// together do not redial in lockstep.
//
// The undecorated delay never decreases across consecutive calls; only
// the jitter varies. Reset is called once a connection is fully
// established.
type backoff struct {
	initial time.Duration
	max     time.Duration
	jitter  float64 // fraction in [0, 1)
	attempt int
}

func newBackoff(initial, max time.Duration, jitter float64) *backoff {
	if initial <= 0 {
		initial = time.Second
	}
	if max < initial {
		max = initial
	}
	if jitter < 0 || jitter >= 1 {
		jitter = 0
	}
	return &backoff{initial: initial, max: max, jitter: jitter}
}

// Next returns the delay for the upcoming attempt and advances the
// schedule.
func (b *backoff) Next() time.Duration {
	base := float64(b.initial) * math.Pow(2, float64(b.attempt))
	if base > float64(b.max) {
		base = float64(b.max)
	} else {
		b.attempt++
	}

	if b.jitter > 0 {
		delta := base * b.jitter
		base = base - delta + rand.Float64()*2*delta
	}
	return time.Duration(base)
}

// Reset restarts the schedule from the initial delay.
func (b *backoff) Reset() {
	b.attempt = 0
}
