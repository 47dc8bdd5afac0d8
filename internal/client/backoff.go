package client

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// newDialBackOff is the reconnect schedule for the websocket: doubling
// from base, capped at max. Randomization is disabled so the schedule
// stays deterministic.
func newDialBackOff(base, max time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = max
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// linearBackOff waits step, 2*step, 3*step between short-lived HTTP
// retries. It plugs into backoff.Retry like any other policy.
type linearBackOff struct {
	step time.Duration
	next time.Duration
}

func newLinearBackOff(step time.Duration) *linearBackOff {
	return &linearBackOff{step: step, next: step}
}

func (b *linearBackOff) NextBackOff() time.Duration {
	d := b.next
	b.next += b.step
	return d
}

func (b *linearBackOff) Reset() {
	b.next = b.step
}
