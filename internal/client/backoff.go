package client

import "time"

// Backoff doubles the reconnect delay after every failed cycle up to a cap.
// It is not safe for concurrent use.
type Backoff struct {
	initial time.Duration
	max     time.Duration
	next    time.Duration
}

// NewBackoff starts at initial and never exceeds maxDelay
func NewBackoff(initial, maxDelay time.Duration) *Backoff {
	if maxDelay < initial {
		maxDelay = initial
	}
	return &Backoff{initial: initial, max: maxDelay, next: initial}
}

// Next returns the delay to wait now and doubles the following one.
func (b *Backoff) Next() time.Duration {
	d := b.next
	b.next = min(b.next*2, b.max)
	return d
}

// Reset goes back to the initial delay
func (b *Backoff) Reset() {
	b.next = b.initial
}
