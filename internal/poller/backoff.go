package poller

import (
	"sync"
	"time"
)

// Backoff staircase thresholds. The schedule widens with consecutive
// failures and is bounded: a long-dead device is still probed once a
// minute so its return is noticed.
const (
	backoffShort = 10 * time.Second
	backoffLong  = 30 * time.Second
	backoffMax   = 60 * time.Second
)

// IntervalForStreak returns the poll interval for a consecutive-failure
// streak: below two failures the caller's default, then 10s, 30s from
// three, and 60s from five onwards.
func IntervalForStreak(streak int, def time.Duration) time.Duration {
	switch {
	case streak >= 5:
		return backoffMax
	case streak >= 3:
		return backoffLong
	case streak >= 2:
		return backoffShort
	default:
		return def
	}
}

// Backoff tracks one device's consecutive-failure streak and maps it to
// the staircase schedule. Safe for concurrent use.
type Backoff struct {
	mu     sync.Mutex
	streak int
}

// NewBackoff creates a backoff tracker with a clear streak.
func NewBackoff() *Backoff {
	return &Backoff{}
}

// Failure records a failed cycle and returns the new streak.
func (b *Backoff) Failure() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streak++
	return b.streak
}

// Reset clears the streak after a successful cycle.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streak = 0
}

// Streak returns the current consecutive-failure count.
func (b *Backoff) Streak() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.streak
}

// Interval returns the poll interval for the current streak, given the
// default the coordinator would otherwise use.
func (b *Backoff) Interval(def time.Duration) time.Duration {
	return IntervalForStreak(b.Streak(), def)
}
