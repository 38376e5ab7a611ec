package session

import "time"

// Backoff spaces out connection attempts.
//
// The zero value retries immediately.
type Backoff struct {
	// InitialDelay is the wait after the first failed attempt.
	// Zero disables waiting.
	InitialDelay time.Duration

	// MaxDelay caps the doubled delay. Values below InitialDelay are
	// raised to InitialDelay.
	MaxDelay time.Duration
}

// Delay returns the wait after the given failed attempt (1-based).
//
// Example with InitialDelay 1s and MaxDelay 30s:
//
//	attempt: 1   2   3   4   5    6    7
//	delay:   1s  2s  4s  8s  16s  30s  30s
func (b Backoff) Delay(attempt int) time.Duration {
	if b.InitialDelay <= 0 || attempt < 1 {
		return 0
	}

	ceiling := b.MaxDelay
	if ceiling < b.InitialDelay {
		ceiling = b.InitialDelay
	}

	d := b.InitialDelay
	for i := 1; i < attempt; i++ {
		if d >= ceiling/2 {
			return ceiling
		}
		d *= 2
	}
	return d
}
