package gotlive

import "time"

// RetryPolicy controls how failed translations are re-attempted.
type RetryPolicy struct {
	MaxRetries int           // Maximum number of retry attempts after the first call
	BaseDelay  time.Duration // Delay before the first retry
	MaxDelay   time.Duration // Maximum delay between retries
}

// DefaultRetryPolicy returns sensible defaults for retry behavior.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
	}
}

// Delay returns the back-off before retry number attempt (0-based):
// BaseDelay * 2^attempt, capped at MaxDelay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	delay := p.BaseDelay
	for i := 0; i < attempt; i++ {
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			break
		}
		delay *= 2
	}

	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// Exhausted reports whether a key that has failed `failures` times must be
// given up on.
func (p RetryPolicy) Exhausted(failures int) bool {
	return failures > p.MaxRetries
}

// RetryState tracks consecutive failures of one translation key.
type RetryState struct {
	Attempts       int       // failures so far
	NextEligibleAt time.Time // when the next attempt may be dispatched
}
