package retry

import (
	"context"
	"fmt"
	"time"

	"git.home.luguber.info/inful/docpipe/internal/config"
)

// Policy encapsulates retry/backoff settings for transient failures.
// It is immutable after construction. The zero value never retries.
type Policy struct {
	Mode       config.RetryBackoffMode // fixed|linear|exponential
	Initial    time.Duration           // base delay
	Max        time.Duration           // cap for growth
	MaxRetries int                     // maximum retry attempts after the first failure
}

// NoRetry returns a policy that runs an operation exactly once.
func NoRetry() Policy {
	return Policy{Mode: config.RetryBackoffExponential, Initial: time.Second, Max: 30 * time.Second}
}

// FromConfig builds a policy from the retry section; zero/invalid values fall back to NoRetry defaults.
func FromConfig(rc config.RetryConfig) Policy {
	p := NoRetry()
	if rc.MaxRetries > 0 {
		p.MaxRetries = rc.MaxRetries
	}
	if rc.Initial > 0 {
		p.Initial = rc.Initial
	}
	if rc.Max > 0 {
		p.Max = rc.Max
	}
	if m := config.NormalizeRetryBackoff(string(rc.Backoff)); m != "" {
		p.Mode = m
	}
	if p.Initial > p.Max {
		p.Initial = p.Max
	}
	return p
}

// Delay returns the backoff delay for the given retry attempt number (1-based: first retry => 1).
func (p Policy) Delay(retryCount int) time.Duration {
	if retryCount <= 0 {
		return 0
	}
	switch p.Mode {
	case config.RetryBackoffFixed:
		return p.Initial
	case config.RetryBackoffExponential:
		d := p.Initial
		for i := 1; i < retryCount && d < p.Max; i++ {
			d *= 2
		}
		return min(d, p.Max)
	default: // linear
		return min(time.Duration(retryCount)*p.Initial, p.Max)
	}
}

// Validate ensures invariants; returns error if policy impossible to apply.
func (p Policy) Validate() error {
	if p.Initial <= 0 {
		return fmt.Errorf("initial must be >0")
	}
	if p.Max <= 0 {
		return fmt.Errorf("max must be >0")
	}
	if p.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	return nil
}

// Do runs fn until it succeeds, returns a non-retryable error, or the retry
// budget is spent. onRetry (optional) is called before each sleep. The last
// error is returned unchanged.
func (p Policy) Do(ctx context.Context, fn func(context.Context) error, retryable func(error) bool, onRetry func(attempt int, delay time.Duration, err error)) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt >= p.MaxRetries || retryable == nil || !retryable(err) {
			return err
		}
		delay := p.Delay(attempt + 1)
		if onRetry != nil {
			onRetry(attempt+1, delay, err)
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}
