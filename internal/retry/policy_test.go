package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"git.home.luguber.info/inful/docpipe/internal/config"
)

func TestNoRetryDefaults(t *testing.T) {
	p := FromConfig(config.RetryConfig{})
	if p.MaxRetries != 0 {
		t.Fatalf("expected no retries by default, got %d", p.MaxRetries)
	}
	if p.Mode != config.RetryBackoffExponential {
		t.Fatalf("expected exponential mode got %s", p.Mode)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("default policy invalid: %v", err)
	}
}

func TestFromConfigClampsInitial(t *testing.T) {
	p := FromConfig(config.RetryConfig{MaxRetries: 5, Backoff: "FIXED", Initial: 5 * time.Second, Max: 2 * time.Second})
	if p.Initial != 2*time.Second {
		t.Fatalf("expected clamped initial 2s got %v", p.Initial)
	}
	if p.Mode != config.RetryBackoffFixed {
		t.Fatalf("expected fixed mode got %s", p.Mode)
	}
	if p.MaxRetries != 5 {
		t.Fatalf("expected maxRetries 5 got %d", p.MaxRetries)
	}
}

func TestDelayModes(t *testing.T) {
	ms := time.Millisecond
	cases := []struct {
		name   string
		policy Policy
		want   []time.Duration
	}{
		{"fixed", Policy{Mode: config.RetryBackoffFixed, Initial: 100 * ms, Max: 500 * ms}, []time.Duration{100 * ms, 100 * ms, 100 * ms}},
		{"linear", Policy{Mode: config.RetryBackoffLinear, Initial: 100 * ms, Max: 250 * ms}, []time.Duration{100 * ms, 200 * ms, 250 * ms, 250 * ms}},
		{"exponential", Policy{Mode: config.RetryBackoffExponential, Initial: 50 * ms, Max: 160 * ms}, []time.Duration{50 * ms, 100 * ms, 160 * ms, 160 * ms}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			for i, want := range c.want {
				if got := c.policy.Delay(i + 1); got != want {
					t.Fatalf("attempt %d expected %v got %v", i+1, want, got)
				}
			}
			if c.policy.Delay(0) != 0 {
				t.Fatal("attempt 0 must not delay")
			}
		})
	}
}

func TestDoRetriesOnlyRetryableErrors(t *testing.T) {
	transient := errors.New("connection reset")
	p := Policy{Mode: config.RetryBackoffFixed, Initial: time.Millisecond, Max: time.Millisecond, MaxRetries: 3}

	calls := 0
	var retried []int
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return transient
		}
		return nil
	}, func(err error) bool { return errors.Is(err, transient) }, func(attempt int, _ time.Duration, _ error) {
		retried = append(retried, attempt)
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 || len(retried) != 2 {
		t.Fatalf("expected 3 calls / 2 retries, got %d / %v", calls, retried)
	}

	permanent := errors.New("no such package")
	calls = 0
	err = p.Do(context.Background(), func(context.Context) error { calls++; return permanent },
		func(err error) bool { return errors.Is(err, transient) }, nil)
	if !errors.Is(err, permanent) || calls != 1 {
		t.Fatalf("permanent errors must not be retried (calls=%d err=%v)", calls, err)
	}
}

func TestDoZeroRetriesRunsOnce(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := NoRetry().Do(context.Background(), func(context.Context) error { calls++; return boom },
		func(error) bool { return true }, nil)
	if !errors.Is(err, boom) || calls != 1 {
		t.Fatalf("expected single attempt, got calls=%d err=%v", calls, err)
	}
}
