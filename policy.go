package aurorapulse

import (
	"fmt"
	"time"
)

const (
	// DefaultWarmupPasses is the number of readings uploaded without
	// spacing at the start of every session.
	DefaultWarmupPasses = 2

	// DefaultTimeoutMultiplier scales the poll interval into the session
	// liveness timeout.
	DefaultTimeoutMultiplier = 3

	defaultMinInterval = 5 * time.Minute
)

// PollPolicy controls the pacing of a session.
//
// MinInterval is the minimum spacing between device polls once warm-up is
// over. WarmupPasses readings are taken immediately at session start.
// Timeout ends the session when no reading was produced for that long; it
// must exceed MinInterval.
type PollPolicy struct {
	MinInterval  time.Duration
	WarmupPasses int
	Timeout      time.Duration
}

// NewPollPolicy validates and returns a PollPolicy.
func NewPollPolicy(minInterval time.Duration, warmupPasses int, timeout time.Duration) (PollPolicy, error) {
	p := PollPolicy{MinInterval: minInterval, WarmupPasses: warmupPasses, Timeout: timeout}
	if err := p.Validate(); err != nil {
		return PollPolicy{}, err
	}
	return p, nil
}

// PollPolicyFromMultiplier returns a policy whose timeout is
// minInterval × timeoutMultiplier.
func PollPolicyFromMultiplier(minInterval time.Duration, warmupPasses, timeoutMultiplier int) (PollPolicy, error) {
	return NewPollPolicy(minInterval, warmupPasses, minInterval*time.Duration(timeoutMultiplier))
}

// Validate reports whether the policy is usable.
func (p PollPolicy) Validate() error {
	if p.MinInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", p.MinInterval)
	}
	if p.WarmupPasses < 0 {
		return fmt.Errorf("warmup passes cannot be negative, got %d", p.WarmupPasses)
	}
	if p.Timeout <= p.MinInterval {
		return fmt.Errorf("timeout %s must exceed poll interval %s", p.Timeout, p.MinInterval)
	}
	return nil
}

func defaultPollPolicy() PollPolicy {
	return PollPolicy{
		MinInterval:  defaultMinInterval,
		WarmupPasses: DefaultWarmupPasses,
		Timeout:      defaultMinInterval * DefaultTimeoutMultiplier,
	}
}
