package runner

import (
	"math"
	"time"

	workflow "github.com/goliatone/go-workflow"
)

// RetryStrategy encapsulates the delay between retry attempts.
type RetryStrategy interface {
	// SleepDuration returns how long to wait before the next retry attempt.
	// The attempt index starts at 0, incrementing after each failure.
	SleepDuration(attempt int, err error) time.Duration
}

// FixedDelayStrategy waits the same delay between every attempt.
type FixedDelayStrategy struct {
	Delay time.Duration
}

// SleepDuration always returns the configured delay.
func (f FixedDelayStrategy) SleepDuration(_ int, _ error) time.Duration {
	return f.Delay
}

// ExponentialBackoffStrategy doubles (or multiplies by Factor) the base
// delay on each attempt, capped at Max when set.
type ExponentialBackoffStrategy struct {
	Base   time.Duration
	Factor float64
	Max    time.Duration
}

// SleepDuration implements an exponential backoff with a cap at Max.
func (e ExponentialBackoffStrategy) SleepDuration(attempt int, _ error) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	factor := e.Factor
	if factor <= 0 {
		factor = 2
	}
	delay := float64(e.Base) * math.Pow(factor, float64(attempt))
	if e.Max > 0 && time.Duration(delay) > e.Max {
		return e.Max
	}
	return time.Duration(delay)
}

// StrategyFor builds the retry strategy a step's policy asks for.
func StrategyFor(policy workflow.RetryPolicy) RetryStrategy {
	if policy.ExponentialBackoff {
		return ExponentialBackoffStrategy{Base: policy.RetryDelay, Factor: 2}
	}
	return FixedDelayStrategy{Delay: policy.RetryDelay}
}
