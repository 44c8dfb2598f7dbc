// Package backoff computes retry delays for failed jobs. Policies are
// stateless and safe for concurrent use.
package backoff

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Strategy names accepted by New.
const (
	StrategyExponential = "exponential"
	StrategyLinear      = "linear"
	StrategyConstant    = "constant"
)

var Strategies = []string{StrategyExponential, StrategyLinear, StrategyConstant}

// Policy maps the number of attempts made so far and a base interval to the
// delay before the job becomes eligible again.
type Policy interface {
	Delay(attempts int, base time.Duration) time.Duration
}

// Exponential returns base * 2^attempts, capped at Max (no cap when Max is zero).
type Exponential struct {
	Max time.Duration
}

func NewExponential(maxDelay time.Duration) Exponential {
	return Exponential{Max: maxDelay}
}

func (e Exponential) Delay(attempts int, base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempts < 0 {
		attempts = 0
	}

	d := float64(base) * math.Pow(2, float64(attempts))
	return capDelay(d, e.Max)
}

// capDelay converts d to a duration no larger than ceiling (or MaxInt64 when
// ceiling is zero).
func capDelay(d float64, ceiling time.Duration) time.Duration {
	if ceiling > 0 && d >= float64(ceiling) {
		return ceiling
	}
	if math.IsInf(d, 1) || d >= float64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// Linear returns base * (attempts + 1), capped at Max.
type Linear struct {
	Max time.Duration
}

func (l Linear) Delay(attempts int, base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempts < 0 {
		attempts = 0
	}
	d := float64(base) * float64(attempts+1)
	return capDelay(d, l.Max)
}

// Constant always returns base, capped at Max.
type Constant struct {
	Max time.Duration
}

func (c Constant) Delay(_ int, base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	return capDelay(float64(base), c.Max)
}

// Default is the exponential policy with a one hour ceiling.
func Default() Policy {
	return NewExponential(time.Hour)
}

// New returns the policy named by strategy, capped at maxDelay. An empty name
// selects the exponential policy.
func New(strategy string, maxDelay time.Duration) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case StrategyExponential, "":
		return NewExponential(maxDelay), nil
	case StrategyLinear:
		return Linear{Max: maxDelay}, nil
	case StrategyConstant:
		return Constant{Max: maxDelay}, nil
	default:
		return nil, fmt.Errorf("unknown backoff strategy %q (want one of %s)", strategy, strings.Join(Strategies, ", "))
	}
}
