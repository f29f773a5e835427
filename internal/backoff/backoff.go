package backoff

import (
	"math"
	"math/rand"
	"time"
)

const (
	PolicyFixed          = "fixed"
	PolicyLinear         = "linear"
	PolicyExponential    = "exponential"
	PolicyExpEqualJitter = "exp_equal_jitter"
	PolicyExpFullJitter  = "exp_full_jitter"
)

// Compute returns the delay before the next poll. attempts counts the polls
// already answered as pending, starting at 0. Unknown policies fall back to
// fixed so a typo never turns a poll loop into a long sleep.
func Compute(policy string, base time.Duration, max time.Duration, attempts int, rng *rand.Rand) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if base <= 0 {
		base = time.Second
	}
	if max < base {
		max = base
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	switch policy {
	case PolicyLinear:
		return minDuration(base*time.Duration(maxInt(1, attempts+1)), max)
	case PolicyExponential:
		return exp(base, max, attempts)
	case PolicyExpEqualJitter:
		ceiling := exp(base, max, attempts)
		half := ceiling / 2
		return half + time.Duration(rng.Int63n(int64(half)+1))
	case PolicyExpFullJitter:
		ceiling := exp(base, max, attempts)
		return time.Duration(rng.Int63n(int64(ceiling) + 1))
	default:
		return base
	}
}

// Valid reports whether policy names a known delay policy.
func Valid(policy string) bool {
	switch policy {
	case PolicyFixed, PolicyLinear, PolicyExponential, PolicyExpEqualJitter, PolicyExpFullJitter:
		return true
	}
	return false
}

func exp(base, max time.Duration, attempts int) time.Duration {
	f := float64(base) * math.Pow(2, float64(attempts))
	if f >= float64(max) {
		return max
	}
	return time.Duration(f)
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
