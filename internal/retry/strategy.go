package retry

import (
	"errors"
	"math"
	"math/rand"
	"time"

	"golang.org/x/exp/constraints"
)

type Strategy interface {
	// Sleep returns the wait before retry retryCount+1, or true once retries are exhausted.
	Sleep(retryCount uint) (time.Duration, bool)
}

type never struct{}

func NewNever() Strategy {
	return never{}
}

func (never) Sleep(uint) (time.Duration, bool) {
	return 0, true
}

// Entropy returns a value in [0, n).
type Entropy func(n int64) int64

// ExponentialBackOff waits a random duration below Base*2^retryCount, capped at Max.
type ExponentialBackOff struct {
	Base          time.Duration
	Max           time.Duration
	MaxRetryCount uint
	// Entropy defaults to rand.Int63n.
	Entropy Entropy
}

func NewExponentialBackOff(base time.Duration, max time.Duration, maxRetryCount uint, entropy Entropy) *ExponentialBackOff {
	return &ExponentialBackOff{
		Base:          base,
		Max:           max,
		MaxRetryCount: maxRetryCount,
		Entropy:       entropy,
	}
}

func (eb *ExponentialBackOff) Sleep(retryCount uint) (time.Duration, bool) {
	if retryCount >= eb.MaxRetryCount {
		return 0, true
	}
	ceiling := eb.Ceiling(retryCount)
	if ceiling <= 0 {
		return 0, false
	}
	return time.Duration(eb.entropy()(int64(ceiling))), false
}

// Ceiling is the longest Sleep can wait before retry retryCount+1.
func (eb *ExponentialBackOff) Ceiling(retryCount uint) time.Duration {
	if eb.Base <= 0 || eb.Max <= 0 {
		return 0
	}
	if retryCount >= 63 {
		return eb.Max
	}
	delay, err := checkedMul(int64(1)<<retryCount, int64(eb.Base))
	if err != nil {
		return eb.Max
	}
	return time.Duration(clamp(delay, 0, int64(eb.Max)))
}

// Budget is the longest total wait across every retry.
func (eb *ExponentialBackOff) Budget() time.Duration {
	var total int64
	for retryCount := uint(0); retryCount < eb.MaxRetryCount; retryCount++ {
		ceiling := eb.Ceiling(retryCount)
		if ceiling == eb.Max {
			rest, err := checkedMul(int64(eb.MaxRetryCount-retryCount), int64(eb.Max))
			if err != nil {
				return math.MaxInt64
			}
			return time.Duration(saturatingAdd(total, rest))
		}
		total = saturatingAdd(total, int64(ceiling))
	}
	return time.Duration(total)
}

// Timeout is an http.Client timeout long enough for every attempt of perTry plus the
// longest backoff between them.
func Timeout(perTry time.Duration, backoff *ExponentialBackOff) time.Duration {
	attempts, err := checkedMul(int64(backoff.MaxRetryCount)+1, int64(perTry))
	if err != nil {
		return math.MaxInt64
	}
	return time.Duration(saturatingAdd(attempts, int64(backoff.Budget())))
}

func (eb *ExponentialBackOff) entropy() Entropy {
	if eb.Entropy == nil {
		return rand.Int63n
	}
	return eb.Entropy
}

func clamp[T constraints.Ordered](v T, lo T, hi T) T {
	return min(max(v, lo), hi)
}

var OverflowError = errors.New("overflow")

// checkedMul multiplies non-negative operands.
func checkedMul[T constraints.Signed](l T, r T) (T, error) {
	if l == 0 || r == 0 {
		return 0, nil
	}
	product := l * r
	if product < 0 || product/r != l {
		return 0, OverflowError
	}
	return product, nil
}

func saturatingAdd(l int64, r int64) int64 {
	if r > 0 && l > math.MaxInt64-r {
		return math.MaxInt64
	}
	return l + r
}
