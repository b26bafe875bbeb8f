package automation

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// RandomSource yields uniform draws in [0, 1).
type RandomSource interface {
	Float64() float64
}

// globalRand draws from the math/rand/v2 top-level source, which is safe
// for concurrent use.
type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

// DefaultRandom returns the process-wide random source.
func DefaultRandom() RandomSource { return globalRand{} }

// Sleeper waits for d or until ctx is done, returning ctx.Err() in the
// latter case.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the production Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TimingPolicy turns configured base durations into humanized ones.
// It holds no state besides its random source.
type TimingPolicy struct {
	rnd RandomSource
}

// NewTimingPolicy creates a policy drawing from rnd (DefaultRandom if nil).
func NewTimingPolicy(rnd RandomSource) *TimingPolicy {
	if rnd == nil {
		rnd = DefaultRandom()
	}
	return &TimingPolicy{rnd: rnd}
}

// uniform draws from [lo, hi).
func (p *TimingPolicy) uniform(lo, hi float64) float64 {
	return lo + p.rnd.Float64()*(hi-lo)
}

// Jitter scales base by a multiplier drawn from [minMult, maxMult) and
// rounds to the millisecond.
func (p *TimingPolicy) Jitter(base time.Duration, minMult, maxMult float64) time.Duration {
	return roundMillis(float64(base) / float64(time.Millisecond) * p.uniform(minMult, maxMult))
}

// RandomDelay returns base plus a uniform extra in [0, variance), rounded
// to the millisecond. Used for the paced sub-steps of a comment.
func (p *TimingPolicy) RandomDelay(base, variance time.Duration) time.Duration {
	baseMs := float64(base) / float64(time.Millisecond)
	varMs := float64(variance) / float64(time.Millisecond)
	return roundMillis(baseMs + p.uniform(0, varMs))
}

// ShouldSkip reports whether a cycle should be skipped for humanization.
func (p *TimingPolicy) ShouldSkip(probability float64) bool {
	return p.rnd.Float64() < probability
}

// ShouldExecute reports whether a matched trigger should fire.
// Same draw as ShouldSkip; the two are kept apart so call sites read right.
func (p *TimingPolicy) ShouldExecute(probability float64) bool {
	return p.rnd.Float64() < probability
}

// ViewingTime returns the dwell pause before acting on a post: drawn from
// the relevant range when a trigger matched, else the non-relevant range.
// It is zero when no ranges are configured.
func (p *TimingPolicy) ViewingTime(hasMatch bool, vt *ViewingTime) time.Duration {
	if vt == nil {
		return 0
	}
	r := vt.NonRelevant
	if hasMatch {
		r = vt.Relevant
	}
	if r.Min <= 0 && r.Max <= 0 {
		return 0
	}
	return roundMillis(p.uniform(r.Min*1000, r.Max*1000))
}

// Index picks a uniform index in [0, n). n must be positive.
func (p *TimingPolicy) Index(n int) int {
	i := int(p.rnd.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}

// Random exposes the underlying source for weighted selection.
func (p *TimingPolicy) Random() RandomSource {
	return p.rnd
}

func roundMillis(ms float64) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(math.Round(ms)) * time.Millisecond
}

// seconds converts a configured float number of seconds to a Duration.
func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
