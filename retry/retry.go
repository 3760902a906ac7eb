// Package retry implements the engine's policy-based retry orchestrator:
// an operation closure is re-attempted with exponential backoff and jitter,
// governed by a per-error-category RetryPolicy table, consulting
// bldrerr.IsRecoverable before ever re-attempting. Grounded on the
// project's own exponential-backoff-with-context-cancellation idiom used
// for container readiness polling.
package retry

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"forge.evalgo.org/bldrerr"
)

// RetryPolicy governs how many times, and with what delay curve, an
// operation in a given error category is re-attempted.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterRatio  float64
	Exponential  bool
}

// DefaultPolicies is the category-based policy table populated at
// Orchestrator construction: System and Network get generous retry
// budgets, Build errors (compile/link/test failures) are never worth
// retrying, Resource exhaustion gets a modest budget, and Environment
// problems (missing toolchain) get a budget of two attempts. Environment
// errors are unrecoverable by default, so Do stops after the first failure
// unless the error was marked recoverable with WithRecoverable.
func DefaultPolicies() map[bldrerr.Kind]RetryPolicy {
	base := RetryPolicy{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		JitterRatio:  0.2,
		Exponential:  true,
	}
	system := base
	system.MaxAttempts = 5
	network := base
	network.MaxAttempts = 5
	build := base
	build.MaxAttempts = 1
	resource := base
	resource.MaxAttempts = 3
	environment := base
	environment.MaxAttempts = 2

	return map[bldrerr.Kind]RetryPolicy{
		bldrerr.KindSystem:      system,
		bldrerr.KindNetwork:     network,
		bldrerr.KindBuild:       build,
		bldrerr.KindResource:    resource,
		bldrerr.KindEnvironment: environment,
	}
}

// Stats accumulates one outcome per Do call per category, read by callers wanting a
// retry-pressure summary (e.g. for a status endpoint).
type Stats struct {
	mu         sync.Mutex
	total      map[bldrerr.Kind]int
	successful map[bldrerr.Kind]int
	failed     map[bldrerr.Kind]int
}

func newStats() *Stats {
	return &Stats{
		total:      make(map[bldrerr.Kind]int),
		successful: make(map[bldrerr.Kind]int),
		failed:     make(map[bldrerr.Kind]int),
	}
}

func (s *Stats) record(kind bldrerr.Kind, succeeded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total[kind]++
	if succeeded {
		s.successful[kind]++
	} else {
		s.failed[kind]++
	}
}

// Snapshot returns a point-in-time copy of the per-category counters.
func (s *Stats) Snapshot() (total, successful, failed map[bldrerr.Kind]int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total = make(map[bldrerr.Kind]int, len(s.total))
	successful = make(map[bldrerr.Kind]int, len(s.successful))
	failed = make(map[bldrerr.Kind]int, len(s.failed))
	for k, v := range s.total {
		total[k] = v
	}
	for k, v := range s.successful {
		successful[k] = v
	}
	for k, v := range s.failed {
		failed[k] = v
	}
	return total, successful, failed
}

// Orchestrator re-attempts operations according to a per-Kind RetryPolicy
// table, falling back to a single, no-retry attempt for kinds absent from
// the table.
type Orchestrator struct {
	policies map[bldrerr.Kind]RetryPolicy
	rng      *rand.Rand
	rngMu    sync.Mutex
	stats    *Stats
}

// New constructs an Orchestrator with DefaultPolicies. Pass overrides to
// replace or add per-Kind policies.
func New(overrides map[bldrerr.Kind]RetryPolicy) *Orchestrator {
	policies := DefaultPolicies()
	for k, v := range overrides {
		policies[k] = v
	}
	return &Orchestrator{
		policies: policies,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		stats:    newStats(),
	}
}

// Stats exposes the orchestrator's running counters.
func (o *Orchestrator) Stats() *Stats {
	return o.stats
}

func (o *Orchestrator) policyFor(kind bldrerr.Kind) RetryPolicy {
	if p, ok := o.policies[kind]; ok {
		return p
	}
	return RetryPolicy{MaxAttempts: 1}
}

// delay computes the backoff before attempt n (n >= 1): attempt 0 has no
// delay. With Exponential set, delay = min(MaxDelay, InitialDelay *
// Multiplier^(n-1)), then jittered uniformly within [1-JitterRatio,
// 1+JitterRatio].
func (o *Orchestrator) delay(p RetryPolicy, n int) time.Duration {
	if n <= 0 {
		return 0
	}
	base := float64(p.InitialDelay)
	if p.Exponential {
		base = float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(n-1))
	}
	if max := float64(p.MaxDelay); max > 0 && base > max {
		base = max
	}

	if p.JitterRatio <= 0 {
		return time.Duration(base)
	}
	o.rngMu.Lock()
	factor := 1 - p.JitterRatio + o.rng.Float64()*2*p.JitterRatio
	o.rngMu.Unlock()
	return time.Duration(base * factor)
}

// Do re-attempts op until it succeeds, the policy's MaxAttempts is
// exhausted, op returns an unrecoverable error, or ctx is cancelled.
func (o *Orchestrator) Do(ctx context.Context, kind bldrerr.Kind, op func(ctx context.Context) error) error {
	policy := o.policyFor(kind)

	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(o.delay(policy, attempt)):
			}
		}

		lastErr = op(ctx)
		if lastErr == nil {
			o.stats.record(kind, true)
			return nil
		}
		if !bldrerr.IsRecoverable(lastErr) {
			o.stats.record(kind, false)
			return lastErr
		}
	}

	o.stats.record(kind, false)
	return lastErr
}
