package provider

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Clock abstracts time for the limiter so tests can control it.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) (<-chan time.Time, func() bool)
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTimer(d time.Duration) (<-chan time.Time, func() bool) {
	t := time.NewTimer(d)
	return t.C, t.Stop
}

// LeakyBucket bounds the request rate to one external service. Every
// admission adds one unit to the bucket and the bucket drains continuously
// at the leak rate. Up to capacity requests are admitted at once; beyond that
// callers wait for room, in arrival order.
//
// A waiting caller holds a reservation in the fill level. If its context ends
// before admission the reservation is returned, so an abandoned wait never
// consumes a slot. An admitted request always keeps its slot, whatever the
// outcome of the call it guards.
type LeakyBucket struct {
	mu       sync.Mutex
	capacity float64
	leakRate float64 // units per second
	level    float64
	last     time.Time
	clock    Clock
}

// NewLeakyBucket creates a limiter admitting perSecond requests per second
// with bursts of up to capacity.
func NewLeakyBucket(capacity int, perSecond float64) *LeakyBucket {
	return newLeakyBucket(capacity, perSecond, realClock{})
}

func newLeakyBucket(capacity int, perSecond float64, clock Clock) *LeakyBucket {
	if capacity < 1 {
		capacity = 1
	}
	if perSecond <= 0 || math.IsNaN(perSecond) || math.IsInf(perSecond, 0) {
		panic(fmt.Sprintf("leaky bucket: invalid rate %v", perSecond))
	}
	return &LeakyBucket{
		capacity: float64(capacity),
		leakRate: perSecond,
		last:     clock.Now(),
		clock:    clock,
	}
}

// Capacity returns the burst size.
func (b *LeakyBucket) Capacity() int { return int(b.capacity) }

// Rate returns the sustained admission rate in requests per second.
func (b *LeakyBucket) Rate() float64 { return b.leakRate }

// Level returns the current fill level, including pending reservations.
func (b *LeakyBucket) Level() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.drainLocked(b.clock.Now())
	return b.level
}

// Acquire blocks until the caller is admitted or ctx ends.
func (b *LeakyBucket) Acquire(ctx context.Context) error {
	_, err := b.Wait(ctx)
	return err
}

// Wait is Acquire that also reports how long the caller was held back.
func (b *LeakyBucket) Wait(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	delay := b.reserve()
	if delay <= 0 {
		return 0, nil
	}

	admitted := false
	defer func() {
		if !admitted {
			b.release()
		}
	}()

	if deadline, ok := ctx.Deadline(); ok && deadline.Sub(b.clock.Now()) < delay {
		return 0, fmt.Errorf("rate limiter: wait of %s exceeds deadline: %w", delay, context.DeadlineExceeded)
	}

	fired, stop := b.clock.NewTimer(delay)
	defer stop()
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-fired:
		admitted = true
		return delay, nil
	}
}

// reserve drains the bucket, books one unit and returns how long the caller
// must wait before that unit fits under capacity.
func (b *LeakyBucket) reserve() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.drainLocked(b.clock.Now())

	var delay time.Duration
	if over := b.level + 1 - b.capacity; over > 0 {
		delay = time.Duration(over / b.leakRate * float64(time.Second))
	}
	b.level++
	return delay
}

// release returns an unused reservation.
func (b *LeakyBucket) release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.drainLocked(b.clock.Now())
	b.level = math.Max(0, b.level-1)
}

func (b *LeakyBucket) drainLocked(now time.Time) {
	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.level = math.Max(0, b.level-elapsed*b.leakRate)
		b.last = now
	}
}

// LimitConfig configures one source's limiter.
type LimitConfig struct {
	RequestsPerMinute float64
	Burst             int
}

// LimiterMap holds one LeakyBucket per source, created once at startup and
// shared by every worker.
type LimiterMap struct {
	limiters map[SourceName]*LeakyBucket
	notices  map[SourceName]*rate.Sometimes
	logger   *slog.Logger
}

// NewLimiterMap creates limiters for the given sources. Sources missing from
// limits fall back to their published capability, and sources with no known
// limit are not throttled.
func NewLimiterMap(limits map[SourceName]LimitConfig, logger *slog.Logger) *LimiterMap {
	m := &LimiterMap{
		limiters: make(map[SourceName]*LeakyBucket),
		notices:  make(map[SourceName]*rate.Sometimes),
		logger:   logger.With(slog.String("component", "ratelimit")),
	}
	for name, c := range Capabilities() {
		lc := LimitConfig{RequestsPerMinute: c.RequestsPerMinute, Burst: c.Burst}
		if override, ok := limits[name]; ok {
			if override.RequestsPerMinute > 0 {
				lc.RequestsPerMinute = override.RequestsPerMinute
			}
			if override.Burst > 0 {
				lc.Burst = override.Burst
			}
		}
		m.add(name, lc)
	}
	for name, lc := range limits {
		if _, ok := m.limiters[name]; !ok && lc.RequestsPerMinute > 0 {
			m.add(name, lc)
		}
	}
	return m
}

func (m *LimiterMap) add(name SourceName, lc LimitConfig) {
	m.limiters[name] = NewLeakyBucket(lc.Burst, lc.RequestsPerMinute/60)
	m.notices[name] = &rate.Sometimes{Interval: 30 * time.Second}
}

// Limiter returns the limiter for a source, or nil if it is unthrottled.
func (m *LimiterMap) Limiter(name SourceName) *LeakyBucket {
	return m.limiters[name]
}

// Acquire blocks until the source's limiter admits a request or ctx ends.
// The map is read-only after construction, so no locking is needed here.
func (m *LimiterMap) Acquire(ctx context.Context, name SourceName) error {
	limiter, ok := m.limiters[name]
	if !ok {
		return nil
	}
	waited, err := limiter.Wait(ctx)
	if err != nil {
		return err
	}
	if waited > 0 {
		m.notices[name].Do(func() {
			m.logger.Debug("throttling requests",
				slog.String("source", string(name)),
				slog.Duration("waited", waited),
				slog.Float64("requests_per_second", limiter.Rate()))
		})
	}
	return nil
}
