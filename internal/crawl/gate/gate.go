// Package gate enforces per-site politeness: a minimum spacing between
// requests and a cap on concurrent in-flight requests, independently per
// source. Two sites proceed in parallel; within one site the crawl is
// throttled.
package gate

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"leadscout-engine/internal/domain"
)

const (
	DefaultInterval    = 3 * time.Second
	DefaultMaxInFlight = 1
)

type Limits struct {
	Interval    time.Duration
	MaxInFlight int
}

func (l Limits) withDefaults() Limits {
	if l.Interval <= 0 {
		l.Interval = DefaultInterval
	}
	if l.MaxInFlight <= 0 {
		l.MaxInFlight = DefaultMaxInFlight
	}
	return l
}

type slot struct {
	limiter *rate.Limiter
	sem     *semaphore.Weighted
}

type Gate struct {
	mu       sync.Mutex
	limits   map[domain.Source]Limits
	slots    map[domain.Source]*slot
	fallback Limits
}

func New(limits map[domain.Source]Limits) *Gate {
	return &Gate{
		limits:   limits,
		slots:    make(map[domain.Source]*slot),
		fallback: Limits{}.withDefaults(),
	}
}

func (g *Gate) slotFor(s domain.Source) *slot {
	g.mu.Lock()
	defer g.mu.Unlock()

	if sl, ok := g.slots[s]; ok {
		return sl
	}
	l, ok := g.limits[s]
	if !ok {
		l = g.fallback
	}
	l = l.withDefaults()
	sl := &slot{
		limiter: rate.NewLimiter(rate.Every(l.Interval), 1),
		sem:     semaphore.NewWeighted(int64(l.MaxInFlight)),
	}
	g.slots[s] = sl
	return sl
}

// Acquire blocks until the caller may issue the next request for s. Waiters
// are admitted in FIFO order; there is no wait ceiling here, navigation
// timeouts belong to the strategy's HTTP client.
func (g *Gate) Acquire(ctx context.Context, s domain.Source) error {
	sl := g.slotFor(s)
	if err := sl.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	if err := sl.limiter.Wait(ctx); err != nil {
		sl.sem.Release(1)
		return err
	}
	return nil
}

func (g *Gate) Release(s domain.Source) {
	g.slotFor(s).sem.Release(1)
}
