package gate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadscout-engine/internal/domain"
)

func TestAcquireSpacesRequests(t *testing.T) {
	g := New(map[domain.Source]Limits{
		domain.SourceRikunabi: {Interval: 50 * time.Millisecond, MaxInFlight: 2},
	})
	ctx := context.Background()

	require.NoError(t, g.Acquire(ctx, domain.SourceRikunabi))
	start := time.Now()
	require.NoError(t, g.Acquire(ctx, domain.SourceRikunabi))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond, "second acquire must wait out the interval")
	g.Release(domain.SourceRikunabi)
	g.Release(domain.SourceRikunabi)
}

func TestMaxInFlightBlocksUntilRelease(t *testing.T) {
	g := New(map[domain.Source]Limits{
		domain.SourceMynavi: {Interval: time.Millisecond, MaxInFlight: 1},
	})
	ctx := context.Background()

	require.NoError(t, g.Acquire(ctx, domain.SourceMynavi))

	acquired := make(chan struct{})
	go func() {
		_ = g.Acquire(ctx, domain.SourceMynavi)
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire succeeded while slot was held")
	case <-time.After(30 * time.Millisecond):
	}

	g.Release(domain.SourceMynavi)
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquire never unblocked after release")
	}
	g.Release(domain.SourceMynavi)
}

func TestSourcesThrottledIndependently(t *testing.T) {
	g := New(map[domain.Source]Limits{
		domain.SourceRikunabi: {Interval: time.Hour, MaxInFlight: 1},
		domain.SourceDoda:     {Interval: time.Millisecond, MaxInFlight: 1},
	})
	ctx := context.Background()

	require.NoError(t, g.Acquire(ctx, domain.SourceRikunabi))

	// rikunabi's hour-long interval must not delay doda
	done := make(chan error, 1)
	go func() { done <- g.Acquire(ctx, domain.SourceDoda) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("doda acquire blocked behind rikunabi limits")
	}
}

func TestAcquireCanceledContext(t *testing.T) {
	g := New(nil)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, g.Acquire(ctx, domain.SourceDoda))

	// slot is full; a canceled waiter must error out, not deadlock
	cancel()
	err := g.Acquire(ctx, domain.SourceDoda)
	assert.ErrorIs(t, err, context.Canceled)

	g.Release(domain.SourceDoda)
}

func TestDefaults(t *testing.T) {
	l := Limits{}.withDefaults()
	assert.Equal(t, DefaultInterval, l.Interval)
	assert.Equal(t, DefaultMaxInFlight, l.MaxInFlight)
}
