package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type Task func(ctx context.Context) error

// Every runs task immediately and then on every tick until ctx ends. Task
// errors are logged, never fatal; the next tick still fires.
func Every(ctx context.Context, interval time.Duration, name string, log *zap.Logger, task Task) {
	t := time.NewTicker(interval)
	defer t.Stop()

	run := func() {
		if err := task(ctx); err != nil {
			log.Warn("scheduled task failed", zap.String("task", name), zap.Error(err))
		}
	}

	run()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			run()
		}
	}
}
