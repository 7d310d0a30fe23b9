package workers

import (
	"context"
	"log/slog"
	"time"
)

type Sweeper interface {
	Run(ctx context.Context, interval time.Duration) error
}

type janitor struct {
	name     string
	sweeper  Sweeper
	interval time.Duration
}

// NewJanitor periodically drops idle state, e.g. per-user rate limiters.
func NewJanitor(name string, sweeper Sweeper, interval time.Duration) *janitor {
	return &janitor{name: name, sweeper: sweeper, interval: interval}
}

func (j *janitor) Name() string { return j.name }

func (j *janitor) Start(ctx context.Context) error {
	slog.InfoContext(ctx, "Starting worker", "name", j.Name())
	defer slog.InfoContext(ctx, "Worker stopped", "name", j.Name())

	return j.sweeper.Run(ctx, j.interval)
}
