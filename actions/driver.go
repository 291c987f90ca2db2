package actions

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/16tons/emergency5-sdk-sub029/logging"
	"github.com/16tons/emergency5-sdk-sub029/utils"
)

// Driver ticks a Scheduler in real time.
type Driver struct {
	scheduler *Scheduler
	clk       clock.Clock
	interval  time.Duration
	logger    logging.Logger
	workers   utils.StoppableWorkers
}

// NewDriver returns a driver ticking scheduler every interval of clk.
func NewDriver(scheduler *Scheduler, clk clock.Clock, interval time.Duration, logger logging.Logger) (*Driver, error) {
	if interval <= 0 {
		return nil, errors.Errorf("tick interval must be positive, got %v", interval)
	}
	return &Driver{scheduler: scheduler, clk: clk, interval: interval, logger: logger}, nil
}

// Run ticks until ctx is done, passing the measured time since the previous tick as the delta.
func (d *Driver) Run(ctx context.Context) error {
	ticker := d.clk.Ticker(d.interval)
	defer ticker.Stop()
	last := d.clk.Now()
	d.logger.CDebugf(ctx, "tick loop started with interval %v", d.interval)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			d.scheduler.Tick(ctx, now.Sub(last))
			last = now
		}
	}
}

// Start runs the tick loop in the background until Stop is called or ctx is done.
func (d *Driver) Start(ctx context.Context) {
	d.workers = utils.NewStoppableWorkers(ctx, func(ctx context.Context) {
		if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Warnw("tick loop stopped", "error", err)
		}
	})
}

// Stop stops a loop started with Start and waits for it to return.
func (d *Driver) Stop() {
	if d.workers != nil {
		d.workers.Stop()
	}
}
