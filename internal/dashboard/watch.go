package dashboard

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Watch reloads the dashboard on a cron spec until ctx ends. The spec uses
// the standard five fields or a descriptor such as "@every 1m".
func (c *Controller) Watch(ctx context.Context, spec string) error {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("parse refresh schedule %q: %w", spec, err)
	}
	c.WatchSchedule(ctx, schedule)
	return nil
}

// WatchSchedule reloads the dashboard on schedule until ctx ends. A reload
// still running when the next one is due is skipped. It returns once every
// running reload has finished.
func (c *Controller) WatchSchedule(ctx context.Context, schedule cron.Schedule) {
	log := cronLogger{c.logger}
	runner := cron.New(cron.WithLogger(log), cron.WithChain(cron.SkipIfStillRunning(log)))

	runner.Schedule(schedule, cron.FuncJob(func() {
		if err := c.LoadData(ctx); err != nil {
			c.logger.Warn("scheduled refresh failed", "error", err)
		}
	}))

	runner.Start()
	c.logger.Info("dashboard refresh started")

	<-ctx.Done()
	<-runner.Stop().Done()
	c.logger.Info("dashboard refresh stopped")
}

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
