package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/robfig/cron/v3"
)

func runServe(ctx context.Context, a *app, args []string, stdout io.Writer) error {
	fs := newFlagSet("serve", a.errOut)
	runNow := fs.Bool("run-now", false, "save one checkpoint immediately before waiting for the schedule")

	if err := parseFlags(fs, args); err != nil {
		return err
	}

	scheduler := cron.New(
		cron.WithLocation(a.location),
		cron.WithLogger(cronLogger{logger: a.logger}),
		cron.WithChain(cron.Recover(cronLogger{logger: a.logger}), cron.SkipIfStillRunning(cronLogger{logger: a.logger})),
	)

	job := func() { a.saveCheckpoint(ctx) }

	if _, err := scheduler.AddFunc(a.cfg.Accrual.Schedule, job); err != nil {
		return fmt.Errorf("%w: invalid accrual schedule %q: %w", errUsage, a.cfg.Accrual.Schedule, err)
	}

	if *runNow {
		job()
	}

	scheduler.Start()
	a.logger.Info("accrual scheduler started", "schedule", a.cfg.Accrual.Schedule, "tags", a.cfg.Accrual.Tags)
	_, _ = fmt.Fprintln(stdout, "serving, press Ctrl+C to stop")

	<-ctx.Done()

	stopped := scheduler.Stop()
	<-stopped.Done()

	a.logger.Info("accrual scheduler stopped")

	return nil
}

// saveCheckpoint accrues every event before today and stores the result.
func (a *app) saveCheckpoint(ctx context.Context) {
	until := a.today()

	accrual, err := accrue(ctx, a, until, a.cfg.Accrual.Tags, true)
	if err != nil {
		a.logger.Error("accrual checkpoint failed", "until", until.String(), "error", err.Error())
		return
	}

	a.logger.Info("accrual checkpoint saved", "until", accrual.Date.String(), "values", accrual.Values)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{"error", err.Error()}, keysAndValues...)...)
}
