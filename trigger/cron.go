package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedules holds one five-field cron spec per trigger. Empty disables a trigger.
type Schedules struct {
	Backup   string
	Schedule string
	Social   string
	Image    string
}

// RunTimeout bounds a single timer invocation.
const RunTimeout = 15 * time.Minute

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

// NewCron returns a scheduler in loc. A firing is skipped while the previous one of the same
// trigger is still running, and panics are recovered.
func NewCron(loc *time.Location, logger *slog.Logger) *cron.Cron {
	l := cronLogger{logger: logger}
	return cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)
}

// Register binds the handlers to c. Each firing derives its context from ctx.
func (h *Handlers) Register(ctx context.Context, c *cron.Cron, s Schedules) error {
	jobs := []struct {
		name string
		spec string
	}{
		{NameBackup, s.Backup},
		{NameSchedule, s.Schedule},
		{NameSocial, s.Social},
		{NameImage, s.Image},
	}
	for _, job := range jobs {
		if job.spec == "" {
			h.logger.Info("Timer disabled", "trigger", job.name)
			continue
		}
		name := job.name
		if _, err := c.AddFunc(job.spec, func() {
			runCtx, cancel := context.WithTimeout(ctx, RunTimeout)
			defer cancel()
			// Failures are already logged and reported by the handler.
			_, _ = h.Run(runCtx, name)
		}); err != nil {
			return fmt.Errorf("register %s timer %q: %w", name, job.spec, err)
		}
		h.logger.Info("Timer registered", "trigger", name, "spec", job.spec)
	}
	return nil
}
