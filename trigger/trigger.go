// Package trigger runs one pipeline per timer or HTTP invocation, picking "today" or "tomorrow"
// in the program timezone, then logs, measures and reports the outcome.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"mtm-automation/email"
	"mtm-automation/imagegen"
	"mtm-automation/metrics"
	"mtm-automation/pipeline"
	"mtm-automation/pkg/mtm"

	"github.com/google/uuid"
)

// Trigger names.
const (
	NameBackup   = "backup"
	NameSchedule = "schedule"
	NameSocial   = "social"
	NameImage    = "image"
)

// ErrUnknownTrigger is returned by Run for a name outside Names.
var ErrUnknownTrigger = errors.New("unknown trigger")

// BackupRunner runs the backup pipeline.
type BackupRunner interface {
	Run(ctx context.Context, opts pipeline.BackupOptions) (*pipeline.BackupResult, error)
}

// ScheduleRunner runs the schedule pipeline.
type ScheduleRunner interface {
	Run(ctx context.Context, opts pipeline.ScheduleOptions) (*pipeline.ScheduleResult, error)
}

// SocialRunner runs the social-post pipeline.
type SocialRunner interface {
	Run(ctx context.Context, opts pipeline.SocialOptions) (*pipeline.SocialResult, error)
}

// ImageRunner generates the image for a program day.
type ImageRunner interface {
	GenerateDay(ctx context.Context, n int) (*imagegen.DayImage, error)
}

// Notifier delivers outcome reports.
type Notifier interface {
	Send(ctx context.Context, r email.Report) error
}

// Deps are the pipelines a Handlers value dispatches to. Nil pipelines are reported as
// unconfigured when their trigger fires.
type Deps struct {
	Backup   BackupRunner
	Schedule ScheduleRunner
	Social   SocialRunner
	Image    ImageRunner
	Notifier Notifier
}

// Handlers holds the trigger entry points.
type Handlers struct {
	deps    Deps
	program mtm.Program
	loc     *time.Location
	now     func() time.Time
	logger  *slog.Logger
}

// New creates the trigger handlers. loc decides which calendar day is "today".
func New(deps Deps, program mtm.Program, loc *time.Location, logger *slog.Logger) *Handlers {
	return &Handlers{
		deps:    deps,
		program: program,
		loc:     loc,
		now:     time.Now,
		logger:  logger,
	}
}

// Names lists the triggers Run accepts.
func Names() []string {
	return []string{NameBackup, NameSchedule, NameSocial, NameImage}
}

// Run dispatches to the named trigger and returns its result.
func (h *Handlers) Run(ctx context.Context, name string) (any, error) {
	switch name {
	case NameBackup:
		return h.Backup(ctx)
	case NameSchedule:
		return h.ScheduleTomorrow(ctx)
	case NameSocial:
		return h.SocialPost(ctx)
	case NameImage:
		return h.GenerateImage(ctx)
	default:
		return nil, fmt.Errorf("%w %q (available: %v)", ErrUnknownTrigger, name, Names())
	}
}

func (h *Handlers) today() time.Time {
	return h.now().In(h.loc)
}

// begin starts a run: it assigns a run ID and returns the run logger and a finish func.
func (h *Handlers) begin(name, day string) (*slog.Logger, func(outcome pipeline.Outcome, result any, err error)) {
	runID := uuid.NewString()
	log := h.logger.With("trigger", name, "run_id", runID, "day", day)
	start := time.Now()
	log.Info("Trigger started")

	return log, func(outcome pipeline.Outcome, result any, err error) {
		duration := time.Since(start)
		metrics.RecordRun(name, string(outcome), duration, err)
		if err != nil {
			log.Error("Trigger failed",
				"outcome", outcome,
				"duration_ms", duration.Milliseconds(),
				"error", err)
			return
		}
		log.Info("Trigger finished",
			"outcome", outcome,
			"duration_ms", duration.Milliseconds(),
			"result", result)
	}
}

func (h *Handlers) notify(ctx context.Context, log *slog.Logger, r email.Report) {
	if h.deps.Notifier == nil {
		return
	}
	err := h.deps.Notifier.Send(ctx, r)
	metrics.RecordEmail(err)
	if err != nil {
		log.Error("Failed to send report email", "subject", r.Subject, "error", err)
	}
}

func unconfigured(name string) error {
	return &mtm.ConfigError{Reason: name + " pipeline is not configured"}
}

// Backup processes today's backup recording.
func (h *Handlers) Backup(ctx context.Context) (*pipeline.BackupResult, error) {
	day := mtm.FormatDay(h.today())
	log, finish := h.begin(NameBackup, day)
	if h.deps.Backup == nil {
		err := unconfigured(NameBackup)
		finish(pipeline.OutcomeFailed, nil, err)
		return nil, err
	}

	res, err := h.deps.Backup.Run(ctx, pipeline.BackupOptions{Day: day})
	outcome := pipeline.OutcomeFailed
	if res != nil {
		outcome = res.Outcome
	}
	finish(outcome, res, err)

	if err != nil || slices.Contains([]pipeline.Outcome{pipeline.OutcomeDone, pipeline.OutcomePartial}, outcome) {
		h.notify(ctx, log, backupReport(day, res, err))
	}
	return res, err
}

// ScheduleTomorrow schedules tomorrow's broadcast with the rule-driven start and privacy.
func (h *Handlers) ScheduleTomorrow(ctx context.Context) (*pipeline.ScheduleResult, error) {
	day := mtm.FormatDay(h.today().AddDate(0, 0, 1))
	log, finish := h.begin(NameSchedule, day)
	if h.deps.Schedule == nil {
		err := unconfigured(NameSchedule)
		finish(pipeline.OutcomeFailed, nil, err)
		return nil, err
	}

	res, err := h.deps.Schedule.Run(ctx, pipeline.ScheduleOptions{Day: day})
	outcome := pipeline.OutcomeFailed
	if res != nil {
		outcome = res.Outcome
	}
	finish(outcome, res, err)

	if err != nil || slices.Contains([]pipeline.Outcome{pipeline.OutcomeDone, pipeline.OutcomePartial}, outcome) {
		h.notify(ctx, log, scheduleReport(day, res, err))
	}
	return res, err
}

// SocialPost announces today's finished stream.
func (h *Handlers) SocialPost(ctx context.Context) (*pipeline.SocialResult, error) {
	day := mtm.FormatDay(h.today())
	log, finish := h.begin(NameSocial, day)
	if h.deps.Social == nil {
		err := unconfigured(NameSocial)
		finish(pipeline.OutcomeFailed, nil, err)
		return nil, err
	}

	res, err := h.deps.Social.Run(ctx, pipeline.SocialOptions{Day: day})
	outcome := pipeline.OutcomeFailed
	if res != nil {
		outcome = res.Outcome
	}
	finish(outcome, res, err)

	if err != nil || slices.Contains([]pipeline.Outcome{pipeline.OutcomeDone, pipeline.OutcomeFailed}, outcome) {
		h.notify(ctx, log, socialReport(day, res, err))
	}
	return res, err
}

// GenerateImage renders the image for tomorrow's program day.
func (h *Handlers) GenerateImage(ctx context.Context) (*imagegen.DayImage, error) {
	day := mtm.FormatDay(h.today().AddDate(0, 0, 1))
	log, finish := h.begin(NameImage, day)
	if h.deps.Image == nil {
		err := unconfigured(NameImage)
		finish(pipeline.OutcomeFailed, nil, err)
		return nil, err
	}

	n, err := h.program.Index(day)
	if err != nil {
		finish(pipeline.OutcomeFailed, nil, err)
		return nil, err
	}
	img, err := h.deps.Image.GenerateDay(ctx, n)
	if err != nil {
		finish(pipeline.OutcomeFailed, nil, err)
		h.notify(ctx, log, imageReport(day, n, err))
		return nil, err
	}
	finish(pipeline.OutcomeDone, img, nil)
	return img, nil
}
