package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mtm-automation/files"
	"mtm-automation/pkg/mtm"
	"mtm-automation/video"

	"github.com/teambition/rrule-go"
)

// ScheduleVideos is the subset of the video client used by the schedule run.
type ScheduleVideos interface {
	video.Binder
	InsertBroadcast(ctx context.Context, spec video.BroadcastSpec) (string, error)
	SetThumbnail(ctx context.Context, videoID string, data []byte) error
	AddToPlaylist(ctx context.Context, playlistID, videoID string) error
}

// ScheduleConfig wires the schedule run.
type ScheduleConfig struct {
	ThumbFolderID string
	StreamID      string // Persistent stream every broadcast binds to
	Playlists     mtm.PlaylistIDs
	Bind          video.BindOptions
}

// ScheduleOptions are the inputs of one schedule run. Empty StartTime and Privacy fall back to the
// program rules.
type ScheduleOptions struct {
	Day       string `json:"day" validate:"required,ymd"`
	StartTime string `json:"scheduledStartTime" validate:"omitempty,starttime"`
	Privacy   string `json:"privacyStatus" validate:"omitempty,oneof=public private unlisted"`
	DryRun    bool   `json:"dryRun"`
}

// SchedulePlan describes the broadcast a run creates. It is built once and only read afterwards.
type SchedulePlan struct {
	Day         string               `json:"day"`
	DayIndex    int                  `json:"dayIndex"`
	Title       string               `json:"title"`
	Description string               `json:"description"`
	StartTime   string               `json:"scheduledStartTime"`
	Privacy     string               `json:"privacyStatus"`
	Thumbnail   mtm.Thumbnail        `json:"thumbnail"`
	Playlists   []mtm.PlaylistTarget `json:"playlists"`
}

// PlaylistResult is the outcome of one playlist insert.
type PlaylistResult struct {
	PlaylistID string `json:"playlistId"`
	Alias      string `json:"alias"`
	OK         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
}

// ScheduleResult reports one schedule run.
type ScheduleResult struct {
	SchedulePlan
	Outcome         Outcome          `json:"outcome"`
	OK              bool             `json:"ok"`
	DryRun          bool             `json:"dryRun"`
	BroadcastID     *string          `json:"broadcastId"`
	WatchURL        *string          `json:"watchUrl"`
	BoundStreamID   *string          `json:"boundStreamId"`
	ThumbnailSet    bool             `json:"thumbnailSet"`
	PlaylistResults []PlaylistResult `json:"playlistResults"`
	Errors          []string         `json:"errors"`
}

// Schedule creates upcoming broadcasts.
type Schedule struct {
	videos  ScheduleVideos
	thumbs  Thumbnails
	program mtm.Program
	cfg     ScheduleConfig
	logger  *slog.Logger
}

// NewSchedule creates a schedule pipeline.
func NewSchedule(videos ScheduleVideos, thumbs Thumbnails, program mtm.Program, cfg ScheduleConfig, logger *slog.Logger) *Schedule {
	return &Schedule{
		videos:  videos,
		thumbs:  thumbs,
		program: program,
		cfg:     cfg,
		logger:  logger,
	}
}

func (s *Schedule) checkConfig() error {
	if s.cfg.ThumbFolderID == "" {
		return &mtm.ConfigError{Missing: []string{"THUMB_FOLDER_ID"}}
	}
	return nil
}

// Plan validates opts and resolves the broadcast to create without touching the channel.
func (s *Schedule) Plan(ctx context.Context, opts ScheduleOptions) (*SchedulePlan, error) {
	day, index, err := dayInput(s.program, opts, opts.Day)
	if err != nil {
		return nil, err
	}
	if err := s.checkConfig(); err != nil {
		return nil, err
	}

	start := opts.StartTime
	if start == "" {
		start = mtm.StartTime(day)
	}
	privacy := opts.Privacy
	if privacy == "" {
		privacy = mtm.ForcedPrivacy
	}

	thumb, err := files.FindThumbnail(ctx, s.thumbs, s.program, s.cfg.ThumbFolderID, opts.Day)
	if err != nil {
		return nil, err
	}

	return &SchedulePlan{
		Day:         opts.Day,
		DayIndex:    index,
		Title:       mtm.TitleFor(index, mtm.IsSunday(day)),
		Description: mtm.Description(),
		StartTime:   start,
		Privacy:     privacy,
		Thumbnail:   thumb,
		Playlists:   mtm.Playlists(day, s.cfg.Playlists),
	}, nil
}

// Run schedules the broadcast for opts.Day.
func (s *Schedule) Run(ctx context.Context, opts ScheduleOptions) (*ScheduleResult, error) {
	plan, err := s.Plan(ctx, opts)
	if err != nil {
		return nil, err
	}

	res := &ScheduleResult{
		SchedulePlan:    *plan,
		OK:              true,
		DryRun:          opts.DryRun,
		PlaylistResults: []PlaylistResult{},
		Errors:          []string{},
	}
	log := s.logger.With("day", plan.Day, "index", plan.DayIndex, "dry_run", opts.DryRun)
	log.Info("Schedule plan built",
		"title", plan.Title,
		"start", plan.StartTime,
		"privacy", plan.Privacy,
		"thumbnail_found", plan.Thumbnail.Found,
		"playlists", len(plan.Playlists))

	if opts.DryRun {
		res.Outcome = OutcomePlanned
		return res, nil
	}
	// Only a live run binds.
	if s.cfg.StreamID == "" {
		return nil, &mtm.ConfigError{Missing: []string{"PERSISTENT_STREAM_ID"}}
	}

	broadcastID, err := s.videos.InsertBroadcast(ctx, video.BroadcastSpec{
		Title:       plan.Title,
		Description: plan.Description,
		StartTime:   plan.StartTime,
		Privacy:     plan.Privacy,
	})
	if err != nil {
		res.OK = false
		res.Outcome = OutcomeFailed
		return res, mtm.Remote("liveBroadcasts.insert", err)
	}
	watchURL := mtm.WatchURL(broadcastID)
	res.BroadcastID = &broadcastID
	res.WatchURL = &watchURL
	log = log.With("broadcast_id", broadcastID)

	if err := video.BindWithRetry(ctx, s.videos, broadcastID, s.cfg.StreamID, s.cfg.Bind, log); err != nil {
		res.OK = false
		res.Outcome = OutcomeFailed
		return res, err
	}
	streamID := s.cfg.StreamID
	res.BoundStreamID = &streamID

	if plan.Thumbnail.Found {
		if err := s.setThumbnail(ctx, broadcastID, plan.Thumbnail.File.ID); err != nil {
			log.Warn("Thumbnail upload failed", "file_id", plan.Thumbnail.File.ID, "error", err)
			res.Errors = append(res.Errors, fmt.Sprintf("thumbnail: %v", err))
		} else {
			res.ThumbnailSet = true
		}
	}

	for _, target := range plan.Playlists {
		pr := PlaylistResult{PlaylistID: target.ID, Alias: target.Alias, OK: true}
		if err := s.videos.AddToPlaylist(ctx, target.ID, broadcastID); err != nil && !video.IsDuplicate(err) {
			log.Warn("Playlist insert failed", "playlist_id", target.ID, "alias", target.Alias, "error", err)
			pr.OK = false
			pr.Error = err.Error()
			res.Errors = append(res.Errors, fmt.Sprintf("playlist %s: %v", target.Alias, err))
		}
		res.PlaylistResults = append(res.PlaylistResults, pr)
	}

	res.Outcome = OutcomeDone
	if len(res.Errors) > 0 {
		res.OK = false
		res.Outcome = OutcomePartial
	}
	log.Info("Broadcast scheduled", "watch_url", watchURL, "outcome", res.Outcome, "errors", len(res.Errors))
	return res, nil
}

func (s *Schedule) setThumbnail(ctx context.Context, broadcastID, fileID string) error {
	data, err := s.thumbs.Download(ctx, fileID)
	if err != nil {
		return fmt.Errorf("download %s: %w", fileID, err)
	}
	return s.videos.SetThumbnail(ctx, broadcastID, data)
}

// RangeResult collects the per-day results of a range run.
type RangeResult struct {
	From    string            `json:"from"`
	To      string            `json:"to"`
	DryRun  bool              `json:"dryRun"`
	Results []*ScheduleResult `json:"results"`
	Failed  []string          `json:"failed,omitempty"` // Days whose run returned an error
}

// RangeDays returns every calendar day from from to to inclusive.
func RangeDays(from, to time.Time) ([]time.Time, error) {
	from = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	to = time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	if to.Before(from) {
		from, to = to, from
	}
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.DAILY,
		Dtstart: from,
		Until:   to,
	})
	if err != nil {
		return nil, fmt.Errorf("daily recurrence: %w", err)
	}
	return r.All(), nil
}

// ScheduleRange schedules every day between from and to with rule-driven start and privacy.
// A failed day is recorded and the run continues with the next one.
func (s *Schedule) ScheduleRange(ctx context.Context, from, to time.Time, dryRun bool) (*RangeResult, error) {
	days, err := RangeDays(from, to)
	if err != nil {
		return nil, err
	}
	out := &RangeResult{
		From:   mtm.FormatDay(days[0]),
		To:     mtm.FormatDay(days[len(days)-1]),
		DryRun: dryRun,
	}
	for _, d := range days {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		day := mtm.FormatDay(d)
		res, err := s.Run(ctx, ScheduleOptions{Day: day, DryRun: dryRun})
		if res != nil {
			out.Results = append(out.Results, res)
		}
		if err != nil {
			s.logger.Error("Scheduling day failed", "day", day, "error", err)
			out.Failed = append(out.Failed, day)
		}
	}
	return out, nil
}

// ScheduleDays schedules program days a through b.
func (s *Schedule) ScheduleDays(ctx context.Context, a, b int, dryRun bool) (*RangeResult, error) {
	from, err := s.program.DateFor(a)
	if err != nil {
		return nil, err
	}
	to, err := s.program.DateFor(b)
	if err != nil {
		return nil, err
	}
	return s.ScheduleRange(ctx, from, to, dryRun)
}
