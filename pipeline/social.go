package pipeline

import (
	"context"
	"log/slog"
	"time"

	"mtm-automation/pkg/mtm"
	"mtm-automation/video"
)

// Poster publishes a page post and returns its identifier.
type Poster interface {
	Post(ctx context.Context, message, link string) (string, error)
}

// Ledger remembers which streams were already posted.
type Ledger interface {
	Posted(ctx context.Context, id string) (bool, error)
	MarkPosted(ctx context.Context, id string) error
}

// SocialOptions are the inputs of one social-post run.
type SocialOptions struct {
	Day    string `json:"day" validate:"required,ymd"`
	TZ     string `json:"tz" validate:"omitempty,timezone"`
	Pages  int    `json:"pages" validate:"gte=0"`
	DryRun bool   `json:"dryRun"`
}

// SocialResult reports one social-post run.
type SocialResult struct {
	Outcome       Outcome           `json:"outcome"`
	OK            bool              `json:"ok"`
	Day           string            `json:"day"`
	TZ            string            `json:"tz"`
	Pages         int               `json:"pages"`
	DryRun        bool              `json:"dryRun"`
	Found         bool              `json:"found"`
	AlreadyPosted bool              `json:"alreadyPosted"`
	Posted        bool              `json:"posted"`
	Stream        *mtm.StreamRecord `json:"stream"`
	Message       *string           `json:"message"`
	PostID        *string           `json:"postId"`
	Error         string            `json:"error,omitempty"`
}

// Social announces the day's finished stream on the Facebook page.
type Social struct {
	broadcasts video.BroadcastSource
	ledger     Ledger
	poster     Poster
	program    mtm.Program
	defaultTZ  *time.Location
	logger     *slog.Logger
}

// NewSocial creates a social-post pipeline. defaultTZ applies when a run names no timezone.
func NewSocial(broadcasts video.BroadcastSource, ledger Ledger, poster Poster, program mtm.Program, defaultTZ *time.Location, logger *slog.Logger) *Social {
	return &Social{
		broadcasts: broadcasts,
		ledger:     ledger,
		poster:     poster,
		program:    program,
		defaultTZ:  defaultTZ,
		logger:     logger,
	}
}

// Run posts the last stream that finished on opts.Day, at most once per stream.
func (s *Social) Run(ctx context.Context, opts SocialOptions) (*SocialResult, error) {
	_, index, err := dayInput(s.program, opts, opts.Day)
	if err != nil {
		return nil, err
	}

	loc := s.defaultTZ
	if opts.TZ != "" {
		if loc, err = time.LoadLocation(opts.TZ); err != nil {
			return nil, &mtm.ValidationError{Field: "tz", Value: opts.TZ, Reason: err.Error()}
		}
	}
	if loc == nil {
		loc = time.UTC
	}

	res := &SocialResult{
		OK:     true,
		Day:    opts.Day,
		TZ:     loc.String(),
		Pages:  video.ClampPages(opts.Pages),
		DryRun: opts.DryRun,
	}
	log := s.logger.With("day", opts.Day, "tz", res.TZ, "dry_run", opts.DryRun)

	last, err := video.LastFinishedOnDay(ctx, s.broadcasts, opts.Day, loc, res.Pages, log)
	if err != nil {
		res.OK = false
		res.Outcome = OutcomeFailed
		return res, err
	}
	if last == nil {
		log.Info("No finished stream for day")
		res.Outcome = OutcomeNotFound
		return res, nil
	}
	res.Found = true
	res.Stream = last

	key := last.URL
	if key == "" {
		key = opts.Day
	}
	posted, err := s.ledger.Posted(ctx, key)
	if err != nil {
		res.OK = false
		res.Outcome = OutcomeFailed
		return res, mtm.Remote("read posted ledger", err)
	}
	if posted {
		log.Info("Stream already posted", "stream", key)
		res.AlreadyPosted = true
		res.Outcome = OutcomeAlreadyPosted
		return res, nil
	}

	message := mtm.FacebookMessage(index)
	res.Message = &message

	if opts.DryRun {
		log.Info("Dry run, would post", "stream", key)
		res.Outcome = OutcomePlanned
		return res, nil
	}
	if s.poster == nil {
		return res, &mtm.ConfigError{Missing: []string{"FB_PAGE_ID", "FB_PAGE_ACCESS_TOKEN"}}
	}

	postID, err := s.poster.Post(ctx, message, last.URL)
	if err != nil {
		log.Error("Facebook post failed", "stream", key, "error", err)
		res.OK = false
		res.Error = err.Error()
		res.Outcome = OutcomeFailed
		return res, nil
	}
	res.Posted = true
	if postID != "" {
		res.PostID = &postID
	}

	if err := s.ledger.MarkPosted(ctx, key); err != nil {
		log.Error("Post published but ledger not updated", "stream", key, "post_id", postID, "error", err)
		res.OK = false
		res.Error = "mark posted: " + err.Error()
		res.Outcome = OutcomePartial
		return res, nil
	}

	log.Info("Facebook post published", "stream", key, "post_id", postID)
	res.Outcome = OutcomeDone
	return res, nil
}
