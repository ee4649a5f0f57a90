package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"mtm-automation/pipeline"
	"mtm-automation/pkg/mtm"
	"mtm-automation/social"
	"mtm-automation/trigger"
	"mtm-automation/video"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"
)

// command is one CLI subcommand.
type command struct {
	name    string
	summary string
	run     func(ctx context.Context, a *app, args []string, out io.Writer) error
}

func commands() []command {
	return []command{
		{"serve", "run the HTTP service and, when enabled, the timers (default)", cmdServe},
		{"run", "run a trigger now: backup | schedule | social | image", cmdRun},
		{"backup", "attach the thumbnail and canonical title to a day's backup recording", cmdBackup},
		{"schedule", "schedule the broadcast of a day (default tomorrow)", cmdSchedule},
		{"schedule-range", "schedule program days A-B", cmdScheduleRange},
		{"schedule-week", "schedule the next --days days", cmdScheduleWeek},
		{"social", "post a day's finished stream to the Facebook page", cmdSocial},
		{"finished", "list streams that finished on a day", cmdFinished},
		{"image", "generate a day image, or backfill a range of missing ones", cmdImage},
		{"gaps", "list missing day numbers in the thumbnail folder", cmdGaps},
		{"create-stream", "create a reusable RTMP stream", cmdCreateStream},
		{"list-streams", "list the channel's streams and keys", cmdListStreams},
		{"channel-id", "print the authorised channel id", cmdChannelID},
		{"fb-token", "exchange a short-lived user token for a long-lived page token", cmdFBToken},
	}
}

func lookup(name string) (command, bool) {
	for _, c := range commands() {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: mtm-automation <command> [flags]")
	fmt.Fprintln(w)
	for _, c := range commands() {
		fmt.Fprintf(w, "  %-15s %s\n", c.name, c.summary)
	}
}

// usageError is reported for malformed arguments.
type usageError struct {
	msg string
}

func (e *usageError) Error() string {
	return e.msg
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResult writes v when present and passes err through.
func printResult[T any](out io.Writer, v *T, err error) error {
	if v != nil {
		if perr := printJSON(out, v); perr != nil {
			return perr
		}
	}
	return err
}

// dayOffset returns the calendar day offset days away from now in loc.
func dayOffset(now time.Time, loc *time.Location, offset int) string {
	t := now.In(loc)
	return mtm.FormatDay(time.Date(t.Year(), t.Month(), t.Day()+offset, 0, 0, 0, 0, time.UTC))
}

func (a *app) today() string    { return dayOffset(time.Now(), a.loc, 0) }
func (a *app) tomorrow() string { return dayOffset(time.Now(), a.loc, 1) }

func newFlags(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ContinueOnError)
}

func cmdServe(ctx context.Context, a *app, args []string, _ io.Writer) error {
	fs := newFlags("serve")
	port := fs.String("port", a.cfg.Server.Port, "listen port")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sender := a.sender()
	handlers := a.triggers(sender)
	srv := a.server(handlers, sender)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(ctx, *port)
	})

	if cc := a.cfg.Cron; cc.Enabled {
		c := trigger.NewCron(a.loc, a.logger)
		if err := handlers.Register(ctx, c, trigger.Schedules{
			Backup:   cc.Backup,
			Schedule: cc.Schedule,
			Social:   cc.Social,
			Image:    cc.Image,
		}); err != nil {
			return err
		}
		c.Start()
		a.logger.Info("Timers started", "timezone", a.loc.String())
		g.Go(func() error {
			<-ctx.Done()
			<-c.Stop().Done()
			a.logger.Info("Timers stopped")
			return nil
		})
	}
	return g.Wait()
}

func cmdRun(ctx context.Context, a *app, args []string, out io.Writer) error {
	if len(args) != 1 {
		return &usageError{"run needs one trigger name: " + strings.Join(trigger.Names(), " | ")}
	}
	res, err := a.triggers(a.sender()).Run(ctx, args[0])
	if res != nil {
		if perr := printJSON(out, res); perr != nil {
			return perr
		}
	}
	return err
}

func cmdBackup(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlags("backup")
	day := fs.String("day", a.today(), "day YYYY-MM-DD")
	dryRun := fs.Bool("dry-run", false, "plan without changing anything")
	if err := fs.Parse(args); err != nil {
		return err
	}
	res, err := a.backup().Run(ctx, pipeline.BackupOptions{Day: *day, DryRun: *dryRun})
	return printResult(out, res, err)
}

func cmdSchedule(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlags("schedule")
	day := fs.String("day", a.tomorrow(), "day YYYY-MM-DD")
	start := fs.String("start", "", "scheduled start, RFC 3339 (default from the program rules)")
	privacy := fs.String("privacy", "", "public | unlisted | private (default from the program rules)")
	dryRun := fs.Bool("dry-run", false, "plan without changing anything")
	if err := fs.Parse(args); err != nil {
		return err
	}
	res, err := a.schedule().Run(ctx, pipeline.ScheduleOptions{
		Day:       *day,
		StartTime: *start,
		Privacy:   *privacy,
		DryRun:    *dryRun,
	})
	return printResult(out, res, err)
}

func cmdScheduleRange(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlags("schedule-range")
	dryRun := fs.Bool("dry-run", false, "plan without changing anything")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return &usageError{"schedule-range needs a day range, e.g. 275-282"}
	}
	from, to, err := mtm.ParseRange(fs.Arg(0))
	if err != nil {
		return err
	}
	res, err := a.schedule().ScheduleDays(ctx, from, to, *dryRun)
	return printResult(out, res, err)
}

// weekRange returns the first and last day of a run of days days starting tomorrow,
// or today with fromToday.
func weekRange(now time.Time, loc *time.Location, days int, fromToday bool) (time.Time, time.Time, error) {
	if days < 1 {
		return time.Time{}, time.Time{}, &mtm.ValidationError{Field: "days", Value: strconv.Itoa(days), Reason: "must be at least 1"}
	}
	offset := 1
	if fromToday {
		offset = 0
	}
	from, err := mtm.ParseDay(dayOffset(now, loc, offset))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, from.AddDate(0, 0, days-1), nil
}

func cmdScheduleWeek(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlags("schedule-week")
	days := fs.Int("days", 7, "number of days")
	fromToday := fs.Bool("from-today", false, "start today instead of tomorrow")
	dryRun := fs.Bool("dry-run", false, "plan without changing anything")
	if err := fs.Parse(args); err != nil {
		return err
	}
	from, to, err := weekRange(time.Now(), a.loc, *days, *fromToday)
	if err != nil {
		return err
	}
	res, err := a.schedule().ScheduleRange(ctx, from, to, *dryRun)
	return printResult(out, res, err)
}

func cmdSocial(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlags("social")
	day := fs.String("day", a.today(), "day YYYY-MM-DD")
	tz := fs.String("tz", "", "IANA timezone of the day (default DEFAULT_TZ)")
	pages := fs.Int("pages", 0, "broadcast pages to scan, 1-20")
	dryRun := fs.Bool("dry-run", false, "build the message without posting")
	if err := fs.Parse(args); err != nil {
		return err
	}
	res, err := a.social().Run(ctx, pipeline.SocialOptions{Day: *day, TZ: *tz, Pages: *pages, DryRun: *dryRun})
	return printResult(out, res, err)
}

func cmdFinished(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlags("finished")
	day := fs.String("day", a.today(), "day YYYY-MM-DD")
	tz := fs.String("tz", a.cfg.Timezone, "IANA timezone of the day")
	pages := fs.Int("pages", 0, "broadcast pages to scan, 1-20")
	all := fs.Bool("all", false, "list every stream instead of the last one")
	if err := fs.Parse(args); err != nil {
		return err
	}
	loc, err := time.LoadLocation(*tz)
	if err != nil {
		return &mtm.ValidationError{Field: "tz", Value: *tz, Reason: "unknown timezone"}
	}
	if *all {
		streams, err := video.FinishedOnDay(ctx, a.youtube, *day, loc, *pages, a.logger)
		if err != nil {
			return err
		}
		return printJSON(out, map[string]any{"day": *day, "tz": *tz, "streams": streams})
	}
	stream, err := video.LastFinishedOnDay(ctx, a.youtube, *day, loc, *pages, a.logger)
	if err != nil {
		return err
	}
	return printJSON(out, map[string]any{"day": *day, "tz": *tz, "found": stream != nil, "stream": stream})
}

func cmdImage(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlags("image")
	n := fs.Int("day", 0, "program day number (default tomorrow's)")
	date := fs.String("date", "", "calendar day YYYY-MM-DD instead of a day number")
	backfill := fs.String("backfill", "", "generate the missing images of days A-B")
	if err := fs.Parse(args); err != nil {
		return err
	}
	gen, err := a.generator()
	if err != nil {
		return err
	}
	switch {
	case *backfill != "":
		from, to, err := mtm.ParseRange(*backfill)
		if err != nil {
			return err
		}
		res, err := gen.Backfill(ctx, from, to)
		return printResult(out, res, err)
	case *date != "":
		res, err := gen.GenerateForDate(ctx, *date)
		return printResult(out, res, err)
	case *n == 0:
		if *n, err = a.program.Index(a.tomorrow()); err != nil {
			return err
		}
	}
	res, err := gen.GenerateDay(ctx, *n)
	return printResult(out, res, err)
}

// gapReport summarises the day numbers found in a folder.
type gapReport struct {
	FolderID string `json:"folderId"`
	Present  int    `json:"present"`
	First    int    `json:"first,omitempty"`
	Last     int    `json:"last,omitempty"`
	Missing  []int  `json:"missing"`
}

// dayNumbers returns the sorted day numbers of files named "{n}.{ext}".
func dayNumbers(names []string) []int {
	seen := map[int]bool{}
	for _, name := range names {
		n, err := strconv.Atoi(strings.TrimSuffix(name, path.Ext(name)))
		if err != nil || n < 1 {
			continue
		}
		seen[n] = true
	}
	out := make([]int, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

func gaps(folderID string, names []string) gapReport {
	days := dayNumbers(names)
	r := gapReport{FolderID: folderID, Present: len(days), Missing: mtm.MissingDays(days)}
	if len(days) > 0 {
		r.First, r.Last = days[0], days[len(days)-1]
	}
	if r.Missing == nil {
		r.Missing = []int{}
	}
	return r
}

func cmdGaps(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlags("gaps")
	folderID := fs.String("folder", a.cfg.Drive.ThumbFolderID, "folder to inspect")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *folderID == "" {
		return &mtm.ConfigError{Missing: []string{"THUMB_FOLDER_ID"}}
	}
	refs, err := a.folder().List(ctx, *folderID)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(refs))
	for _, r := range refs {
		names = append(names, r.Name)
	}
	return printJSON(out, gaps(*folderID, names))
}

func cmdCreateStream(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlags("create-stream")
	title := fs.String("title", "MTM persistent stream", "stream title")
	if err := fs.Parse(args); err != nil {
		return err
	}
	info, err := a.youtube.CreatePersistentStream(ctx, *title)
	if err != nil {
		return err
	}
	a.logger.Info("Set PERSISTENT_STREAM_ID to use this stream", "stream_id", info.ID)
	return printJSON(out, info)
}

func cmdListStreams(ctx context.Context, a *app, _ []string, out io.Writer) error {
	streams, err := a.youtube.ListStreams(ctx)
	if err != nil {
		return err
	}
	return printJSON(out, streams)
}

func cmdChannelID(ctx context.Context, a *app, _ []string, out io.Writer) error {
	id, err := a.youtube.ChannelID(ctx)
	if err != nil {
		return err
	}
	return printJSON(out, map[string]string{"channelId": id})
}

func cmdFBToken(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlags("fb-token")
	userToken := fs.String("user-token", "", "short-lived user access token from the Graph API Explorer")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *userToken == "" {
		return &usageError{"fb-token needs --user-token"}
	}
	fc := a.cfg.Facebook
	if err := requireFacebookApp(fc); err != nil {
		return err
	}
	poster := social.NewPoster(social.Options{
		PageID:     fc.PageID,
		APIVersion: fc.GraphAPIVersion,
		Timeout:    fc.Timeout(),
	}, a.logger)
	token, err := poster.ExchangePageToken(ctx, fc.AppID, fc.AppSecret, *userToken)
	if err != nil {
		return err
	}
	return printJSON(out, token)
}

// isUsage reports whether err should be followed by the usage text.
func isUsage(err error) bool {
	var ue *usageError
	return errors.As(err, &ue)
}
