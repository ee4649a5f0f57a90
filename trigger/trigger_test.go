package trigger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"mtm-automation/email"
	"mtm-automation/imagegen"
	"mtm-automation/pipeline"
	"mtm-automation/pkg/mtm"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeBackup struct {
	res  *pipeline.BackupResult
	err  error
	opts []pipeline.BackupOptions
}

func (f *fakeBackup) Run(_ context.Context, opts pipeline.BackupOptions) (*pipeline.BackupResult, error) {
	f.opts = append(f.opts, opts)
	return f.res, f.err
}

type fakeSchedule struct {
	res  *pipeline.ScheduleResult
	err  error
	opts []pipeline.ScheduleOptions
}

func (f *fakeSchedule) Run(_ context.Context, opts pipeline.ScheduleOptions) (*pipeline.ScheduleResult, error) {
	f.opts = append(f.opts, opts)
	return f.res, f.err
}

type fakeSocial struct {
	res  *pipeline.SocialResult
	err  error
	opts []pipeline.SocialOptions
}

func (f *fakeSocial) Run(_ context.Context, opts pipeline.SocialOptions) (*pipeline.SocialResult, error) {
	f.opts = append(f.opts, opts)
	return f.res, f.err
}

type fakeImage struct {
	err  error
	days []int
}

func (f *fakeImage) GenerateDay(_ context.Context, n int) (*imagegen.DayImage, error) {
	f.days = append(f.days, n)
	if f.err != nil {
		return nil, f.err
	}
	return &imagegen.DayImage{Day: n, FileName: "11.jpg"}, nil
}

type fakeNotifier struct {
	reports []email.Report
}

func (n *fakeNotifier) Send(_ context.Context, r email.Report) error {
	n.reports = append(n.reports, r)
	return nil
}

// newHandlers pins "now" to 2025-03-02 02:00 UTC, which is still 2025-03-01 in Santo Domingo.
func newHandlers(t *testing.T, deps Deps) *Handlers {
	t.Helper()
	loc, err := time.LoadLocation("America/Santo_Domingo")
	if err != nil {
		t.Fatal(err)
	}
	h := New(deps, mtm.Default(), loc, discardLogger())
	h.now = func() time.Time { return time.Date(2025, time.March, 2, 2, 0, 0, 0, time.UTC) }
	return h
}

func TestBackupTrigger(t *testing.T) {
	tests := []struct {
		name       string
		res        *pipeline.BackupResult
		err        error
		wantEmails int
		wantStatus string
	}{
		{"done", &pipeline.BackupResult{Outcome: pipeline.OutcomeDone, VideoID: "v", VideoURL: "https://www.youtube.com/watch?v=v"}, nil, 1, email.StatusOK},
		{"partial", &pipeline.BackupResult{Outcome: pipeline.OutcomePartial, Errors: []string{pipeline.ErrThumbnailNotFound}}, nil, 1, email.StatusWarning},
		{"not found", &pipeline.BackupResult{Outcome: pipeline.OutcomeNotFound}, nil, 0, ""},
		{"error", nil, errors.New("list uploads: boom"), 1, email.StatusError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeBackup{res: tt.res, err: tt.err}
			notifier := &fakeNotifier{}
			h := newHandlers(t, Deps{Backup: runner, Notifier: notifier})

			_, err := h.Backup(context.Background())
			if !errors.Is(err, tt.err) {
				t.Errorf("err = %v, want %v", err, tt.err)
			}
			if runner.opts[0] != (pipeline.BackupOptions{Day: "2025-03-01"}) {
				t.Errorf("opts = %+v", runner.opts[0])
			}
			if len(notifier.reports) != tt.wantEmails {
				t.Fatalf("emails = %d, want %d", len(notifier.reports), tt.wantEmails)
			}
			if tt.wantEmails > 0 && notifier.reports[0].Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", notifier.reports[0].Status, tt.wantStatus)
			}
		})
	}
}

func TestScheduleTomorrow(t *testing.T) {
	id := "b1"
	url := mtm.WatchURL(id)
	runner := &fakeSchedule{res: &pipeline.ScheduleResult{
		Outcome:     pipeline.OutcomePartial,
		BroadcastID: &id,
		WatchURL:    &url,
		PlaylistResults: []pipeline.PlaylistResult{
			{PlaylistID: "PL", Alias: "General", Error: "boom"},
		},
		Errors: []string{"playlist General: boom"},
	}}
	notifier := &fakeNotifier{}
	h := newHandlers(t, Deps{Schedule: runner, Notifier: notifier})

	if _, err := h.ScheduleTomorrow(context.Background()); err != nil {
		t.Fatal(err)
	}
	if runner.opts[0] != (pipeline.ScheduleOptions{Day: "2025-03-02"}) {
		t.Errorf("opts = %+v", runner.opts[0])
	}
	if len(notifier.reports) != 1 {
		t.Fatalf("emails = %d", len(notifier.reports))
	}
	r := notifier.reports[0]
	if r.Status != email.StatusWarning || r.Subject != "MTM schedule 2025-03-02: partial" {
		t.Errorf("report = %+v", r)
	}
	if r.Links[0].URL != url {
		t.Errorf("links = %+v", r.Links)
	}
	last := r.Fields[len(r.Fields)-1]
	if last.Label != "Playlist General" || last.Value != "failed: boom" {
		t.Errorf("playlist field = %+v", last)
	}
}

func TestSocialPostTrigger(t *testing.T) {
	postID, message := "1_2", mtm.FacebookMessage(10)
	tests := []struct {
		name       string
		res        *pipeline.SocialResult
		wantEmails int
		wantStatus string
	}{
		{"done", &pipeline.SocialResult{Outcome: pipeline.OutcomeDone, PostID: &postID, Message: &message, Stream: &mtm.StreamRecord{URL: mtm.WatchURL("s")}}, 1, email.StatusOK},
		{"failed", &pipeline.SocialResult{Outcome: pipeline.OutcomeFailed, Error: "token expired"}, 1, email.StatusError},
		{"already posted", &pipeline.SocialResult{Outcome: pipeline.OutcomeAlreadyPosted}, 0, ""},
		{"not found", &pipeline.SocialResult{Outcome: pipeline.OutcomeNotFound}, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := &fakeNotifier{}
			h := newHandlers(t, Deps{Social: &fakeSocial{res: tt.res}, Notifier: notifier})
			if _, err := h.SocialPost(context.Background()); err != nil {
				t.Fatal(err)
			}
			if len(notifier.reports) != tt.wantEmails {
				t.Fatalf("emails = %d, want %d", len(notifier.reports), tt.wantEmails)
			}
			if tt.wantEmails > 0 && notifier.reports[0].Status != tt.wantStatus {
				t.Errorf("status = %s", notifier.reports[0].Status)
			}
		})
	}
}

func TestSocialPostReportFields(t *testing.T) {
	postID, message := "1_2", mtm.FacebookMessage(10)
	notifier := &fakeNotifier{}
	h := newHandlers(t, Deps{
		Social:   &fakeSocial{res: &pipeline.SocialResult{Outcome: pipeline.OutcomeDone, PostID: &postID, Message: &message}},
		Notifier: notifier,
	})
	if _, err := h.SocialPost(context.Background()); err != nil {
		t.Fatal(err)
	}
	r := notifier.reports[0]
	if r.Heading != "Facebook post published." {
		t.Errorf("heading = %q", r.Heading)
	}
	want := []email.Field{
		{Label: "Date", Value: "2025-03-01"},
		{Label: "Post ID", Value: "1_2"},
		{Label: "Message", Value: message},
	}
	for i, f := range want {
		if r.Fields[i] != f {
			t.Errorf("field %d = %+v, want %+v", i, r.Fields[i], f)
		}
	}
}

func TestGenerateImage(t *testing.T) {
	img := &fakeImage{}
	h := newHandlers(t, Deps{Image: img, Notifier: &fakeNotifier{}})
	out, err := h.GenerateImage(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if img.days[0] != 11 || out.Day != 11 {
		t.Errorf("days = %v", img.days)
	}

	notifier := &fakeNotifier{}
	h = newHandlers(t, Deps{Image: &fakeImage{err: errors.New("gemini: 429")}, Notifier: notifier})
	if _, err := h.GenerateImage(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(notifier.reports) != 1 || !strings.Contains(notifier.reports[0].Subject, "2025-03-02") {
		t.Errorf("reports = %+v", notifier.reports)
	}
}

func TestRun(t *testing.T) {
	h := newHandlers(t, Deps{})
	if _, err := h.Run(context.Background(), "reboot"); !errors.Is(err, ErrUnknownTrigger) {
		t.Errorf("err = %v", err)
	}
	for _, name := range Names() {
		_, err := h.Run(context.Background(), name)
		var cerr *mtm.ConfigError
		if !errors.As(err, &cerr) {
			t.Errorf("Run(%s) err = %v, want ConfigError", name, err)
		}
	}
}

func TestRegister(t *testing.T) {
	h := newHandlers(t, Deps{})
	c := NewCron(time.UTC, discardLogger())

	if err := h.Register(context.Background(), c, Schedules{Backup: "30 21 * * *", Social: "45 21 * * *"}); err != nil {
		t.Fatal(err)
	}
	if got := len(c.Entries()); got != 2 {
		t.Errorf("entries = %d, want 2", got)
	}

	if err := h.Register(context.Background(), NewCron(time.UTC, discardLogger()), Schedules{Image: "every day"}); err == nil {
		t.Error("invalid spec should fail")
	}
}
