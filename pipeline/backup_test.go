package pipeline

import (
	"context"
	"errors"
	"slices"
	"testing"

	"mtm-automation/pkg/mtm"
)

const backupDay = "2025-03-01" // Saturday, day 10

func newBackup(ch *fakeChannel, thumbs Thumbnails, gen ImageGenerator, generate bool) *Backup {
	return NewBackup(ch, thumbs, gen, program, BackupConfig{
		ThumbFolderID:    "thumbs",
		BackupPlaylistID: "PL-backup",
		GenerateMissing:  generate,
	}, discardLogger())
}

func backupChannel() *fakeChannel {
	return &fakeChannel{
		uploads: []mtm.VideoRef{
			{ID: "other", Title: "Evening class"},
			{ID: "untitled"},
			{ID: "vid1", Title: "VID_20250301_101500"},
		},
		titles: map[string]string{"vid1": "VID_20250301_101500"},
	}
}

func TestBackupNotFound(t *testing.T) {
	ch := &fakeChannel{uploads: []mtm.VideoRef{{ID: "x", Title: "March 2, 2025 practice"}}}
	folder, _ := thumbFolder(t, "10.jpg")

	res, err := newBackup(ch, folder, nil, false).Run(context.Background(), BackupOptions{Day: backupDay})
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeNotFound || !res.OK || res.FoundBackup || res.Checked != 1 {
		t.Errorf("result = %+v", res)
	}
	if len(ch.calls) != 0 {
		t.Errorf("unexpected calls %v", ch.calls)
	}
}

func TestBackupQuotaExceededIsNotFound(t *testing.T) {
	ch := &fakeChannel{uploadsErr: errors.New("googleapi: Error 403: quotaExceeded")}
	folder, _ := thumbFolder(t)

	res, err := newBackup(ch, folder, nil, false).Run(context.Background(), BackupOptions{Day: backupDay})
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeNotFound {
		t.Errorf("outcome = %s", res.Outcome)
	}
}

func TestBackupRemoteFailure(t *testing.T) {
	ch := &fakeChannel{uploadsErr: errBoom}
	folder, _ := thumbFolder(t)

	res, err := newBackup(ch, folder, nil, false).Run(context.Background(), BackupOptions{Day: backupDay})
	var remote *mtm.RemoteError
	if !errors.As(err, &remote) || !errors.Is(err, errBoom) {
		t.Fatalf("err = %v, want RemoteError wrapping boom", err)
	}
	if res == nil || res.Outcome != OutcomeFailed || res.OK {
		t.Errorf("result = %+v", res)
	}
}

func TestBackupThumbnailMissing(t *testing.T) {
	ch := backupChannel()
	folder, _ := thumbFolder(t, "9.jpg", "100.jpg")

	res, err := newBackup(ch, folder, nil, false).Run(context.Background(), BackupOptions{Day: backupDay})
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomePartial || res.OK || !res.FoundBackup || res.FoundThumb {
		t.Errorf("result = %+v", res)
	}
	if !slices.Equal(res.Errors, []string{ErrThumbnailNotFound}) {
		t.Errorf("errors = %v", res.Errors)
	}
	if res.VideoID != "vid1" || res.VideoURL != "https://www.youtube.com/watch?v=vid1" || res.Checked != 2 {
		t.Errorf("video = %s %s checked %d", res.VideoID, res.VideoURL, res.Checked)
	}
	if len(ch.calls) != 0 {
		t.Errorf("unexpected calls %v", ch.calls)
	}
}

func TestBackupDryRun(t *testing.T) {
	ch := backupChannel()
	folder, fs := thumbFolder(t)
	gen := &fakeGenerator{fs: fs}

	res, err := newBackup(ch, folder, gen, true).Run(context.Background(), BackupOptions{Day: backupDay, DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	if gen.calls != 0 {
		t.Error("dry run must not generate images")
	}
	if res.Outcome != OutcomePartial {
		t.Errorf("outcome = %s", res.Outcome)
	}

	folder, _ = thumbFolder(t, "10.PNG")
	res, err = newBackup(ch, folder, nil, false).Run(context.Background(), BackupOptions{Day: backupDay, DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	want := BackupPlan{Title: mtm.TitleFor(10, false), Description: mtm.Description(), Thumbnail: true}
	if res.Outcome != OutcomePlanned || res.Planned == nil || *res.Planned != want {
		t.Errorf("result = %+v", res)
	}
	if res.AlreadyCanonicalTitle || res.ThumbFileID != "thumbs/10.PNG" {
		t.Errorf("canonical = %v, thumb = %s", res.AlreadyCanonicalTitle, res.ThumbFileID)
	}
	if len(ch.calls) != 0 {
		t.Errorf("dry run made calls %v", ch.calls)
	}
}

func TestBackupLive(t *testing.T) {
	ch := backupChannel()
	ch.titles["vid1"] = mtm.TitleFor(10, false)
	ch.ensureAdded = true
	folder, _ := thumbFolder(t, "10.jpg")

	res, err := newBackup(ch, folder, nil, false).Run(context.Background(), BackupOptions{Day: backupDay})
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeDone || !res.OK || !res.AddedToPlaylist || !res.AlreadyCanonicalTitle {
		t.Errorf("result = %+v", res)
	}
	want := []string{
		"thumbnail vid1 img-10.jpg",
		"update vid1 " + mtm.TitleFor(10, false),
		"ensure PL-backup vid1",
	}
	if !slices.Equal(ch.calls, want) {
		t.Errorf("calls = %q, want %q", ch.calls, want)
	}
}

func TestBackupPlaylistFailureIsPartial(t *testing.T) {
	ch := backupChannel()
	ch.ensureErr = errBoom
	folder, _ := thumbFolder(t, "10.jpg")

	res, err := newBackup(ch, folder, nil, false).Run(context.Background(), BackupOptions{Day: backupDay})
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomePartial || res.OK || len(res.Errors) != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestBackupGeneratesMissingThumbnail(t *testing.T) {
	ch := backupChannel()
	folder, fs := thumbFolder(t)
	gen := &fakeGenerator{fs: fs}

	res, err := newBackup(ch, folder, gen, true).Run(context.Background(), BackupOptions{Day: backupDay})
	if err != nil {
		t.Fatal(err)
	}
	if gen.calls != 1 || !res.GeneratedThumb || !res.FoundThumb || res.Outcome != OutcomeDone {
		t.Errorf("calls = %d, result = %+v", gen.calls, res)
	}
	if ch.calls[0] != "thumbnail vid1 generated" {
		t.Errorf("first call = %q", ch.calls[0])
	}
}

func TestBackupGenerationFailure(t *testing.T) {
	ch := backupChannel()
	folder, fs := thumbFolder(t)
	gen := &fakeGenerator{fs: fs, err: errBoom}

	res, err := newBackup(ch, folder, gen, true).Run(context.Background(), BackupOptions{Day: backupDay})
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomePartial || len(res.Errors) != 2 || res.Errors[1] != ErrThumbnailNotFound {
		t.Errorf("result = %+v", res)
	}
}

func TestBackupRejectsBadInput(t *testing.T) {
	folder, _ := thumbFolder(t)
	tests := []struct {
		name string
		b    *Backup
		day  string
		want any
	}{
		{"malformed day", newBackup(&fakeChannel{}, folder, nil, false), "2025-3-1", &mtm.ValidationError{}},
		{"impossible date", newBackup(&fakeChannel{}, folder, nil, false), "2025-02-30", &mtm.ValidationError{}},
		{"before epoch", newBackup(&fakeChannel{}, folder, nil, false), "2025-02-19", &mtm.DomainError{}},
		{"missing playlist", NewBackup(&fakeChannel{}, folder, nil, program, BackupConfig{ThumbFolderID: "thumbs"}, discardLogger()), backupDay, &mtm.ConfigError{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.b.Run(context.Background(), BackupOptions{Day: tt.day})
			if err == nil {
				t.Fatal("expected error")
			}
			switch tt.want.(type) {
			case *mtm.ValidationError:
				var target *mtm.ValidationError
				if !errors.As(err, &target) {
					t.Errorf("err = %T %v", err, err)
				}
			case *mtm.DomainError:
				var target *mtm.DomainError
				if !errors.As(err, &target) {
					t.Errorf("err = %T %v", err, err)
				}
			case *mtm.ConfigError:
				var target *mtm.ConfigError
				if !errors.As(err, &target) || target.Missing[0] != "BACKUP_YT_PLAYLIST_ID" {
					t.Errorf("err = %T %v", err, err)
				}
			}
		})
	}
}
