package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"mtm-automation/files"
	"mtm-automation/imagegen"
	"mtm-automation/pkg/mtm"
	"mtm-automation/video"

	"github.com/spf13/afero"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var program = mtm.Default()

// fakeChannel records every mutating call in calls.
type fakeChannel struct {
	uploads    []mtm.VideoRef
	uploadsErr error
	titles     map[string]string

	broadcasts []video.Broadcast
	videos     []video.Video

	insertID     string
	insertErr    error
	bindErrs     []error
	thumbErr     error
	playlistErrs map[string]error
	ensureErr    error
	ensureAdded  bool

	calls []string
}

func (f *fakeChannel) RecentUploads(_ context.Context, limit int) ([]mtm.VideoRef, error) {
	if f.uploadsErr != nil {
		return nil, f.uploadsErr
	}
	return f.uploads[:min(limit, len(f.uploads))], nil
}

func (f *fakeChannel) SearchUploads(context.Context, string) ([]mtm.VideoRef, string, error) {
	return f.uploads, "", f.uploadsErr
}

func (f *fakeChannel) VideoTitle(_ context.Context, id string) (string, error) {
	title, ok := f.titles[id]
	if !ok {
		return "", fmt.Errorf("video not found: %s", id)
	}
	return title, nil
}

func (f *fakeChannel) SetThumbnail(_ context.Context, id string, data []byte) error {
	f.calls = append(f.calls, fmt.Sprintf("thumbnail %s %s", id, data))
	return f.thumbErr
}

func (f *fakeChannel) UpdateTitleDescription(_ context.Context, id, title, _ string) error {
	f.calls = append(f.calls, fmt.Sprintf("update %s %s", id, title))
	return nil
}

func (f *fakeChannel) EnsureInPlaylist(_ context.Context, playlistID, id string) (bool, error) {
	f.calls = append(f.calls, fmt.Sprintf("ensure %s %s", playlistID, id))
	return f.ensureAdded, f.ensureErr
}

func (f *fakeChannel) InsertBroadcast(_ context.Context, spec video.BroadcastSpec) (string, error) {
	f.calls = append(f.calls, fmt.Sprintf("insert %s %s %s", spec.StartTime, spec.Privacy, spec.Title))
	return f.insertID, f.insertErr
}

func (f *fakeChannel) BindBroadcast(_ context.Context, broadcastID, streamID string) error {
	f.calls = append(f.calls, fmt.Sprintf("bind %s %s", broadcastID, streamID))
	if len(f.bindErrs) == 0 {
		return nil
	}
	err := f.bindErrs[0]
	f.bindErrs = f.bindErrs[1:]
	return err
}

func (f *fakeChannel) AddToPlaylist(_ context.Context, playlistID, id string) error {
	f.calls = append(f.calls, fmt.Sprintf("playlist %s %s", playlistID, id))
	return f.playlistErrs[playlistID]
}

func (f *fakeChannel) ListBroadcasts(context.Context, string) ([]video.Broadcast, string, error) {
	return f.broadcasts, "", nil
}

func (f *fakeChannel) ListVideos(context.Context, []string) ([]video.Video, error) {
	return f.videos, nil
}

// thumbFolder returns a local folder whose "thumbs" directory holds the named files.
func thumbFolder(t *testing.T, names ...string) (*files.LocalFolder, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	if err := fs.MkdirAll("/drive/thumbs", 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range names {
		if err := afero.WriteFile(fs, "/drive/thumbs/"+name, []byte("img-"+name), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return files.NewLocalFolder(fs, "/drive", discardLogger()), fs
}

// fakeGenerator writes the day image into the thumbnail folder.
type fakeGenerator struct {
	fs    afero.Fs
	err   error
	calls int
}

func (g *fakeGenerator) GenerateForDate(_ context.Context, day string) (*imagegen.DayImage, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	n, err := program.Index(day)
	if err != nil {
		return nil, err
	}
	name := files.DayImageName(n)
	if err := afero.WriteFile(g.fs, "/drive/thumbs/"+name, []byte("generated"), 0o644); err != nil {
		return nil, err
	}
	return &imagegen.DayImage{Day: n, Date: day, FileID: "thumbs/" + name, FileName: name}, nil
}

type fakePoster struct {
	id    string
	err   error
	posts []string
}

func (p *fakePoster) Post(_ context.Context, message, link string) (string, error) {
	p.posts = append(p.posts, message+" "+link)
	return p.id, p.err
}

var errBoom = errors.New("boom")

func fastBind() video.BindOptions {
	return video.BindOptions{MaxAttempts: 3, InitialDelay: time.Millisecond}
}
