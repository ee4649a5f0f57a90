package files

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"mtm-automation/pkg/mtm"

	"github.com/spf13/afero"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type staticLister struct {
	files []mtm.FileRef
	err   error
}

func (s staticLister) List(context.Context, string) ([]mtm.FileRef, error) {
	return s.files, s.err
}

var testProgram = mtm.New(time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC))

func TestThumbnailPattern(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"7.jpg", true},
		{"7.JPEG", true},
		{"7.png", true},
		{"7.webp", true},
		{"7.gif", false},
		{"17.jpg", false},
		{"70.jpg", false},
		{"7.jpg.bak", false},
		{"day7.jpg", false},
	}
	re := ThumbnailPattern(7)
	for _, tt := range tests {
		if got := re.MatchString(tt.name); got != tt.want {
			t.Errorf("match %q = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestFindThumbnail(t *testing.T) {
	lister := staticLister{files: []mtm.FileRef{
		{ID: "f1", Name: "6.jpg"},
		{ID: "f2", Name: "7.PNG"},
		{ID: "f3", Name: "7.jpg"},
	}}

	tests := []struct {
		name    string
		day     string
		want    mtm.Thumbnail
		wantErr bool
	}{
		{
			name: "first match in listing order",
			day:  "2023-01-07",
			want: mtm.Thumbnail{Day: "2023-01-07", Index: 7, Found: true, File: &mtm.FileRef{ID: "f2", Name: "7.PNG"}},
		},
		{
			name: "missing",
			day:  "2023-01-09",
			want: mtm.Thumbnail{Day: "2023-01-09", Index: 9},
		},
		{name: "malformed day", day: "07-01-2023", wantErr: true},
		{name: "before epoch", day: "2022-12-31", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindThumbnail(context.Background(), lister, testProgram, "folder", tt.day)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FindThumbnail() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.Day != tt.want.Day || got.Index != tt.want.Index || got.Found != tt.want.Found {
				t.Errorf("FindThumbnail() = %+v, want %+v", got, tt.want)
			}
			if (got.File == nil) != (tt.want.File == nil) {
				t.Fatalf("File = %+v, want %+v", got.File, tt.want.File)
			}
			if got.File != nil && *got.File != *tt.want.File {
				t.Errorf("File = %+v, want %+v", *got.File, *tt.want.File)
			}
		})
	}
}

func TestFindThumbnailListError(t *testing.T) {
	_, err := FindThumbnail(context.Background(), staticLister{err: errors.New("forbidden")}, testProgram, "folder", "2023-01-07")
	var remote *mtm.RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("error = %v, want *mtm.RemoteError", err)
	}
}

func TestLocalFolder(t *testing.T) {
	ctx := context.Background()
	base := afero.NewMemMapFs()
	if err := afero.WriteFile(base, "/drive/thumbs/2.jpg", []byte("two"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(base, "/drive/thumbs/1.jpg", []byte("one"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := base.MkdirAll("/drive/thumbs/archive", 0o755); err != nil {
		t.Fatal(err)
	}
	folder := NewLocalFolder(base, "/drive", discardLogger())

	files, err := folder.List(ctx, "thumbs")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 || files[0].Name != "1.jpg" || files[1].ID != "thumbs/2.jpg" {
		t.Fatalf("List() = %+v", files)
	}

	data, err := folder.Download(ctx, files[0].ID)
	if err != nil || string(data) != "one" {
		t.Errorf("Download() = %q, %v", data, err)
	}

	ref, err := folder.Replace(ctx, "thumbs", "2.jpg", "image/jpeg", []byte("new"))
	if err != nil {
		t.Fatal(err)
	}
	if ref.ID != "thumbs/2.jpg" {
		t.Errorf("Replace() id = %q", ref.ID)
	}
	got, err := afero.ReadFile(base, "/drive/thumbs/2.jpg")
	if err != nil || string(got) != "new" {
		t.Errorf("replaced content = %q, %v", got, err)
	}

	if _, err := folder.Download(ctx, "../secret"); err == nil {
		t.Error("Download() outside root should fail")
	}
	if _, err := folder.Replace(ctx, "thumbs", "a/b.jpg", "image/jpeg", nil); err == nil {
		t.Error("Replace() with nested name should fail")
	}
}

func TestLocalFolderFeedsFindThumbnail(t *testing.T) {
	base := afero.NewMemMapFs()
	if err := afero.WriteFile(base, "/root/t/3.webp", []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	thumb, err := FindThumbnail(context.Background(), NewLocalFolder(base, "/root", discardLogger()), testProgram, "t", "2023-01-03")
	if err != nil {
		t.Fatal(err)
	}
	if !thumb.Found || thumb.File.ID != "t/3.webp" {
		t.Errorf("thumb = %+v", thumb)
	}
}
