package files

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

func newTestDrive(t *testing.T, handler http.Handler) *DriveFolder {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := drive.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatal(err)
	}
	return NewDriveFolder(svc, discardLogger())
}

func TestDriveFolderListPages(t *testing.T) {
	var queries []string
	d := newTestDrive(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/files" {
			t.Errorf("path = %s", r.URL.Path)
		}
		queries = append(queries, r.URL.Query().Get("q"))
		if r.URL.Query().Get("pageToken") == "" {
			io.WriteString(w, `{"nextPageToken":"p2","files":[{"id":"a","name":"1.jpg"}]}`)
			return
		}
		io.WriteString(w, `{"files":[{"id":"b","name":"2.jpg"}]}`)
	}))

	files, err := d.List(context.Background(), "folder'1")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 || files[1].ID != "b" {
		t.Fatalf("List() = %+v", files)
	}
	if files[0].URL != "https://drive.google.com/file/d/a/view" {
		t.Errorf("URL = %q", files[0].URL)
	}
	want := `'folder\'1' in parents and trashed = false`
	if len(queries) != 2 || queries[0] != want {
		t.Errorf("queries = %q, want %q twice", queries, want)
	}
}

func TestDriveFolderDownload(t *testing.T) {
	d := newTestDrive(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/files/img1" || r.URL.Query().Get("alt") != "media" {
			t.Errorf("request = %s", r.URL)
		}
		io.WriteString(w, "jpeg-bytes")
	}))

	data, err := d.Download(context.Background(), "img1")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "jpeg-bytes" {
		t.Errorf("Download() = %q", data)
	}
}

func TestDriveFolderDownloadNotFoundIsNotRetried(t *testing.T) {
	calls := 0
	d := newTestDrive(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":{"code":404,"message":"File not found"}}`)
	}))

	if _, err := d.Download(context.Background(), "missing"); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
