package files

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"mtm-automation/pkg/mtm"

	"github.com/codeGROOVE-dev/retry"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
)

// DriveFolder reads and writes files in Google Drive folders.
type DriveFolder struct {
	svc    *drive.Service
	logger *slog.Logger
}

// NewDriveFolder wraps svc.
func NewDriveFolder(svc *drive.Service, logger *slog.Logger) *DriveFolder {
	return &DriveFolder{svc: svc, logger: logger}
}

// DriveURL returns the browser link for a Drive file.
func DriveURL(fileID string) string {
	return "https://drive.google.com/file/d/" + fileID + "/view"
}

func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}

// List returns the non-trashed files in folderID in Drive's listing order.
func (d *DriveFolder) List(ctx context.Context, folderID string) ([]mtm.FileRef, error) {
	return d.query(ctx, fmt.Sprintf("'%s' in parents and trashed = false", escapeQuery(folderID)))
}

func (d *DriveFolder) query(ctx context.Context, q string) ([]mtm.FileRef, error) {
	var out []mtm.FileRef
	token := ""
	for {
		call := d.svc.Files.List().
			Q(q).
			Fields("nextPageToken, files(id, name)").
			PageSize(1000).
			SupportsAllDrives(true).
			IncludeItemsFromAllDrives(true)
		if token != "" {
			call = call.PageToken(token)
		}

		start := time.Now()
		resp, err := call.Context(ctx).Do()
		if err != nil {
			d.logger.Warn("Drive list failed", "query", q, "duration_ms", time.Since(start).Milliseconds(), "error", err)
			return nil, err
		}
		for _, f := range resp.Files {
			out = append(out, mtm.FileRef{ID: f.Id, Name: f.Name, URL: DriveURL(f.Id)})
		}
		if resp.NextPageToken == "" {
			break
		}
		token = resp.NextPageToken
	}
	return out, nil
}

// Download returns the contents of a file.
func (d *DriveFolder) Download(ctx context.Context, fileID string) ([]byte, error) {
	var data []byte
	err := retry.Do(
		func() error {
			resp, err := d.svc.Files.Get(fileID).SupportsAllDrives(true).Context(ctx).Download()
			if err != nil {
				if isClientError(err) {
					return retry.Unrecoverable(err)
				}
				return err
			}
			defer func() {
				if closeErr := resp.Body.Close(); closeErr != nil {
					d.logger.Warn("Failed to close download body", "error", closeErr)
				}
			}()
			data, err = io.ReadAll(resp.Body)
			return err
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			d.logger.Info("Retrying Drive download after error", "attempt", n, "file_id", fileID, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", fileID, err)
	}
	d.logger.Info("Downloaded Drive file", "file_id", fileID, "bytes", len(data))
	return data, nil
}

func isClientError(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code >= 400 && gerr.Code < 500 && gerr.Code != 429
	}
	return false
}

// Replace trashes every file named name in folderID, then uploads data in its place.
func (d *DriveFolder) Replace(ctx context.Context, folderID, name, mimeType string, data []byte) (mtm.FileRef, error) {
	existing, err := d.query(ctx, fmt.Sprintf("'%s' in parents and name = '%s' and trashed = false",
		escapeQuery(folderID), escapeQuery(name)))
	if err != nil {
		return mtm.FileRef{}, err
	}
	for _, f := range existing {
		if _, err := d.svc.Files.Update(f.ID, &drive.File{Trashed: true}).SupportsAllDrives(true).Context(ctx).Do(); err != nil {
			return mtm.FileRef{}, fmt.Errorf("trash %s: %w", f.ID, err)
		}
		d.logger.Info("Trashed previous file", "file_id", f.ID, "name", name)
	}

	created, err := d.svc.Files.Create(&drive.File{Name: name, Parents: []string{folderID}, MimeType: mimeType}).
		Media(bytes.NewReader(data), googleapi.ContentType(mimeType)).
		Fields("id, name").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return mtm.FileRef{}, fmt.Errorf("create %s: %w", name, err)
	}
	d.logger.Info("Saved file to Drive", "file_id", created.Id, "name", name, "bytes", len(data))
	return mtm.FileRef{ID: created.Id, Name: created.Name, URL: DriveURL(created.Id)}, nil
}
