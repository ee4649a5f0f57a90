package files

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"

	"mtm-automation/pkg/mtm"

	"github.com/spf13/afero"
)

// LocalFolder serves folders from a directory tree. A folder ID is a sub-directory
// of the root and a file ID is the path of the file relative to the root.
type LocalFolder struct {
	fs     afero.Fs
	logger *slog.Logger
}

// NewLocalFolder roots a folder tree at root on fs.
func NewLocalFolder(fsys afero.Fs, root string, logger *slog.Logger) *LocalFolder {
	return &LocalFolder{fs: afero.NewBasePathFs(fsys, root), logger: logger}
}

func cleanID(id string) (string, error) {
	clean := path.Clean("/" + id)
	if strings.Contains(id, "..") {
		return "", fmt.Errorf("invalid path %q", id)
	}
	return clean, nil
}

// List returns the regular files in folderID sorted by name. A missing folder is empty.
func (l *LocalFolder) List(_ context.Context, folderID string) ([]mtm.FileRef, error) {
	dir, err := cleanID(folderID)
	if err != nil {
		return nil, err
	}
	entries, err := afero.ReadDir(l.fs, dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read folder %s: %w", folderID, err)
	}
	var out []mtm.FileRef
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		id := strings.TrimPrefix(path.Join(dir, e.Name()), "/")
		out = append(out, mtm.FileRef{ID: id, Name: e.Name(), URL: "file:///" + id})
	}
	return out, nil
}

// Download reads a file.
func (l *LocalFolder) Download(_ context.Context, fileID string) ([]byte, error) {
	p, err := cleanID(fileID)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(l.fs, p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("file not found: %s", fileID)
		}
		return nil, fmt.Errorf("read %s: %w", fileID, err)
	}
	return data, nil
}

// Replace writes data as name in folderID, overwriting any existing file.
func (l *LocalFolder) Replace(_ context.Context, folderID, name, _ string, data []byte) (mtm.FileRef, error) {
	dir, err := cleanID(folderID)
	if err != nil {
		return mtm.FileRef{}, err
	}
	if name == "" || strings.ContainsAny(name, `/\`) {
		return mtm.FileRef{}, fmt.Errorf("invalid file name %q", name)
	}
	if err := l.fs.MkdirAll(dir, 0o755); err != nil {
		return mtm.FileRef{}, fmt.Errorf("create folder %s: %w", folderID, err)
	}
	p := path.Join(dir, name)
	if err := afero.WriteFile(l.fs, p, data, 0o644); err != nil {
		return mtm.FileRef{}, fmt.Errorf("write %s: %w", p, err)
	}
	id := strings.TrimPrefix(p, "/")
	l.logger.Info("Saved file to local folder", "path", id, "bytes", len(data))
	return mtm.FileRef{ID: id, Name: name, URL: "file:///" + id}, nil
}
