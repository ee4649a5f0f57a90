package prompt

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"google.golang.org/api/sheets/v4"
	"gopkg.in/yaml.v3"
)

// SheetsSource reads variant pools from column A of same-named sheets in a spreadsheet.
type SheetsSource struct {
	svc           *sheets.Service
	spreadsheetID string
}

// NewSheetsSource reads pools from spreadsheetID.
func NewSheetsSource(svc *sheets.Service, spreadsheetID string) *SheetsSource {
	return &SheetsSource{svc: svc, spreadsheetID: spreadsheetID}
}

// Variants returns the trimmed non-empty cells of column A of the sheet named list.
func (s *SheetsSource) Variants(ctx context.Context, list string) ([]string, error) {
	rng := "'" + strings.ReplaceAll(list, "'", "''") + "'!A:A"
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", list, err)
	}
	var out []string
	for _, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		if v := strings.TrimSpace(fmt.Sprint(row[0])); v != "" {
			out = append(out, v)
		}
	}
	return out, nil
}

// FileSource reads variant pools from a YAML document mapping pool names to value lists.
type FileSource struct {
	fs   afero.Fs
	path string
}

// NewFileSource reads pools from path on fs.
func NewFileSource(fs afero.Fs, path string) *FileSource {
	return &FileSource{fs: fs, path: path}
}

// Variants returns the trimmed non-empty values of list.
func (f *FileSource) Variants(_ context.Context, list string) ([]string, error) {
	data, err := afero.ReadFile(f.fs, f.path)
	if err != nil {
		return nil, fmt.Errorf("read variants file: %w", err)
	}
	var pools map[string][]string
	if err := yaml.Unmarshal(data, &pools); err != nil {
		return nil, fmt.Errorf("parse variants file %s: %w", f.path, err)
	}
	values, ok := pools[list]
	if !ok {
		return nil, fmt.Errorf("list %s not found in %s", list, f.path)
	}
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out, nil
}
