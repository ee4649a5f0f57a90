package video

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"mtm-automation/pkg/mtm"
)

// Backup finder modes.
const (
	ModeUploads = "uploads"
	ModeSearch  = "search"
)

// UploadSource lists the channel's recent uploads, newest first.
type UploadSource interface {
	RecentUploads(ctx context.Context, limit int) ([]mtm.VideoRef, error)
	SearchUploads(ctx context.Context, pageToken string) ([]mtm.VideoRef, string, error)
}

// BackupOptions selects how far back FindBackup looks.
type BackupOptions struct {
	Mode     string // ModeUploads (default) or ModeSearch
	Window   int    // Uploads inspected in ModeUploads; 0 means 5
	MaxPages int    // Pages of 50 search results in ModeSearch; 0 means 1
}

// BackupPatterns returns the title patterns that identify a backup recording of day:
// a camera file name (VID_20250301_...) and a long-form date (March 1, 2025).
func BackupPatterns(day time.Time) []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`(?i)^VID[ _]+` + day.Format("20060102") + `[ _]`),
		regexp.MustCompile(fmt.Sprintf(`(?i)\b%s\s+0?%d,\s+%d\b`, day.Month(), day.Day(), day.Year())),
	}
}

func matchesAny(title string, patterns []*regexp.Regexp) bool {
	for _, re := range patterns {
		if re.MatchString(title) {
			return true
		}
	}
	return false
}

// FindBackup returns the first recent upload whose title names day.
// A quota error ends the scan with Found=false and the titles counted so far.
func FindBackup(ctx context.Context, src UploadSource, day time.Time, opts BackupOptions, logger *slog.Logger) (mtm.BackupMatch, error) {
	patterns := BackupPatterns(day)
	var match mtm.BackupMatch

	scan := func(videos []mtm.VideoRef) bool {
		for _, v := range videos {
			if v.Title == "" {
				continue
			}
			match.Checked++
			if matchesAny(v.Title, patterns) {
				found := v
				if found.URL == "" {
					found.URL = mtm.WatchURL(v.ID)
				}
				match.Found = true
				match.Video = &found
				return true
			}
		}
		return false
	}

	degrade := func(err error) (mtm.BackupMatch, error) {
		if IsQuotaExceeded(err) {
			logger.Warn("YouTube quota exceeded during backup scan", "day", mtm.FormatDay(day), "checked", match.Checked)
			return match, nil
		}
		return match, mtm.Remote("list uploads", err)
	}

	switch opts.Mode {
	case ModeSearch:
		pages := opts.MaxPages
		if pages <= 0 {
			pages = 1
		}
		token := ""
		for range pages {
			videos, next, err := src.SearchUploads(ctx, token)
			if err != nil {
				return degrade(err)
			}
			if scan(videos) || next == "" {
				break
			}
			token = next
		}
	case ModeUploads, "":
		window := opts.Window
		if window <= 0 {
			window = 5
		}
		videos, err := src.RecentUploads(ctx, window)
		if err != nil {
			return degrade(err)
		}
		scan(videos)
	default:
		return match, &mtm.ValidationError{Field: "backupMode", Value: opts.Mode, Reason: "must be uploads or search"}
	}

	logger.Info("Backup scan finished", "day", mtm.FormatDay(day), "found", match.Found, "checked", match.Checked)
	return match, nil
}
