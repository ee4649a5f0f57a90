package video

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"mtm-automation/pkg/mtm"
)

const (
	// DefaultPages is the broadcast page count used when none is given.
	DefaultPages = 3
	// MaxPages caps how many pages of 50 broadcasts are scanned.
	MaxPages = 20

	videoChunk  = 50
	localLayout = "2006-01-02 15:04:05"
)

// Broadcast is the part of a live broadcast the finder needs.
type Broadcast struct {
	ID              string
	Title           string
	LifeCycleStatus string
}

// Video is the part of a video resource the finder needs.
type Video struct {
	ID            string
	Title         string
	Description   string
	PrivacyStatus string
	ActualEndTime string // RFC 3339, empty for streams that never ended
}

// BroadcastSource lists the channel's broadcasts and their video details.
type BroadcastSource interface {
	ListBroadcasts(ctx context.Context, pageToken string) ([]Broadcast, string, error)
	ListVideos(ctx context.Context, ids []string) ([]Video, error)
}

// ClampPages applies the default for 0 and bounds pages to 1..MaxPages.
func ClampPages(pages int) int {
	if pages == 0 {
		return DefaultPages
	}
	return min(max(pages, 1), MaxPages)
}

// ParsePages parses an optional pages parameter. Empty or malformed input yields DefaultPages.
func ParsePages(s string) int {
	if s == "" {
		return DefaultPages
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return DefaultPages
	}
	return ClampPages(n)
}

// FinishedOnDay returns the completed broadcasts whose actual end falls on day in loc,
// sorted by end time ascending.
func FinishedOnDay(ctx context.Context, src BroadcastSource, day string, loc *time.Location, pages int, logger *slog.Logger) ([]mtm.StreamRecord, error) {
	if _, err := mtm.ParseDay(day); err != nil {
		return nil, err
	}
	pages = ClampPages(pages)

	var completed []string
	token := ""
	for page := range pages {
		items, next, err := src.ListBroadcasts(ctx, token)
		if err != nil {
			return nil, mtm.Remote("list broadcasts", err)
		}
		for _, b := range items {
			if b.LifeCycleStatus == "complete" {
				completed = append(completed, b.ID)
			}
		}
		logger.Debug("Scanned broadcast page", "page", page+1, "items", len(items))
		if next == "" {
			break
		}
		token = next
	}
	if len(completed) == 0 {
		return nil, nil
	}

	var matches []mtm.StreamRecord
	for off := 0; off < len(completed); off += videoChunk {
		chunk := completed[off:min(off+videoChunk, len(completed))]
		videos, err := src.ListVideos(ctx, chunk)
		if err != nil {
			return nil, mtm.Remote("list videos", err)
		}
		for _, v := range videos {
			if v.ActualEndTime == "" {
				continue
			}
			end, err := time.Parse(time.RFC3339Nano, v.ActualEndTime)
			if err != nil {
				logger.Warn("Skipping video with unparseable end time", "video_id", v.ID, "actual_end_time", v.ActualEndTime)
				continue
			}
			local := end.In(loc)
			if mtm.FormatDay(local) != day {
				continue
			}
			matches = append(matches, mtm.StreamRecord{
				ID:               v.ID,
				URL:              mtm.WatchURL(v.ID),
				Title:            v.Title,
				PrivacyStatus:    v.PrivacyStatus,
				ActualEndTimeUTC: v.ActualEndTime,
				ActualEndLocal:   local.Format(localLayout),
			})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].ActualEndTimeUTC < matches[j].ActualEndTimeUTC
	})
	return matches, nil
}

// LastFinishedOnDay returns the stream that ended last on day, or nil.
func LastFinishedOnDay(ctx context.Context, src BroadcastSource, day string, loc *time.Location, pages int, logger *slog.Logger) (*mtm.StreamRecord, error) {
	matches, err := FinishedOnDay(ctx, src, day, loc, pages, logger)
	if err != nil || len(matches) == 0 {
		return nil, err
	}
	last := matches[len(matches)-1]
	return &last, nil
}
