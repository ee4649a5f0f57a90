package mtm

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ForcedPrivacy is the visibility used by rule-driven scheduling.
const ForcedPrivacy = "public"

// Scheduled broadcasts always start at this local wall time.
const (
	startHour   = 10
	startOffset = "-04:00"
)

var (
	startTimePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?([+-]\d{2}:\d{2}|Z)$`)
	privacyStatuses  = []string{"public", "private", "unlisted"}
)

// StartTime returns the scheduled start for a day in RFC 3339.
func StartTime(day time.Time) string {
	return FormatDay(day) + "T" + strconv.Itoa(startHour) + ":00:00" + startOffset
}

// ValidateStartTime checks an ISO 8601 start time with an explicit zone.
func ValidateStartTime(s string) error {
	if !startTimePattern.MatchString(s) {
		return &ValidationError{Field: "scheduledStartTime", Value: s, Reason: "must be ISO 8601 with timezone"}
	}
	if _, err := time.Parse(time.RFC3339Nano, s); err != nil {
		return &ValidationError{Field: "scheduledStartTime", Value: s, Reason: "must be ISO 8601 with timezone"}
	}
	return nil
}

// ValidatePrivacy checks a privacy status.
func ValidatePrivacy(s string) error {
	if !slices.Contains(privacyStatuses, s) {
		return &ValidationError{Field: "privacyStatus", Value: s, Reason: "must be one of " + strings.Join(privacyStatuses, ", ")}
	}
	return nil
}

// Playlists selects the playlists for a broadcast on day.
// Unconfigured playlists are skipped.
func Playlists(day time.Time, ids PlaylistIDs) []PlaylistTarget {
	var out []PlaylistTarget
	if ids.General != "" {
		out = append(out, PlaylistTarget{ID: ids.General, Alias: "General"})
	}
	if IsSunday(day) {
		if ids.Full != "" {
			out = append(out, PlaylistTarget{ID: ids.Full, Alias: "Full Version"})
		}
	} else if ids.Half != "" {
		out = append(out, PlaylistTarget{ID: ids.Half, Alias: "1/2 Version"})
	}
	return out
}

// ParseRange parses "A-B" into an ascending pair of day numbers.
func ParseRange(s string) (int, int, error) {
	left, right, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return 0, 0, &ValidationError{Field: "range", Value: s, Reason: "expected A-B, e.g. 275-282"}
	}
	start, err := strconv.Atoi(strings.TrimSpace(left))
	if err != nil {
		return 0, 0, &ValidationError{Field: "range", Value: s, Reason: "start is not a number"}
	}
	end, err := strconv.Atoi(strings.TrimSpace(right))
	if err != nil {
		return 0, 0, &ValidationError{Field: "range", Value: s, Reason: "end is not a number"}
	}
	if start > end {
		start, end = end, start
	}
	return start, end, nil
}

// MissingDays returns the gaps between the smallest and largest day present.
func MissingDays(present []int) []int {
	if len(present) == 0 {
		return nil
	}
	seen := make(map[int]bool, len(present))
	lo, hi := present[0], present[0]
	for _, n := range present {
		seen[n] = true
		lo = min(lo, n)
		hi = max(hi, n)
	}
	var missing []int
	for n := lo; n <= hi; n++ {
		if !seen[n] {
			missing = append(missing, n)
		}
	}
	return missing
}
