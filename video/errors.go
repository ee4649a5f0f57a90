package video

import (
	"errors"
	"strings"

	"google.golang.org/api/googleapi"
)

// reasons returns the googleapi error reasons carried by err, if any.
func reasons(err error) []string {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return nil
	}
	out := make([]string, 0, len(gerr.Errors))
	for _, item := range gerr.Errors {
		out = append(out, item.Reason)
	}
	return out
}

func hasReason(err error, want ...string) bool {
	for _, r := range reasons(err) {
		for _, w := range want {
			if r == w {
				return true
			}
		}
	}
	return false
}

// IsQuotaExceeded reports whether err is the platform's daily quota error.
func IsQuotaExceeded(err error) bool {
	if err == nil {
		return false
	}
	return hasReason(err, "quotaExceeded", "dailyLimitExceeded") ||
		strings.Contains(err.Error(), "quotaExceeded")
}

// IsDuplicate reports whether a playlist insert failed because the video is already there.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	return hasReason(err, "videoAlreadyInPlaylist", "duplicate") ||
		strings.Contains(strings.ToLower(err.Error()), "duplicate")
}

// IsPropagating reports whether a bind failure looks like a freshly created
// broadcast or stream that is not yet visible to the bind endpoint.
func IsPropagating(err error, broadcastID, streamID string) bool {
	if err == nil {
		return false
	}
	if hasReason(err, "liveBroadcastNotFound", "liveStreamNotFound") {
		return true
	}
	msg := err.Error()
	return (broadcastID != "" && strings.Contains(msg, broadcastID)) ||
		(streamID != "" && strings.Contains(msg, streamID))
}
