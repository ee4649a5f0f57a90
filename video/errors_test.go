package video

import (
	"errors"
	"fmt"
	"testing"

	"google.golang.org/api/googleapi"
)

func apiError(code int, reason, message string) error {
	return &googleapi.Error{
		Code:    code,
		Message: message,
		Errors:  []googleapi.ErrorItem{{Reason: reason, Message: message}},
	}
}

func TestIsQuotaExceeded(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"reason", apiError(403, "quotaExceeded", "The request cannot be completed"), true},
		{"daily limit", apiError(403, "dailyLimitExceeded", "limit"), true},
		{"wrapped reason", fmt.Errorf("list uploads: %w", apiError(403, "quotaExceeded", "x")), true},
		{"substring", errors.New("googleapi: Error 403: quotaExceeded"), true},
		{"other 403", apiError(403, "forbidden", "nope"), false},
		{"plain", errors.New("connection reset"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsQuotaExceeded(tt.err); got != tt.want {
				t.Errorf("IsQuotaExceeded() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsDuplicate(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{apiError(409, "videoAlreadyInPlaylist", "already there"), true},
		{errors.New("Duplicate playlist item"), true},
		{apiError(404, "playlistNotFound", "missing"), false},
	}
	for _, tt := range tests {
		if got := IsDuplicate(tt.err); got != tt.want {
			t.Errorf("IsDuplicate(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestIsPropagating(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"names broadcast", errors.New("Broadcast bc123 not found"), true},
		{"names stream", errors.New("stream st456 is unknown"), true},
		{"broadcast reason", apiError(404, "liveBroadcastNotFound", "Broadcast not found"), true},
		{"stream reason", apiError(404, "liveStreamNotFound", "Stream not found"), true},
		{"unrelated", apiError(403, "insufficientPermissions", "denied"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPropagating(tt.err, "bc123", "st456"); got != tt.want {
				t.Errorf("IsPropagating() = %v, want %v", got, tt.want)
			}
		})
	}
}
