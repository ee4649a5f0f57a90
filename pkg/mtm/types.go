// Package mtm contains the core domain types and rules for the Master's Touch Meditation program.
package mtm

// FileRef identifies a file in a thumbnail folder.
type FileRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Thumbnail is the result of a thumbnail lookup for one day.
type Thumbnail struct {
	Day   string   `json:"day"`
	Index int      `json:"index"`
	Found bool     `json:"found"`
	File  *FileRef `json:"file"` // nil when not found
}

// VideoRef is a minimal reference to an uploaded video.
type VideoRef struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// BackupMatch is the outcome of scanning uploads for a day's backup recording.
type BackupMatch struct {
	Video   *VideoRef `json:"video,omitempty"`
	Found   bool      `json:"found"`
	Checked int       `json:"checked"` // Titles inspected before the match or exhaustion
}

// StreamRecord describes a finished broadcast.
type StreamRecord struct {
	ID               string `json:"id"`
	URL              string `json:"url"`
	Title            string `json:"title"`
	PrivacyStatus    string `json:"privacyStatus"`
	ActualEndTimeUTC string `json:"actualEndTimeUtc"` // As reported by the platform (RFC 3339)
	ActualEndLocal   string `json:"actualEndLocal"`   // yyyy-MM-dd HH:mm:ss in the query timezone
}

// PlaylistTarget is a playlist a new broadcast should join.
type PlaylistTarget struct {
	ID    string `json:"playlistId"`
	Alias string `json:"alias"`
}

// PlaylistIDs holds the configured playlist identifiers for scheduled broadcasts.
type PlaylistIDs struct {
	General string
	Half    string
	Full    string
}
