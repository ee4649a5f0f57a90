package mtm

import (
	"regexp"
	"time"
)

const (
	// TotalDays is the length of the program.
	TotalDays = 1000

	dayLayout = "2006-01-02"
	msPerDay  = int64(24 * time.Hour / time.Millisecond)
)

var dayPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// DefaultEpoch is Day 1 of the program.
var DefaultEpoch = time.Date(2025, time.February, 20, 0, 0, 0, 0, time.UTC)

// Program maps calendar dates to program days.
type Program struct {
	Epoch time.Time
}

// Default returns the program anchored at DefaultEpoch.
func Default() Program {
	return Program{Epoch: DefaultEpoch}
}

// New returns a program anchored at the UTC midnight of epoch's calendar date.
func New(epoch time.Time) Program {
	return Program{Epoch: time.Date(epoch.Year(), epoch.Month(), epoch.Day(), 0, 0, 0, 0, time.UTC)}
}

// ParseDay parses a YYYY-MM-DD string as UTC midnight.
func ParseDay(s string) (time.Time, error) {
	if !dayPattern.MatchString(s) {
		return time.Time{}, &ValidationError{Field: "day", Value: s, Reason: "day must be YYYY-MM-DD"}
	}
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "day", Value: s, Reason: "not a calendar date"}
	}
	return t, nil
}

// FormatDay renders t's calendar date as YYYY-MM-DD.
func FormatDay(t time.Time) string {
	return t.Format(dayLayout)
}

// ValidDay reports whether s has the YYYY-MM-DD shape.
func ValidDay(s string) bool {
	return dayPattern.MatchString(s)
}

// Index returns the 1-based program day for a YYYY-MM-DD date.
func (p Program) Index(day string) (int, error) {
	t, err := ParseDay(day)
	if err != nil {
		return 0, err
	}
	return p.IndexOf(t)
}

// IndexOf returns the program day for the UTC calendar date of t.
func (p Program) IndexOf(t time.Time) (int, error) {
	t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	diff := t.Sub(p.Epoch).Milliseconds()
	if diff < 0 {
		return 0, &DomainError{Day: FormatDay(t), Epoch: p.Epoch}
	}
	return int(diff/msPerDay) + 1, nil
}

// DateFor returns the UTC date of program day n.
func (p Program) DateFor(n int) (time.Time, error) {
	if n < 1 {
		return time.Time{}, &ValidationError{Field: "day number", Reason: "must be >= 1"}
	}
	return p.Epoch.AddDate(0, 0, n-1), nil
}

// IsSunday reports whether t falls on a Sunday in UTC.
func IsSunday(t time.Time) bool {
	return t.UTC().Weekday() == time.Sunday
}
