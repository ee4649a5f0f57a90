// Package pipeline sequences the finders and platform clients into the backup, schedule and
// social-post runs. Each run returns a result carrying an Outcome tag; fatal remote failures
// are returned together with the partially filled result.
package pipeline

import (
	"context"
	"time"

	"mtm-automation/pkg/mtm"
	"mtm-automation/validation"
)

// Outcome classifies how a run ended.
type Outcome string

// Outcomes.
const (
	OutcomeDone          Outcome = "done"
	OutcomePlanned       Outcome = "planned"
	OutcomeNotFound      Outcome = "not_found"
	OutcomeAlreadyPosted Outcome = "already_posted"
	OutcomePartial       Outcome = "partial"
	OutcomeFailed        Outcome = "failed"
)

// ErrThumbnailNotFound is the result error recorded when no thumbnail exists for the day.
const ErrThumbnailNotFound = "thumbnail_not_found"

// dayInput validates opts and returns the parsed day with its program index.
func dayInput(program mtm.Program, opts any, day string) (time.Time, int, error) {
	if err := validation.Input(opts); err != nil {
		return time.Time{}, 0, err
	}
	t, err := mtm.ParseDay(day)
	if err != nil {
		return time.Time{}, 0, err
	}
	index, err := program.IndexOf(t)
	if err != nil {
		return time.Time{}, 0, err
	}
	return t, index, nil
}

// Thumbnails resolves the thumbnail for a day and reads its bytes.
type Thumbnails interface {
	List(ctx context.Context, folderID string) ([]mtm.FileRef, error)
	Download(ctx context.Context, fileID string) ([]byte, error)
}
