package video

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

// Binder attaches a broadcast to a stream.
type Binder interface {
	BindBroadcast(ctx context.Context, broadcastID, streamID string) error
}

// BindOptions tunes BindWithRetry.
type BindOptions struct {
	MaxAttempts  uint          // Total attempts including the first; 0 means 3
	InitialDelay time.Duration // Wait before the second attempt, doubled each time; 0 means 1s
}

// BindError reports a bind that never succeeded.
type BindError struct {
	BroadcastID string
	StreamID    string
	Attempts    uint
	Err         error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind broadcast %s to stream %s failed after %d attempt(s): %v",
		e.BroadcastID, e.StreamID, e.Attempts, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// BindWithRetry binds broadcastID to streamID, retrying only while the
// platform reports that one of the resources does not exist yet.
// Delays grow as InitialDelay, 2*InitialDelay, 4*InitialDelay, ...
func BindWithRetry(ctx context.Context, b Binder, broadcastID, streamID string, opts BindOptions, logger *slog.Logger) error {
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 3
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = time.Second
	}

	var attempts uint
	err := retry.Do(
		func() error {
			attempts++
			return b.BindBroadcast(ctx, broadcastID, streamID)
		},
		retry.Attempts(opts.MaxAttempts),
		retry.Delay(opts.InitialDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.RetryIf(func(err error) bool {
			return IsPropagating(err, broadcastID, streamID)
		}),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("Bind not ready, retrying",
				"attempt", n+1,
				"broadcast_id", broadcastID,
				"stream_id", streamID,
				"error", err)
		}),
	)
	if err != nil {
		return &BindError{BroadcastID: broadcastID, StreamID: streamID, Attempts: attempts, Err: err}
	}
	if attempts > 1 {
		logger.Info("Bind succeeded after retry", "broadcast_id", broadcastID, "attempts", attempts)
	}
	return nil
}
