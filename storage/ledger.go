package storage

import (
	"context"
	"fmt"
	"log/slog"

	json "github.com/goccy/go-json"
)

// LedgerKey is the property holding the posted-stream ledger.
const LedgerKey = "FB_POSTED_STREAMS"

// Properties is the flat key-value store the ledger lives in.
type Properties interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// Ledger records which streams were already posted to Facebook.
// Entries are keyed by stream URL (or day when a stream has no URL) and never expire.
type Ledger struct {
	props  Properties
	logger *slog.Logger
}

// NewLedger creates a ledger over props.
func NewLedger(props Properties, logger *slog.Logger) *Ledger {
	return &Ledger{props: props, logger: logger}
}

// Posted reports whether id was marked posted.
func (l *Ledger) Posted(ctx context.Context, id string) (bool, error) {
	entries, err := l.load(ctx)
	if err != nil {
		return false, err
	}
	return entries[id], nil
}

// MarkPosted records id as posted.
func (l *Ledger) MarkPosted(ctx context.Context, id string) error {
	entries, err := l.load(ctx)
	if err != nil {
		return err
	}
	entries[id] = true

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}
	if err := l.props.Set(ctx, LedgerKey, string(data)); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	l.logger.Info("Marked stream as posted", "id", id, "entries", len(entries))
	return nil
}

// load reads the ledger. A missing or unreadable value starts an empty ledger.
func (l *Ledger) load(ctx context.Context) (map[string]bool, error) {
	raw, err := l.props.Get(ctx, LedgerKey)
	if IsNotFound(err) || (err == nil && raw == "") {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	entries := map[string]bool{}
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		l.logger.Warn("Ignoring corrupt posted-stream ledger", "key", LedgerKey, "error", err)
		return map[string]bool{}, nil
	}
	if entries == nil {
		entries = map[string]bool{}
	}
	return entries, nil
}
