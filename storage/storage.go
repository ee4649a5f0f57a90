// Package storage persists the flat property store used for the posted-stream ledger and runtime state.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/codeGROOVE-dev/retry"
	"github.com/spf13/afero"
	"google.golang.org/api/iterator"
)

// objectPrefix namespaces property objects inside a shared bucket.
const objectPrefix = "props/"

var keyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]{0,127}$`)

// ErrNotFound is returned when a property has never been set.
var ErrNotFound = errors.New("storage: property not found")

// Store keeps string properties in Cloud Storage or a local directory.
type Store struct {
	client    *storage.Client
	fs        afero.Fs
	logger    *slog.Logger
	localPath string
	bucket    string
}

// NewGCS creates a store backed by a Cloud Storage bucket.
func NewGCS(client *storage.Client, bucket string, logger *slog.Logger) *Store {
	return &Store{
		client: client,
		bucket: bucket,
		logger: logger,
	}
}

// NewLocal creates a store backed by a directory on fs.
func NewLocal(fs afero.Fs, localPath string, logger *slog.Logger) (*Store, error) {
	if err := fs.MkdirAll(localPath, 0o755); err != nil {
		return nil, fmt.Errorf("create local storage directory: %w", err)
	}
	return &Store{
		fs:        fs,
		localPath: localPath,
		logger:    logger,
	}, nil
}

// ValidKey reports whether key is a safe property name (upper-case, digits, underscores).
// Keys become file and object names, so anything else is rejected.
func ValidKey(key string) bool {
	return keyPattern.MatchString(key)
}

func (s *Store) local() bool {
	return s.fs != nil
}

// Get returns the value stored under key, or ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if !ValidKey(key) {
		return "", fmt.Errorf("invalid property key %q", key)
	}

	if s.local() {
		data, err := afero.ReadFile(s.fs, filepath.Join(s.localPath, key))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return "", ErrNotFound
			}
			return "", fmt.Errorf("read from local storage: %w", err)
		}
		return string(data), nil
	}

	var data []byte
	notFound := false
	err := retry.Do(
		func() error {
			r, openErr := s.client.Bucket(s.bucket).Object(objectPrefix + key).NewReader(ctx)
			if openErr != nil {
				if errors.Is(openErr, storage.ErrObjectNotExist) {
					notFound = true
					return retry.Unrecoverable(fmt.Errorf("open storage reader: %w", openErr))
				}
				return fmt.Errorf("open storage reader: %w", openErr)
			}
			defer func() {
				if closeErr := r.Close(); closeErr != nil {
					s.logger.Warn("Failed to close storage reader", "error", closeErr)
				}
			}()

			var readErr error
			data, readErr = io.ReadAll(r)
			if readErr != nil {
				return fmt.Errorf("read from storage: %w", readErr)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(2*time.Minute),
		retry.MaxJitter(10*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			s.logger.Info("Retrying property read after error", "attempt", n, "key", key, "error", retryErr)
		}),
	)
	if notFound {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load after retries: %w", err)
	}
	return string(data), nil
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if !ValidKey(key) {
		return fmt.Errorf("invalid property key %q", key)
	}
	s.logger.Debug("Saving property", "key", key, "bytes", len(value))

	if s.local() {
		filePath := filepath.Join(s.localPath, key)
		if err := afero.WriteFile(s.fs, filePath, []byte(value), 0o600); err != nil {
			return fmt.Errorf("write to local storage: %w", err)
		}
		s.logger.Info("Property saved to local storage", "path", filePath, "key", key)
		return nil
	}

	err := retry.Do(
		func() error {
			w := s.client.Bucket(s.bucket).Object(objectPrefix + key).NewWriter(ctx)
			w.ContentType = "text/plain; charset=utf-8"
			if _, writeErr := io.WriteString(w, value); writeErr != nil {
				if closeErr := w.Close(); closeErr != nil {
					s.logger.Warn("Failed to close writer after error", "error", closeErr)
				}
				return fmt.Errorf("write to storage: %w", writeErr)
			}
			if closeErr := w.Close(); closeErr != nil {
				return fmt.Errorf("close storage writer: %w", closeErr)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(2*time.Minute),
		retry.MaxJitter(10*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			s.logger.Info("Retrying property save after error", "attempt", n, "key", key, "error", retryErr)
		}),
	)
	if err != nil {
		return fmt.Errorf("save after retries: %w", err)
	}

	s.logger.Info("Property saved", "key", key, "bucket", s.bucket)
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if !ValidKey(key) {
		return fmt.Errorf("invalid property key %q", key)
	}

	if s.local() {
		if err := s.fs.Remove(filepath.Join(s.localPath, key)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("delete from local storage: %w", err)
		}
		return nil
	}

	err := retry.Do(
		func() error {
			if deleteErr := s.client.Bucket(s.bucket).Object(objectPrefix + key).Delete(ctx); deleteErr != nil {
				if errors.Is(deleteErr, storage.ErrObjectNotExist) {
					return nil
				}
				return fmt.Errorf("delete from storage: %w", deleteErr)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(2*time.Minute),
		retry.MaxJitter(10*time.Second),
		retry.Context(ctx),
	)
	if err != nil {
		return fmt.Errorf("delete after retries: %w", err)
	}
	return nil
}

// Keys lists every stored property name in sorted order.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	var keys []string

	if s.local() {
		entries, err := afero.ReadDir(s.fs, s.localPath)
		if err != nil {
			return nil, fmt.Errorf("read local storage directory: %w", err)
		}
		for _, entry := range entries {
			if !entry.IsDir() && ValidKey(entry.Name()) {
				keys = append(keys, entry.Name())
			}
		}
		slices.Sort(keys)
		return keys, nil
	}

	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: objectPrefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate storage: %w", err)
		}
		if key := strings.TrimPrefix(path.Clean(attrs.Name), objectPrefix); ValidKey(key) {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

// IsNotFound checks if an error indicates a property was never set.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
