// Package storage persists the symbol index.
package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"iresolve/internal/errors"
	"iresolve/internal/index"
)

// ErrNotFound means no index has been stored yet. It is distinct from a
// stored index that happens to be empty.
var ErrNotFound = stderrors.New("index not found")

// Store loads and saves one index. Save is the only writer: it holds the
// index lock and replaces the stored record atomically.
type Store interface {
	Load(ctx context.Context) (*index.Index, error)
	Save(ctx context.Context, idx *index.Index) error
	Location() string
}

// Format names a storage backend.
type Format string

const (
	FormatJSON     Format = "json"
	FormatJSONZstd Format = "json.zst"
	FormatSQLite   Format = "sqlite"
)

const defaultFileMode = 0644

// FormatOf picks the backend for a location by its extension. Anything
// unrecognised is plain JSON.
func FormatOf(location string) Format {
	lower := strings.ToLower(location)
	switch {
	case strings.HasSuffix(lower, ".zst"):
		return FormatJSONZstd
	case strings.HasSuffix(lower, ".db"), strings.HasSuffix(lower, ".sqlite"):
		return FormatSQLite
	default:
		return FormatJSON
	}
}

// Open returns the store for location.
func Open(location string, logger *slog.Logger) (Store, error) {
	if location == "" {
		return nil, fmt.Errorf("index location is empty")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if FormatOf(location) == FormatSQLite {
		s := NewSQLiteStore(location)
		s.logger = logger
		return s, nil
	}
	s := NewJSONStore(location, FormatOf(location) == FormatJSONZstd)
	s.logger = logger
	return s, nil
}

// Exists reports whether a record is stored at location.
func Exists(location string) bool {
	info, err := os.Stat(location)
	return err == nil && !info.IsDir()
}

func notFound(location string) error {
	return errors.New(errors.IndexMissing,
		fmt.Sprintf("no index at %s", location), ErrNotFound).
		WithDetails(map[string]string{"location": location})
}

func corrupt(location string, cause error) error {
	return errors.New(errors.IndexCorrupt,
		fmt.Sprintf("index at %s is unreadable", location), cause).
		WithDetails(map[string]string{"location": location})
}

// writeAtomic writes through a temp file in the target directory, syncs
// it, and renames it over path. Readers see the old or the new record,
// never a partial one.
func writeAtomic(path string, write func(io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = write(tmp); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err = os.Chmod(tmp.Name(), defaultFileMode); err != nil {
		return fmt.Errorf("setting index permissions: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing index: %w", err)
	}
	return nil
}
