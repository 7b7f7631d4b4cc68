package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/klauspost/compress/zstd"

	"iresolve/internal/index"
)

// JSONStore keeps the index as one flat JSON object, optionally
// zstd-compressed.
type JSONStore struct {
	path     string
	compress bool
	logger   *slog.Logger
}

// NewJSONStore creates a JSON store at path.
func NewJSONStore(path string, compress bool) *JSONStore {
	return &JSONStore{path: path, compress: compress, logger: slog.New(slog.DiscardHandler)}
}

// Location implements Store.
func (s *JSONStore) Location() string {
	return s.path
}

// Load implements Store.
func (s *JSONStore) Load(_ context.Context) (*index.Index, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(s.path)
		}
		return nil, fmt.Errorf("opening index: %w", err)
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	if s.compress {
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, corrupt(s.path, err)
		}
		defer dec.Close()
		r = dec
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, corrupt(s.path, err)
	}

	idx := index.New()
	if err := json.Unmarshal(data, idx); err != nil {
		return nil, corrupt(s.path, err)
	}

	s.logger.Debug("index loaded", "path", s.path, "symbols", idx.Len())
	return idx, nil
}

// Save implements Store.
func (s *JSONStore) Save(_ context.Context, idx *index.Index) error {
	if idx == nil {
		idx = index.New()
	}

	lock, err := index.AcquireLock(s.path)
	if err != nil {
		return err
	}
	defer lock.Release()

	data, err := json.Marshal(idx)
	if err != nil {
		return fmt.Errorf("encoding index: %w", err)
	}

	err = writeAtomic(s.path, func(w io.Writer) error {
		if !s.compress {
			_, err := w.Write(data)
			return err
		}
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return err
		}
		if _, err := enc.Write(data); err != nil {
			_ = enc.Close()
			return err
		}
		return enc.Close()
	})
	if err != nil {
		return err
	}

	s.logger.Debug("index saved", "path", s.path, "symbols", idx.Len(), "compressed", s.compress)
	return nil
}
