package index

import (
	"context"
	stderrors "errors"
	"log/slog"
	"regexp"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"iresolve/internal/modules"
	"iresolve/internal/symbols"
)

// Extractor produces one module's symbols. symbols.ModuleExtractor is the
// production implementation.
type Extractor interface {
	Extract(ctx context.Context, d modules.Descriptor) symbols.Extraction
}

// BuildStats summarizes one build.
type BuildStats struct {
	Modules  int                            `json:"modules"`
	Symbols  int                            `json:"symbols"`
	ByKind   map[symbols.ExtractionKind]int `json:"byKind"`
	Duration time.Duration                  `json:"duration"`

	// Truncated is set when the build deadline passed before enumeration finished.
	Truncated bool `json:"truncated,omitempty"`

	// Limited is set when MaxModules stopped enumeration.
	Limited bool `json:"limited,omitempty"`
}

// Builder turns search roots into an Index.
type Builder struct {
	Extractor Extractor
	Denylist  *regexp.Regexp

	// Workers is the number of concurrent extractions. Zero uses NumCPU.
	Workers int

	// MaxModules stops enumeration after this many modules. Zero means no limit.
	MaxModules int

	Logger  *slog.Logger
	Metrics *Metrics
}

type buildJob struct {
	seq int
	d   modules.Descriptor
}

type buildResult struct {
	seq int
	d   modules.Descriptor
	ext symbols.Extraction
}

// Build enumerates roots and extracts every module. Extraction runs on a
// worker pool while a single writer applies results in enumeration order,
// so the index matches a sequential build exactly.
//
// If ctx's deadline passes, the partial index built so far is returned
// with Truncated set and no error. Any other cancellation returns ctx.Err().
func (b *Builder) Build(ctx context.Context, roots []string) (*Index, BuildStats, error) {
	start := time.Now()
	logger := b.logger()

	workers := b.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	idx := New()
	stats := BuildStats{ByKind: make(map[symbols.ExtractionKind]int)}

	enum := modules.NewEnumerator(roots, b.Denylist, logger)
	jobs := make(chan buildJob, workers)
	results := make(chan buildResult, workers)

	g, gctx := errgroup.WithContext(ctx)

	var limited bool
	g.Go(func() error {
		defer close(jobs)
		seq := 0
		for d := range enum.Enumerate(gctx) {
			if b.MaxModules > 0 && seq >= b.MaxModules {
				limited = true
				return nil
			}
			select {
			case jobs <- buildJob{seq: seq, d: d}:
				seq++
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return gctx.Err()
	})

	for range workers {
		g.Go(func() error {
			for j := range jobs {
				ext := b.Extractor.Extract(gctx, j.d)
				if gctx.Err() != nil {
					// Drop extractions interrupted by cancellation.
					return gctx.Err()
				}
				select {
				case results <- buildResult{seq: j.seq, d: j.d, ext: ext}:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}

	var groupErr error
	go func() {
		groupErr = g.Wait()
		close(results)
	}()

	pending := make(map[int]buildResult)
	next := 0
	for r := range results {
		pending[r.seq] = r
		for {
			ready, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			b.apply(idx, &stats, ready)
			if stats.Modules%1000 == 0 {
				logger.Debug("index progress", "modules", stats.Modules, "symbols", idx.Len())
			}
		}
	}

	stats.Limited = limited
	stats.Symbols = idx.Len()
	stats.Duration = time.Since(start)

	if groupErr != nil || ctx.Err() != nil {
		err := ctx.Err()
		if err == nil {
			err = groupErr
		}
		if stderrors.Is(err, context.DeadlineExceeded) {
			stats.Truncated = true
			logger.Warn("index build deadline reached, index is partial",
				"modules", stats.Modules, "symbols", stats.Symbols)
			b.Metrics.Observe(stats)
			return idx, stats, nil
		}
		return idx, stats, err
	}

	logger.Info("index built",
		"modules", stats.Modules,
		"symbols", stats.Symbols,
		"failed", stats.ByKind[symbols.KindFailed],
		"duration", stats.Duration.Round(time.Millisecond))
	b.Metrics.Observe(stats)
	return idx, stats, nil
}

func (b *Builder) apply(idx *Index, stats *BuildStats, r buildResult) {
	stats.Modules++
	stats.ByKind[r.ext.Kind]++
	for _, sym := range r.ext.Symbols {
		idx.Add(sym, r.d.Name)
	}
}

func (b *Builder) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.New(slog.DiscardHandler)
}
