package symbols

import (
	"context"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"iresolve/internal/modules"
)

// ExtractionKind records how a module's symbols were obtained.
type ExtractionKind string

const (
	KindFile    ExtractionKind = "file"
	KindLive    ExtractionKind = "live"
	KindDenied  ExtractionKind = "denied"
	KindFailed  ExtractionKind = "failed"
	KindSkipped ExtractionKind = "skipped"
)

// AllKinds lists every extraction kind, for metrics and stats.
var AllKinds = []ExtractionKind{KindFile, KindLive, KindDenied, KindFailed, KindSkipped}

// Extraction is the result for one module.
type Extraction struct {
	Symbols []string
	Kind    ExtractionKind
}

// Loader produces a module's attribute names by importing it.
type Loader interface {
	Attributes(ctx context.Context, module string) ([]string, error)
}

// ModuleExtractor reads a module's symbols from its source file, or from a
// live import when no source exists.
type ModuleExtractor struct {
	Source   SourceExtractor
	Loader   Loader
	Denylist *regexp.Regexp

	// MaxFileSize skips larger source files. Zero means no limit.
	MaxFileSize int64

	Logger *slog.Logger
}

// Extract never fails: problems with one module produce an empty
// extraction with a failed or skipped kind.
func (m *ModuleExtractor) Extract(ctx context.Context, d modules.Descriptor) Extraction {
	logger := m.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if d.HasSource() {
		return m.fromFile(ctx, d, logger)
	}

	if modules.Denied(m.Denylist, d.Name) {
		return Extraction{Kind: KindDenied}
	}
	if m.Loader == nil {
		return Extraction{Kind: KindSkipped}
	}

	attrs, err := m.Loader.Attributes(ctx, d.Name)
	if err != nil {
		logger.Debug("live load failed", "module", d.Name, "error", err)
		return Extraction{Kind: KindFailed}
	}
	var names []string
	for _, a := range attrs {
		if !strings.HasPrefix(a, "__") {
			names = append(names, a)
		}
	}
	return Extraction{Symbols: names, Kind: KindLive}
}

func (m *ModuleExtractor) fromFile(ctx context.Context, d modules.Descriptor, logger *slog.Logger) Extraction {
	if m.MaxFileSize > 0 {
		info, err := os.Stat(d.SourcePath)
		if err != nil {
			logger.Debug("cannot stat module source", "module", d.Name, "path", d.SourcePath, "error", err)
			return Extraction{Kind: KindFailed}
		}
		if info.Size() > m.MaxFileSize {
			logger.Debug("module source too large", "module", d.Name, "size", info.Size())
			return Extraction{Kind: KindSkipped}
		}
	}

	source, err := os.ReadFile(d.SourcePath)
	if err != nil {
		logger.Debug("cannot read module source", "module", d.Name, "path", d.SourcePath, "error", err)
		return Extraction{Kind: KindFailed}
	}

	src := m.Source
	if src == nil {
		src = TextExtractor{}
	}
	return Extraction{Symbols: src.ExtractSource(ctx, source), Kind: KindFile}
}
