// Package resolver ties detection, indexing, and matching into the
// operations the command line exposes.
package resolver

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"

	"iresolve/internal/config"
	"iresolve/internal/detector"
	"iresolve/internal/errors"
	"iresolve/internal/index"
	"iresolve/internal/modules"
	"iresolve/internal/paths"
	"iresolve/internal/project"
	"iresolve/internal/pyenv"
	"iresolve/internal/slogutil"
	"iresolve/internal/storage"
	"iresolve/internal/suggest"
	"iresolve/internal/symbols"
)

// Engine runs resolutions against one index location.
type Engine struct {
	cfg      *config.Config
	logger   *slog.Logger
	runner   pyenv.Runner
	detector detector.Detector
	store    storage.Store
	metrics  *index.Metrics
	denylist *regexp.Regexp

	mu         sync.Mutex
	projectDir string
	interp     *pyenv.Interpreter
	roots      []string
	loader     *pyenv.CachedLoader
	loaderKey  string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default discards.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithRunner replaces the subprocess runner used for the interpreter and
// the detector.
func WithRunner(r pyenv.Runner) Option {
	return func(e *Engine) { e.runner = r }
}

// WithDetector replaces pyflakes.
func WithDetector(d detector.Detector) Option {
	return func(e *Engine) { e.detector = d }
}

// WithStore replaces the store opened from the index location.
func WithStore(s storage.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithMetrics records every build into m.
func WithMetrics(m *index.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an engine for the index stored at indexPath.
func New(cfg *config.Config, indexPath string, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.New(errors.ConfigInvalid, "invalid configuration", err)
	}
	denylist, err := modules.CompileDenylist(cfg.Index.Denylist)
	if err != nil {
		return nil, errors.New(errors.ConfigInvalid, "invalid index.denylist pattern", err)
	}

	e := &Engine{cfg: cfg, denylist: denylist}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slogutil.NewDiscardLogger()
	}
	if e.runner == nil {
		e.runner = pyenv.NewExecRunner(0)
	}
	if e.store == nil {
		s, err := storage.Open(indexPath, e.logger)
		if err != nil {
			return nil, err
		}
		e.store = s
	}
	return e, nil
}

// Location is where the index is stored.
func (e *Engine) Location() string {
	return e.store.Location()
}

// Request is one resolution.
type Request struct {
	// Input is the Python file to check.
	Input string

	// ExtraPaths are additional search roots. Roots from a discovered
	// project configuration are appended.
	ExtraPaths []string

	// Rebuild discards the stored index and builds it again.
	Rebuild bool

	// SortPaths orders each candidate list lexicographically.
	SortPaths bool

	// SaveExtended persists the index extended with extra roots.
	SaveExtended bool
}

// Response is the outcome of Resolve.
type Response struct {
	Result suggest.Result `json:"result"`

	// Unresolved is the number of distinct undefined names detected.
	Unresolved int `json:"unresolved"`

	IndexSymbols int  `json:"indexSymbols"`
	Built        bool `json:"built"`
	Extended     bool `json:"extended"`

	LocalConfig *project.LocalConfig `json:"localConfig,omitempty"`
	ExtraRoots  []string             `json:"extraRoots,omitempty"`
}

// Resolve detects undefined names in the input file and matches them
// against the index. The stored index is built first when missing.
func (e *Engine) Resolve(ctx context.Context, req Request) (*Response, error) {
	input, err := filepath.Abs(req.Input)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", req.Input, err)
	}

	local, err := project.Discover(filepath.Dir(input))
	if err != nil {
		return nil, errors.New(errors.ConfigInvalid, "invalid project configuration", err)
	}
	projectDir := filepath.Dir(input)
	extras := slices.Clone(req.ExtraPaths)
	if local != nil {
		e.logger.Debug("project configuration found", "file", local.File, "paths", local.Paths)
		projectDir = local.Dir()
		extras = append(extras, local.Paths...)
	}

	e.mu.Lock()
	e.projectDir = projectDir
	e.mu.Unlock()

	report, err := e.detect(ctx, input)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("undefined names detected", "count", len(report))

	idx, built, err := e.ensureIndex(ctx, req.Rebuild, extras)
	if err != nil {
		return nil, err
	}

	resp := &Response{Unresolved: len(report), Built: built, LocalConfig: local, ExtraRoots: extras}
	if len(extras) > 0 {
		idx, err = e.extend(ctx, idx, extras, req.SaveExtended)
		if err != nil {
			return nil, err
		}
		resp.Extended = true
	}
	resp.IndexSymbols = idx.Len()

	var opts []suggest.Option
	if req.SortPaths || e.cfg.Index.SortCandidates {
		opts = append(opts, suggest.WithSortedPaths())
	}
	resp.Result = suggest.Match(idx, report, opts...)
	return resp, nil
}

// IndexRequest is an explicit index build.
type IndexRequest struct {
	ExtraPaths []string
	Rebuild    bool
}

// IndexResponse describes the stored result of Index.
type IndexResponse struct {
	Stats index.BuildStats `json:"stats"`
	Meta  *index.IndexMeta `json:"meta"`
}

// Index builds and stores the index. With extra paths and an existing
// index, the stored index is extended; otherwise it is rebuilt over the
// default roots plus any extras.
func (e *Engine) Index(ctx context.Context, req IndexRequest) (*IndexResponse, error) {
	var base *index.Index
	if !req.Rebuild && len(req.ExtraPaths) > 0 {
		loaded, err := e.store.Load(ctx)
		switch {
		case err == nil:
			base = loaded
		case !stderrors.Is(err, storage.ErrNotFound):
			return nil, err
		}
	}

	defaults, err := e.defaultRoots(ctx)
	if err != nil {
		return nil, err
	}
	roots := append(slices.Clone(defaults), req.ExtraPaths...)
	built, stats, err := e.build(ctx, roots, req.ExtraPaths)
	if err != nil {
		return nil, err
	}

	mode := index.ModeRebuild
	idx := built
	if base != nil {
		mode = index.ModeExtend
		idx = index.Merge(base, built)
	}
	meta, err := e.persist(ctx, idx, mode, stats, defaults, req.ExtraPaths)
	if err != nil {
		return nil, err
	}
	return &IndexResponse{Stats: stats, Meta: meta}, nil
}

// Lookup returns the stored candidates for each name. Names the index
// does not know map to nil.
func (e *Engine) Lookup(ctx context.Context, names []string) (map[string][]string, error) {
	idx, err := e.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(names))
	for _, n := range names {
		if !idx.Has(n) {
			out[n] = nil
			continue
		}
		out[n] = slices.Clone(idx.Modules(n))
	}
	return out, nil
}

// Status describes the stored index.
type Status struct {
	Location  string                 `json:"location"`
	Format    storage.Format         `json:"format"`
	Exists    bool                   `json:"exists"`
	Meta      *index.IndexMeta       `json:"meta,omitempty"`
	Freshness index.FreshnessResult  `json:"freshness"`
	Python    *project.PythonEnvInfo `json:"python,omitempty"`
}

// Status reports the index location, its build metadata, and freshness.
// projectDir, when set, adds the Python environment found there.
func (e *Engine) Status(projectDir string) (*Status, error) {
	loc := e.store.Location()
	st := &Status{Location: loc, Format: storage.FormatOf(loc), Exists: storage.Exists(loc)}

	meta, err := index.LoadMeta(loc)
	if err != nil {
		e.logger.Warn("index metadata unreadable", "error", err)
	}
	st.Meta = meta
	if st.Exists {
		st.Freshness = meta.CheckFreshness(e.cfg.MaxIndexAge())
	} else {
		st.Freshness = index.FreshnessResult{Reason: "no index has been built"}
	}

	if projectDir != "" {
		st.Python = project.DetectPythonEnvironment(projectDir)
	}
	return st, nil
}

func (e *Engine) detect(ctx context.Context, input string) (suggest.Report, error) {
	d := e.detector
	if d == nil {
		interp, err := e.interpreter()
		if err != nil {
			return nil, err
		}
		p := detector.NewPyflakes(interp.Path, e.runner, e.logger)
		p.Module = e.cfg.Detector.Module
		d = p
	}
	if t := e.cfg.DetectorTimeout(); t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}
	return d.Detect(ctx, input)
}

// ensureIndex loads the stored index, building and saving it when it is
// missing or a rebuild is requested. loadPath is only made importable for
// live loads; it is not walked.
func (e *Engine) ensureIndex(ctx context.Context, rebuild bool, loadPath []string) (*index.Index, bool, error) {
	if !rebuild {
		idx, err := e.store.Load(ctx)
		if err == nil {
			return idx, false, nil
		}
		if !stderrors.Is(err, storage.ErrNotFound) {
			return nil, false, err
		}
		e.logger.Info("no stored index, building", "location", e.store.Location())
	}

	roots, err := e.defaultRoots(ctx)
	if err != nil {
		return nil, false, err
	}
	idx, stats, err := e.build(ctx, roots, loadPath)
	if err != nil {
		return nil, false, err
	}
	if _, err := e.persist(ctx, idx, index.ModeRebuild, stats, roots, nil); err != nil {
		return nil, false, err
	}
	return idx, true, nil
}

// extend builds over the default roots plus extras and merges the result
// into idx. Default roots come first so their modules keep precedence.
func (e *Engine) extend(ctx context.Context, idx *index.Index, extras []string, save bool) (*index.Index, error) {
	defaults, err := e.defaultRoots(ctx)
	if err != nil {
		return nil, err
	}
	roots := append(slices.Clone(defaults), extras...)
	incoming, stats, err := e.build(ctx, roots, extras)
	if err != nil {
		return nil, err
	}
	idx = index.Merge(idx, incoming)
	if save {
		if _, err := e.persist(ctx, idx, index.ModeExtend, stats, defaults, extras); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

// build indexes roots. loadPath is appended to sys.path for live loads.
func (e *Engine) build(ctx context.Context, roots, loadPath []string) (*index.Index, index.BuildStats, error) {
	loader, err := e.attributeLoader(loadPath)
	if err != nil {
		return nil, index.BuildStats{}, err
	}

	extractor := &symbols.ModuleExtractor{
		Source:      symbols.NewSourceExtractor(e.cfg.Index.Extractor),
		Denylist:    e.denylist,
		MaxFileSize: e.cfg.Index.MaxFileSizeBytes,
		Logger:      e.logger,
	}
	if loader != nil {
		extractor.Loader = loader
	}

	if t := e.cfg.BuildTimeout(); t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	b := &index.Builder{
		Extractor:  extractor,
		Denylist:   e.denylist,
		Workers:    e.cfg.Index.Workers,
		MaxModules: e.cfg.Index.MaxModules,
		Logger:     e.logger,
		Metrics:    e.metrics,
	}
	idx, stats, err := b.Build(ctx, roots)
	if err != nil {
		return nil, stats, err
	}
	return idx, stats, nil
}

func (e *Engine) persist(ctx context.Context, idx *index.Index, mode string, stats index.BuildStats, roots, extras []string) (*index.IndexMeta, error) {
	if err := e.store.Save(ctx, idx); err != nil {
		return nil, err
	}

	meta := index.NewMeta(mode, stats)
	meta.Roots = slices.Clone(roots)
	meta.ExtraRoots = slices.Clone(extras)
	meta.ModuleCount = idx.ModuleCount()
	meta.SymbolCount = idx.Len()
	meta.Extractor = symbols.KindOf(symbols.NewSourceExtractor(e.cfg.Index.Extractor))
	e.mu.Lock()
	if e.interp != nil {
		meta.Interpreter = e.interp.Path
	}
	e.mu.Unlock()
	if err := meta.Save(e.store.Location()); err != nil {
		e.logger.Warn("could not write index metadata", "error", err)
	}

	e.logger.Info("index saved",
		"location", e.store.Location(),
		"mode", mode,
		"symbols", meta.SymbolCount,
		"modules", meta.ModuleCount,
		"duration", meta.Duration,
	)
	return meta, nil
}

// defaultRoots are the configured search path, or the interpreter's
// sys.path when none is configured. The interpreter is asked once.
func (e *Engine) defaultRoots(ctx context.Context) ([]string, error) {
	if len(e.cfg.Python.SearchPath) > 0 {
		roots := make([]string, 0, len(e.cfg.Python.SearchPath))
		for _, r := range e.cfg.Python.SearchPath {
			roots = append(roots, paths.ExpandHome(r))
		}
		return roots, nil
	}

	interp, err := e.interpreter()
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	cached := e.roots
	e.mu.Unlock()
	if cached != nil {
		return slices.Clone(cached), nil
	}

	roots, err := interp.SearchPath(ctx)
	if err != nil {
		return nil, errors.New(errors.InterpreterUnavailable,
			fmt.Sprintf("could not read sys.path from %s", interp.Path), err)
	}
	e.logger.Debug("interpreter search path", "interpreter", interp.Path, "roots", roots)

	e.mu.Lock()
	e.roots = slices.Clone(roots)
	e.mu.Unlock()
	return roots, nil
}

// interpreter finds the Python executable once per engine. The project
// directory of the input is searched for a virtualenv when detectVenv is on.
func (e *Engine) interpreter() (*pyenv.Interpreter, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.interp != nil {
		return e.interp, nil
	}

	configured := e.cfg.Python.Interpreter
	if configured == "" && e.cfg.Python.DetectVenv && e.projectDir != "" {
		if venv := project.DetectPythonEnvironment(e.projectDir).Interpreter(); venv != "" {
			e.logger.Debug("using project virtualenv", "interpreter", venv)
			configured = venv
		}
	}

	interp, err := pyenv.Find(e.runner, paths.ExpandHome(configured))
	if err != nil {
		return nil, err
	}
	interp.Timeout = e.cfg.QueryTimeout()
	e.interp = interp
	return interp, nil
}

// attributeLoader returns the memoized live loader for loadPath, or nil
// when live loads are off. Extra roots follow the defaults on sys.path, so
// a default-root module imports the same way with them present.
func (e *Engine) attributeLoader(loadPath []string) (*pyenv.CachedLoader, error) {
	if !e.cfg.Python.LiveLoad {
		return nil, nil
	}
	interp, err := e.interpreter()
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	key := strings.Join(loadPath, "\x00")
	if e.loader != nil && key == e.loaderKey {
		return e.loader, nil
	}

	load := interp.WithExtraPath(loadPath)
	load.Timeout = e.cfg.LoadTimeout()
	loader, err := pyenv.NewCachedLoader(load, e.cfg.Python.LoaderCacheSize)
	if err != nil {
		return nil, err
	}
	e.loader = loader
	e.loaderKey = key
	return loader, nil
}
