package resolver

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"testing"

	"iresolve/internal/config"
	"iresolve/internal/detector"
	ierrors "iresolve/internal/errors"
	"iresolve/internal/index"
	"iresolve/internal/pyenv"
	"iresolve/internal/storage"
	"iresolve/internal/suggest"
)

const python = "/usr/bin/python3"

type exitErr int

func (e exitErr) Error() string { return "exit status" }
func (e exitErr) ExitCode() int { return int(e) }

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

type fixture struct {
	site   string
	input  string
	index  string
	cfg    *config.Config
	runner *pyenv.MockRunner
}

// newFixture lays out a site-packages root and an input file whose
// pyflakes report is the given output.
func newFixture(t *testing.T, pyflakesOutput string) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		site:  filepath.Join(dir, "site"),
		input: filepath.Join(dir, "project", "app.py"),
		index: filepath.Join(dir, "cache", "modules.json"),
	}
	writeFiles(t, f.site, map[string]string{
		"pkgA/__init__.py": "class Foo:\n    pass\n",
		"pkgB.py":          "def bar():\n    pass\n",
		"pkgC.py":          "bar = 1\n",
		"_speedups.so":     "\x7fELF",
		"_broken.so":       "\x7fELF",
	})
	writeFiles(t, filepath.Dir(f.input), map[string]string{"app.py": "Foo()\n"})

	f.cfg = config.DefaultConfig()
	f.cfg.Python.Interpreter = "python3"
	f.cfg.Python.SearchPath = []string{f.site}
	f.cfg.Index.Workers = 2

	f.runner = pyenv.NewMockRunner()
	f.runner.SetLookPath("python3", python)
	f.runner.SetCommand(python+" "+f.input, pyflakesOutput, "", exitErr(1))
	f.runner.SetCommand(python+" _speedups", "\x1eiresolve:"+`["__doc__", "fast_path"]`, "", nil)
	return f
}

func (f *fixture) engine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithRunner(f.runner)}, opts...)
	e, err := New(f.cfg, f.index, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return e
}

func (f *fixture) report(names ...string) string {
	out := ""
	for i, n := range names {
		out += f.input + ":" + string(rune('1'+i)) + ":1: undefined name '" + n + "'\n"
	}
	return out
}

func TestResolve_BuildsMissingIndex(t *testing.T) {
	f := newFixture(t, "")
	f.runner.SetCommand(python+" "+f.input, f.report("Foo", "baz"), "", exitErr(1))

	resp, err := f.engine(t).Resolve(context.Background(), Request{Input: f.input})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	want := suggest.Result{"Foo": {Paths: []string{"pkgA"}, Lineno: []suggest.Position{{Line: 1, Col: 0}}}}
	if !reflect.DeepEqual(resp.Result, want) {
		t.Errorf("Result = %+v, want %+v", resp.Result, want)
	}
	if !resp.Built || resp.Extended {
		t.Errorf("Built = %v, Extended = %v", resp.Built, resp.Extended)
	}
	if resp.Unresolved != 2 {
		t.Errorf("Unresolved = %d, want 2", resp.Unresolved)
	}

	if !storage.Exists(f.index) {
		t.Fatal("index was not saved")
	}
	meta, err := index.LoadMeta(f.index)
	if err != nil || meta == nil {
		t.Fatalf("LoadMeta = %v, %v", meta, err)
	}
	if meta.Mode != index.ModeRebuild || meta.Interpreter != python {
		t.Errorf("meta = %+v", meta)
	}
	if !reflect.DeepEqual(meta.Roots, []string{f.site}) {
		t.Errorf("meta.Roots = %v", meta.Roots)
	}
}

func TestResolve_UsesStoredIndex(t *testing.T) {
	f := newFixture(t, "")
	f.runner.SetCommand(python+" "+f.input, f.report("Foo"), "", exitErr(1))

	stored := index.FromMap(map[string][]string{"Foo": {"stored.mod"}})
	if err := storage.NewJSONStore(f.index, false).Save(context.Background(), stored); err != nil {
		t.Fatal(err)
	}

	resp, err := f.engine(t).Resolve(context.Background(), Request{Input: f.input})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if resp.Built {
		t.Error("stored index should not be rebuilt")
	}
	if got := resp.Result["Foo"].Paths; !reflect.DeepEqual(got, []string{"stored.mod"}) {
		t.Errorf("Foo paths = %v", got)
	}
	for _, c := range f.runner.Calls() {
		if c.Args[len(c.Args)-1] == "_speedups" {
			t.Error("no module should be loaded when the index is stored")
		}
	}

	resp, err = f.engine(t).Resolve(context.Background(), Request{Input: f.input, Rebuild: true})
	if err != nil {
		t.Fatalf("Resolve with rebuild failed: %v", err)
	}
	if !resp.Built {
		t.Error("Rebuild should build")
	}
	if got := resp.Result["Foo"].Paths; !reflect.DeepEqual(got, []string{"pkgA"}) {
		t.Errorf("Foo paths after rebuild = %v", got)
	}
}

func TestResolve_LiveLoad(t *testing.T) {
	f := newFixture(t, "")
	f.runner.SetCommand(python+" "+f.input, f.report("fast_path", "__doc__"), "", exitErr(1))

	resp, err := f.engine(t).Resolve(context.Background(), Request{Input: f.input})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got := resp.Result["fast_path"].Paths; !reflect.DeepEqual(got, []string{"_speedups"}) {
		t.Errorf("fast_path paths = %v", got)
	}
	if _, ok := resp.Result["__doc__"]; ok {
		t.Error("dunder attributes of live modules should not be indexed")
	}
}

func TestResolve_LiveLoadDisabled(t *testing.T) {
	f := newFixture(t, "")
	f.cfg.Python.LiveLoad = false
	f.runner.SetCommand(python+" "+f.input, f.report("fast_path"), "", exitErr(1))

	resp, err := f.engine(t).Resolve(context.Background(), Request{Input: f.input})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(resp.Result) != 0 {
		t.Errorf("Result = %v, want empty", resp.Result)
	}
}

func TestResolve_SortPaths(t *testing.T) {
	f := newFixture(t, "")
	other := filepath.Join(filepath.Dir(f.site), "other")
	writeFiles(t, other, map[string]string{"aaa.py": "def bar():\n    pass\n"})
	f.cfg.Python.SearchPath = []string{f.site, other}
	f.runner.SetCommand(python+" "+f.input, f.report("bar"), "", exitErr(1))

	e := f.engine(t)
	resp, err := e.Resolve(context.Background(), Request{Input: f.input})
	if err != nil {
		t.Fatal(err)
	}
	if got := resp.Result["bar"].Paths; !reflect.DeepEqual(got, []string{"pkgB", "pkgC", "aaa"}) {
		t.Errorf("bar paths = %v, want enumeration order", got)
	}

	resp, err = e.Resolve(context.Background(), Request{Input: f.input, SortPaths: true})
	if err != nil {
		t.Fatal(err)
	}
	if got := resp.Result["bar"].Paths; !reflect.DeepEqual(got, []string{"aaa", "pkgB", "pkgC"}) {
		t.Errorf("sorted bar paths = %v", got)
	}
}

func TestResolve_ProjectConfigExtends(t *testing.T) {
	f := newFixture(t, "")
	project := filepath.Dir(f.input)
	writeFiles(t, project, map[string]string{
		"iresolve.json":    `{"path": "vendor"}`,
		"vendor/vended.py": "class Vended:\n    pass\n",
	})
	f.runner.SetCommand(python+" "+f.input, f.report("Vended", "Foo"), "", exitErr(1))

	resp, err := f.engine(t).Resolve(context.Background(), Request{Input: f.input})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !resp.Extended || resp.LocalConfig == nil {
		t.Fatalf("Extended = %v, LocalConfig = %v", resp.Extended, resp.LocalConfig)
	}
	if got := resp.Result["Vended"].Paths; !reflect.DeepEqual(got, []string{"vended"}) {
		t.Errorf("Vended paths = %v", got)
	}
	if got := resp.Result["Foo"].Paths; !reflect.DeepEqual(got, []string{"pkgA"}) {
		t.Errorf("Foo paths = %v", got)
	}

	stored, err := storage.NewJSONStore(f.index, false).Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stored.Has("Vended") {
		t.Error("extension should stay in memory unless SaveExtended is set")
	}

	if _, err := f.engine(t).Resolve(context.Background(), Request{Input: f.input, SaveExtended: true}); err != nil {
		t.Fatal(err)
	}
	stored, err = storage.NewJSONStore(f.index, false).Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !stored.Has("Vended") || !stored.Has("Foo") {
		t.Errorf("saved extension = %v", stored.Symbols())
	}
	meta, _ := index.LoadMeta(f.index)
	if meta == nil || meta.Mode != index.ModeExtend {
		t.Errorf("meta = %+v, want extend mode", meta)
	}
}

func TestResolve_ExtraPathsAreImportableForLiveLoads(t *testing.T) {
	f := newFixture(t, "")
	extra := filepath.Join(filepath.Dir(f.site), "extra")
	writeFiles(t, extra, map[string]string{"plugin.py": "def hook():\n    pass\n"})
	f.runner.SetCommand(python+" "+f.input, f.report("hook"), "", exitErr(1))

	resp, err := f.engine(t).Resolve(context.Background(), Request{Input: f.input, ExtraPaths: []string{extra}})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got := resp.Result["hook"].Paths; !reflect.DeepEqual(got, []string{"plugin"}) {
		t.Errorf("hook paths = %v", got)
	}

	loads := 0
	for _, c := range f.runner.Calls() {
		if c.Args[len(c.Args)-1] != "_speedups" {
			continue
		}
		loads++
		if len(c.Env) != 1 || c.Env[0] != "IRESOLVE_EXTRA_PATH="+extra {
			t.Errorf("env = %v", c.Env)
		}
	}
	if loads != 1 {
		t.Errorf("_speedups loaded %d times, want once across build and extend", loads)
	}
}

func TestResolve_DetectorFailure(t *testing.T) {
	f := newFixture(t, "")
	f.runner.SetCommand(python+" "+f.input, "", "/usr/bin/python3: No module named pyflakes", exitErr(1))

	_, err := f.engine(t).Resolve(context.Background(), Request{Input: f.input})
	if !ierrors.HasCode(err, ierrors.DetectorFailed) {
		t.Errorf("err = %v, want DETECTOR_FAILED", err)
	}
	if storage.Exists(f.index) {
		t.Error("no index should be built when detection fails")
	}
}

func TestResolve_ReportFileNeedsNoInterpreter(t *testing.T) {
	f := newFixture(t, "")
	f.cfg.Python.LiveLoad = false
	f.runner = pyenv.NewMockRunner()

	report := filepath.Join(t.TempDir(), "report.json")
	writeFiles(t, filepath.Dir(report), map[string]string{"report.json": `{"bar": [[4, 2]]}`})

	resp, err := f.engine(t, WithDetector(detector.ReportFile{Path: report})).
		Resolve(context.Background(), Request{Input: f.input})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	want := suggest.Result{"bar": {Paths: []string{"pkgB", "pkgC"}, Lineno: []suggest.Position{{Line: 4, Col: 2}}}}
	if !reflect.DeepEqual(resp.Result, want) {
		t.Errorf("Result = %+v", resp.Result)
	}
	if n := len(f.runner.Calls()); n != 0 {
		t.Errorf("runner called %d times", n)
	}
}

func TestResolve_NoInterpreter(t *testing.T) {
	f := newFixture(t, "")
	f.runner = pyenv.NewMockRunner()

	_, err := f.engine(t).Resolve(context.Background(), Request{Input: f.input})
	if !ierrors.HasCode(err, ierrors.InterpreterUnavailable) {
		t.Errorf("err = %v, want INTERPRETER_UNAVAILABLE", err)
	}
}

func TestResolve_InvalidProjectConfig(t *testing.T) {
	f := newFixture(t, "")
	writeFiles(t, filepath.Dir(f.input), map[string]string{"iresolve.json": `{"path": `})

	_, err := f.engine(t).Resolve(context.Background(), Request{Input: f.input})
	if !ierrors.HasCode(err, ierrors.ConfigInvalid) {
		t.Errorf("err = %v, want CONFIG_INVALID", err)
	}
}

func TestResolve_DetectVenv(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("venv layout differs on windows")
	}
	t.Setenv("VIRTUAL_ENV", "")

	f := newFixture(t, "")
	f.cfg.Python.Interpreter = ""
	f.cfg.Python.DetectVenv = true
	f.cfg.Python.LiveLoad = false
	venvPython := filepath.Join(filepath.Dir(f.input), ".venv", "bin", "python")
	writeFiles(t, filepath.Dir(venvPython), map[string]string{"python": ""})
	f.runner.SetCommand(venvPython+" "+f.input, f.report("Foo"), "", exitErr(1))

	resp, err := f.engine(t).Resolve(context.Background(), Request{Input: f.input})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if _, ok := resp.Result["Foo"]; !ok {
		t.Errorf("Result = %v", resp.Result)
	}
	if calls := f.runner.Calls(); len(calls) == 0 || calls[0].Name != venvPython {
		t.Errorf("calls = %+v, want the venv interpreter", calls)
	}
}

func TestResolve_SearchPathFromInterpreter(t *testing.T) {
	f := newFixture(t, "")
	f.cfg.Python.SearchPath = nil
	f.runner.SetCommand(python+" "+f.input, f.report("Foo"), "", exitErr(1))
	// Calls with no more specific key, the sys.path query among them, get this.
	f.runner.SetCommand(python, "\x1eiresolve:"+`["", "`+filepath.ToSlash(f.site)+`"]`, "", nil)

	resp, err := f.engine(t).Resolve(context.Background(), Request{Input: f.input})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got := resp.Result["Foo"].Paths; !reflect.DeepEqual(got, []string{"pkgA"}) {
		t.Errorf("Foo paths = %v", got)
	}
}

func TestIndex_RebuildThenExtend(t *testing.T) {
	f := newFixture(t, "")
	e := f.engine(t, WithMetrics(index.NewMetrics()))
	ctx := context.Background()

	resp, err := e.Index(ctx, IndexRequest{})
	if err != nil {
		t.Fatalf("Index failed: %v", err)
	}
	if resp.Meta.Mode != index.ModeRebuild {
		t.Errorf("Mode = %s", resp.Meta.Mode)
	}
	if resp.Stats.Modules != 5 {
		t.Errorf("Modules = %d, want 5", resp.Stats.Modules)
	}

	extra := filepath.Join(filepath.Dir(f.site), "extra")
	writeFiles(t, extra, map[string]string{"plugin.py": "def hook():\n    pass\n"})
	resp, err = e.Index(ctx, IndexRequest{ExtraPaths: []string{extra}})
	if err != nil {
		t.Fatalf("Index extend failed: %v", err)
	}
	if resp.Meta.Mode != index.ModeExtend || !reflect.DeepEqual(resp.Meta.ExtraRoots, []string{extra}) {
		t.Errorf("meta = %+v", resp.Meta)
	}

	got, err := e.Lookup(ctx, []string{"hook", "Foo", "missing"})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string][]string{"hook": {"plugin"}, "Foo": {"pkgA"}, "missing": nil}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Lookup = %v, want %v", got, want)
	}

	resp, err = e.Index(ctx, IndexRequest{Rebuild: true})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Meta.Mode != index.ModeRebuild {
		t.Errorf("Mode = %s", resp.Meta.Mode)
	}
	got, _ = e.Lookup(ctx, []string{"hook"})
	if got["hook"] != nil {
		t.Errorf("rebuild without extras should drop hook, got %v", got["hook"])
	}
}

func TestLookup_Missing(t *testing.T) {
	f := newFixture(t, "")
	_, err := f.engine(t).Lookup(context.Background(), []string{"Foo"})
	if !ierrors.HasCode(err, ierrors.IndexMissing) {
		t.Errorf("err = %v, want INDEX_MISSING", err)
	}
}

func TestStatus(t *testing.T) {
	f := newFixture(t, "")
	e := f.engine(t)

	st, err := e.Status("")
	if err != nil {
		t.Fatal(err)
	}
	if st.Exists || st.Freshness.Fresh || st.Meta != nil {
		t.Errorf("status before build = %+v", st)
	}
	if st.Location != f.index || st.Format != storage.FormatJSON {
		t.Errorf("Location = %s, Format = %s", st.Location, st.Format)
	}

	if _, err := e.Index(context.Background(), IndexRequest{}); err != nil {
		t.Fatal(err)
	}
	st, err = e.Status(filepath.Dir(f.input))
	if err != nil {
		t.Fatal(err)
	}
	if !st.Exists || !st.Freshness.Fresh || st.Meta == nil {
		t.Errorf("status after build = %+v", st)
	}
	if st.Python == nil {
		t.Error("project dir should report the python environment")
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := map[string]func(*config.Config){
		"extractor": func(c *config.Config) { c.Index.Extractor = "magic" },
		"denylist":  func(c *config.Config) { c.Index.Denylist = []string{"("} },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			mutate(cfg)
			_, err := New(cfg, filepath.Join(t.TempDir(), "modules.json"))
			if !ierrors.HasCode(err, ierrors.ConfigInvalid) {
				t.Errorf("err = %v, want CONFIG_INVALID", err)
			}
		})
	}
}
