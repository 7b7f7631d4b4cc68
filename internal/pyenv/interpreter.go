package pyenv

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"iresolve/internal/errors"
)

// candidates are tried in order when no interpreter is configured.
var candidates = []string{"python3", "python"}

// resultMarker precedes the JSON payload on stdout. Extension modules can
// write to the file descriptor directly, bypassing the redirect.
const resultMarker = "\x1eiresolve:"

// extraPathEnv carries extra roots to attributesScript. PYTHONPATH would
// put them ahead of site-packages.
const extraPathEnv = "IRESOLVE_EXTRA_PATH"

const searchPathScript = `import json, sys
sys.stdout.write("\x1eiresolve:" + json.dumps(sys.path))
`

const attributesScript = `import contextlib, importlib, io, json, os, sys
extra = os.environ.get("IRESOLVE_EXTRA_PATH", "")
sys.path.extend(p for p in extra.split(os.pathsep) if p)
sink = io.StringIO()
with contextlib.redirect_stdout(sink), contextlib.redirect_stderr(sink):
    mod = importlib.import_module(sys.argv[1])
    names = [n for n in dir(mod) if isinstance(n, str)]
sys.stdout.write("\x1eiresolve:" + json.dumps(names))
`

// Interpreter runs queries against one Python executable.
type Interpreter struct {
	Path string

	// Timeout bounds each query. Zero means the caller's context only.
	Timeout time.Duration

	// ExtraPath is appended to sys.path for imports, after the defaults.
	ExtraPath []string

	runner Runner
}

// Find locates the interpreter. A configured path is used as given (or
// looked up when it is a bare name); otherwise python3 then python.
func Find(runner Runner, configured string) (*Interpreter, error) {
	if runner == nil {
		runner = NewExecRunner(0)
	}

	names := candidates
	if configured != "" {
		if strings.ContainsRune(configured, filepath.Separator) {
			if _, err := os.Stat(configured); err != nil {
				return nil, errors.New(errors.InterpreterUnavailable,
					fmt.Sprintf("python interpreter %s not found", configured), err)
			}
			return NewInterpreter(configured, runner), nil
		}
		names = []string{configured}
	}

	var lastErr error
	for _, name := range names {
		path, err := runner.LookPath(name)
		if err == nil {
			return NewInterpreter(path, runner), nil
		}
		lastErr = err
	}
	return nil, errors.New(errors.InterpreterUnavailable,
		fmt.Sprintf("no python interpreter found (tried %s)", strings.Join(names, ", ")), lastErr)
}

// NewInterpreter wraps a known interpreter path.
func NewInterpreter(path string, runner Runner) *Interpreter {
	if runner == nil {
		runner = NewExecRunner(0)
	}
	return &Interpreter{Path: path, runner: runner}
}

// WithExtraPath returns a copy that imports with additional roots.
func (p *Interpreter) WithExtraPath(extra []string) *Interpreter {
	cp := *p
	cp.ExtraPath = append([]string(nil), extra...)
	return &cp
}

// SearchPath returns the interpreter's module search path. The empty
// entry standing for the working directory is dropped.
func (p *Interpreter) SearchPath(ctx context.Context) ([]string, error) {
	var entries []string
	if err := p.query(ctx, nil, &entries, "-c", searchPathScript); err != nil {
		return nil, err
	}
	out := entries[:0]
	for _, e := range entries {
		if e != "" {
			out = append(out, e)
		}
	}
	return out, nil
}

// Attributes imports module in a child interpreter and returns dir() of it.
// The child's own output is discarded. A hang, crash, or import error is
// returned as an error and leaves this process untouched.
func (p *Interpreter) Attributes(ctx context.Context, module string) ([]string, error) {
	var env []string
	if len(p.ExtraPath) > 0 {
		env = []string{extraPathEnv + "=" + strings.Join(p.ExtraPath, string(os.PathListSeparator))}
	}

	var names []string
	if err := p.query(ctx, env, &names, "-B", "-c", attributesScript, module); err != nil {
		return nil, fmt.Errorf("load %s: %w", module, err)
	}
	return names, nil
}

func (p *Interpreter) query(ctx context.Context, env []string, out any, args ...string) error {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	stdout, stderr, err := p.runner.Run(ctx, env, p.Path, args...)
	if err != nil {
		if stderr != "" {
			return fmt.Errorf("%w: %s", err, lastLine(stderr))
		}
		return err
	}

	i := strings.LastIndex(stdout, resultMarker)
	if i < 0 {
		return fmt.Errorf("interpreter produced no result")
	}
	if err := json.Unmarshal([]byte(stdout[i+len(resultMarker):]), out); err != nil {
		return fmt.Errorf("decode interpreter output: %w", err)
	}
	return nil
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
