// Package detector finds the undefined names in a Python source file.
package detector

import (
	"bufio"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"

	"iresolve/internal/errors"
	"iresolve/internal/pyenv"
	"iresolve/internal/suggest"
)

// Detector reports every undefined identifier in a file with its positions.
type Detector interface {
	Detect(ctx context.Context, path string) (suggest.Report, error)
}

// undefinedLine matches pyflakes output. Newer releases print a 1-based
// column after the line; older ones print the line only. The path may
// itself contain colons.
var undefinedLine = regexp.MustCompile(`^.*?:(\d+):(?:(\d+):)?\s+undefined name ['"](.+?)['"]`)

// Pyflakes runs pyflakes as a module of the configured interpreter.
type Pyflakes struct {
	Interpreter string
	Module      string
	Runner      pyenv.Runner
	Logger      *slog.Logger
}

// NewPyflakes creates a detector that runs `interpreter -m module`.
func NewPyflakes(interpreter string, runner pyenv.Runner, logger *slog.Logger) *Pyflakes {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pyflakes{Interpreter: interpreter, Module: "pyflakes", Runner: runner, Logger: logger}
}

// exitCoder is satisfied by *exec.ExitError.
type exitCoder interface {
	ExitCode() int
}

// Detect implements Detector. Diagnostics other than undefined names,
// syntax errors included, are discarded.
func (p *Pyflakes) Detect(ctx context.Context, path string) (suggest.Report, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.New(errors.DetectorFailed, fmt.Sprintf("cannot read input %s", path), err)
	}

	module := p.Module
	if module == "" {
		module = "pyflakes"
	}

	stdout, stderr, err := p.Runner.Run(ctx, nil, p.Interpreter, "-m", module, path)
	if err != nil {
		var ec exitCoder
		switch {
		case ctx.Err() != nil:
			return nil, errors.New(errors.DetectorFailed, "detector timed out", ctx.Err())
		case strings.Contains(stderr, "No module named"):
			return nil, errors.New(errors.DetectorFailed,
				fmt.Sprintf("%s is not installed for %s", module, p.Interpreter), err)
		case stderrors.As(err, &ec) && ec.ExitCode() == 1:
			// pyflakes exits 1 whenever it reports anything.
		default:
			return nil, errors.New(errors.DetectorFailed, "detector failed", fmt.Errorf("%w: %s", err, stderr))
		}
	}
	if stderr != "" {
		p.Logger.Debug("detector diagnostics discarded", "stderr", stderr)
	}

	return ParsePyflakes(stdout), nil
}

// ParsePyflakes extracts undefined names from pyflakes output. Columns are
// converted to 0-based; lines without a column get column 0.
func ParsePyflakes(output string) suggest.Report {
	report := make(suggest.Report)
	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		m := undefinedLine.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		line, _ := strconv.Atoi(m[1])
		col := 0
		if m[2] != "" {
			c, _ := strconv.Atoi(m[2])
			col = max(c-1, 0)
		}
		report[m[3]] = append(report[m[3]], suggest.Position{Line: line, Col: col})
	}
	return report
}

// ReportFile reads a report produced ahead of time by any detector, as a
// JSON object of name to [[line, col], ...].
type ReportFile struct {
	Path string
}

// Detect implements Detector. The input path is ignored.
func (r ReportFile) Detect(_ context.Context, _ string) (suggest.Report, error) {
	data, err := os.ReadFile(r.Path)
	if err != nil {
		return nil, errors.New(errors.DetectorFailed, fmt.Sprintf("cannot read report %s", r.Path), err)
	}
	var report suggest.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, errors.New(errors.DetectorFailed, fmt.Sprintf("invalid report %s", r.Path), err)
	}
	if report == nil {
		report = suggest.Report{}
	}
	return report, nil
}
