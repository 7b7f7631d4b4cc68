package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"iresolve/internal/detector"
	"iresolve/internal/paths"
	"iresolve/internal/resolver"
	"iresolve/internal/version"
)

var (
	// Global flags
	configPath  string
	cacheFlag   string
	verbosity   int
	quiet       bool
	workers     int
	loadTimeout time.Duration
	logFile     string
	interpreter string

	// Resolve flags
	resolveFormat  string
	resolveRebuild bool
	resolvePath    string
	resolveReport  string
	resolveSort    bool
	resolveSave    bool
)

// exitCode is the status after a successful command. A completed
// resolution always reports 1, found or not.
var exitCode = 0

var rootCmd = &cobra.Command{
	Use:   "iresolve INPUT",
	Short: "iresolve - Import Resolver",
	Long: `iresolve finds the undefined names in a Python file and suggests the
installed modules each one can be imported from.

The module index is built on first use and cached. Extra search roots
come from --path and from an iresolve.json or [tool.iresolve] table in
pyproject.toml found above the input file.

Examples:
  iresolve app.py
  iresolve app.py --format json
  iresolve app.py --path vendor,../shared --index`,
	Version:       version.Info(),
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runResolve,
}

func init() {
	rootCmd.SetVersionTemplate(version.Full() + "\n")

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Config file (default: user config dir)")
	pf.StringVar(&cacheFlag, "cache", "", "Index location: a directory, or a .json, .json.zst or .db file")
	pf.CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	pf.BoolVarP(&quiet, "quiet", "q", false, "Only log errors")
	pf.IntVar(&workers, "workers", 0, "Concurrent module extractions (default: config, else CPU count)")
	pf.DurationVar(&loadTimeout, "load-timeout", 0, "Timeout for each live module import")
	pf.StringVar(&interpreter, "python", "", "Python interpreter to index and run the detector with")
	pf.StringVar(&logFile, "log-file", "", "Also log to this file ('auto' for the cache dir)")
	pf.Lookup("log-file").NoOptDefVal = autoLogFile

	f := rootCmd.Flags()
	f.StringVar(&resolveFormat, "format", string(FormatPretty), "Output format (pretty, json, yaml)")
	f.BoolVar(&resolveRebuild, "index", false, "(Re)generate the module index")
	f.StringVar(&resolvePath, "path", "", "Consider additional comma-separated search roots")
	f.StringVar(&resolveReport, "report", "", "Read undefined names from a JSON report instead of running pyflakes")
	f.BoolVar(&resolveSort, "sort", false, "Sort each candidate list")
	f.BoolVar(&resolveSave, "save", false, "Store the index extended with extra roots")
}

func runResolve(cmd *cobra.Command, args []string) error {
	format, err := ParseFormat(resolveFormat)
	if err != nil {
		return err
	}

	var opts []resolver.Option
	if resolveReport != "" {
		opts = append(opts, resolver.WithDetector(detector.ReportFile{Path: resolveReport}))
	}
	env, err := setup(opts...)
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, cancel := newContext()
	defer cancel()

	resp, err := env.engine.Resolve(ctx, resolver.Request{
		Input:        args[0],
		ExtraPaths:   paths.SplitList(resolvePath),
		Rebuild:      resolveRebuild,
		SortPaths:    resolveSort,
		SaveExtended: resolveSave,
	})
	if err != nil {
		return err
	}
	env.logger.Info("resolved",
		"input", args[0],
		"unresolved", resp.Unresolved,
		"suggested", len(resp.Result),
		"indexSymbols", resp.IndexSymbols,
		"built", resp.Built,
		"extended", resp.Extended,
	)

	output, err := FormatResponse(resp.Result, format)
	if err != nil {
		return err
	}
	if output != "" {
		fmt.Fprintln(cmd.OutOrStdout(), output)
	}
	exitCode = 1
	return nil
}
