package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"iresolve/internal/paths"
	"iresolve/internal/resolver"
)

var (
	indexFormat      string
	indexExtraPath   string
	indexRebuild     bool
	indexMetricsFile string
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build or extend the module index",
	Long: `Build the module index over the interpreter's search path.

With --path and an existing index, the index is extended with the modules
found under the extra roots. Otherwise it is rebuilt.

Examples:
  iresolve index --rebuild
  iresolve index --path ./vendor
  iresolve index --metrics-file /var/lib/node_exporter/iresolve.prom`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringVar(&indexFormat, "format", string(FormatHuman), "Output format (human, json, yaml)")
	indexCmd.Flags().StringVar(&indexExtraPath, "path", "", "Additional comma-separated search roots")
	indexCmd.Flags().BoolVar(&indexRebuild, "rebuild", false, "Discard the stored index and build from scratch")
	indexCmd.Flags().StringVar(&indexMetricsFile, "metrics-file", "", "Write build metrics in Prometheus text format")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	format, err := ParseFormat(indexFormat)
	if err != nil {
		return err
	}
	env, err := setup()
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, cancel := newContext()
	defer cancel()

	resp, err := env.engine.Index(ctx, resolver.IndexRequest{
		ExtraPaths: paths.SplitList(indexExtraPath),
		Rebuild:    indexRebuild,
	})
	if err != nil {
		return err
	}

	if indexMetricsFile != "" {
		if err := env.metrics.WriteTextfile(paths.ExpandHome(indexMetricsFile)); err != nil {
			env.logger.Warn("could not write metrics", "file", indexMetricsFile, "error", err)
		}
	}

	output, err := FormatResponse(resp, format)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), output)
	return nil
}
