package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	statusFormat  string
	statusProject string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the index location, build metadata, and freshness",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusFormat, "format", string(FormatHuman), "Output format (human, json, yaml)")
	statusCmd.Flags().StringVar(&statusProject, "project", "", "Project directory to inspect for a Python environment (default: working directory)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := ParseFormat(statusFormat)
	if err != nil {
		return err
	}
	env, err := setup()
	if err != nil {
		return err
	}
	defer env.Close()

	project := statusProject
	if project == "" {
		if project, err = os.Getwd(); err != nil {
			return err
		}
	}

	st, err := env.engine.Status(project)
	if err != nil {
		return err
	}

	output, err := FormatResponse(st, format)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), output)
	return nil
}
