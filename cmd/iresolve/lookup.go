package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var lookupFormat string

// LookupResponse maps each requested name to its candidate modules.
type LookupResponse map[string][]string

var lookupCmd = &cobra.Command{
	Use:   "lookup NAME...",
	Short: "Show the modules that define the given names",
	Long: `Print the stored candidates for each name without checking a file.

Examples:
  iresolve lookup OrderedDict
  iresolve lookup urlopen Path --format json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLookup,
}

func init() {
	lookupCmd.Flags().StringVar(&lookupFormat, "format", string(FormatHuman), "Output format (human, json, yaml)")
	rootCmd.AddCommand(lookupCmd)
}

func runLookup(cmd *cobra.Command, args []string) error {
	format, err := ParseFormat(lookupFormat)
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

	found, err := env.engine.Lookup(ctx, args)
	if err != nil {
		return err
	}

	output, err := FormatResponse(LookupResponse(found), format)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), output)
	return nil
}
