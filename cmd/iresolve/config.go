package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"iresolve/internal/config"
	"iresolve/internal/paths"
)

var (
	configForce      bool
	configShowFormat string
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage iresolve configuration",
	Long:  "View and create the iresolve configuration file (TOML).",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration",
	Long: `Write the default configuration to --config, or to the user config
directory when --config is not given. An existing file is kept unless
--force is set.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Display the configuration after defaults, the config file,
IRESOLVE_* environment variables, and command-line flags are applied.

Examples:
  iresolve config show
  iresolve config show --format json
  IRESOLVE_INDEX_WORKERS=2 iresolve config show`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file")
	configShowCmd.Flags().StringVar(&configShowFormat, "format", "toml", "Output format (toml, json, yaml)")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := paths.ExpandHome(configPath)
	if path == "" {
		var err error
		if path, err = paths.DefaultConfigPath(); err != nil {
			return err
		}
	}

	if _, err := os.Stat(path); err == nil && !configForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.DefaultConfig().Save(path); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var output string
	switch configShowFormat {
	case "toml":
		data, err := cfg.Encode()
		if err != nil {
			return err
		}
		output = string(data)
	default:
		format, err := ParseFormat(configShowFormat)
		if err != nil {
			return err
		}
		if output, err = FormatResponse(cfg, format); err != nil {
			return err
		}
		output += "\n"
	}
	fmt.Fprint(cmd.OutOrStdout(), output)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
	}
	return nil
}
