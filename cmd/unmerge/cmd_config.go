package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// configCmd writes the effective configuration
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Write the effective configuration (file, environment and flags merged) as YAML",
	Long: `Writes the configuration unmerge would run with, after applying the
--config file, UNMERGE_* environment variables and flags. The result can be
edited and passed back with --config.

Example:
  UNMERGE_BATCH_SIZE=4 unmerge config -o unmerge.yaml`,
	RunE: runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	if err := cfg.Save(configOut); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", configOut)
	return nil
}
