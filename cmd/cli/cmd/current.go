package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/model-switcher/model-switcher/internal/catalog"
)

var currentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the active model",
	RunE:  runCurrent,
}

func init() {
	rootCmd.AddCommand(currentCmd)
}

func runCurrent(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	current, ok := catalog.ResolveCurrent(cmd.Context(), cfg.Models.Dir, cfg.Models.ActiveLinkName)

	if outputFormat == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		return encoder.Encode(map[string]any{"current": current, "active": ok})
	}

	if !ok {
		fmt.Fprintln(cmd.OutOrStdout(), "No active model (pointer absent or dangling).")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), current)
	return nil
}
