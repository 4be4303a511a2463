package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/model-switcher/model-switcher/internal/pointer"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the switch history markers",
	Long:  `Show the informational last-selected and previous-model markers.`,
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	hist := pointer.ReadHistory(cfg.Models.Dir)

	if outputFormat == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		return encoder.Encode(hist)
	}

	if hist.Current == "" && hist.Previous == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "No switch history recorded.")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "last selected: %s\n", valueOr(hist.Current, "-"))
	fmt.Fprintf(cmd.OutOrStdout(), "previous:      %s\n", valueOr(hist.Previous, "-"))
	return nil
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
