package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/model-switcher/model-switcher/internal/catalog"
	"github.com/model-switcher/model-switcher/pkg/models"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List model artifacts",
	Long:  `List the model artifacts in the models directory, marking the active one.`,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	files, err := catalog.Enumerate(cfg.Models.Dir)
	if err != nil {
		return err
	}

	current, _ := catalog.ResolveCurrent(cmd.Context(), cfg.Models.Dir, cfg.Models.ActiveLinkName)

	if outputFormat == "json" {
		type listedModel struct {
			models.ModelFile
			Active bool `json:"active"`
		}
		out := make([]listedModel, 0, len(files))
		for _, m := range files {
			out = append(out, listedModel{ModelFile: m, Active: m.Name == current})
		}
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(out)
	}

	printModelTable(cmd, files, current)
	return nil
}

func printModelTable(cmd *cobra.Command, files []models.ModelFile, current string) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "  \t#\tMODEL\tSIZE")
	for i, m := range files {
		marker := " "
		if m.Name == current {
			marker = "*"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", marker, i+1, m.Name, m.HumanSize())
	}
	w.Flush()
}
