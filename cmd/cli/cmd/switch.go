package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/model-switcher/model-switcher/internal/catalog"
	"github.com/model-switcher/model-switcher/internal/config"
	"github.com/model-switcher/model-switcher/internal/docker"
	"github.com/model-switcher/model-switcher/internal/health"
	"github.com/model-switcher/model-switcher/internal/lock"
	"github.com/model-switcher/model-switcher/internal/switcher"
	"github.com/model-switcher/model-switcher/internal/ui"
	"github.com/model-switcher/model-switcher/pkg/models"
)

var switchCmd = &cobra.Command{
	Use:   "switch [index|model-name]",
	Short: "Switch the active model",
	Long: `Switch the inference server to another model.

With an argument, switches directly to the given list index or model
file name. Without one, presents the model list and prompts for a
selection (q to quit).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSwitch,
}

func init() {
	rootCmd.AddCommand(switchCmd)
}

func runSwitch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	printer := ui.NewPrinter(cmd.OutOrStdout())

	// The lock must be released even when the operator interrupts the
	// switch: cancellation unwinds the switcher's deferred release.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	containers := docker.NewClient()
	if err := containers.Available(ctx); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	files, err := catalog.Enumerate(cfg.Models.Dir)
	if err != nil {
		return err
	}
	current, _ := catalog.ResolveCurrent(ctx, cfg.Models.Dir, cfg.Models.ActiveLinkName)

	var target models.ModelFile
	if len(args) == 1 {
		target, err = resolveTarget(args[0], files)
		if err != nil {
			return err
		}
	} else {
		selected, quit, err := promptSelection(cmd, files, current)
		if err != nil {
			return err
		}
		if quit {
			fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
			return nil
		}
		target = selected
	}

	printer.Step("switching active model to %s", target.Name)

	sw := switcher.New(cfg, containers)
	result, err := sw.Switch(ctx, target.Name)

	return report(ctx, cfg, printer, containers, result, err)
}

// resolveTarget maps a non-interactive argument to an artifact: a list
// index first, then an exact file name.
func resolveTarget(arg string, files []models.ModelFile) (models.ModelFile, error) {
	if m, err := catalog.Select(arg, files); err == nil {
		return m, nil
	}
	if m, ok := catalog.FindByName(arg, files); ok {
		return m, nil
	}
	return models.ModelFile{}, fmt.Errorf("no model matches %q (expected a list index or file name)", arg)
}

// promptSelection shows the model list and reads one selection
func promptSelection(cmd *cobra.Command, files []models.ModelFile, current string) (models.ModelFile, bool, error) {
	printModelTable(cmd, files, current)

	fmt.Fprintf(cmd.OutOrStdout(), "Select model [1-%d] (q to quit): ", len(files))

	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		// EOF with no input counts as a quit
		return models.ModelFile{}, true, nil
	}

	input := strings.TrimSpace(line)
	if input == "" || strings.EqualFold(input, "q") {
		return models.ModelFile{}, true, nil
	}

	m, err := catalog.Select(input, files)
	if err != nil {
		return models.ModelFile{}, false, err
	}
	return m, false, nil
}

// report renders the switch outcome and, on failure, the troubleshooting
// guidance and container log tail.
func report(ctx context.Context, cfg *config.Config, printer *ui.Printer, containers *docker.Client, result *models.SwitchResult, err error) error {
	if result != nil {
		for _, w := range result.Warnings {
			printer.Warn("%s", w)
		}
	}

	if err == nil {
		switch result.Outcome {
		case models.OutcomeNoop:
			printer.OK("%s is already active, nothing to do", result.Model)
		case models.OutcomeCommitted:
			if result.Healthy {
				printer.OK("switched to %s (healthy after %d probe(s), %s)",
					result.Model, result.Attempts, result.Duration.Round(time.Millisecond))
			} else {
				printer.OK("pointer now targets %s", result.Model)
			}
		}
		return nil
	}

	switch {
	case result != nil && result.Outcome == models.OutcomeRolledBack:
		printer.Error("%s never became healthy; rolled back to %s", result.Model, result.Previous)
		if !result.Healthy {
			printer.Warn("rollback restart issued, but the previous model did not confirm healthy")
		}
	default:
		printer.Error("switch failed: %v", err)
	}

	printTroubleshooting(ctx, cfg, printer, containers, err)
	return err
}

func printTroubleshooting(ctx context.Context, cfg *config.Config, printer *ui.Printer, containers *docker.Client, err error) {
	var heldErr *lock.HeldError
	if errors.As(err, &heldErr) {
		printer.Dim("Another invocation holds the lock. If it crashed, remove " + heldErr.Path + " manually.")
		return
	}

	var timeoutErr *health.TimeoutError
	var restartErr *docker.RestartError
	switch {
	case errors.As(err, &timeoutErr):
		printer.Dim(fmt.Sprintf("The model may be too large for the host, or may need more than %s to load.", cfg.Health.WaitBudget))
		printer.Dim("Raise HEALTH_WAIT_BUDGET to allow a longer load, or inspect the container logs below.")
	case errors.As(err, &restartErr):
		printer.Dim("The restart command itself failed; the pointer swap is still in place and loads on the next container start.")
	}

	if tail := containers.LogTail(ctx, cfg.Container.Name, cfg.Container.LogTailLines); tail != "" {
		printer.Dim("")
		printer.Dim(fmt.Sprintf("--- last %d log lines from %s ---", cfg.Container.LogTailLines, cfg.Container.Name))
		printer.Dim(tail)
	}
}
