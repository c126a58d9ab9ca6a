package cmd

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"snowpilot/internal/ui"
	"snowpilot/pkg/models"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show loop state at a glance",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ui.PrintSection("Store")
	ui.PrintKeyValue("Engine", app.cfg.Store.Engine)

	count, err := app.store.ObservationCount()
	if err != nil {
		return err
	}
	ui.PrintKeyValue("Observations", strconv.Itoa(count))

	signals, err := app.store.CurrentSignals()
	if err != nil {
		return err
	}
	if signals == nil {
		ui.PrintKeyValue("Signals", "none")
	} else {
		ui.PrintKeyValue("Signals", fmt.Sprintf("v%d, %d entities, produced %s",
			signals.Version, len(signals.Signals), signals.ProducedAt.Format("2006-01-02 15:04:05")))
	}

	candidates, err := app.store.CurrentCandidates()
	if err != nil {
		return err
	}
	if candidates == nil {
		ui.PrintKeyValue("Candidates", "none")
	} else {
		eligible := len(candidates.Eligible())
		ui.PrintKeyValue("Candidates", fmt.Sprintf("v%d, %d total, %d auto-eligible, %d withheld",
			candidates.Version, len(candidates.Candidates), eligible, candidates.Withheld))
	}

	last, err := app.store.LastAudit()
	if err != nil {
		return err
	}
	if last == nil {
		ui.PrintKeyValue("Last action", "none")
	} else {
		ui.PrintKeyValue("Last action", fmt.Sprintf("%s %s %s at %s",
			last.EntityKey, last.Category, last.Result,
			last.Timestamp.Format("2006-01-02 15:04:05")))
	}

	ui.PrintSection("Loop")
	dryRun := color.GreenString("off")
	if app.cfg.Loop.DryRun {
		dryRun = color.YellowString("on, statements are logged only")
	}
	ui.PrintKeyValue("Dry run", dryRun)
	ui.PrintKeyValue("Auto-approve", formatAutoApprove(app.cfg.Loop.AutoApprove))
	ui.PrintKeyValue("Lookback", fmt.Sprintf("%dh", app.cfg.Loop.LookbackHours))
	ui.PrintKeyValue("Max actions/run", strconv.Itoa(app.cfg.Loop.MaxActionsPerRun))

	if app.cfg.Pipeline.Enabled {
		ui.PrintSection("Pipeline factory")
		pending, err := app.store.ListPipelines(models.PipelinePending)
		if err != nil {
			return err
		}
		active, err := app.store.ListPipelines(models.PipelineActive)
		if err != nil {
			return err
		}
		failed, err := app.store.ListPipelines(models.PipelineFailed)
		if err != nil {
			return err
		}
		failedText := strconv.Itoa(len(failed))
		if len(failed) > 0 {
			failedText = color.RedString("%d", len(failed))
		}
		ui.PrintKeyValue("Requests", fmt.Sprintf("%d pending, %d active, %s failed",
			len(pending), len(active), failedText))
	}
	return nil
}

func formatAutoApprove(categories []string) string {
	if len(categories) == 0 {
		return "none (everything needs review)"
	}
	out := categories[0]
	for _, c := range categories[1:] {
		out += ", " + c
	}
	return out
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
