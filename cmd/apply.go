package cmd

import (
	"github.com/spf13/cobra"

	"snowpilot/internal/ui"
)

var applyDryRun bool

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Execute the auto-eligible candidates",
	Long: `Apply runs every AUTO_ELIGIBLE candidate from the current set in a
deterministic order. A failing action is recorded and the run moves on;
one bad statement never blocks the rest. Every attempt lands in the
audit log.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp()
		if err != nil {
			return err
		}
		defer app.Close()

		if applyDryRun {
			app.cfg.Loop.DryRun = true
		}

		exec, err := app.executor()
		if err != nil {
			return err
		}
		report, err := exec.Apply(cmd.Context())
		if err != nil {
			return err
		}
		if !quiet {
			for _, res := range report.Results {
				ui.ShowActionResult(res)
			}
			ui.ShowRunSummary(report)
		}
		return nil
	},
}

func init() {
	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "log statements instead of executing them")
	rootCmd.AddCommand(applyCmd)
}
