package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"snowpilot/internal/ui"
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Recompute signals from stored observations",
	Long: `Aggregate rolls the observations inside the lookback window up into
one signal per entity and publishes the result as a new immutable
snapshot. The previous snapshot stays readable until the new one lands.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp()
		if err != nil {
			return err
		}
		defer app.Close()

		set, err := app.runAggregate(cmd.Context())
		if err != nil {
			return err
		}
		if !quiet {
			ui.ShowSuccess(fmt.Sprintf("Published signal snapshot v%d with %d entities",
				set.Version, len(set.Signals)))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(aggregateCmd)
}
