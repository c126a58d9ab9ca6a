package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"snowpilot/internal/ui"
)

var ingestFiles []string

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Pull observations into the store",
	Long: `Ingest collects observations and upserts them by natural key, so
re-running over the same window never duplicates rows. Without flags it
queries the warehouse telemetry views; with --file it reads YAML
observation files instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp()
		if err != nil {
			return err
		}
		defer app.Close()

		n, err := app.runIngest(cmd.Context(), ingestFiles)
		if err != nil {
			return err
		}
		if !quiet {
			ui.ShowSuccess(fmt.Sprintf("Ingested %d observations", n))
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringSliceVar(&ingestFiles, "file", nil, "observation file to ingest (repeatable)")
	rootCmd.AddCommand(ingestCmd)
}
