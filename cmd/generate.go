package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"snowpilot/internal/ui"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Evaluate rules against the current signals",
	Long: `Generate walks each signal through the rule chain in order, takes
the first match and publishes the resulting candidate set. Candidates
whose category is not on the auto-approve list stay queued for review.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp()
		if err != nil {
			return err
		}
		defer app.Close()

		set, err := app.runGenerate(cmd.Context())
		if err != nil {
			return err
		}
		if !quiet {
			ui.ShowSuccess(fmt.Sprintf("Published candidate set v%d with %d candidates",
				set.Version, len(set.Candidates)))
			if set.Withheld > 0 {
				ui.ShowWarning(fmt.Sprintf("%d candidates withheld, statement parameters unresolvable", set.Withheld))
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
}
