package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"snowpilot/internal/ui"
	"snowpilot/pkg/models"
)

var candidatesCmd = &cobra.Command{
	Use:   "candidates",
	Short: "Inspect and review proposed actions",
}

var candidatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the current candidate set",
	RunE:  runCandidatesList,
}

var candidatesReviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Walk through candidates held for review",
	Long: `Review steps through every REVIEW_REQUIRED candidate one at a time.
Approving a candidate executes it immediately and records the attempt in
the audit log under your username.`,
	RunE: runCandidatesReview,
}

func runCandidatesList(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	set, err := app.store.CurrentCandidates()
	if err != nil {
		return err
	}
	if set == nil || len(set.Candidates) == 0 {
		ui.ShowInfo("No candidates. Run 'snowpilot generate' first.")
		return nil
	}

	fmt.Printf("Candidate set v%d (from signals v%d, %d withheld)\n\n",
		set.Version, set.SignalVersion, set.Withheld)

	table := ui.NewTable()
	table.AddHeader("ENTITY", "CATEGORY", "RULE", "DISPOSITION")
	for _, c := range set.Candidates {
		table.AddRow(c.EntityKey, c.Category, c.RuleName, ui.DispositionGlyph(c.Disposition))
	}
	table.Render()
	return nil
}

func runCandidatesReview(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	set, err := app.store.CurrentCandidates()
	if err != nil {
		return err
	}

	var held []*models.Candidate
	if set != nil {
		for _, c := range set.Candidates {
			if c.Disposition == models.DispositionReviewRequired {
				held = append(held, c)
			}
		}
	}
	if len(held) == 0 {
		ui.ShowInfo("Nothing waiting for review.")
		return nil
	}

	exec, err := app.executor()
	if err != nil {
		return err
	}
	actor := os.Getenv("USER")
	if actor == "" {
		actor = "operator"
	}

	ui.ShowHeader("Candidate Review")
	applied := 0
	for i, cand := range held {
		fmt.Printf("\n[%d/%d]\n", i+1, len(held))
		ui.ShowCandidate(cand)

		choice, err := ui.Select("What do you want to do?", []string{"apply", "skip", "quit"})
		if err != nil {
			return err
		}
		switch choice {
		case "apply":
			res := exec.ApplyOne(cmd.Context(), cand, actor)
			ui.ShowActionResult(res)
			if res.Status == models.ActionSuccess {
				applied++
			}
		case "quit":
			fmt.Printf("\nReviewed %d of %d, applied %d\n", i+1, len(held), applied)
			return nil
		}
	}

	fmt.Printf("\nReviewed %d candidates, applied %d\n", len(held), applied)
	return nil
}

func init() {
	candidatesCmd.AddCommand(candidatesListCmd)
	candidatesCmd.AddCommand(candidatesReviewCmd)
	rootCmd.AddCommand(candidatesCmd)
}
