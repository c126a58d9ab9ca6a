package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"snowpilot/internal/store"
	"snowpilot/internal/ui"
)

var (
	auditRunID    string
	auditEntity   string
	auditCategory string
	auditResult   string
	auditSince    time.Duration
	auditLimit    int
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query and verify the audit log",
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit entries",
	RunE:  runAuditList,
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the audit hash chain",
	Long: `Verify recomputes the hash of every audit entry and checks each link
to its predecessor. Any edit, insertion or deletion after the fact
breaks the chain and is reported with the entry where it happened.`,
	RunE: runAuditVerify,
}

func runAuditList(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	filter := store.AuditFilter{
		RunID:     auditRunID,
		EntityKey: auditEntity,
		Category:  auditCategory,
		Result:    auditResult,
		Limit:     auditLimit,
	}
	if auditSince > 0 {
		filter.Since = time.Now().UTC().Add(-auditSince)
	}

	entries, err := app.audit.Query(filter)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		ui.ShowInfo("No audit entries match.")
		return nil
	}

	table := ui.NewTable()
	table.AddHeader("TIME", "EVENT", "ENTITY", "CATEGORY", "RESULT", "ACTOR")
	for _, e := range entries {
		table.AddRow(
			e.Timestamp.Format("2006-01-02 15:04:05"),
			e.EventType,
			e.EntityKey,
			e.Category,
			ui.StatusGlyph(e.Result),
			e.Actor,
		)
	}
	table.Render()
	return nil
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	n, err := app.audit.Verify()
	if err != nil {
		return err
	}
	ui.ShowSuccess(fmt.Sprintf("Audit chain intact, %d entries verified", n))
	return nil
}

func init() {
	auditListCmd.Flags().StringVar(&auditRunID, "run", "", "filter by run ID")
	auditListCmd.Flags().StringVar(&auditEntity, "entity", "", "filter by entity key")
	auditListCmd.Flags().StringVar(&auditCategory, "category", "", "filter by category")
	auditListCmd.Flags().StringVar(&auditResult, "result", "", "filter by result (SUCCESS or FAILED)")
	auditListCmd.Flags().DurationVar(&auditSince, "since", 0, "only entries newer than this age, e.g. 24h")
	auditListCmd.Flags().IntVar(&auditLimit, "limit", 50, "maximum entries to show (0 for all)")

	auditCmd.AddCommand(auditListCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	rootCmd.AddCommand(auditCmd)
}
