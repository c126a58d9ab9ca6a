package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"snowpilot/internal/ui"
	"snowpilot/pkg/errors"
	"snowpilot/pkg/models"
)

var (
	pipelineSourceTable   string
	pipelineTransform     string
	pipelineTransformFile string
	pipelineDatabase      string
	pipelineSchema        string
	pipelineName          string
	pipelineLag           int
	pipelineWarehouse     string
	pipelineStatus        string
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Manage dynamic table pipeline requests",
	Long: `Pipeline requests describe a read-only transformation to materialise
as a Snowflake dynamic table. Requests are validated at intake, queued
as PENDING and created on the next sweep.`,
}

var pipelineAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Queue a new pipeline request",
	RunE:  runPipelineAdd,
}

var pipelineListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pipeline requests",
	RunE:  runPipelineList,
}

var pipelineSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull request specs from the intake repository",
	RunE:  runPipelineSync,
}

var pipelineSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Materialise pending pipeline requests",
	RunE:  runPipelineSweep,
}

func runPipelineAdd(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	transform := pipelineTransform
	if transform == "" && pipelineTransformFile != "" {
		data, err := os.ReadFile(pipelineTransformFile)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeFilePermission, "Failed to read transformation file").
				WithContext("file", pipelineTransformFile)
		}
		transform = string(data)
	}

	req := &models.PipelineRequest{
		SourceTable:    pipelineSourceTable,
		Transformation: transform,
		TargetDatabase: pipelineDatabase,
		TargetSchema:   pipelineSchema,
		TargetName:     pipelineName,
		LagMinutes:     pipelineLag,
		Warehouse:      pipelineWarehouse,
	}

	fac, err := app.factory()
	if err != nil {
		return err
	}
	if err := fac.Submit(cmd.Context(), req); err != nil {
		return err
	}

	ui.ShowSuccess(fmt.Sprintf("Queued pipeline %s (%s)", req.QualifiedTarget(), req.ID))
	ui.ShowInfo("It will be created on the next sweep, or run 'snowpilot pipeline sweep' now.")
	return nil
}

func runPipelineList(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	status := models.PipelineStatus(strings.ToUpper(pipelineStatus))
	reqs, err := app.store.ListPipelines(status)
	if err != nil {
		return err
	}
	if len(reqs) == 0 {
		ui.ShowInfo("No pipeline requests.")
		return nil
	}

	table := ui.NewTable()
	table.AddHeader("TARGET", "STATUS", "LAG", "WAREHOUSE", "REQUESTED BY", "ERROR")
	for _, req := range reqs {
		table.AddRow(
			req.QualifiedTarget(),
			ui.StatusGlyph(string(req.Status)),
			fmt.Sprintf("%dm", req.LagMinutes),
			req.Warehouse,
			req.RequestedBy,
			firstLine(req.Error),
		)
	}
	table.Render()
	return nil
}

func runPipelineSync(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	fac, err := app.factory()
	if err != nil {
		return err
	}
	n, err := fac.SyncGit(cmd.Context())
	if err != nil {
		return err
	}
	ui.ShowSuccess(fmt.Sprintf("Intake synced, %d new requests queued", n))
	return nil
}

func runPipelineSweep(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	fac, err := app.factory()
	if err != nil {
		return err
	}
	report, err := fac.Sweep(cmd.Context())
	if err != nil {
		return err
	}
	if report.Attempted == 0 {
		ui.ShowInfo("Nothing pending.")
		return nil
	}
	if !quiet {
		for _, res := range report.Results {
			ui.ShowActionResult(res)
		}
		ui.ShowRunSummary(report)
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func init() {
	pipelineAddCmd.Flags().StringVar(&pipelineSourceTable, "source-table", "", "source table the transformation reads")
	pipelineAddCmd.Flags().StringVar(&pipelineTransform, "transform", "", "SELECT statement to materialise")
	pipelineAddCmd.Flags().StringVar(&pipelineTransformFile, "transform-file", "", "file containing the SELECT statement")
	pipelineAddCmd.Flags().StringVarP(&pipelineDatabase, "database", "d", "", "target database")
	pipelineAddCmd.Flags().StringVarP(&pipelineSchema, "schema", "s", "", "target schema")
	pipelineAddCmd.Flags().StringVarP(&pipelineName, "name", "n", "", "target dynamic table name")
	pipelineAddCmd.Flags().IntVar(&pipelineLag, "lag", 0, "target lag in minutes (default 60)")
	pipelineAddCmd.Flags().StringVar(&pipelineWarehouse, "warehouse", "", "warehouse for the dynamic table refresh")

	pipelineListCmd.Flags().StringVar(&pipelineStatus, "status", "", "filter by status (PENDING, ACTIVE or FAILED)")

	pipelineCmd.AddCommand(pipelineAddCmd)
	pipelineCmd.AddCommand(pipelineListCmd)
	pipelineCmd.AddCommand(pipelineSyncCmd)
	pipelineCmd.AddCommand(pipelineSweepCmd)
	rootCmd.AddCommand(pipelineCmd)
}
