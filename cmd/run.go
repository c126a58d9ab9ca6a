package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"snowpilot/internal/logger"
	"snowpilot/internal/metrics"
	"snowpilot/internal/scheduler"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the control loop until interrupted",
	Long: `Run starts every loop stage on its configured cadence: ingest,
aggregate, generate and apply, plus the pipeline sweep when the factory
is enabled. Stages never overlap themselves; a tick that lands while the
previous run is still going is skipped.`,
	RunE: runLoop,
}

func runLoop(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if app.cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(app.cfg.Metrics.Listen); err != nil {
				app.log.Error("Metrics listener stopped", logger.Error(err))
			}
		}()
		app.log.Info("Metrics listening", logger.String("addr", app.cfg.Metrics.Listen))
	}

	sched := scheduler.New(app.log)
	loop := app.cfg.Loop

	if err := sched.Add("ingest", loop.IngestEvery, func(ctx context.Context) error {
		_, err := app.runIngest(ctx, nil)
		return err
	}); err != nil {
		return err
	}
	if err := sched.Add("aggregate", loop.AggregateEvery, func(ctx context.Context) error {
		_, err := app.runAggregate(ctx)
		return err
	}); err != nil {
		return err
	}
	if err := sched.Add("generate", loop.GenerateEvery, func(ctx context.Context) error {
		_, err := app.runGenerate(ctx)
		return err
	}); err != nil {
		return err
	}
	if err := sched.Add("apply", loop.ApplyEvery, func(ctx context.Context) error {
		exec, err := app.executor()
		if err != nil {
			return err
		}
		_, err = exec.Apply(ctx)
		return err
	}); err != nil {
		return err
	}
	if app.cfg.Pipeline.Enabled {
		if err := sched.Add("sweep", loop.SweepEvery, app.sweepStage); err != nil {
			return err
		}
	}

	if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	app.log.Info("Shutdown complete")
	return nil
}

// sweepStage refreshes the intake and materialises pending requests. An
// intake failure is logged but does not block the sweep of requests
// already queued.
func (a *app) sweepStage(ctx context.Context) error {
	fac, err := a.factory()
	if err != nil {
		return err
	}

	if a.cfg.Pipeline.Git.URL != "" {
		if _, err := fac.SyncGit(ctx); err != nil {
			a.log.Warn("Pipeline intake sync failed", logger.Error(err))
		}
	} else if dir := a.cfg.Pipeline.RequestDir; dir != "" {
		if _, err := fac.LoadRequestDir(ctx, dir); err != nil {
			a.log.Warn("Pipeline intake scan failed", logger.Error(err))
		}
	}

	_, err = fac.Sweep(ctx)
	return err
}

func init() {
	rootCmd.AddCommand(runCmd)
}
