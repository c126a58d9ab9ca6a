package cmd

import (
	"context"
	"time"

	"snowpilot/internal/aggregate"
	"snowpilot/internal/audit"
	"snowpilot/internal/config"
	"snowpilot/internal/executor"
	"snowpilot/internal/factory"
	"snowpilot/internal/ingest"
	"snowpilot/internal/logger"
	"snowpilot/internal/rules"
	"snowpilot/internal/security"
	"snowpilot/internal/store"
	"snowpilot/internal/warehouse"
	"snowpilot/pkg/models"
)

// app bundles the long-lived pieces every command needs: resolved config,
// logger, store and the audit log. The warehouse connection is opened
// lazily so read-only commands never dial out.
type app struct {
	cfg     *models.Config
	log     logger.Logger
	store   store.Store
	audit   *audit.Log
	service *warehouse.Service
}

func buildApp() (*app, error) {
	cfg, err := config.LoadResolved()
	if err != nil {
		return nil, err
	}
	if err := config.ResolveEnvironment(cfg, envName); err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	if quiet {
		level = "error"
	}
	log := logger.NewFromConfig(level, cfg.Logging.Format)
	logger.SetDefault(log)

	st, err := store.New(cfg.Store, log)
	if err != nil {
		return nil, err
	}

	var writer audit.Writer
	if cfg.Store.AuditFile != "" {
		writer, err = audit.NewFileWriter(cfg.Store.AuditFile)
		if err != nil {
			st.Close()
			return nil, err
		}
	}

	return &app{
		cfg:   cfg,
		log:   log,
		store: st,
		audit: audit.New(st, writer, log),
	}, nil
}

func (a *app) Close() {
	if a.service != nil {
		a.service.Close()
	}
	if a.audit != nil {
		a.audit.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}

// warehouseService connects on first use. When the config carries no
// password the OS credential store is consulted before giving up.
func (a *app) warehouseService() (*warehouse.Service, error) {
	if a.service != nil {
		return a.service, nil
	}

	w := a.cfg.Warehouse
	if w.Password == "" {
		if cred := storedCredential(w); cred != "" {
			w.Password = cred
		}
	}

	wcfg, err := warehouse.ConfigFromModel(w)
	if err != nil {
		return nil, err
	}
	if err := warehouse.ValidateConfig(wcfg); err != nil {
		return nil, err
	}

	svc := warehouse.NewService(wcfg, a.log)
	if err := svc.Connect(); err != nil {
		return nil, err
	}
	a.service = svc
	return svc, nil
}

func storedCredential(w models.Warehouse) string {
	cm, err := security.NewCredentialManager()
	if err != nil {
		return ""
	}
	target := w.Account
	if w.Host != "" {
		target = w.Host
	}
	cred, err := cm.GetCredential(security.CredentialKey(w.Driver, target, w.Username))
	if err != nil {
		return ""
	}
	return cred.Value
}

// target returns where statements go: the real warehouse, or a logging
// sink when dry run is on.
func (a *app) target() (executor.Target, error) {
	if a.cfg.Loop.DryRun {
		return executor.NewDryRunTarget(a.log), nil
	}
	return a.warehouseService()
}

func (a *app) lookback() time.Duration {
	return time.Duration(a.cfg.Loop.LookbackHours) * time.Hour
}

// runIngest pulls observations from the given files, or from warehouse
// telemetry when no files are named.
func (a *app) runIngest(ctx context.Context, files []string) (int, error) {
	var sources []ingest.Source
	for _, f := range files {
		sources = append(sources, ingest.NewFileSource(f))
	}
	if len(sources) == 0 {
		svc, err := a.warehouseService()
		if err != nil {
			return 0, err
		}
		sources = append(sources, warehouse.NewTelemetrySource(svc, a.lookback(), a.log))
	}
	return ingest.New(a.store, a.log, sources...).Run(ctx)
}

func (a *app) runAggregate(ctx context.Context) (*models.SignalSet, error) {
	agg := aggregate.New(a.store, a.lookback(), a.cfg.Rules.Thresholds.MinSamples, a.log)
	return agg.Refresh(ctx)
}

func (a *app) runGenerate(ctx context.Context) (*models.CandidateSet, error) {
	gen, err := rules.NewGenerator(a.store, a.cfg.Rules, a.cfg.Loop.AutoApprove, a.log)
	if err != nil {
		return nil, err
	}
	return gen.Evaluate(ctx)
}

func (a *app) executor() (*executor.Executor, error) {
	target, err := a.target()
	if err != nil {
		return nil, err
	}
	return executor.New(a.store, target, a.audit, a.cfg.Loop.MaxActionsPerRun, a.log), nil
}

func (a *app) factory() (*factory.Factory, error) {
	target, err := a.target()
	if err != nil {
		return nil, err
	}
	fac := factory.New(a.store, target, a.audit, a.cfg.Pipeline, a.log)
	if a.service != nil {
		fac.SetPreviewer(a.service)
	}
	return fac, nil
}
