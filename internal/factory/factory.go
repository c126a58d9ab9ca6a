package factory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"snowpilot/internal/audit"
	"snowpilot/internal/executor"
	"snowpilot/internal/logger"
	"snowpilot/internal/metrics"
	"snowpilot/internal/store"
	"snowpilot/pkg/errors"
	"snowpilot/pkg/models"
)

// Factory manages pipeline work intake and the sweep that materialises
// pending requests as dynamic tables. Every pending request is eligible
// work; the sweep runs each one through the same isolation and audit path
// the executor uses for candidates.
type Factory struct {
	store   store.Store
	target  executor.Target
	audit   *audit.Log
	cfg     models.Pipeline
	log     logger.Logger
	now     func() time.Time
	preview Previewer
}

// Previewer compiles a transformation on the live target without running
// it, via EXPLAIN. Intake works without one; offline and dry-run modes
// leave it unset.
type Previewer interface {
	Preview(ctx context.Context, query string) error
}

func New(st store.Store, target executor.Target, auditLog *audit.Log, cfg models.Pipeline, log logger.Logger) *Factory {
	if log == nil {
		log = logger.NewNop()
	}
	return &Factory{
		store:  st,
		target: target,
		audit:  auditLog,
		cfg:    cfg,
		log:    log.WithStage("factory"),
		now:    time.Now,
	}
}

// SetPreviewer enables the online EXPLAIN check on intake.
func (f *Factory) SetPreviewer(p Previewer) {
	f.preview = p
}

// Submit validates a request and queues it as PENDING. Invalid requests
// are rejected and never stored. When a previewer is wired the
// transformation must also pass an EXPLAIN on the target.
func (f *Factory) Submit(ctx context.Context, req *models.PipelineRequest) error {
	f.normalize(req)
	if err := validateRequest(req); err != nil {
		metrics.PipelineRequestsTotal.WithLabelValues("REJECTED").Inc()
		return err
	}
	if err := f.previewCheck(ctx, req); err != nil {
		metrics.PipelineRequestsTotal.WithLabelValues("REJECTED").Inc()
		return err
	}

	req.Status = models.PipelinePending
	if err := f.store.SavePipeline(req); err != nil {
		return err
	}
	metrics.PipelineRequestsTotal.WithLabelValues(string(models.PipelinePending)).Inc()
	f.log.Info("Pipeline request queued",
		logger.String("id", req.ID),
		logger.String("target", req.QualifiedTarget()),
		logger.Int("lag_minutes", req.LagMinutes))
	return nil
}

func (f *Factory) previewCheck(ctx context.Context, req *models.PipelineRequest) error {
	if f.preview == nil {
		return nil
	}
	stmt := strings.TrimSuffix(strings.TrimSpace(req.Transformation), ";")
	if err := f.preview.Preview(ctx, stmt); err != nil {
		return errors.Wrap(err, errors.ErrCodeValidationFailed, "Transformation failed EXPLAIN check").
			WithContext("target", req.QualifiedTarget()).
			WithSuggestions(
				"Run the SELECT manually to see the compilation error",
				"Check that the source objects exist and the role can read them",
			)
	}
	return nil
}

// LoadRequestDir reads every YAML spec in dir and queues the valid ones.
// A bad file is logged and skipped; it does not block the rest. Returns
// the number of requests queued.
func (f *Factory) LoadRequestDir(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeFilePermission, "Failed to read pipeline request directory").
			WithContext("dir", dir)
	}

	queued := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		req, err := readRequestFile(path)
		if err == nil {
			err = f.Submit(ctx, req)
		}
		if err != nil {
			f.log.Warn("Pipeline spec rejected",
				logger.String("file", path),
				logger.Error(err))
			continue
		}
		queued++
	}
	return queued, nil
}

// Sweep materialises every PENDING request in deterministic order. Each
// attempt leaves one audit entry; a failing request flips to FAILED and
// the sweep moves on.
func (f *Factory) Sweep(ctx context.Context) (*models.ApplyReport, error) {
	report := &models.ApplyReport{
		RunID:     uuid.NewString(),
		StartedAt: f.now().UTC(),
	}
	log := f.log.WithRun(report.RunID)

	pending, err := f.store.ListPipelines(models.PipelinePending)
	if err != nil {
		return nil, err
	}
	sort.Slice(pending, func(i, j int) bool {
		if !pending[i].RequestedAt.Equal(pending[j].RequestedAt) {
			return pending[i].RequestedAt.Before(pending[j].RequestedAt)
		}
		return pending[i].ID < pending[j].ID
	})

	for _, req := range pending {
		if err := ctx.Err(); err != nil {
			report.FinishedAt = f.now().UTC()
			return report, err
		}

		res := f.materialize(ctx, report.RunID, req, log)
		report.Results = append(report.Results, res)
		report.Attempted++
		if res.Status == models.ActionSuccess {
			report.Succeeded++
		} else {
			report.Failed++
		}
	}

	report.FinishedAt = f.now().UTC()
	if report.Attempted > 0 {
		log.Info("Pipeline sweep finished",
			logger.Int("attempted", report.Attempted),
			logger.Int("activated", report.Succeeded),
			logger.Int("failed", report.Failed))
	}
	return report, nil
}

func (f *Factory) materialize(ctx context.Context, runID string, req *models.PipelineRequest, log logger.Logger) models.ActionResult {
	ddl := RenderDDL(req)
	start := f.now()
	execErr := f.execute(ctx, ddl)
	duration := f.now().Sub(start)

	res := models.ActionResult{
		ActionID:  req.ID,
		EntityKey: req.QualifiedTarget(),
		Category:  "PIPELINE",
		Statement: ddl,
		Status:    models.ActionSuccess,
		Duration:  duration,
	}

	if execErr != nil {
		res.Status = models.ActionFailed
		res.Error = execErr.Error()
		req.Status = models.PipelineFailed
		req.Error = execErr.Error()
		log.Error("Pipeline materialisation failed",
			logger.String("id", req.ID),
			logger.String("target", req.QualifiedTarget()),
			logger.Error(execErr))
	} else {
		activated := f.now().UTC()
		req.Status = models.PipelineActive
		req.ActivatedAt = &activated
		req.Error = ""
		log.Info("Pipeline activated",
			logger.String("id", req.ID),
			logger.String("target", req.QualifiedTarget()),
			logger.Duration("duration", duration))
	}

	if err := f.store.SavePipeline(req); err != nil {
		log.Error("Failed to persist pipeline status",
			logger.String("id", req.ID),
			logger.Error(err))
	}

	entry := &models.AuditEntry{
		RunID:       runID,
		EventType:   models.EventPipelineSweep,
		Actor:       "factory",
		EntityKey:   req.QualifiedTarget(),
		Category:    "PIPELINE",
		Statement:   ddl,
		Disposition: string(models.DispositionAutoEligible),
		Result:      res.Status,
		Error:       res.Error,
		DurationMS:  duration.Milliseconds(),
	}
	if err := f.audit.Append(entry); err != nil {
		log.Error("Audit append failed",
			logger.String("id", req.ID),
			logger.Error(err))
	}

	metrics.PipelineRequestsTotal.WithLabelValues(string(req.Status)).Inc()
	return res
}

// execute shields the sweep from a panicking target.
func (f *Factory) execute(ctx context.Context, statement string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New(errors.ErrCodeInternal, fmt.Sprintf("Execution panicked: %v", r))
		}
	}()
	return f.target.Execute(ctx, statement)
}

func (f *Factory) normalize(req *models.PipelineRequest) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.RequestedAt.IsZero() {
		req.RequestedAt = f.now().UTC()
	}
	if req.RequestedBy == "" {
		req.RequestedBy = "operator"
	}
	if req.Warehouse == "" {
		req.Warehouse = f.defaultWarehouse()
	}
	if req.LagMinutes == 0 {
		req.LagMinutes = DefaultLagMinutes
	}
}

func (f *Factory) defaultWarehouse() string {
	if f.cfg.DefaultWarehouse != "" {
		return f.cfg.DefaultWarehouse
	}
	return DefaultWarehouse
}

func readRequestFile(path string) (*models.PipelineRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeFilePermission, "Failed to read pipeline spec").
			WithContext("file", path)
	}
	var req models.PipelineRequest
	if err := yaml.Unmarshal(data, &req); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "Failed to parse pipeline spec").
			WithContext("file", path)
	}
	return &req, nil
}
