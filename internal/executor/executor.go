package executor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"snowpilot/internal/audit"
	"snowpilot/internal/logger"
	"snowpilot/internal/metrics"
	"snowpilot/internal/store"
	"snowpilot/pkg/errors"
	"snowpilot/pkg/models"
)

// Target executes one approved statement against the warehouse.
type Target interface {
	Execute(ctx context.Context, statement string) error
}

// DryRunTarget logs statements instead of executing them.
type DryRunTarget struct {
	log logger.Logger
}

func NewDryRunTarget(log logger.Logger) *DryRunTarget {
	if log == nil {
		log = logger.NewNop()
	}
	return &DryRunTarget{log: log}
}

func (t *DryRunTarget) Execute(ctx context.Context, statement string) error {
	t.log.Info("Dry run, statement not executed", logger.String("statement", statement))
	return nil
}

// Executor applies auto-eligible candidates one at a time. Each attempt is
// recorded in the action log whether it succeeds or fails, and a failure
// never stops the remainder of the run.
type Executor struct {
	store      store.Store
	target     Target
	audit      *audit.Log
	maxActions int
	log        logger.Logger
	now        func() time.Time
}

// New creates an executor. maxActions caps the candidates attempted per
// run; zero means no cap.
func New(st store.Store, target Target, auditLog *audit.Log, maxActions int, log logger.Logger) *Executor {
	if log == nil {
		log = logger.NewNop()
	}
	return &Executor{
		store:      st,
		target:     target,
		audit:      auditLog,
		maxActions: maxActions,
		log:        log.WithStage("apply"),
		now:        time.Now,
	}
}

// Apply executes every auto-eligible candidate from the current set in
// deterministic order and returns a report of the run.
func (e *Executor) Apply(ctx context.Context) (*models.ApplyReport, error) {
	report := &models.ApplyReport{
		RunID:     uuid.NewString(),
		StartedAt: e.now().UTC(),
	}
	log := e.log.WithRun(report.RunID)

	set, err := e.store.CurrentCandidates()
	if err != nil {
		return nil, err
	}
	if set == nil {
		log.Info("No candidate set published yet, nothing to apply")
		report.FinishedAt = e.now().UTC()
		return report, nil
	}

	eligible := set.Eligible()
	sortCandidates(eligible)

	if e.maxActions > 0 && len(eligible) > e.maxActions {
		log.Warn("Capping actions for this run",
			logger.Int("eligible", len(eligible)),
			logger.Int("max_actions", e.maxActions))
		eligible = eligible[:e.maxActions]
	}

	for _, cand := range eligible {
		if err := ctx.Err(); err != nil {
			report.FinishedAt = e.now().UTC()
			return report, err
		}
		res := e.run(ctx, report.RunID, cand, models.EventActionApply, "scheduler")
		report.Results = append(report.Results, res)
		report.Attempted++
		if res.Status == models.ActionSuccess {
			report.Succeeded++
		} else {
			report.Failed++
		}
	}

	report.FinishedAt = e.now().UTC()
	log.Info("Apply run finished",
		logger.Uint64("candidate_version", set.Version),
		logger.Int("attempted", report.Attempted),
		logger.Int("succeeded", report.Succeeded),
		logger.Int("failed", report.Failed))
	return report, nil
}

// ApplyOne executes a single reviewed candidate through the same audited
// path an automatic run uses. actor names who approved it.
func (e *Executor) ApplyOne(ctx context.Context, cand *models.Candidate, actor string) models.ActionResult {
	return e.run(ctx, uuid.NewString(), cand, models.EventActionReview, actor)
}

func (e *Executor) run(ctx context.Context, runID string, cand *models.Candidate, eventType, actor string) models.ActionResult {
	log := e.log.WithRun(runID)
	start := e.now()

	var execErr error
	if strings.TrimSpace(cand.Statement) == "" {
		execErr = errors.New(errors.ErrCodeInvalidInput, "Candidate has no executable statement")
	} else {
		execErr = e.execute(ctx, cand.Statement)
	}
	duration := e.now().Sub(start)

	res := models.ActionResult{
		ActionID:  cand.ID,
		EntityKey: cand.EntityKey,
		Category:  cand.Category,
		Statement: cand.Statement,
		Status:    models.ActionSuccess,
		Duration:  duration,
	}
	if execErr != nil {
		res.Status = models.ActionFailed
		res.Error = execErr.Error()
		log.Error("Action failed",
			logger.String("entity", cand.EntityKey),
			logger.String("category", cand.Category),
			logger.String("statement", cand.Statement),
			logger.Error(execErr))
	} else {
		log.Info("Action applied",
			logger.String("entity", cand.EntityKey),
			logger.String("category", cand.Category),
			logger.Duration("duration", duration))
	}

	entry := &models.AuditEntry{
		RunID:       runID,
		EventType:   eventType,
		Actor:       actor,
		EntityKey:   cand.EntityKey,
		Category:    cand.Category,
		Statement:   cand.Statement,
		Disposition: string(cand.Disposition),
		Result:      res.Status,
		Error:       res.Error,
		DurationMS:  duration.Milliseconds(),
	}
	if err := e.audit.Append(entry); err != nil {
		log.Error("Audit append failed",
			logger.String("entity", cand.EntityKey),
			logger.Error(err))
	}

	metrics.ActionsTotal.WithLabelValues(cand.Category, res.Status).Inc()
	metrics.ActionDuration.WithLabelValues(cand.Category).Observe(duration.Seconds())
	return res
}

// execute shields the run from a panicking target.
func (e *Executor) execute(ctx context.Context, statement string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New(errors.ErrCodeInternal, fmt.Sprintf("Execution panicked: %v", r))
		}
	}()
	return e.target.Execute(ctx, statement)
}

// sortCandidates orders by entity key, then category, then rule name.
func sortCandidates(cands []*models.Candidate) {
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].EntityKey != cands[j].EntityKey {
			return cands[i].EntityKey < cands[j].EntityKey
		}
		if cands[i].Category != cands[j].Category {
			return cands[i].Category < cands[j].Category
		}
		return cands[i].RuleName < cands[j].RuleName
	})
}
