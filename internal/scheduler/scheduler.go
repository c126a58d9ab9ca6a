package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"snowpilot/internal/logger"
	"snowpilot/internal/metrics"
)

// stage is one registered loop stage with its own cadence.
type stage struct {
	name    string
	cadence *Cadence
	run     func(ctx context.Context) error
}

// Scheduler drives registered stages on independent cadences. At most one
// run of a stage is active at a time; ticks that arrive while a run is
// still going are skipped, not queued.
type Scheduler struct {
	stages []stage
	log    logger.Logger
}

func New(log logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Scheduler{log: log.WithStage("scheduler")}
}

// Add registers a stage under the given cadence string.
func (s *Scheduler) Add(name, cadence string, run func(ctx context.Context) error) error {
	parsed, err := ParseCadence(cadence)
	if err != nil {
		return err
	}
	s.stages = append(s.stages, stage{name: name, cadence: parsed, run: run})
	return nil
}

// Run blocks driving all registered stages until ctx is cancelled. Stage
// failures are logged and counted; they do not stop the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, st := range s.stages {
		st := st
		g.Go(func() error {
			return s.runStage(ctx, st)
		})
	}
	s.log.Info("Scheduler started", logger.Int("stages", len(s.stages)))
	return g.Wait()
}

func (s *Scheduler) runStage(ctx context.Context, st stage) error {
	log := s.log.WithStage(st.name)

	var busy atomic.Bool
	var inflight sync.WaitGroup

	tick := func() {
		if !busy.CompareAndSwap(false, true) {
			metrics.StageSkippedTotal.WithLabelValues(st.name).Inc()
			log.Warn("Previous run still active, skipping this tick")
			return
		}
		inflight.Add(1)
		go func() {
			defer inflight.Done()
			defer busy.Store(false)
			s.runOnce(ctx, st, log)
		}()
	}

	// The first run fires immediately; the cadence governs the rest.
	tick()

	switch st.cadence.Mode {
	case ModeOnce:
		inflight.Wait()
		return nil

	case ModeInterval:
		ticker := time.NewTicker(st.cadence.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				inflight.Wait()
				return ctx.Err()
			case <-ticker.C:
				tick()
			}
		}

	default:
		for {
			now := time.Now()
			timer := time.NewTimer(st.cadence.Cron.Next(now).Sub(now))
			select {
			case <-ctx.Done():
				timer.Stop()
				inflight.Wait()
				return ctx.Err()
			case <-timer.C:
				tick()
			}
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, st stage, log logger.Logger) {
	start := time.Now()
	err := st.run(ctx)
	elapsed := time.Since(start)
	metrics.StageDuration.WithLabelValues(st.name).Observe(elapsed.Seconds())

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		metrics.StageRunsTotal.WithLabelValues(st.name, "error").Inc()
		log.Error("Stage run failed", logger.Error(err), logger.Duration("duration", elapsed))
		return
	}
	metrics.StageRunsTotal.WithLabelValues(st.name, "ok").Inc()
	log.Debug("Stage run finished", logger.Duration("duration", elapsed))
}
