package aggregate

import (
	"context"
	"time"

	"snowpilot/internal/logger"
	"snowpilot/internal/metrics"
	"snowpilot/internal/store"
	"snowpilot/pkg/errors"
	"snowpilot/pkg/models"
)

// Aggregator derives per-entity signals from the observation store and
// publishes them as a complete versioned snapshot. A refresh never fails on
// missing data: entities without enough in-window samples are classified
// NO_BASELINE instead.
type Aggregator struct {
	store      store.Store
	lookback   time.Duration
	minSamples int
	log        logger.Logger
	now        func() time.Time
}

// New creates an aggregator. minSamples below 1 is treated as 1.
func New(st store.Store, lookback time.Duration, minSamples int, log logger.Logger) *Aggregator {
	if lookback <= 0 {
		lookback = 24 * time.Hour
	}
	if minSamples < 1 {
		minSamples = 1
	}
	return &Aggregator{
		store:      st,
		lookback:   lookback,
		minSamples: minSamples,
		log:        log.WithStage("aggregate"),
		now:        time.Now,
	}
}

type entityAcc struct {
	metrics map[string][]float64
	attrs   map[string]string
	attrsAt time.Time
	samples int
}

// Refresh computes and publishes a new signal snapshot. Readers of the
// previous snapshot are unaffected until the publish completes.
func (a *Aggregator) Refresh(ctx context.Context) (*models.SignalSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	obs, err := a.store.Observations()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreReadFailed, "Failed to read observations")
	}

	windowEnd := a.now().UTC()
	windowStart := windowEnd.Add(-a.lookback)

	// Every entity ever observed gets a signal; those without in-window
	// samples come out NO_BASELINE.
	entities := make(map[string]*entityAcc)
	for _, o := range obs {
		acc, ok := entities[o.EntityKey]
		if !ok {
			acc = &entityAcc{metrics: make(map[string][]float64)}
			entities[o.EntityKey] = acc
		}

		if len(o.Dimensions) > 0 && (acc.attrs == nil || o.WindowStart.After(acc.attrsAt)) {
			acc.attrs = o.Dimensions
			acc.attrsAt = o.WindowStart
		}

		if o.WindowStart.Before(windowStart) || !o.WindowStart.Before(windowEnd) {
			continue
		}
		acc.metrics[o.Metric] = append(acc.metrics[o.Metric], o.Value)
		acc.samples++
	}

	signals := make(map[string]*models.Signal, len(entities))
	baselined := 0
	for key, acc := range entities {
		sig := &models.Signal{
			EntityKey:   key,
			Attributes:  acc.attrs,
			SampleCount: acc.samples,
			WindowStart: windowStart,
			WindowEnd:   windowEnd,
		}

		if acc.samples < a.minSamples {
			sig.Classification = models.ClassificationNoBaseline
		} else {
			sig.Classification = models.ClassificationOK
			sig.Metrics = make(map[string]models.Stats, len(acc.metrics))
			for metric, values := range acc.metrics {
				sig.Metrics[metric] = computeStats(values)
			}
			baselined++
		}
		signals[key] = sig
	}

	set := &models.SignalSet{
		ProducedAt:  windowEnd,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		Signals:     signals,
	}

	version, err := a.store.PublishSignals(set)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreWriteFailed, "Failed to publish signal snapshot")
	}

	metrics.SnapshotVersion.WithLabelValues("signals").Set(float64(version))
	metrics.SnapshotAge.WithLabelValues("signals").Set(0)

	a.log.Info("Signal snapshot published",
		logger.Uint64("version", version),
		logger.Int("entities", len(signals)),
		logger.Int("baselined", baselined),
		logger.Int("observations", len(obs)))

	return set, nil
}
