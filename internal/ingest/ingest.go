package ingest

import (
	"context"

	"snowpilot/internal/logger"
	"snowpilot/internal/metrics"
	"snowpilot/internal/store"
	"snowpilot/pkg/errors"
	"snowpilot/pkg/models"
)

// Source supplies observation rows for one ingestion run.
type Source interface {
	Name() string
	Collect(ctx context.Context) ([]models.Observation, error)
}

// Ingester pulls rows from every registered source and upserts them into
// the observation store by natural key.
type Ingester struct {
	store   store.Store
	sources []Source
	log     logger.Logger
}

// New creates an ingester over the given sources.
func New(st store.Store, log logger.Logger, sources ...Source) *Ingester {
	return &Ingester{store: st, sources: sources, log: log.WithStage("ingest")}
}

// Register adds a source.
func (i *Ingester) Register(src Source) {
	i.sources = append(i.sources, src)
}

// Run performs one ingestion pass. All sources are drained before anything
// is written, so a failing source aborts the run and leaves the store
// exactly as it was. Returns the number of rows upserted.
func (i *Ingester) Run(ctx context.Context) (int, error) {
	if len(i.sources) == 0 {
		return 0, errors.New(errors.ErrCodeIngestAborted, "No observation sources registered").
			WithSuggestions("Register a telemetry or file source before ingesting")
	}

	collected := make(map[string][]models.Observation, len(i.sources))
	for _, src := range i.sources {
		rows, err := src.Collect(ctx)
		if err != nil {
			return 0, errors.SourceError(src.Name(), err)
		}
		collected[src.Name()] = rows
	}

	total := 0
	for name, rows := range collected {
		if len(rows) == 0 {
			continue
		}
		n, err := i.store.UpsertObservations(rows)
		if err != nil {
			return total, errors.Wrap(err, errors.ErrCodeIngestAborted, "Failed to upsert observations").
				WithContext("source", name)
		}
		metrics.ObservationsIngestedTotal.WithLabelValues(name).Add(float64(n))
		total += n
	}

	if count, err := i.store.ObservationCount(); err == nil {
		metrics.ObservationStoreSize.Set(float64(count))
	}

	i.log.Info("Ingestion complete", logger.Int("rows", total), logger.Int("sources", len(i.sources)))
	return total, nil
}
