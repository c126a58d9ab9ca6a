package store

import (
	"time"

	"snowpilot/internal/logger"
	"snowpilot/pkg/errors"
	"snowpilot/pkg/models"
)

// Store persists the four loop datasets: observations, the signal snapshot,
// the candidate snapshot and the audit log, plus pipeline intake rows for
// the factory. Observations upsert by natural key; snapshots replace
// wholesale; the audit log only appends.
type Store interface {
	// Observation dataset
	UpsertObservations(obs []models.Observation) (int, error)
	Observations() ([]models.Observation, error)
	ObservationCount() (int, error)

	// Signal snapshot. Publish assigns and returns the next version.
	PublishSignals(set *models.SignalSet) (uint64, error)
	CurrentSignals() (*models.SignalSet, error)

	// Candidate snapshot. Publish assigns and returns the next version.
	PublishCandidates(set *models.CandidateSet) (uint64, error)
	CurrentCandidates() (*models.CandidateSet, error)

	// Pipeline intake
	SavePipeline(req *models.PipelineRequest) error
	GetPipeline(id string) (*models.PipelineRequest, error)
	ListPipelines(status models.PipelineStatus) ([]*models.PipelineRequest, error)

	// Audit log, append only
	AppendAudit(entry *models.AuditEntry) error
	AuditEntries(filter AuditFilter) ([]*models.AuditEntry, error)
	LastAudit() (*models.AuditEntry, error)

	Close() error
}

// AuditFilter narrows audit queries. Zero values match everything.
type AuditFilter struct {
	RunID     string
	EntityKey string
	Category  string
	Result    string
	EventType string
	Since     time.Time
	Until     time.Time
	Limit     int
}

// Matches reports whether an entry passes the filter.
func (f AuditFilter) Matches(e *models.AuditEntry) bool {
	if f.RunID != "" && e.RunID != f.RunID {
		return false
	}
	if f.EntityKey != "" && e.EntityKey != f.EntityKey {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.Result != "" && e.Result != f.Result {
		return false
	}
	if f.EventType != "" && e.EventType != f.EventType {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && e.Timestamp.After(f.Until) {
		return false
	}
	return true
}

// New creates a store from configuration. Memory is the default engine;
// badger keeps the datasets across restarts.
func New(cfg models.Store, log logger.Logger) (Store, error) {
	switch cfg.Engine {
	case "", "memory":
		log.Info("Using in-memory store")
		return NewMemoryStore(), nil
	case "badger":
		log.Info("Using badger store", logger.String("path", cfg.Path))
		return NewBadgerStore(cfg.Path, log)
	default:
		return nil, errors.New(errors.ErrCodeConfigInvalid,
			"Unsupported store engine: "+cfg.Engine).
			WithContext("engine", cfg.Engine).
			WithSuggestions("Set store.engine to 'memory' or 'badger'")
	}
}
