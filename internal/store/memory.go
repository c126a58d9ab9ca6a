package store

import (
	"sort"
	"sync"
	"time"

	"snowpilot/pkg/models"
)

// MemoryStore keeps all datasets in process memory. Snapshot publishes swap
// a single pointer under the write lock, so readers always see a complete
// set. Callers must not mutate a set after publishing it.
type MemoryStore struct {
	mu sync.RWMutex

	observations map[string]models.Observation

	signals       *models.SignalSet
	signalVersion uint64
	candidates    *models.CandidateSet
	candVersion   uint64

	pipelines map[string]models.PipelineRequest

	audit []*models.AuditEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		observations: make(map[string]models.Observation),
		pipelines:    make(map[string]models.PipelineRequest),
	}
}

// UpsertObservations writes rows keyed by natural key. Re-ingesting the same
// window replaces rows instead of duplicating them. Returns rows written.
func (m *MemoryStore) UpsertObservations(obs []models.Observation) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, o := range obs {
		if o.IngestedAt.IsZero() {
			o.IngestedAt = time.Now().UTC()
		}
		m.observations[o.NaturalKey()] = o
	}
	return len(obs), nil
}

// Observations returns all stored rows ordered by natural key.
func (m *MemoryStore) Observations() ([]models.Observation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.observations))
	for k := range m.observations {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]models.Observation, 0, len(keys))
	for _, k := range keys {
		out = append(out, m.observations[k])
	}
	return out, nil
}

func (m *MemoryStore) ObservationCount() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.observations), nil
}

// PublishSignals replaces the signal snapshot and bumps its version.
func (m *MemoryStore) PublishSignals(set *models.SignalSet) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.signalVersion++
	set.Version = m.signalVersion
	m.signals = set
	return set.Version, nil
}

func (m *MemoryStore) CurrentSignals() (*models.SignalSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.signals, nil
}

// PublishCandidates replaces the candidate snapshot and bumps its version.
func (m *MemoryStore) PublishCandidates(set *models.CandidateSet) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.candVersion++
	set.Version = m.candVersion
	m.candidates = set
	return set.Version, nil
}

func (m *MemoryStore) CurrentCandidates() (*models.CandidateSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.candidates, nil
}

// SavePipeline upserts a pipeline request by ID.
func (m *MemoryStore) SavePipeline(req *models.PipelineRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pipelines[req.ID] = *req
	return nil
}

func (m *MemoryStore) GetPipeline(id string) (*models.PipelineRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	req, ok := m.pipelines[id]
	if !ok {
		return nil, nil
	}
	out := req
	return &out, nil
}

// ListPipelines returns requests with the given status, or all of them when
// status is empty, ordered by ID.
func (m *MemoryStore) ListPipelines(status models.PipelineStatus) ([]*models.PipelineRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.pipelines))
	for id, req := range m.pipelines {
		if status != "" && req.Status != status {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]*models.PipelineRequest, 0, len(ids))
	for _, id := range ids {
		req := m.pipelines[id]
		out = append(out, &req)
	}
	return out, nil
}

// AppendAudit appends an entry. Entries are never updated or removed.
func (m *MemoryStore) AppendAudit(entry *models.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, entry)
	return nil
}

// AuditEntries returns entries matching the filter in append order.
func (m *MemoryStore) AuditEntries(filter AuditFilter) ([]*models.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.AuditEntry, 0)
	for _, e := range m.audit {
		if !filter.Matches(e) {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) LastAudit() (*models.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.audit) == 0 {
		return nil, nil
	}
	return m.audit[len(m.audit)-1], nil
}

func (m *MemoryStore) Close() error {
	return nil
}
