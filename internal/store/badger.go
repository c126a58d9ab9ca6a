package store

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"snowpilot/internal/logger"
	"snowpilot/pkg/errors"
	"snowpilot/pkg/models"
)

const (
	obsPrefix   = "obs:"
	pipePrefix  = "pipe:"
	auditPrefix = "audit:"

	signalSnapshotKey    = "snap:signals"
	candidateSnapshotKey = "snap:candidates"
)

// BadgerStore persists the datasets in BadgerDB. Snapshot reads are served
// from an in-memory pointer that is replaced only after the write
// transaction commits, so the replace-on-refresh contract holds across the
// persistence boundary too.
type BadgerStore struct {
	db   *badger.DB
	log  logger.Logger
	done chan struct{}

	mu         sync.RWMutex
	signals    *models.SignalSet
	candidates *models.CandidateSet
	auditSeq   uint64
	lastAudit  *models.AuditEntry
}

// NewBadgerStore opens or creates a badger-backed store at path.
func NewBadgerStore(path string, log logger.Logger) (*BadgerStore, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreOpenFailed, "Failed to create store directory").
			WithContext("path", path)
	}

	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreOpenFailed, "Failed to open badger store").
			WithContext("path", path)
	}

	s := &BadgerStore{
		db:   db,
		log:  log,
		done: make(chan struct{}),
	}

	if err := s.loadState(); err != nil {
		_ = db.Close()
		return nil, err
	}

	go s.runGarbageCollection()

	return s, nil
}

// loadState restores the snapshot caches and the audit sequence after a
// restart.
func (s *BadgerStore) loadState() error {
	return s.db.View(func(txn *badger.Txn) error {
		if set, err := readJSON[models.SignalSet](txn, signalSnapshotKey); err != nil {
			return err
		} else if set != nil {
			s.signals = set
		}

		if set, err := readJSON[models.CandidateSet](txn, candidateSnapshotKey); err != nil {
			return err
		} else if set != nil {
			s.candidates = set
		}

		// Recover the audit sequence from the highest stored key.
		it := txn.NewIterator(badger.IteratorOptions{Reverse: true, Prefix: []byte(auditPrefix)})
		defer it.Close()
		it.Seek([]byte(auditPrefix + "\xff"))
		if it.ValidForPrefix([]byte(auditPrefix)) {
			var entry models.AuditEntry
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &entry)
			}); err != nil {
				return errors.Wrap(err, errors.ErrCodeStoreCorrupted, "Failed to decode last audit entry")
			}
			s.lastAudit = &entry
			if _, err := fmt.Sscanf(string(it.Item().Key()), auditPrefix+"%012d", &s.auditSeq); err != nil {
				return errors.Wrap(err, errors.ErrCodeStoreCorrupted, "Unexpected audit key format").
					WithContext("key", string(it.Item().Key()))
			}
		}
		return nil
	})
}

func readJSON[T any](txn *badger.Txn, key string) (*T, error) {
	item, err := txn.Get([]byte(key))
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreReadFailed, "Failed to read "+key)
	}
	var out T
	if err := item.Value(func(v []byte) error { return json.Unmarshal(v, &out) }); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreCorrupted, "Failed to decode "+key)
	}
	return &out, nil
}

func (s *BadgerStore) runGarbageCollection() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			err := s.db.RunValueLogGC(0.5)
			if err != nil && err != badger.ErrNoRewrite {
				s.log.Warn("Badger garbage collection failed", logger.Error(err))
			}
		}
	}
}

// UpsertObservations writes rows keyed by natural key inside one
// transaction; either every row lands or none do.
func (s *BadgerStore) UpsertObservations(obs []models.Observation) (int, error) {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	now := time.Now().UTC()
	for i := range obs {
		if obs[i].IngestedAt.IsZero() {
			obs[i].IngestedAt = now
		}
		data, err := json.Marshal(obs[i])
		if err != nil {
			return 0, errors.Wrap(err, errors.ErrCodeStoreWriteFailed, "Failed to encode observation")
		}
		if err := wb.Set([]byte(obsPrefix+obs[i].NaturalKey()), data); err != nil {
			return 0, errors.Wrap(err, errors.ErrCodeStoreWriteFailed, "Failed to stage observation")
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeStoreWriteFailed, "Failed to commit observations")
	}
	return len(obs), nil
}

// Observations returns all stored rows ordered by natural key.
func (s *BadgerStore) Observations() ([]models.Observation, error) {
	var out []models.Observation
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(obsPrefix), PrefetchValues: true})
		defer it.Close()
		for it.Seek([]byte(obsPrefix)); it.ValidForPrefix([]byte(obsPrefix)); it.Next() {
			var o models.Observation
			if err := it.Item().Value(func(v []byte) error { return json.Unmarshal(v, &o) }); err != nil {
				return errors.Wrap(err, errors.ErrCodeStoreCorrupted, "Failed to decode observation").
					WithContext("key", string(it.Item().Key()))
			}
			out = append(out, o)
		}
		return nil
	})
	return out, err
}

func (s *BadgerStore) ObservationCount() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(obsPrefix)})
		defer it.Close()
		for it.Seek([]byte(obsPrefix)); it.ValidForPrefix([]byte(obsPrefix)); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// PublishSignals persists the snapshot, then swaps the cached pointer.
func (s *BadgerStore) PublishSignals(set *models.SignalSet) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var prev uint64
	if s.signals != nil {
		prev = s.signals.Version
	}
	set.Version = prev + 1

	if err := s.writeJSON(signalSnapshotKey, set); err != nil {
		return 0, err
	}
	s.signals = set
	return set.Version, nil
}

func (s *BadgerStore) CurrentSignals() (*models.SignalSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.signals, nil
}

// PublishCandidates persists the snapshot, then swaps the cached pointer.
func (s *BadgerStore) PublishCandidates(set *models.CandidateSet) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var prev uint64
	if s.candidates != nil {
		prev = s.candidates.Version
	}
	set.Version = prev + 1

	if err := s.writeJSON(candidateSnapshotKey, set); err != nil {
		return 0, err
	}
	s.candidates = set
	return set.Version, nil
}

func (s *BadgerStore) CurrentCandidates() (*models.CandidateSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.candidates, nil
}

func (s *BadgerStore) writeJSON(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStoreWriteFailed, "Failed to encode "+key)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStoreWriteFailed, "Failed to write "+key)
	}
	return nil
}

// SavePipeline upserts a pipeline request by ID.
func (s *BadgerStore) SavePipeline(req *models.PipelineRequest) error {
	return s.writeJSON(pipePrefix+req.ID, req)
}

func (s *BadgerStore) GetPipeline(id string) (*models.PipelineRequest, error) {
	var out *models.PipelineRequest
	err := s.db.View(func(txn *badger.Txn) error {
		req, err := readJSON[models.PipelineRequest](txn, pipePrefix+id)
		if err != nil {
			return err
		}
		out = req
		return nil
	})
	return out, err
}

// ListPipelines returns requests with the given status, or all of them when
// status is empty, ordered by ID.
func (s *BadgerStore) ListPipelines(status models.PipelineStatus) ([]*models.PipelineRequest, error) {
	var out []*models.PipelineRequest
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(pipePrefix), PrefetchValues: true})
		defer it.Close()
		for it.Seek([]byte(pipePrefix)); it.ValidForPrefix([]byte(pipePrefix)); it.Next() {
			var req models.PipelineRequest
			if err := it.Item().Value(func(v []byte) error { return json.Unmarshal(v, &req) }); err != nil {
				return errors.Wrap(err, errors.ErrCodeStoreCorrupted, "Failed to decode pipeline request").
					WithContext("key", string(it.Item().Key()))
			}
			if status != "" && req.Status != status {
				continue
			}
			out = append(out, &req)
		}
		return nil
	})
	return out, err
}

// AppendAudit appends an entry under the next sequence number.
func (s *BadgerStore) AppendAudit(entry *models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.auditSeq + 1
	key := fmt.Sprintf(auditPrefix+"%012d", seq)

	data, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeAuditAppendFailed, "Failed to encode audit entry")
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeAuditAppendFailed, "Failed to append audit entry")
	}

	s.auditSeq = seq
	s.lastAudit = entry
	return nil
}

// AuditEntries returns entries matching the filter in append order.
func (s *BadgerStore) AuditEntries(filter AuditFilter) ([]*models.AuditEntry, error) {
	var out []*models.AuditEntry
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(auditPrefix), PrefetchValues: true})
		defer it.Close()
		for it.Seek([]byte(auditPrefix)); it.ValidForPrefix([]byte(auditPrefix)); it.Next() {
			var e models.AuditEntry
			if err := it.Item().Value(func(v []byte) error { return json.Unmarshal(v, &e) }); err != nil {
				return errors.Wrap(err, errors.ErrCodeStoreCorrupted, "Failed to decode audit entry").
					WithContext("key", string(it.Item().Key()))
			}
			if !filter.Matches(&e) {
				continue
			}
			out = append(out, &e)
			if filter.Limit > 0 && len(out) >= filter.Limit {
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (s *BadgerStore) LastAudit() (*models.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastAudit, nil
}

func (s *BadgerStore) Close() error {
	close(s.done)
	return s.db.Close()
}
