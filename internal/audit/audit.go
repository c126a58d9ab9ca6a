package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"snowpilot/internal/logger"
	"snowpilot/internal/metrics"
	"snowpilot/internal/store"
	"snowpilot/pkg/errors"
	"snowpilot/pkg/models"
)

// Log is the append-only action log. Every entry is chained to its
// predecessor by a SHA-256 hash so tampering with history is detectable.
// Entries are persisted through the store and optionally mirrored to a
// writer (JSONL file or stdout).
type Log struct {
	store  store.Store
	writer Writer
	log    logger.Logger

	mu       sync.Mutex
	lastHash string
	loaded   bool
}

// New creates an action log backed by the given store. writer may be nil.
func New(st store.Store, writer Writer, log logger.Logger) *Log {
	if log == nil {
		log = logger.NewNop()
	}
	return &Log{
		store:  st,
		writer: writer,
		log:    log.WithStage("audit"),
	}
}

// Append records one entry at the head of the chain. The entry's ID,
// Timestamp, PrevHash and Hash fields are filled in here; callers supply
// the rest. Append never mutates an entry that failed to persist.
func (l *Log) Append(entry *models.AuditEntry) error {
	if entry == nil {
		return errors.New(errors.ErrCodeInvalidInput, "Audit entry cannot be nil")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureChainHead(); err != nil {
		return err
	}

	rec := *entry
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	rec.PrevHash = l.lastHash
	rec.Hash = computeHash(&rec)

	if err := l.store.AppendAudit(&rec); err != nil {
		return errors.Wrap(err, errors.ErrCodeAuditAppendFailed, "Failed to persist audit entry").
			WithContext("entity", rec.EntityKey).
			WithContext("event_type", rec.EventType)
	}
	l.lastHash = rec.Hash
	*entry = rec

	if l.writer != nil {
		if err := l.writer.Write(&rec); err != nil {
			// The store copy is authoritative; a mirror failure is loud
			// but does not fail the append.
			l.log.Error("Audit mirror write failed", logger.Error(err))
		}
	}

	metrics.AuditEntriesTotal.WithLabelValues(rec.Result).Inc()
	return nil
}

// Query returns entries matching the filter, oldest first.
func (l *Log) Query(filter store.AuditFilter) ([]*models.AuditEntry, error) {
	return l.store.AuditEntries(filter)
}

// Verify walks the full chain and recomputes every hash. It returns the
// number of entries checked and an error describing the first break.
func (l *Log) Verify() (int, error) {
	entries, err := l.store.AuditEntries(store.AuditFilter{})
	if err != nil {
		return 0, err
	}

	prevHash := ""
	for i, entry := range entries {
		if entry.PrevHash != prevHash {
			return i, errors.New(errors.ErrCodeIntegrityCheckFailed,
				fmt.Sprintf("Hash chain broken at entry %s", entry.ID)).
				WithContext("index", i).
				WithContext("expected_prev", prevHash).
				WithContext("actual_prev", entry.PrevHash)
		}
		if computeHash(entry) != entry.Hash {
			return i, errors.New(errors.ErrCodeIntegrityCheckFailed,
				fmt.Sprintf("Hash mismatch at entry %s", entry.ID)).
				WithContext("index", i)
		}
		prevHash = entry.Hash
	}
	return len(entries), nil
}

// Close flushes and closes the mirror writer, if any.
func (l *Log) Close() error {
	if l.writer != nil {
		return l.writer.Close()
	}
	return nil
}

// ensureChainHead lazily recovers the chain head from the store so the
// chain survives restarts. Caller holds l.mu.
func (l *Log) ensureChainHead() error {
	if l.loaded {
		return nil
	}
	last, err := l.store.LastAudit()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStoreReadFailed, "Failed to load audit chain head")
	}
	if last != nil {
		l.lastHash = last.Hash
	}
	l.loaded = true
	return nil
}

func computeHash(entry *models.AuditEntry) string {
	rec := *entry
	rec.Hash = ""

	data, _ := json.Marshal(rec)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
