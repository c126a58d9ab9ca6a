package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowpilot/internal/logger"
	"snowpilot/internal/store"
	"snowpilot/pkg/models"
)

func newTestLog(t *testing.T) (*Log, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	return New(st, nil, logger.NewNop()), st
}

func TestAppendFillsChainFields(t *testing.T) {
	log, _ := newTestLog(t)

	first := &models.AuditEntry{
		RunID:     "r1",
		EventType: models.EventActionApply,
		Actor:     "scheduler",
		EntityKey: "ETL_WH",
		Category:  "IDLE",
		Result:    models.ActionSuccess,
	}
	require.NoError(t, log.Append(first))

	assert.NotEmpty(t, first.ID)
	assert.False(t, first.Timestamp.IsZero())
	assert.NotEmpty(t, first.Hash)
	assert.Empty(t, first.PrevHash)

	second := &models.AuditEntry{
		RunID:     "r1",
		EventType: models.EventActionApply,
		Actor:     "scheduler",
		EntityKey: "BI_WH",
		Category:  "OVERLOADED",
		Result:    models.ActionFailed,
		Error:     "boom",
	}
	require.NoError(t, log.Append(second))

	assert.Equal(t, first.Hash, second.PrevHash)
	assert.NotEqual(t, first.Hash, second.Hash)
}

func TestAppendNilEntry(t *testing.T) {
	log, _ := newTestLog(t)
	assert.Error(t, log.Append(nil))
}

func TestVerifyCleanChain(t *testing.T) {
	log, _ := newTestLog(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, log.Append(&models.AuditEntry{
			RunID:     "r1",
			EventType: models.EventActionApply,
			EntityKey: "ETL_WH",
			Result:    models.ActionSuccess,
		}))
	}

	n, err := log.Verify()
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestVerifyDetectsTamper(t *testing.T) {
	log, st := newTestLog(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, log.Append(&models.AuditEntry{
			RunID:     "r1",
			EventType: models.EventActionApply,
			EntityKey: "ETL_WH",
			Result:    models.ActionSuccess,
		}))
	}

	// Rewrite history behind the log's back.
	entries, err := st.AuditEntries(store.AuditFilter{})
	require.NoError(t, err)
	entries[1].Statement = "DROP WAREHOUSE ETL_WH"

	n, err := log.Verify()
	require.Error(t, err)
	assert.Equal(t, 1, n)
}

func TestVerifyDetectsDeletedEntry(t *testing.T) {
	// Build a chain, then replay it into a fresh store with the middle
	// entry missing.
	log, st := newTestLog(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, log.Append(&models.AuditEntry{
			RunID:     "r1",
			EventType: models.EventActionApply,
			EntityKey: "ETL_WH",
			Result:    models.ActionSuccess,
		}))
	}
	entries, err := st.AuditEntries(store.AuditFilter{})
	require.NoError(t, err)

	pruned := store.NewMemoryStore()
	require.NoError(t, pruned.AppendAudit(entries[0]))
	require.NoError(t, pruned.AppendAudit(entries[2]))

	prunedLog := New(pruned, nil, logger.NewNop())
	_, err = prunedLog.Verify()
	assert.Error(t, err)
}

func TestChainHeadSurvivesRestart(t *testing.T) {
	st := store.NewMemoryStore()

	log := New(st, nil, logger.NewNop())
	first := &models.AuditEntry{RunID: "r1", EventType: models.EventActionApply, Result: models.ActionSuccess}
	require.NoError(t, log.Append(first))

	// A new log over the same store picks the chain up where it ended.
	log2 := New(st, nil, logger.NewNop())
	second := &models.AuditEntry{RunID: "r2", EventType: models.EventActionApply, Result: models.ActionSuccess}
	require.NoError(t, log2.Append(second))

	assert.Equal(t, first.Hash, second.PrevHash)

	n, err := log2.Verify()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestQueryDelegatesFilter(t *testing.T) {
	log, _ := newTestLog(t)

	require.NoError(t, log.Append(&models.AuditEntry{RunID: "r1", EntityKey: "ETL_WH", Result: models.ActionSuccess}))
	require.NoError(t, log.Append(&models.AuditEntry{RunID: "r2", EntityKey: "BI_WH", Result: models.ActionFailed}))

	got, err := log.Query(store.AuditFilter{Result: models.ActionFailed})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "r2", got[0].RunID)
}

func TestFileWriterMirror(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "log.jsonl")

	writer, err := NewFileWriter(path)
	require.NoError(t, err)

	st := store.NewMemoryStore()
	log := New(st, writer, logger.NewNop())

	require.NoError(t, log.Append(&models.AuditEntry{
		RunID:     "r1",
		EventType: models.EventActionApply,
		EntityKey: "ETL_WH",
		Result:    models.ActionSuccess,
	}))
	require.NoError(t, log.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry models.AuditEntry
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "ETL_WH", entry.EntityKey)
	assert.NotEmpty(t, entry.Hash)
}

func TestNewFileWriterRejectsEmptyPath(t *testing.T) {
	_, err := NewFileWriter("")
	assert.Error(t, err)
}
