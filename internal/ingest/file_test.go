package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeObservationFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "observations.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileSourceCollect(t *testing.T) {
	path := writeObservationFile(t, `
- entity_key: ETL_WH
  metric: utilization
  window_start: 2026-03-01T00:00:00Z
  window_end: 2026-03-01T01:00:00Z
  value: 0.42
  dimensions:
    size: LARGE
- entity_key: ETL_WH
  metric: queue_depth
  window_start: 2026-03-01T00:00:00Z
  value: 3
`)

	src := NewFileSource(path)
	assert.Equal(t, "file:"+path, src.Name())

	rows, err := src.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "ETL_WH", rows[0].EntityKey)
	assert.Equal(t, "utilization", rows[0].Metric)
	assert.Equal(t, 0.42, rows[0].Value)
	assert.Equal(t, "LARGE", rows[0].Dimensions["size"])
	assert.False(t, rows[0].IngestedAt.IsZero())

	// Rows without an end default to an hourly window.
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, start, rows[1].WindowStart)
	assert.Equal(t, start.Add(time.Hour), rows[1].WindowEnd)
}

func TestFileSourceCollectErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "missing entity_key",
			content: "- metric: utilization\n  window_start: 2026-03-01T00:00:00Z\n  value: 1\n",
		},
		{
			name:    "missing metric",
			content: "- entity_key: ETL_WH\n  window_start: 2026-03-01T00:00:00Z\n  value: 1\n",
		},
		{
			name:    "missing window_start",
			content: "- entity_key: ETL_WH\n  metric: utilization\n  value: 1\n",
		},
		{
			name:    "not yaml",
			content: "entity_key: [unclosed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := NewFileSource(writeObservationFile(t, tt.content))
			_, err := src.Collect(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestFileSourceMissingFile(t *testing.T) {
	src := NewFileSource(filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := src.Collect(context.Background())
	assert.Error(t, err)
}
