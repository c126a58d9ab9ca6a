package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowpilot/pkg/models"
)

func writePack(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pack.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadPack(t *testing.T) {
	path := writePack(t, `
rules:
  - name: weekend-suspend
    category: IDLE
    when_all:
      - metric: query_count
        stat: max
        op: "=="
        value: 0
    rationale: "No queries on {{.entity}}"
    statement: "ALTER WAREHOUSE {{.entity}} SUSPEND"
    params:
      note: custom
`)

	rules, err := LoadPack(path)
	require.NoError(t, err)
	require.Len(t, rules, 1)

	rule := rules[0]
	assert.Equal(t, "weekend-suspend", rule.Name)
	assert.Equal(t, "IDLE", rule.Category)
	require.Len(t, rule.When, 1)
	assert.Equal(t, "query_count", rule.When[0].Metric)
	assert.Equal(t, "==", rule.When[0].Op)
	assert.Equal(t, "custom", rule.Params["note"])
}

func TestLoadPackErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "unknown operator",
			content: `
rules:
  - name: bad-op
    category: IDLE
    when_all:
      - metric: utilization
        stat: mean
        op: "~"
        value: 0
`,
		},
		{
			name: "unknown stat",
			content: `
rules:
  - name: bad-stat
    category: IDLE
    when_all:
      - metric: utilization
        stat: variance
        op: ">"
        value: 0
`,
		},
		{
			name:    "rule without name",
			content: "rules:\n  - category: IDLE\n",
		},
		{
			name:    "not yaml",
			content: "rules: [unclosed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writePack(t, tt.content)
			_, err := LoadPack(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadPackMissingFile(t *testing.T) {
	_, err := LoadPack(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestBuildChainPackBeforeBuiltin(t *testing.T) {
	path := writePack(t, `
rules:
  - name: always-first
    category: CUSTOM
    rationale: "Custom rule for {{.entity}}"
    statement: ""
`)

	chain, err := BuildChain([]string{path}, DefaultChain(models.Thresholds{}))
	require.NoError(t, err)

	builtin := DefaultChain(models.Thresholds{})
	require.Len(t, chain, len(builtin)+1)
	assert.Equal(t, "always-first", chain[0].Name)
	assert.Equal(t, "no-baseline", chain[1].Name)
	assert.Equal(t, "low-utilization-downsize", chain[len(chain)-1].Name)
}

func TestBuildChainCompilesTemplates(t *testing.T) {
	chain, err := BuildChain(nil, DefaultChain(models.Thresholds{}))
	require.NoError(t, err)

	for _, rule := range chain {
		assert.NotNil(t, rule.rationaleTmpl, rule.Name)
		assert.NotNil(t, rule.statementTmpl, rule.Name)
	}
}

func TestBuildChainRejectsBadTemplate(t *testing.T) {
	path := writePack(t, `
rules:
  - name: broken-template
    category: CUSTOM
    rationale: "{{.entity"
`)

	_, err := BuildChain([]string{path}, nil)
	assert.Error(t, err)
}

func TestDefaultChainThresholds(t *testing.T) {
	chain := DefaultChain(models.Thresholds{LowUtilization: 0.2, HighUtilization: 0.9, QueueDepth: 3})

	var downsize, upsize, queue *Rule
	for i := range chain {
		switch chain[i].Name {
		case "low-utilization-downsize":
			downsize = &chain[i]
		case "high-utilization-upsize":
			upsize = &chain[i]
		case "queue-pressure-upsize":
			queue = &chain[i]
		}
	}

	require.NotNil(t, downsize)
	require.NotNil(t, upsize)
	require.NotNil(t, queue)
	assert.Equal(t, 0.2, downsize.When[0].Value)
	assert.Equal(t, 0.9, upsize.When[0].Value)
	assert.Equal(t, 3.0, queue.When[0].Value)
}

func TestNormalizeThresholds(t *testing.T) {
	got := NormalizeThresholds(models.Thresholds{})
	assert.Equal(t, DefaultLowUtilization, got.LowUtilization)
	assert.Equal(t, DefaultHighUtilization, got.HighUtilization)
	assert.Equal(t, DefaultQueueDepth, got.QueueDepth)
	assert.Equal(t, DefaultMinSamples, got.MinSamples)

	partial := NormalizeThresholds(models.Thresholds{LowUtilization: 0.25})
	assert.Equal(t, 0.25, partial.LowUtilization)
	assert.Equal(t, DefaultHighUtilization, partial.HighUtilization)
}
