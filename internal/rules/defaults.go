package rules

import "snowpilot/pkg/models"

// Default thresholds for the built-in chain.
const (
	DefaultLowUtilization  = 0.4
	DefaultHighUtilization = 0.8
	DefaultQueueDepth      = 1.0
	DefaultMinSamples      = 6
)

// NormalizeThresholds fills zero values with the defaults.
func NormalizeThresholds(t models.Thresholds) models.Thresholds {
	if t.LowUtilization <= 0 {
		t.LowUtilization = DefaultLowUtilization
	}
	if t.HighUtilization <= 0 {
		t.HighUtilization = DefaultHighUtilization
	}
	if t.QueueDepth <= 0 {
		t.QueueDepth = DefaultQueueDepth
	}
	if t.MinSamples <= 0 {
		t.MinSamples = DefaultMinSamples
	}
	return t
}

// DefaultChain returns the built-in warehouse right-sizing rules in
// priority order. Entities without a baseline are caught first, then load
// problems in decreasing urgency; the downsize rule only fires when there
// was no queueing at all in the window.
func DefaultChain(t models.Thresholds) []Rule {
	t = NormalizeThresholds(t)

	return []Rule{
		{
			Name:           "no-baseline",
			Category:       models.CategoryNoBaseline,
			Classification: models.ClassificationNoBaseline,
			Rationale:      "Warehouse {{.entity}} has insufficient telemetry ({{.sample_count}} samples) to evaluate sizing",
			Statement:      "",
		},
		{
			Name:     "idle-suspend",
			Category: models.CategoryIdle,
			When: []Condition{
				{Metric: "utilization", Stat: "max", Op: "==", Value: 0},
			},
			Rationale: "Warehouse {{.entity}} ran no queries across {{.sample_count}} samples; suspend it to stop credit burn",
			Statement: "ALTER WAREHOUSE {{.entity}} SUSPEND",
		},
		{
			Name:     "queue-pressure-upsize",
			Category: models.CategoryQueueHeavy,
			When: []Condition{
				{Metric: "queue_depth", Stat: "mean", Op: ">", Value: t.QueueDepth},
			},
			Rationale: "Warehouse {{.entity}} queued {{.queue_depth_mean}} queries on average; upsize from {{.size}} to {{.target_size_up}}",
			Statement: "ALTER WAREHOUSE {{.entity}} SET WAREHOUSE_SIZE = '{{.target_size_up}}'",
		},
		{
			Name:     "high-utilization-upsize",
			Category: models.CategoryOverloaded,
			When: []Condition{
				{Metric: "utilization", Stat: "mean", Op: ">=", Value: t.HighUtilization},
			},
			Rationale: "Warehouse {{.entity}} averaged {{.utilization_mean}} running queries over {{.sample_count}} samples; upsize from {{.size}} to {{.target_size_up}}",
			Statement: "ALTER WAREHOUSE {{.entity}} SET WAREHOUSE_SIZE = '{{.target_size_up}}'",
		},
		{
			Name:     "low-utilization-downsize",
			Category: models.CategoryUnderutilized,
			When: []Condition{
				{Metric: "utilization", Stat: "mean", Op: "<", Value: t.LowUtilization},
				{Metric: "queue_depth", Stat: "max", Op: "==", Value: 0},
			},
			Rationale: "Warehouse {{.entity}} averaged {{.utilization_mean}} running queries with no queueing over {{.sample_count}} samples; downsize from {{.size}} to {{.target_size_down}}",
			Statement: "ALTER WAREHOUSE {{.entity}} SET WAREHOUSE_SIZE = '{{.target_size_down}}'",
		},
	}
}
