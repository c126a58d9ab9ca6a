package models

import "time"

// PipelineStatus tracks a pipeline request through the factory sweep.
type PipelineStatus string

const (
	PipelinePending PipelineStatus = "PENDING"
	PipelineActive  PipelineStatus = "ACTIVE"
	PipelineFailed  PipelineStatus = "FAILED"
)

// Lag bounds for pipeline refresh cadence, in minutes.
const (
	MinPipelineLagMinutes = 1
	MaxPipelineLagMinutes = 1440
)

// PipelineRequest is one row of factory work intake: a read-only
// transformation to materialise as a refreshing table. Requests enter as
// PENDING and the sweep flips them to ACTIVE or FAILED.
type PipelineRequest struct {
	ID             string         `yaml:"id" json:"id"`
	SourceTable    string         `yaml:"source_table" json:"source_table"`
	Transformation string         `yaml:"transformation" json:"transformation"`
	TargetDatabase string         `yaml:"target_database" json:"target_database"`
	TargetSchema   string         `yaml:"target_schema" json:"target_schema"`
	TargetName     string         `yaml:"target_name" json:"target_name"`
	LagMinutes     int            `yaml:"lag_minutes" json:"lag_minutes"`
	Warehouse      string         `yaml:"warehouse" json:"warehouse"`
	Status         PipelineStatus `yaml:"status" json:"status"`
	RequestedBy    string         `yaml:"requested_by" json:"requested_by"`
	RequestedAt    time.Time      `yaml:"requested_at" json:"requested_at"`
	ActivatedAt    *time.Time     `yaml:"activated_at,omitempty" json:"activated_at,omitempty"`
	Error          string         `yaml:"error,omitempty" json:"error,omitempty"`
}

// QualifiedTarget returns the fully qualified name of the table the request
// materialises.
func (p PipelineRequest) QualifiedTarget() string {
	return p.TargetDatabase + "." + p.TargetSchema + "." + p.TargetName
}
