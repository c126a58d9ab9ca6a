package models

import (
	"fmt"
	"time"
)

// Disposition decides what the executor may do with a candidate. Anything
// that is not explicitly AUTO_ELIGIBLE stays queued for a human.
type Disposition string

const (
	DispositionAutoEligible   Disposition = "AUTO_ELIGIBLE"
	DispositionReviewRequired Disposition = "REVIEW_REQUIRED"
)

// Built-in candidate categories produced by the default rule chain.
const (
	CategoryUnderutilized = "UNDERUTILIZED"
	CategoryOverloaded    = "OVERLOADED"
	CategoryQueueHeavy    = "QUEUE_HEAVY"
	CategoryIdle          = "IDLE"
	CategoryNoBaseline    = "NO_BASELINE"
)

// Signal classifications assigned by the aggregator.
const (
	ClassificationOK         = "OK"
	ClassificationNoBaseline = "NO_BASELINE"
)

// Action outcomes recorded in the audit log.
const (
	ActionSuccess = "SUCCESS"
	ActionFailed  = "FAILED"
)

// Observation is one time-stamped measurement for an entity. Observations
// with the same natural key replace each other on re-ingestion.
type Observation struct {
	EntityKey   string            `json:"entity_key"`
	Metric      string            `json:"metric"`
	WindowStart time.Time         `json:"window_start"`
	WindowEnd   time.Time         `json:"window_end"`
	Value       float64           `json:"value"`
	Dimensions  map[string]string `json:"dimensions,omitempty"`
	IngestedAt  time.Time         `json:"ingested_at"`
}

// NaturalKey identifies the measurement independent of when it was ingested.
func (o Observation) NaturalKey() string {
	return fmt.Sprintf("%s|%s|%s", o.EntityKey, o.Metric, o.WindowStart.UTC().Format(time.RFC3339))
}

// Stats holds the rollup of one metric over the lookback window.
type Stats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	StdDev float64 `json:"std_dev"`
	P95    float64 `json:"p95"`
	Median float64 `json:"median"`
	MAD    float64 `json:"mad"`
}

// Signal is the aggregated state of one entity over the lookback window.
// Attributes carry the latest observed dimensions for the entity, such as
// the current warehouse size.
type Signal struct {
	EntityKey      string            `json:"entity_key"`
	Metrics        map[string]Stats  `json:"metrics"`
	Attributes     map[string]string `json:"attributes,omitempty"`
	SampleCount    int               `json:"sample_count"`
	Classification string            `json:"classification"`
	WindowStart    time.Time         `json:"window_start"`
	WindowEnd      time.Time         `json:"window_end"`
}

// Stat returns the rollup for a metric and whether it was computed.
func (s *Signal) Stat(metric string) (Stats, bool) {
	st, ok := s.Metrics[metric]
	return st, ok
}

// SignalSet is a complete, immutable aggregation result. A new refresh
// replaces the whole set; Version increases by one each publish.
type SignalSet struct {
	Version     uint64             `json:"version"`
	ProducedAt  time.Time          `json:"produced_at"`
	WindowStart time.Time          `json:"window_start"`
	WindowEnd   time.Time          `json:"window_end"`
	Signals     map[string]*Signal `json:"signals"`
}

// Candidate is a concrete proposed action for one entity: what to run,
// why, and whether it may run unattended.
type Candidate struct {
	ID            string            `json:"id"`
	EntityKey     string            `json:"entity_key"`
	Category      string            `json:"category"`
	Rationale     string            `json:"rationale"`
	Statement     string            `json:"statement"`
	Params        map[string]string `json:"params,omitempty"`
	Disposition   Disposition       `json:"disposition"`
	RuleName      string            `json:"rule_name"`
	SignalVersion uint64            `json:"signal_version"`
	CreatedAt     time.Time         `json:"created_at"`
}

// CandidateSet is a complete, immutable evaluation result, replacing any
// prior set. Withheld counts candidates suppressed because a template
// parameter could not be resolved.
type CandidateSet struct {
	Version       uint64       `json:"version"`
	ProducedAt    time.Time    `json:"produced_at"`
	SignalVersion uint64       `json:"signal_version"`
	Candidates    []*Candidate `json:"candidates"`
	Withheld      int          `json:"withheld"`
}

// Eligible returns the candidates the gate allows to run unattended.
func (cs *CandidateSet) Eligible() []*Candidate {
	out := make([]*Candidate, 0, len(cs.Candidates))
	for _, c := range cs.Candidates {
		if c.Disposition == DispositionAutoEligible {
			out = append(out, c)
		}
	}
	return out
}

// ActionResult records the outcome of one attempted candidate.
type ActionResult struct {
	ActionID  string        `json:"action_id"`
	EntityKey string        `json:"entity_key"`
	Category  string        `json:"category"`
	Statement string        `json:"statement"`
	Status    string        `json:"status"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// ApplyReport summarises one executor run. Attempted always equals
// Succeeded+Failed; a failed action never stops the run.
type ApplyReport struct {
	RunID      string         `json:"run_id"`
	Attempted  int            `json:"attempted"`
	Succeeded  int            `json:"succeeded"`
	Failed     int            `json:"failed"`
	Results    []ActionResult `json:"results"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}
