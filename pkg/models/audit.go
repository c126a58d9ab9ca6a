package models

import "time"

// Audit event types.
const (
	EventActionApply   = "action.apply"
	EventActionReview  = "action.review"
	EventPipelineSweep = "pipeline.sweep"
)

// AuditEntry is one append-only record of an attempted action. Entries are
// hash-chained: Hash covers the entry content plus PrevHash, so any
// rewrite of history breaks verification.
type AuditEntry struct {
	ID          string    `json:"id"`
	RunID       string    `json:"run_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Actor       string    `json:"actor"`
	EntityKey   string    `json:"entity_key"`
	Category    string    `json:"category"`
	Statement   string    `json:"statement"`
	Disposition string    `json:"disposition"`
	Result      string    `json:"result"`
	Error       string    `json:"error,omitempty"`
	DurationMS  int64     `json:"duration_ms"`
	Hash        string    `json:"hash,omitempty"`
	PrevHash    string    `json:"prev_hash,omitempty"`
}
