package audit

import "time"

// Action names a record lifecycle change.
type Action string

const (
	ActionRecordAdded   Action = "record.added"
	ActionRecordUpdated Action = "record.updated"
	ActionRecordDeleted Action = "record.deleted"
)

// Event is emitted after a successful record write. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp  time.Time `json:"timestamp"`
	Action     Action    `json:"action"`
	WalletID   string    `json:"wallet_id,omitempty"`
	RecordType string    `json:"record_type"`
	RecordID   string    `json:"record_id"`
	// State is the record's state after the write; empty for deletes.
	State     string `json:"state,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Key groups events for one record, used as the partition key by sinks that
// preserve per-record ordering.
func (e Event) Key() string {
	return e.RecordType + "/" + e.RecordID
}
