package domain

import (
	"encoding/json"
	"time"
)

type Operation string

const (
	OpInsert Operation = "INSERT"
	OpUpdate Operation = "UPDATE"
	OpDelete Operation = "DELETE"
)

func (o Operation) Valid() bool {
	switch o {
	case OpInsert, OpUpdate, OpDelete:
		return true
	}
	return false
}

// JournalEntry is one immutable record in the append-only change journal.
// SequenceID is assigned by the node that appended the entry; OriginNodeID
// is the node where the mutation was first made and survives relaying.
type JournalEntry struct {
	SequenceID    int64           `json:"sequence_id"`
	OriginNodeID  string          `json:"origin_node_id"`
	TableName     string          `json:"table_name"`
	Operation     Operation       `json:"operation"`
	RecordID      string          `json:"record_id"`
	BeforePayload json.RawMessage `json:"before_payload,omitempty"`
	AfterPayload  json.RawMessage `json:"after_payload,omitempty"`
	Checksum      string          `json:"checksum"`
	CreatedAt     time.Time       `json:"created_at"`
}

type PullRequest struct {
	SessionID    string `json:"session_id"`
	SourceNodeID string `json:"source_node_id" validate:"required"`
	Watermark    int64  `json:"watermark" validate:"min=0"`
	MaxEvents    int    `json:"max_events" validate:"required,min=1,max=1000"`
}

type PullResponse struct {
	Events        []*JournalEntry `json:"events"`
	HasMoreEvents bool            `json:"has_more_events"`
	SyncTime      time.Time       `json:"sync_time"`
}

// ApplyResult summarizes one apply batch. Watermark is the highest
// contiguous successfully-applied sequence; it never moves past the first
// failed event.
type ApplyResult struct {
	Applied         int     `json:"applied"`
	Skipped         int     `json:"skipped"`
	Failed          int     `json:"failed"`
	FailedSequences []int64 `json:"failed_sequences,omitempty"`
	Watermark       int64   `json:"watermark"`
}
