package domain

import (
	"encoding/json"
	"time"
)

// Record is one row of the generic business-data surface: an opaque JSON
// payload keyed by logical table name and record id. Payload validation
// belongs to the business layer, not the sync core.
type Record struct {
	TableName string          `json:"table_name"`
	RecordID  string          `json:"record_id"`
	Payload   json.RawMessage `json:"payload"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type UpsertRecordRequest struct {
	TableName string          `json:"table_name" validate:"required"`
	RecordID  string          `json:"record_id" validate:"required"`
	Payload   json.RawMessage `json:"payload" validate:"required"`
}
