package domain

import "time"

// Snapshot is the full-database bootstrap payload shipped during an
// initial load. AsOfSequence is the source's journal position captured in
// the same transaction as the dump; the target pins its watermark there.
type Snapshot struct {
	Meta    SnapshotMeta `json:"meta"`
	Records []*Record    `json:"records"`
}

type SnapshotMeta struct {
	SourceNodeID string    `json:"source_node_id"`
	AsOfSequence int64     `json:"as_of_sequence"`
	CreatedAt    time.Time `json:"created_at"`
}

type SnapshotDeliverRequest struct {
	SessionID     string `json:"session_id" validate:"required"`
	SourceNodeID  string `json:"source_node_id" validate:"required"`
	BackupContent string `json:"backup_content" validate:"required"`
	Filename      string `json:"filename" validate:"required"`
}

type RestoreRequest struct {
	SessionID    string `json:"session_id" validate:"required"`
	SourceNodeID string `json:"source_node_id" validate:"required"`
	Force        bool   `json:"force"`
}

// RestoreResult reports what a snapshot restore did on the target.
type RestoreResult struct {
	Restored  int   `json:"restored"`
	Skipped   int   `json:"skipped"`
	Watermark int64 `json:"watermark"`
}

type StartSyncRequest struct {
	PeerNodeID string `json:"peer_node_id" validate:"required"`
	Force      bool   `json:"force"`
}
