package domain

import "time"

type SessionStatus string

const (
	StatusPreparing    SessionStatus = "PREPARING"
	StatusTransferring SessionStatus = "TRANSFERRING"
	StatusApplying     SessionStatus = "APPLYING"
	StatusCompleted    SessionStatus = "COMPLETED"
	StatusFailed       SessionStatus = "FAILED"
	StatusCancelled    SessionStatus = "CANCELLED"
)

type SessionKind string

const (
	SessionKindPull        SessionKind = "pull"
	SessionKindInitialLoad SessionKind = "initial_load"
)

// statusOrder positions the forward-only states. Terminal failure states
// are handled separately in CanTransition.
var statusOrder = map[SessionStatus]int{
	StatusPreparing:    0,
	StatusTransferring: 1,
	StatusApplying:     2,
	StatusCompleted:    3,
}

func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

func (s SessionStatus) Active() bool {
	return s == StatusPreparing || s == StatusTransferring || s == StatusApplying
}

// CanTransition reports whether a session may move from one status to
// another. Sessions only move forward; FAILED is reachable from any
// non-terminal state; CANCELLED only before applying has started.
func CanTransition(from, to SessionStatus) bool {
	if from.Terminal() {
		return false
	}
	switch to {
	case StatusFailed:
		return true
	case StatusCancelled:
		return from == StatusPreparing || from == StatusTransferring
	}
	fromOrder, ok := statusOrder[from]
	if !ok {
		return false
	}
	toOrder, ok := statusOrder[to]
	if !ok {
		return false
	}
	return toOrder > fromOrder
}

// SyncSession records the lifecycle of one sync run. SourceNodeID is the
// node data flows from; TargetNodeID is the node it flows to. Sessions are
// never reused; each run creates a new row.
type SyncSession struct {
	ID                 string        `json:"id"`
	Kind               SessionKind   `json:"kind"`
	SourceNodeID       string        `json:"source_node_id"`
	TargetNodeID       string        `json:"target_node_id"`
	Status             SessionStatus `json:"status"`
	Progress           int           `json:"progress"`
	CurrentStep        string        `json:"current_step"`
	TotalRecords       int64         `json:"total_records"`
	TransferredRecords int64         `json:"transferred_records"`
	TransferredBytes   int64         `json:"transferred_bytes"`
	ErrorMessage       string        `json:"error_message,omitempty"`
	StartedAt          time.Time     `json:"started_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
	CompletedAt        *time.Time    `json:"completed_at,omitempty"`
}
