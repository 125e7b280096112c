package websocket

import (
	"log"

	"peersync-server/internal/domain"
)

// ProgressBroadcaster adapts the manager to the session service's
// notifier contract.
type ProgressBroadcaster struct {
	Manager *Manager
}

func NewProgressBroadcaster(manager *Manager) *ProgressBroadcaster {
	return &ProgressBroadcaster{Manager: manager}
}

func (b *ProgressBroadcaster) NotifySessionProgress(session *domain.SyncSession) {
	msg, err := NewMessage(TypeSessionProgress, &SessionProgressPayload{
		SessionID:          session.ID,
		Kind:               string(session.Kind),
		SourceNodeID:       session.SourceNodeID,
		TargetNodeID:       session.TargetNodeID,
		Status:             string(session.Status),
		Progress:           session.Progress,
		CurrentStep:        session.CurrentStep,
		TotalRecords:       session.TotalRecords,
		TransferredRecords: session.TransferredRecords,
		TransferredBytes:   session.TransferredBytes,
		ErrorMessage:       session.ErrorMessage,
	})
	if err != nil {
		log.Printf("failed to build progress message: %v", err)
		return
	}

	if err := b.Manager.Broadcast(msg); err != nil {
		log.Printf("failed to broadcast progress: %v", err)
	}
}
