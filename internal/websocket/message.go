package websocket

import (
	"encoding/json"
	"time"
)

type MessageType string

const (
	TypeSessionProgress MessageType = "session_progress"
	TypePing            MessageType = "ping"
	TypePong            MessageType = "pong"
)

type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// SessionProgressPayload mirrors the session row for operator UIs
// watching a sync run.
type SessionProgressPayload struct {
	SessionID          string `json:"session_id"`
	Kind               string `json:"kind"`
	SourceNodeID       string `json:"source_node_id"`
	TargetNodeID       string `json:"target_node_id"`
	Status             string `json:"status"`
	Progress           int    `json:"progress"`
	CurrentStep        string `json:"current_step"`
	TotalRecords       int64  `json:"total_records"`
	TransferredRecords int64  `json:"transferred_records"`
	TransferredBytes   int64  `json:"transferred_bytes"`
	ErrorMessage       string `json:"error_message,omitempty"`
}

func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	var payloadBytes json.RawMessage
	if payload != nil {
		bytes, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		payloadBytes = bytes
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Payload:   payloadBytes,
	}, nil
}
