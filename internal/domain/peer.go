package domain

import "time"

// PeerRegistration is a known remote node allowed to exchange sync data
// with this one. RegistrationKeyHash is derived from the shared
// registration secret; the secret itself is never stored or transmitted.
type PeerRegistration struct {
	NodeID              string    `json:"node_id"`
	RegistrationKeyHash string    `json:"-"`
	Address             string    `json:"address"`
	IsActive            bool      `json:"is_active"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// PeerWatermark tracks the last journal sequence of a remote peer that
// this node has durably applied. It only ever advances.
type PeerWatermark struct {
	NodeID                string    `json:"node_id"`
	LastAppliedSequenceID int64     `json:"last_applied_sequence_id"`
	LastSyncedAt          time.Time `json:"last_synced_at"`
}

type RegisterPeerRequest struct {
	NodeID  string `json:"node_id" validate:"required"`
	Address string `json:"address" validate:"required,url"`
}

type AdminLoginRequest struct {
	Password string `json:"password" validate:"required"`
}

type AdminLoginResponse struct {
	Token string `json:"token"`
}
