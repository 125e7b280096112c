package service

import "errors"

var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrPeerNotFound      = errors.New("peer not found")
	ErrPeerInactive      = errors.New("peer is deactivated")
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionConflict   = errors.New("another sync session is already active for this peer pair")
	ErrIllegalTransition = errors.New("illegal session state transition")
	ErrChecksumMismatch  = errors.New("payload checksum mismatch")
	ErrWatermarkExists   = errors.New("peer already has a watermark, use incremental pull")
	ErrSnapshotMissing   = errors.New("no snapshot has been delivered for this session")
	ErrInvalidOperation  = errors.New("invalid journal operation")
)
