package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"peersync-server/internal/domain"
)

type WatermarkRepository interface {
	// Find returns (nil, nil) when no watermark exists for the peer.
	Find(ctx context.Context, nodeID string) (*domain.PeerWatermark, error)

	// Advance moves the watermark forward. A sequence at or below the
	// stored value is silently ignored; the watermark never regresses.
	Advance(ctx context.Context, nodeID string, sequence int64, at time.Time) error

	// Pin sets the watermark unconditionally. Only the forced
	// re-snapshot path may use it.
	Pin(ctx context.Context, nodeID string, sequence int64, at time.Time) error
}

type watermarkRepository struct {
	db *sql.DB
}

func NewWatermarkRepository(db *sql.DB) WatermarkRepository {
	return &watermarkRepository{db: db}
}

func (r *watermarkRepository) Find(ctx context.Context, nodeID string) (*domain.PeerWatermark, error) {
	var wm domain.PeerWatermark

	err := r.db.QueryRowContext(ctx, `
		SELECT node_id, last_applied_sequence_id, last_synced_at
		FROM peer_watermarks
		WHERE node_id = ?`,
		nodeID,
	).Scan(&wm.NodeID, &wm.LastAppliedSequenceID, &wm.LastSyncedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find watermark: %w", err)
	}

	return &wm, nil
}

func (r *watermarkRepository) Advance(ctx context.Context, nodeID string, sequence int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO peer_watermarks (node_id, last_applied_sequence_id, last_synced_at)
		VALUES (?, ?, ?)
		ON CONFLICT (node_id) DO UPDATE SET
			last_applied_sequence_id = excluded.last_applied_sequence_id,
			last_synced_at = excluded.last_synced_at
		WHERE excluded.last_applied_sequence_id > peer_watermarks.last_applied_sequence_id`,
		nodeID, sequence, at,
	)
	if err != nil {
		return fmt.Errorf("failed to advance watermark: %w", err)
	}
	return nil
}

func (r *watermarkRepository) Pin(ctx context.Context, nodeID string, sequence int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO peer_watermarks (node_id, last_applied_sequence_id, last_synced_at)
		VALUES (?, ?, ?)
		ON CONFLICT (node_id) DO UPDATE SET
			last_applied_sequence_id = excluded.last_applied_sequence_id,
			last_synced_at = excluded.last_synced_at`,
		nodeID, sequence, at,
	)
	if err != nil {
		return fmt.Errorf("failed to pin watermark: %w", err)
	}
	return nil
}
