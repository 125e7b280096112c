package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"peersync-server/internal/domain"
)

type PeerRepository interface {
	Create(ctx context.Context, peer *domain.PeerRegistration) error
	// FindByID returns (nil, nil) when the peer is unknown.
	FindByID(ctx context.Context, nodeID string) (*domain.PeerRegistration, error)
	List(ctx context.Context) ([]*domain.PeerRegistration, error)
	SetActive(ctx context.Context, nodeID string, active bool) error
}

type peerRepository struct {
	db *sql.DB
}

func NewPeerRepository(db *sql.DB) PeerRepository {
	return &peerRepository{db: db}
}

func (r *peerRepository) Create(ctx context.Context, peer *domain.PeerRegistration) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO peer_registrations
			(node_id, registration_key_hash, address, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		peer.NodeID,
		peer.RegistrationKeyHash,
		peer.Address,
		boolToInt(peer.IsActive),
		peer.CreatedAt,
		peer.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create peer registration: %w", err)
	}
	return nil
}

func (r *peerRepository) FindByID(ctx context.Context, nodeID string) (*domain.PeerRegistration, error) {
	var peer domain.PeerRegistration
	var active int

	err := r.db.QueryRowContext(ctx, `
		SELECT node_id, registration_key_hash, address, is_active, created_at, updated_at
		FROM peer_registrations
		WHERE node_id = ?`,
		nodeID,
	).Scan(&peer.NodeID, &peer.RegistrationKeyHash, &peer.Address, &active, &peer.CreatedAt, &peer.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find peer: %w", err)
	}

	peer.IsActive = active != 0
	return &peer, nil
}

func (r *peerRepository) List(ctx context.Context) ([]*domain.PeerRegistration, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT node_id, registration_key_hash, address, is_active, created_at, updated_at
		FROM peer_registrations
		ORDER BY node_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list peers: %w", err)
	}
	defer rows.Close()

	var peers []*domain.PeerRegistration
	for rows.Next() {
		var peer domain.PeerRegistration
		var active int
		if err := rows.Scan(&peer.NodeID, &peer.RegistrationKeyHash, &peer.Address, &active, &peer.CreatedAt, &peer.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan peer: %w", err)
		}
		peer.IsActive = active != 0
		peers = append(peers, &peer)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate peers: %w", err)
	}

	return peers, nil
}

func (r *peerRepository) SetActive(ctx context.Context, nodeID string, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE peer_registrations SET is_active = ?, updated_at = ? WHERE node_id = ?`,
		boolToInt(active), time.Now().UTC(), nodeID,
	)
	if err != nil {
		return fmt.Errorf("failed to update peer: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
