package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"peersync-server/internal/domain"
	"peersync-server/internal/repository"
	"peersync-server/pkg/hash"
)

// PeerService manages peer registrations. The stored registration key
// hash is derived from the shared secret at registration time.
type PeerService struct {
	peerRepo           repository.PeerRepository
	registrationSecret string
}

func NewPeerService(peerRepo repository.PeerRepository, registrationSecret string) *PeerService {
	return &PeerService{
		peerRepo:           peerRepo,
		registrationSecret: registrationSecret,
	}
}

func (s *PeerService) Register(ctx context.Context, req *domain.RegisterPeerRequest) (*domain.PeerRegistration, error) {
	now := time.Now().UTC()

	peer := &domain.PeerRegistration{
		NodeID:              req.NodeID,
		RegistrationKeyHash: hash.RegistrationHash(s.registrationSecret, req.NodeID),
		Address:             strings.TrimRight(req.Address, "/"),
		IsActive:            true,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.peerRepo.Create(ctx, peer); err != nil {
		return nil, err
	}

	return peer, nil
}

func (s *PeerService) List(ctx context.Context) ([]*domain.PeerRegistration, error) {
	return s.peerRepo.List(ctx)
}

func (s *PeerService) SetActive(ctx context.Context, nodeID string, active bool) error {
	err := s.peerRepo.SetActive(ctx, nodeID, active)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrPeerNotFound
	}
	return err
}

// FindActive resolves a peer that must exist and be active, used by the
// outbound sync paths.
func (s *PeerService) FindActive(ctx context.Context, nodeID string) (*domain.PeerRegistration, error) {
	peer, err := s.peerRepo.FindByID(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if peer == nil {
		return nil, ErrPeerNotFound
	}
	if !peer.IsActive {
		return nil, ErrPeerInactive
	}
	return peer, nil
}
