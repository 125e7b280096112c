package service

import (
	"context"
	"log"
	"time"

	"peersync-server/internal/repository"
	"peersync-server/pkg/hash"
	"peersync-server/pkg/jwt"
)

// AuthService gates every inbound sync request and issues operator
// tokens. Peer authentication is a pure function of the configured shared
// secret and the presented node id, plus an active-registration check.
type AuthService struct {
	peerRepo           repository.PeerRepository
	registrationSecret string
	adminPasswordHash  string
	jwtSecret          string
	jwtExpiration      time.Duration
}

func NewAuthService(
	peerRepo repository.PeerRepository,
	registrationSecret string,
	adminPasswordHash string,
	jwtSecret string,
	jwtExpiration time.Duration,
) *AuthService {
	return &AuthService{
		peerRepo:           peerRepo,
		registrationSecret: registrationSecret,
		adminPasswordHash:  adminPasswordHash,
		jwtSecret:          jwtSecret,
		jwtExpiration:      jwtExpiration,
	}
}

// AuthenticatePeer verifies a presented registration hash. The failure is
// uniform: callers cannot distinguish an unknown node from a bad
// credential or a deactivated peer. No state is mutated on failure.
func (s *AuthService) AuthenticatePeer(ctx context.Context, nodeID, presentedHash string) error {
	expected := hash.RegistrationHash(s.registrationSecret, nodeID)
	credentialOK := hash.SecureEqual(expected, presentedHash)

	peer, err := s.peerRepo.FindByID(ctx, nodeID)
	if err != nil {
		return err
	}

	if !credentialOK || peer == nil || !peer.IsActive {
		log.Printf("rejected sync request from node %q", nodeID)
		return ErrUnauthorized
	}

	return nil
}

// LoginAdmin checks the operator password and issues a JWT.
func (s *AuthService) LoginAdmin(password string) (string, error) {
	if err := hash.ComparePassword(s.adminPasswordHash, password); err != nil {
		return "", ErrUnauthorized
	}

	return jwt.GenerateToken("admin", s.jwtExpiration, s.jwtSecret)
}
