package service

import (
	"context"
	"errors"
	"testing"

	"peersync-server/internal/domain"
	"peersync-server/pkg/hash"
)

func TestPeerService_Register(t *testing.T) {
	repo := newMockPeerRepo()
	service := NewPeerService(repo, testRegistrationSecret)

	peer, err := service.Register(context.Background(), &domain.RegisterPeerRequest{
		NodeID:  "node-b",
		Address: "http://node-b:8080/",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if !peer.IsActive {
		t.Error("expected new peer to be active")
	}
	if peer.Address != "http://node-b:8080" {
		t.Errorf("expected trailing slash to be trimmed, got %s", peer.Address)
	}

	expected := hash.RegistrationHash(testRegistrationSecret, "node-b")
	if peer.RegistrationKeyHash != expected {
		t.Error("expected stored hash to be derived from the shared secret")
	}
}

func TestPeerService_FindActive(t *testing.T) {
	repo := newMockPeerRepo()
	registerTestPeer(repo, "node-b", true)
	registerTestPeer(repo, "node-c", false)
	service := NewPeerService(repo, testRegistrationSecret)
	ctx := context.Background()

	if _, err := service.FindActive(ctx, "node-b"); err != nil {
		t.Errorf("expected active peer to resolve, got %v", err)
	}

	if _, err := service.FindActive(ctx, "node-c"); !errors.Is(err, ErrPeerInactive) {
		t.Errorf("expected ErrPeerInactive, got %v", err)
	}

	if _, err := service.FindActive(ctx, "node-x"); !errors.Is(err, ErrPeerNotFound) {
		t.Errorf("expected ErrPeerNotFound, got %v", err)
	}
}

func TestPeerService_SetActiveUnknownPeer(t *testing.T) {
	service := NewPeerService(newMockPeerRepo(), testRegistrationSecret)

	err := service.SetActive(context.Background(), "node-x", false)
	if !errors.Is(err, ErrPeerNotFound) {
		t.Errorf("expected ErrPeerNotFound, got %v", err)
	}
}
