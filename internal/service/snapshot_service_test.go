package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"peersync-server/internal/domain"

	"github.com/google/uuid"
)

func newTestSnapshotService(t *testing.T, nodeID string, transport PeerTransport) (*SnapshotService, *SessionService, *testEnv) {
	t.Helper()

	env := newTestEnv(t)
	sessions := NewSessionService(newMockSessionRepo(), nil)

	peerRepo := newMockPeerRepo()
	registerTestPeer(peerRepo, "node-b", true)
	peers := NewPeerService(peerRepo, testRegistrationSecret)

	service := NewSnapshotService(
		env.db,
		env.journalRepo,
		env.recordRepo,
		env.watermarkRepo,
		peers,
		sessions,
		transport,
		nodeID,
		t.TempDir(),
	)
	return service, sessions, env
}

func encodeSnapshot(t *testing.T, snapshot *domain.Snapshot) string {
	t.Helper()

	data, err := json.Marshal(snapshot)
	if err != nil {
		t.Fatalf("failed to encode snapshot: %v", err)
	}
	return base64.StdEncoding.EncodeToString(data)
}

func TestSnapshotService_ReceiveSnapshotValidation(t *testing.T) {
	service, _, _ := newTestSnapshotService(t, "node-a", nil)
	ctx := context.Background()

	_, err := service.ReceiveSnapshot(ctx, &domain.SnapshotDeliverRequest{
		SessionID:     "../../etc/passwd",
		SourceNodeID:  "node-b",
		BackupContent: "aGVsbG8=",
		Filename:      "snapshot.json",
	})
	if err == nil {
		t.Error("expected non-UUID session id to be rejected")
	}

	_, err = service.ReceiveSnapshot(ctx, &domain.SnapshotDeliverRequest{
		SessionID:     uuid.NewString(),
		SourceNodeID:  "node-b",
		BackupContent: "not-base64!!",
		Filename:      "snapshot.json",
	})
	if err == nil {
		t.Error("expected invalid base64 to be rejected")
	}
}

func TestSnapshotService_RestoreRoundTrip(t *testing.T) {
	service, _, env := newTestSnapshotService(t, "node-a", nil)
	ctx := context.Background()
	sessionID := uuid.NewString()

	snapshot := &domain.Snapshot{
		Meta: domain.SnapshotMeta{
			SourceNodeID: "node-b",
			AsOfSequence: 42,
			CreatedAt:    time.Now().UTC(),
		},
		Records: []*domain.Record{
			{TableName: "products", RecordID: "p1", Payload: json.RawMessage(`{"name":"widget"}`)},
			{TableName: "customers", RecordID: "c1", Payload: json.RawMessage(`{"name":"Acme"}`)},
		},
	}

	size, err := service.ReceiveSnapshot(ctx, &domain.SnapshotDeliverRequest{
		SessionID:     sessionID,
		SourceNodeID:  "node-b",
		BackupContent: encodeSnapshot(t, snapshot),
		Filename:      "snapshot.json",
	})
	if err != nil {
		t.Fatalf("receive failed: %v", err)
	}
	if size == 0 {
		t.Error("expected non-zero snapshot size")
	}

	result, err := service.Restore(ctx, &domain.RestoreRequest{
		SessionID:    sessionID,
		SourceNodeID: "node-b",
	})
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	if result.Restored != 2 {
		t.Errorf("expected 2 restored records, got %d", result.Restored)
	}
	if result.Watermark != 42 {
		t.Errorf("expected watermark 42, got %d", result.Watermark)
	}

	record, err := env.recordRepo.Get(ctx, "products", "p1")
	if err != nil || record == nil {
		t.Fatalf("expected restored record, got record=%v err=%v", record, err)
	}

	wm, err := env.watermarkRepo.Find(ctx, "node-b")
	if err != nil || wm == nil {
		t.Fatalf("expected pinned watermark, got wm=%v err=%v", wm, err)
	}
	if wm.LastAppliedSequenceID != 42 {
		t.Errorf("expected watermark pinned at 42, got %d", wm.LastAppliedSequenceID)
	}

	// The snapshot file is consumed by the restore.
	_, err = service.Restore(ctx, &domain.RestoreRequest{
		SessionID:    sessionID,
		SourceNodeID: "node-b",
		Force:        true,
	})
	if !errors.Is(err, ErrSnapshotMissing) {
		t.Errorf("expected ErrSnapshotMissing on second restore, got %v", err)
	}
}

func TestSnapshotService_RestoreRefusesExistingWatermark(t *testing.T) {
	service, _, env := newTestSnapshotService(t, "node-a", nil)
	ctx := context.Background()
	sessionID := uuid.NewString()

	if err := env.watermarkRepo.Advance(ctx, "node-b", 10, time.Now().UTC()); err != nil {
		t.Fatalf("failed to seed watermark: %v", err)
	}

	snapshot := &domain.Snapshot{
		Meta: domain.SnapshotMeta{SourceNodeID: "node-b", AsOfSequence: 5, CreatedAt: time.Now().UTC()},
	}
	if _, err := service.ReceiveSnapshot(ctx, &domain.SnapshotDeliverRequest{
		SessionID:     sessionID,
		SourceNodeID:  "node-b",
		BackupContent: encodeSnapshot(t, snapshot),
		Filename:      "snapshot.json",
	}); err != nil {
		t.Fatalf("receive failed: %v", err)
	}

	_, err := service.Restore(ctx, &domain.RestoreRequest{
		SessionID:    sessionID,
		SourceNodeID: "node-b",
	})
	if !errors.Is(err, ErrWatermarkExists) {
		t.Fatalf("expected ErrWatermarkExists, got %v", err)
	}

	// The refused restore already consumed the file, so force needs a
	// fresh delivery.
	if _, err := service.ReceiveSnapshot(ctx, &domain.SnapshotDeliverRequest{
		SessionID:     sessionID,
		SourceNodeID:  "node-b",
		BackupContent: encodeSnapshot(t, snapshot),
		Filename:      "snapshot.json",
	}); err != nil {
		t.Fatalf("re-delivery failed: %v", err)
	}

	result, err := service.Restore(ctx, &domain.RestoreRequest{
		SessionID:    sessionID,
		SourceNodeID: "node-b",
		Force:        true,
	})
	if err != nil {
		t.Fatalf("forced restore failed: %v", err)
	}
	if result.Watermark != 5 {
		t.Errorf("expected forced restore to pin watermark at 5, got %d", result.Watermark)
	}

	wm, _ := env.watermarkRepo.Find(ctx, "node-b")
	if wm.LastAppliedSequenceID != 5 {
		t.Errorf("expected watermark overwritten to 5, got %d", wm.LastAppliedSequenceID)
	}
}

func TestSnapshotService_RestoreRejectsSourceMismatch(t *testing.T) {
	service, _, _ := newTestSnapshotService(t, "node-a", nil)
	ctx := context.Background()
	sessionID := uuid.NewString()

	snapshot := &domain.Snapshot{
		Meta: domain.SnapshotMeta{SourceNodeID: "node-c", AsOfSequence: 1, CreatedAt: time.Now().UTC()},
	}
	if _, err := service.ReceiveSnapshot(ctx, &domain.SnapshotDeliverRequest{
		SessionID:     sessionID,
		SourceNodeID:  "node-c",
		BackupContent: encodeSnapshot(t, snapshot),
		Filename:      "snapshot.json",
	}); err != nil {
		t.Fatalf("receive failed: %v", err)
	}

	if _, err := service.Restore(ctx, &domain.RestoreRequest{
		SessionID:    sessionID,
		SourceNodeID: "node-b",
	}); err == nil {
		t.Error("expected restore to reject a snapshot from a different source")
	}
}

// bridgeTransport wires two in-process nodes together: snapshot delivery
// and the restore trigger land directly on the target's service.
type bridgeTransport struct {
	target *SnapshotService
}

func (b *bridgeTransport) Pull(ctx context.Context, peer *domain.PeerRegistration, req *domain.PullRequest) (*domain.PullResponse, error) {
	return &domain.PullResponse{Events: []*domain.JournalEntry{}}, nil
}

func (b *bridgeTransport) DeliverSnapshot(ctx context.Context, peer *domain.PeerRegistration, req *domain.SnapshotDeliverRequest) error {
	_, err := b.target.ReceiveSnapshot(ctx, req)
	return err
}

func (b *bridgeTransport) TriggerRestore(ctx context.Context, peer *domain.PeerRegistration, req *domain.RestoreRequest) (*domain.RestoreResult, error) {
	return b.target.Restore(ctx, req)
}

func TestSnapshotService_InitialLoadSeedsFreshPeer(t *testing.T) {
	target, _, targetEnv := newTestSnapshotService(t, "node-b", nil)
	source, sourceSessions, sourceEnv := newTestSnapshotService(t, "node-a", &bridgeTransport{target: target})
	ctx := context.Background()

	journal := NewJournalService(sourceEnv.db, sourceEnv.journalRepo, sourceEnv.recordRepo, "node-a")
	journal.UpsertRecord(ctx, "products", "p1", json.RawMessage(`{"name":"widget"}`))
	journal.UpsertRecord(ctx, "products", "p2", json.RawMessage(`{"name":"gadget"}`))

	session, err := sourceSessions.Create(ctx, domain.SessionKindInitialLoad, "node-a", "node-b")
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	peer := &domain.PeerRegistration{NodeID: "node-b", Address: "http://node-b:8080", IsActive: true}
	if err := source.initialLoad(ctx, session.ID, peer, false); err != nil {
		t.Fatalf("initial load failed: %v", err)
	}

	final, _ := sourceSessions.Get(ctx, session.ID)
	if final.Status != domain.StatusCompleted {
		t.Errorf("expected COMPLETED, got %s", final.Status)
	}
	if final.Progress != 100 {
		t.Errorf("expected progress 100, got %d", final.Progress)
	}

	for _, id := range []string{"p1", "p2"} {
		record, err := targetEnv.recordRepo.Get(ctx, "products", id)
		if err != nil || record == nil {
			t.Errorf("expected %s on the target, got record=%v err=%v", id, record, err)
		}
	}

	// The target's watermark for node-a starts at the snapshot position,
	// so the next pull skips the journal history behind it.
	wm, err := targetEnv.watermarkRepo.Find(ctx, "node-a")
	if err != nil || wm == nil {
		t.Fatalf("expected watermark on target, got wm=%v err=%v", wm, err)
	}
	if wm.LastAppliedSequenceID != 2 {
		t.Errorf("expected watermark 2, got %d", wm.LastAppliedSequenceID)
	}

	// The source's temporary snapshot file is cleaned up.
	entries, err := os.ReadDir(source.snapshotDir)
	if err != nil {
		t.Fatalf("failed to read snapshot dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected snapshot dir to be empty, found %d files", len(entries))
	}
}
