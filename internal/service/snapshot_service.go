package service

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"peersync-server/internal/domain"
	"peersync-server/internal/repository"

	"github.com/google/uuid"
)

// PeerTransport is the outbound HTTP surface to a remote peer.
type PeerTransport interface {
	Pull(ctx context.Context, peer *domain.PeerRegistration, req *domain.PullRequest) (*domain.PullResponse, error)
	DeliverSnapshot(ctx context.Context, peer *domain.PeerRegistration, req *domain.SnapshotDeliverRequest) error
	TriggerRestore(ctx context.Context, peer *domain.PeerRegistration, req *domain.RestoreRequest) (*domain.RestoreResult, error)
}

// SnapshotService bootstraps a peer that has no prior sync state: dump,
// transfer and restore of the full record store, instead of replaying the
// journal from sequence zero. It covers both roles: this node as the
// snapshot source (StartInitialLoad) and as the receiving target
// (ReceiveSnapshot/Restore).
type SnapshotService struct {
	db            *sql.DB
	journalRepo   repository.JournalRepository
	recordRepo    repository.RecordRepository
	watermarkRepo repository.WatermarkRepository
	peers         *PeerService
	sessions      *SessionService
	transport     PeerTransport
	nodeID        string
	snapshotDir   string
}

func NewSnapshotService(
	db *sql.DB,
	journalRepo repository.JournalRepository,
	recordRepo repository.RecordRepository,
	watermarkRepo repository.WatermarkRepository,
	peers *PeerService,
	sessions *SessionService,
	transport PeerTransport,
	nodeID string,
	snapshotDir string,
) *SnapshotService {
	return &SnapshotService{
		db:            db,
		journalRepo:   journalRepo,
		recordRepo:    recordRepo,
		watermarkRepo: watermarkRepo,
		peers:         peers,
		sessions:      sessions,
		transport:     transport,
		nodeID:        nodeID,
		snapshotDir:   snapshotDir,
	}
}

// StartInitialLoad creates the session and runs the transfer as an
// independent task. The returned session is in PREPARING.
func (s *SnapshotService) StartInitialLoad(ctx context.Context, peerNodeID string, force bool) (*domain.SyncSession, error) {
	peer, err := s.peers.FindActive(ctx, peerNodeID)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.Create(ctx, domain.SessionKindInitialLoad, s.nodeID, peerNodeID)
	if err != nil {
		return nil, err
	}

	go s.runInitialLoad(context.Background(), session.ID, peer, force)

	return session, nil
}

func (s *SnapshotService) runInitialLoad(ctx context.Context, sessionID string, peer *domain.PeerRegistration, force bool) {
	if err := s.initialLoad(ctx, sessionID, peer, force); err != nil {
		log.Printf("initial load session %s failed: %v", sessionID, err)
		if _, terr := s.sessions.Transition(ctx, sessionID, domain.StatusFailed, err.Error()); terr != nil {
			log.Printf("failed to mark session %s failed: %v", sessionID, terr)
		}
	}
}

func (s *SnapshotService) initialLoad(ctx context.Context, sessionID string, peer *domain.PeerRegistration, force bool) error {
	snapshot, path, err := s.dumpSnapshot(ctx)
	if err != nil {
		return err
	}
	defer os.Remove(path)

	total := int64(len(snapshot.Records))
	if _, err := s.sessions.UpdateProgress(ctx, sessionID, 20, "snapshot dumped", total, 0, 0); err != nil {
		return err
	}

	if _, err := s.sessions.Transition(ctx, sessionID, domain.StatusTransferring, ""); err != nil {
		return err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read snapshot file: %w", err)
	}

	deliver := &domain.SnapshotDeliverRequest{
		SessionID:     sessionID,
		SourceNodeID:  s.nodeID,
		BackupContent: base64.StdEncoding.EncodeToString(content),
		Filename:      filepath.Base(path),
	}
	if err := s.transport.DeliverSnapshot(ctx, peer, deliver); err != nil {
		return fmt.Errorf("snapshot transfer failed: %w", err)
	}

	if _, err := s.sessions.UpdateProgress(ctx, sessionID, 60, "snapshot transferred", total, total, int64(len(content))); err != nil {
		return err
	}

	if _, err := s.sessions.Transition(ctx, sessionID, domain.StatusApplying, ""); err != nil {
		return err
	}

	result, err := s.transport.TriggerRestore(ctx, peer, &domain.RestoreRequest{
		SessionID:    sessionID,
		SourceNodeID: s.nodeID,
		Force:        force,
	})
	if err != nil {
		return fmt.Errorf("snapshot restore failed: %w", err)
	}

	step := fmt.Sprintf("restored %d records (%d skipped)", result.Restored, result.Skipped)
	if _, err := s.sessions.UpdateProgress(ctx, sessionID, 100, step, total, total, int64(len(content))); err != nil {
		return err
	}

	_, err = s.sessions.Transition(ctx, sessionID, domain.StatusCompleted, "")
	return err
}

// dumpSnapshot produces a consistent point-in-time dump: the record rows
// and the journal position are read in one transaction.
func (s *SnapshotService) dumpSnapshot(ctx context.Context) (*domain.Snapshot, string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer tx.Rollback()

	asOf, err := s.journalRepo.MaxSequence(ctx, tx)
	if err != nil {
		return nil, "", err
	}

	records, err := s.recordRepo.ListAll(ctx, tx)
	if err != nil {
		return nil, "", err
	}

	snapshot := &domain.Snapshot{
		Meta: domain.SnapshotMeta{
			SourceNodeID: s.nodeID,
			AsOfSequence: asOf,
			CreatedAt:    time.Now().UTC(),
		},
		Records: records,
	}

	if err := os.MkdirAll(s.snapshotDir, 0o755); err != nil {
		return nil, "", fmt.Errorf("failed to create snapshot dir: %w", err)
	}

	file, err := os.CreateTemp(s.snapshotDir, "snapshot-*.json")
	if err != nil {
		return nil, "", fmt.Errorf("failed to create snapshot file: %w", err)
	}

	if err := json.NewEncoder(file).Encode(snapshot); err != nil {
		file.Close()
		os.Remove(file.Name())
		return nil, "", fmt.Errorf("failed to write snapshot: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(file.Name())
		return nil, "", fmt.Errorf("failed to close snapshot file: %w", err)
	}

	return snapshot, file.Name(), nil
}

// ReceiveSnapshot stores a delivered snapshot blob for a later restore
// trigger. The session id doubles as the file name, so it must be a
// well-formed UUID.
func (s *SnapshotService) ReceiveSnapshot(ctx context.Context, req *domain.SnapshotDeliverRequest) (int64, error) {
	if _, err := uuid.Parse(req.SessionID); err != nil {
		return 0, fmt.Errorf("invalid session id: %w", err)
	}

	data, err := base64.StdEncoding.DecodeString(req.BackupContent)
	if err != nil {
		return 0, fmt.Errorf("invalid snapshot encoding: %w", err)
	}

	if err := os.MkdirAll(s.snapshotDir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create snapshot dir: %w", err)
	}

	path := s.incomingPath(req.SessionID)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return 0, fmt.Errorf("failed to store snapshot: %w", err)
	}

	log.Printf("received snapshot for session %s from %s (%d bytes)", req.SessionID, req.SourceNodeID, len(data))
	return int64(len(data)), nil
}

// Restore applies a previously delivered snapshot with upsert semantics
// and pins the source's watermark at the snapshot's as-of sequence. A
// peer that already has a watermark is rejected unless force is set. The
// snapshot file is removed whether the restore succeeds or not.
func (s *SnapshotService) Restore(ctx context.Context, req *domain.RestoreRequest) (*domain.RestoreResult, error) {
	if _, err := uuid.Parse(req.SessionID); err != nil {
		return nil, fmt.Errorf("invalid session id: %w", err)
	}

	path := s.incomingPath(req.SessionID)
	defer os.Remove(path)

	existing, err := s.watermarkRepo.Find(ctx, req.SourceNodeID)
	if err != nil {
		return nil, err
	}
	if existing != nil && !req.Force {
		return nil, ErrWatermarkExists
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrSnapshotMissing
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snapshot domain.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("corrupted snapshot: %w", err)
	}

	if snapshot.Meta.SourceNodeID != req.SourceNodeID {
		return nil, fmt.Errorf("snapshot source %q does not match request source %q",
			snapshot.Meta.SourceNodeID, req.SourceNodeID)
	}

	result := &domain.RestoreResult{Watermark: snapshot.Meta.AsOfSequence}

	now := time.Now().UTC()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin restore transaction: %w", err)
	}
	defer tx.Rollback()

	for _, record := range snapshot.Records {
		if err := s.recordRepo.Upsert(ctx, tx, record.TableName, record.RecordID, record.Payload, now); err != nil {
			return nil, err
		}
		result.Restored++
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit restore: %w", err)
	}

	if err := s.watermarkRepo.Pin(ctx, req.SourceNodeID, snapshot.Meta.AsOfSequence, now); err != nil {
		return nil, err
	}

	log.Printf("restored snapshot from %s: %d records, watermark pinned at %d",
		req.SourceNodeID, result.Restored, snapshot.Meta.AsOfSequence)

	return result, nil
}

func (s *SnapshotService) incomingPath(sessionID string) string {
	return filepath.Join(s.snapshotDir, "incoming-"+sessionID+".json")
}
