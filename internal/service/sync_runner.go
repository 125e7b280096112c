package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"peersync-server/internal/domain"
	"peersync-server/internal/repository"
)

// SyncRunner drives incremental pull sessions against remote peers: it
// polls the peer's pull endpoint with the stored watermark, feeds batches
// to the apply engine and repeats while the peer reports more events.
// Each run is one session executing as an independent task.
type SyncRunner struct {
	sessions      *SessionService
	apply         *ApplyService
	peers         *PeerService
	watermarkRepo repository.WatermarkRepository
	transport     PeerTransport
	nodeID        string
	pageSize      int
}

func NewSyncRunner(
	sessions *SessionService,
	apply *ApplyService,
	peers *PeerService,
	watermarkRepo repository.WatermarkRepository,
	transport PeerTransport,
	nodeID string,
	pageSize int,
) *SyncRunner {
	return &SyncRunner{
		sessions:      sessions,
		apply:         apply,
		peers:         peers,
		watermarkRepo: watermarkRepo,
		transport:     transport,
		nodeID:        nodeID,
		pageSize:      pageSize,
	}
}

// StartPull creates a pull session from the given peer and runs it in the
// background. Data flows peer -> this node, so the peer is the session
// source.
func (r *SyncRunner) StartPull(ctx context.Context, peerNodeID string) (*domain.SyncSession, error) {
	peer, err := r.peers.FindActive(ctx, peerNodeID)
	if err != nil {
		return nil, err
	}

	session, err := r.sessions.Create(ctx, domain.SessionKindPull, peerNodeID, r.nodeID)
	if err != nil {
		return nil, err
	}

	go r.runPull(context.Background(), session.ID, peer)

	return session, nil
}

func (r *SyncRunner) runPull(ctx context.Context, sessionID string, peer *domain.PeerRegistration) {
	if err := r.pull(ctx, sessionID, peer); err != nil {
		log.Printf("pull session %s from %s failed: %v", sessionID, peer.NodeID, err)
		if _, terr := r.sessions.Transition(ctx, sessionID, domain.StatusFailed, err.Error()); terr != nil {
			log.Printf("failed to mark session %s failed: %v", sessionID, terr)
		}
	}
}

func (r *SyncRunner) pull(ctx context.Context, sessionID string, peer *domain.PeerRegistration) error {
	if _, err := r.sessions.Transition(ctx, sessionID, domain.StatusTransferring, ""); err != nil {
		return err
	}

	var transferred, transferredBytes, failed int64

	for {
		session, err := r.sessions.Get(ctx, sessionID)
		if err != nil {
			return err
		}
		if session.Status == domain.StatusCancelled {
			log.Printf("pull session %s cancelled, stopping", sessionID)
			return nil
		}

		watermark, err := r.currentWatermark(ctx, peer.NodeID)
		if err != nil {
			return err
		}

		resp, err := r.transport.Pull(ctx, peer, &domain.PullRequest{
			SessionID:    sessionID,
			SourceNodeID: r.nodeID,
			Watermark:    watermark,
			MaxEvents:    r.pageSize,
		})
		if err != nil {
			return fmt.Errorf("pull request to %s failed: %w", peer.NodeID, err)
		}

		if len(resp.Events) == 0 {
			break
		}

		result, err := r.apply.ApplyBatch(ctx, peer.NodeID, resp.Events)
		if err != nil {
			return err
		}

		transferred += int64(result.Applied + result.Skipped)
		failed += int64(result.Failed)
		for _, event := range resp.Events {
			transferredBytes += int64(len(event.AfterPayload))
		}

		step := fmt.Sprintf("applied through sequence %d", result.Watermark)
		if _, err := r.sessions.UpdateProgress(ctx, sessionID, 50, step, 0, transferred, transferredBytes); err != nil {
			// The operator may have cancelled while the page was in flight.
			if errors.Is(err, ErrIllegalTransition) {
				log.Printf("pull session %s cancelled, stopping", sessionID)
				return nil
			}
			return err
		}

		if !resp.HasMoreEvents {
			break
		}
		if result.Watermark <= watermark {
			// A failed event is blocking the watermark; re-pulling the
			// same page would spin. Leave the rest for the next run.
			log.Printf("pull session %s: watermark held at %d by failed events, deferring", sessionID, watermark)
			break
		}
	}

	step := "caught up"
	if failed > 0 {
		step = fmt.Sprintf("finished with %d events deferred", failed)
	}
	if _, err := r.sessions.UpdateProgress(ctx, sessionID, 100, step, 0, transferred, transferredBytes); err != nil {
		// The operator may have cancelled between the last page and here.
		if errors.Is(err, ErrIllegalTransition) {
			return nil
		}
		return err
	}

	if _, err := r.sessions.Transition(ctx, sessionID, domain.StatusCompleted, ""); err != nil {
		if errors.Is(err, ErrIllegalTransition) {
			return nil
		}
		return err
	}
	return nil
}

func (r *SyncRunner) currentWatermark(ctx context.Context, peerNodeID string) (int64, error) {
	wm, err := r.watermarkRepo.Find(ctx, peerNodeID)
	if err != nil {
		return 0, err
	}
	if wm == nil {
		return 0, nil
	}
	return wm.LastAppliedSequenceID, nil
}
