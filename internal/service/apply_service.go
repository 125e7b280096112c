package service

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"log"
	"sort"
	"time"

	"peersync-server/internal/domain"
	"peersync-server/internal/repository"
	"peersync-server/pkg/checksum"
)

// ApplyService consumes batches of remote journal entries and applies
// them to local state with upsert/delete semantics. Replaying an
// already-applied entry is a no-op, so a crash mid-batch is recovered by
// re-requesting the whole batch.
type ApplyService struct {
	db            *sql.DB
	journalRepo   repository.JournalRepository
	recordRepo    repository.RecordRepository
	watermarkRepo repository.WatermarkRepository
}

func NewApplyService(
	db *sql.DB,
	journalRepo repository.JournalRepository,
	recordRepo repository.RecordRepository,
	watermarkRepo repository.WatermarkRepository,
) *ApplyService {
	return &ApplyService{
		db:            db,
		journalRepo:   journalRepo,
		recordRepo:    recordRepo,
		watermarkRepo: watermarkRepo,
	}
}

// ApplyBatch applies events from peerNodeID in ascending sequence order.
// A single event's failure (checksum mismatch, apply conflict) is
// recorded and does not abort the batch, but the persisted watermark only
// covers the contiguous prefix of successes before the first failure, so
// ordering is eventually respected once the failed event succeeds on a
// later pull.
func (s *ApplyService) ApplyBatch(ctx context.Context, peerNodeID string, events []*domain.JournalEntry) (*domain.ApplyResult, error) {
	// Sort a copy; the caller's slice keeps its wire order.
	ordered := make([]*domain.JournalEntry, len(events))
	copy(ordered, events)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].SequenceID < ordered[j].SequenceID
	})

	var base int64
	wm, err := s.watermarkRepo.Find(ctx, peerNodeID)
	if err != nil {
		return nil, err
	}
	if wm != nil {
		base = wm.LastAppliedSequenceID
	}

	result := &domain.ApplyResult{Watermark: base}

	candidate := base
	prefixIntact := true

	for _, event := range ordered {
		if event.SequenceID <= base {
			// Already covered by the watermark; replay is a no-op.
			result.Skipped++
			continue
		}

		noop, err := s.applyOne(ctx, event)
		if err != nil {
			result.Failed++
			result.FailedSequences = append(result.FailedSequences, event.SequenceID)
			prefixIntact = false
			log.Printf("apply failed for %s seq=%d table=%s record=%s: %v",
				event.OriginNodeID, event.SequenceID, event.TableName, event.RecordID, err)
			continue
		}

		if noop {
			result.Skipped++
		} else {
			result.Applied++
		}

		if prefixIntact {
			candidate = event.SequenceID
		}
	}

	if candidate > base {
		if err := s.watermarkRepo.Advance(ctx, peerNodeID, candidate, time.Now().UTC()); err != nil {
			return nil, err
		}
		result.Watermark = candidate
	}

	return result, nil
}

// applyOne verifies and applies a single event. The record write and the
// relay journal append share one transaction. Returns noop=true when
// local state already matches the event.
func (s *ApplyService) applyOne(ctx context.Context, event *domain.JournalEntry) (bool, error) {
	if !event.Operation.Valid() {
		return false, ErrInvalidOperation
	}
	if !checksum.Verify(event.AfterPayload, event.Checksum) {
		return false, ErrChecksumMismatch
	}

	existing, err := s.recordRepo.Get(ctx, event.TableName, event.RecordID)
	if err != nil {
		return false, err
	}

	if event.Operation == domain.OpDelete {
		if existing == nil {
			return true, nil
		}
	} else if existing != nil {
		same, err := payloadsEqual(existing.Payload, event.AfterPayload)
		if err != nil {
			return false, err
		}
		if same {
			return true, nil
		}
	}

	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if event.Operation == domain.OpDelete {
		if _, err := s.recordRepo.Delete(ctx, tx, event.TableName, event.RecordID); err != nil {
			return false, err
		}
	} else {
		if err := s.recordRepo.Upsert(ctx, tx, event.TableName, event.RecordID, event.AfterPayload, now); err != nil {
			return false, err
		}
	}

	// Relay: the applied event joins the local journal under a new local
	// sequence so downstream peers can pull it, with the true origin
	// preserved for loop prevention.
	relay := &domain.JournalEntry{
		OriginNodeID: event.OriginNodeID,
		TableName:    event.TableName,
		Operation:    event.Operation,
		RecordID:     event.RecordID,
		AfterPayload: event.AfterPayload,
		Checksum:     event.Checksum,
		CreatedAt:    now,
	}
	if existing != nil {
		relay.BeforePayload = existing.Payload
	}

	if _, err := s.journalRepo.Append(ctx, tx, relay); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit apply: %w", err)
	}

	return false, nil
}

func payloadsEqual(a, b []byte) (bool, error) {
	ca, err := checksum.Canonicalize(a)
	if err != nil {
		return false, err
	}
	cb, err := checksum.Canonicalize(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal(ca, cb), nil
}
