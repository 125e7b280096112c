package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"peersync-server/internal/domain"
	"peersync-server/internal/repository"
	"peersync-server/pkg/checksum"
)

// JournalService is the write path of the change journal. The business
// CRUD layer calls RecordMutation for every local write it wants
// replicated; the record update and the journal append share one
// transaction, so an entry is durable iff the mutation is.
type JournalService struct {
	db          *sql.DB
	journalRepo repository.JournalRepository
	recordRepo  repository.RecordRepository
	nodeID      string
}

func NewJournalService(
	db *sql.DB,
	journalRepo repository.JournalRepository,
	recordRepo repository.RecordRepository,
	nodeID string,
) *JournalService {
	return &JournalService{
		db:          db,
		journalRepo: journalRepo,
		recordRepo:  recordRepo,
		nodeID:      nodeID,
	}
}

// RecordMutation applies a local mutation to the record store and appends
// the matching journal entry. For DELETE the payload is ignored.
func (s *JournalService) RecordMutation(ctx context.Context, tableName string, op domain.Operation, recordID string, payload json.RawMessage) (*domain.JournalEntry, error) {
	if !op.Valid() {
		return nil, ErrInvalidOperation
	}
	if op == domain.OpDelete {
		payload = nil
	}

	sum, err := checksum.Sum(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to checksum payload: %w", err)
	}

	var before json.RawMessage
	existing, err := s.recordRepo.Get(ctx, tableName, recordID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		before = existing.Payload
	}

	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if op == domain.OpDelete {
		if _, err := s.recordRepo.Delete(ctx, tx, tableName, recordID); err != nil {
			return nil, err
		}
	} else {
		if err := s.recordRepo.Upsert(ctx, tx, tableName, recordID, payload, now); err != nil {
			return nil, err
		}
	}

	entry := &domain.JournalEntry{
		OriginNodeID:  s.nodeID,
		TableName:     tableName,
		Operation:     op,
		RecordID:      recordID,
		BeforePayload: before,
		AfterPayload:  payload,
		Checksum:      sum,
		CreatedAt:     now,
	}

	if _, err := s.journalRepo.Append(ctx, tx, entry); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit mutation: %w", err)
	}

	return entry, nil
}

// UpsertRecord picks INSERT or UPDATE based on whether the record
// exists, then records the mutation.
func (s *JournalService) UpsertRecord(ctx context.Context, tableName, recordID string, payload json.RawMessage) (*domain.JournalEntry, error) {
	existing, err := s.recordRepo.Get(ctx, tableName, recordID)
	if err != nil {
		return nil, err
	}

	op := domain.OpInsert
	if existing != nil {
		op = domain.OpUpdate
	}

	return s.RecordMutation(ctx, tableName, op, recordID, payload)
}

// DeleteRecord records a replicated delete.
func (s *JournalService) DeleteRecord(ctx context.Context, tableName, recordID string) (*domain.JournalEntry, error) {
	return s.RecordMutation(ctx, tableName, domain.OpDelete, recordID, nil)
}

// GetRecord reads one record, nil when absent.
func (s *JournalService) GetRecord(ctx context.Context, tableName, recordID string) (*domain.Record, error) {
	return s.recordRepo.Get(ctx, tableName, recordID)
}

// EntriesSince exposes the journal's read contract.
func (s *JournalService) EntriesSince(ctx context.Context, originExcluded string, watermark int64, limit int) ([]*domain.JournalEntry, error) {
	return s.journalRepo.EntriesSince(ctx, originExcluded, watermark, limit)
}

// CurrentSequence returns the highest sequence assigned so far.
func (s *JournalService) CurrentSequence(ctx context.Context) (int64, error) {
	return s.journalRepo.MaxSequence(ctx, nil)
}
