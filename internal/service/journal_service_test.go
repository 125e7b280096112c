package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"peersync-server/internal/domain"
	"peersync-server/pkg/checksum"
)

func newTestJournalService(t *testing.T) (*JournalService, *testEnv) {
	t.Helper()
	env := newTestEnv(t)
	return NewJournalService(env.db, env.journalRepo, env.recordRepo, "node-a"), env
}

func TestJournalService_RecordMutation(t *testing.T) {
	service, env := newTestJournalService(t)
	ctx := context.Background()

	entry, err := service.RecordMutation(ctx, "products", domain.OpInsert, "p1", json.RawMessage(`{"name":"widget"}`))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if entry.SequenceID != 1 {
		t.Errorf("expected sequence 1, got %d", entry.SequenceID)
	}
	if entry.OriginNodeID != "node-a" {
		t.Errorf("expected origin node-a, got %s", entry.OriginNodeID)
	}
	if !checksum.Verify(entry.AfterPayload, entry.Checksum) {
		t.Error("expected entry checksum to verify")
	}
	if entry.BeforePayload != nil {
		t.Error("expected no before payload on insert")
	}

	record, err := env.recordRepo.Get(ctx, "products", "p1")
	if err != nil || record == nil {
		t.Fatalf("expected record to be written, got record=%v err=%v", record, err)
	}
}

func TestJournalService_UpdateCapturesBeforePayload(t *testing.T) {
	service, _ := newTestJournalService(t)
	ctx := context.Background()

	service.RecordMutation(ctx, "products", domain.OpInsert, "p1", json.RawMessage(`{"qty":1}`))

	entry, err := service.RecordMutation(ctx, "products", domain.OpUpdate, "p1", json.RawMessage(`{"qty":2}`))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if string(entry.BeforePayload) != `{"qty":1}` {
		t.Errorf("expected before payload to hold prior state, got %s", entry.BeforePayload)
	}
}

func TestJournalService_UpsertRecordPicksOperation(t *testing.T) {
	service, _ := newTestJournalService(t)
	ctx := context.Background()

	entry, err := service.UpsertRecord(ctx, "products", "p1", json.RawMessage(`{"qty":1}`))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if entry.Operation != domain.OpInsert {
		t.Errorf("expected INSERT for new record, got %s", entry.Operation)
	}

	entry, err = service.UpsertRecord(ctx, "products", "p1", json.RawMessage(`{"qty":2}`))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if entry.Operation != domain.OpUpdate {
		t.Errorf("expected UPDATE for existing record, got %s", entry.Operation)
	}
}

func TestJournalService_DeleteRecord(t *testing.T) {
	service, env := newTestJournalService(t)
	ctx := context.Background()

	service.UpsertRecord(ctx, "products", "p1", json.RawMessage(`{"qty":1}`))

	entry, err := service.DeleteRecord(ctx, "products", "p1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if entry.Operation != domain.OpDelete {
		t.Errorf("expected DELETE, got %s", entry.Operation)
	}
	if entry.AfterPayload != nil {
		t.Error("expected no after payload on delete")
	}
	if string(entry.BeforePayload) != `{"qty":1}` {
		t.Errorf("expected before payload on delete, got %s", entry.BeforePayload)
	}

	record, err := env.recordRepo.Get(ctx, "products", "p1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if record != nil {
		t.Error("expected record to be removed")
	}
}

func TestJournalService_RejectsUnknownOperation(t *testing.T) {
	service, _ := newTestJournalService(t)

	_, err := service.RecordMutation(context.Background(), "products", "TRUNCATE", "p1", nil)
	if !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("expected ErrInvalidOperation, got %v", err)
	}
}

func TestJournalService_EntriesVisibleToPull(t *testing.T) {
	service, _ := newTestJournalService(t)
	ctx := context.Background()

	service.UpsertRecord(ctx, "products", "p1", json.RawMessage(`{"qty":1}`))
	service.UpsertRecord(ctx, "products", "p2", json.RawMessage(`{"qty":2}`))

	seq, err := service.CurrentSequence(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if seq != 2 {
		t.Errorf("expected current sequence 2, got %d", seq)
	}

	// A pull from another node sees the entries; the origin itself does not.
	entries, err := service.EntriesSince(ctx, "node-b", 0, 10)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries for a remote peer, got %d", len(entries))
	}

	entries, err = service.EntriesSince(ctx, "node-a", 0, 10)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no self-reflection, got %d entries", len(entries))
	}
}
