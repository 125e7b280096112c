package service

import (
	"context"
	"database/sql"
	"testing"

	"peersync-server/internal/domain"
)

type mockJournalRepo struct {
	entries []*domain.JournalEntry
}

func (m *mockJournalRepo) Append(ctx context.Context, tx *sql.Tx, entry *domain.JournalEntry) (int64, error) {
	entry.SequenceID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, entry)
	return entry.SequenceID, nil
}

func (m *mockJournalRepo) EntriesSince(ctx context.Context, originExcluded string, watermark int64, limit int) ([]*domain.JournalEntry, error) {
	var result []*domain.JournalEntry
	for _, e := range m.entries {
		if e.SequenceID <= watermark || e.OriginNodeID == originExcluded {
			continue
		}
		result = append(result, e)
		if len(result) == limit {
			break
		}
	}
	return result, nil
}

func (m *mockJournalRepo) MaxSequence(ctx context.Context, tx *sql.Tx) (int64, error) {
	return int64(len(m.entries)), nil
}

func seedJournal(repo *mockJournalRepo, origins ...string) {
	for i, origin := range origins {
		repo.entries = append(repo.entries, &domain.JournalEntry{
			SequenceID:   int64(i + 1),
			OriginNodeID: origin,
			TableName:    "products",
			Operation:    domain.OpInsert,
			RecordID:     "p1",
		})
	}
}

func TestPullService_ExcludesRequesterOrigin(t *testing.T) {
	repo := &mockJournalRepo{}
	seedJournal(repo, "node-a", "node-b", "node-a")
	service := NewPullService(repo)

	resp, err := service.HandlePull(context.Background(), "node-b", &domain.PullRequest{
		SourceNodeID: "node-b",
		Watermark:    0,
		MaxEvents:    10,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(resp.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(resp.Events))
	}
	for _, e := range resp.Events {
		if e.OriginNodeID == "node-b" {
			t.Errorf("event seq=%d reflected back to its origin", e.SequenceID)
		}
	}
}

func TestPullService_HasMoreEvents(t *testing.T) {
	repo := &mockJournalRepo{}
	seedJournal(repo, "node-a", "node-a", "node-a")
	service := NewPullService(repo)

	resp, err := service.HandlePull(context.Background(), "node-b", &domain.PullRequest{
		SourceNodeID: "node-b",
		MaxEvents:    2,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !resp.HasMoreEvents {
		t.Error("expected has_more_events when the page is full")
	}

	resp, err = service.HandlePull(context.Background(), "node-b", &domain.PullRequest{
		SourceNodeID: "node-b",
		Watermark:    2,
		MaxEvents:    2,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if resp.HasMoreEvents {
		t.Error("expected no more events on a partial page")
	}
}

func TestPullService_EmptyPageIsSuccess(t *testing.T) {
	service := NewPullService(&mockJournalRepo{})

	resp, err := service.HandlePull(context.Background(), "node-b", &domain.PullRequest{
		SourceNodeID: "node-b",
		MaxEvents:    10,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if resp.Events == nil {
		t.Error("expected empty slice, not nil")
	}
	if len(resp.Events) != 0 || resp.HasMoreEvents {
		t.Errorf("expected empty page, got %d events", len(resp.Events))
	}
}
