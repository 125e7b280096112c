package store

import (
	"path/filepath"
	"testing"
)

func TestOpen_AppliesSchema(t *testing.T) {
	st, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	defer st.Close()

	tables := []string{
		"journal_entries",
		"sync_records",
		"peer_registrations",
		"peer_watermarks",
		"sync_sessions",
	}

	for _, table := range tables {
		var name string
		err := st.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("expected table %s to exist: %v", table, err)
		}
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.db")

	st, err := Open(path)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	if _, err := st.DB().Exec(
		"INSERT INTO sync_records (table_name, record_id, payload, updated_at) VALUES ('products', 'p1', '{}', CURRENT_TIMESTAMP)",
	); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	st.Close()

	st, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer st.Close()

	var count int
	if err := st.DB().QueryRow("SELECT COUNT(*) FROM sync_records").Scan(&count); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected data to survive reopen, got %d rows", count)
	}
}
