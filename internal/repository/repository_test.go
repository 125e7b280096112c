package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"peersync-server/internal/domain"
	"peersync-server/internal/store"

	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	return st.DB()
}

func appendEntry(t *testing.T, db *sql.DB, repo JournalRepository, origin, table, recordID string, payload string) int64 {
	t.Helper()

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)

	seq, err := repo.Append(context.Background(), tx, &domain.JournalEntry{
		OriginNodeID: origin,
		TableName:    table,
		Operation:    domain.OpInsert,
		RecordID:     recordID,
		AfterPayload: json.RawMessage(payload),
		Checksum:     "test-checksum",
		CreatedAt:    time.Now().UTC(),
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	return seq
}
