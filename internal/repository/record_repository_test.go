package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func upsertRecord(t *testing.T, db *sql.DB, repo RecordRepository, table, id, payload string) {
	t.Helper()

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)

	err = repo.Upsert(context.Background(), tx, table, id, json.RawMessage(payload), time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
}

func TestRecordRepository_UpsertAndGet(t *testing.T) {
	db := newTestDB(t)
	repo := NewRecordRepository(db)
	ctx := context.Background()

	record, err := repo.Get(ctx, "products", "p1")
	require.NoError(t, err)
	assert.Nil(t, record)

	upsertRecord(t, db, repo, "products", "p1", `{"name":"widget"}`)

	record, err = repo.Get(ctx, "products", "p1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.JSONEq(t, `{"name":"widget"}`, string(record.Payload))

	// Second upsert replaces the payload.
	upsertRecord(t, db, repo, "products", "p1", `{"name":"gadget"}`)

	record, err = repo.Get(ctx, "products", "p1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"gadget"}`, string(record.Payload))
}

func TestRecordRepository_Delete(t *testing.T) {
	db := newTestDB(t)
	repo := NewRecordRepository(db)
	ctx := context.Background()

	upsertRecord(t, db, repo, "products", "p1", `{"name":"widget"}`)

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	existed, err := repo.Delete(ctx, tx, "products", "p1")
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.True(t, existed)

	record, err := repo.Get(ctx, "products", "p1")
	require.NoError(t, err)
	assert.Nil(t, record)

	tx, err = db.BeginTx(ctx, nil)
	require.NoError(t, err)
	existed, err = repo.Delete(ctx, tx, "products", "p1")
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.False(t, existed)
}

func TestRecordRepository_ListAll(t *testing.T) {
	db := newTestDB(t)
	repo := NewRecordRepository(db)

	upsertRecord(t, db, repo, "products", "p1", `{"v":1}`)
	upsertRecord(t, db, repo, "products", "p2", `{"v":2}`)
	upsertRecord(t, db, repo, "customers", "c1", `{"v":3}`)

	records, err := repo.ListAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}
