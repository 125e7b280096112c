package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"peersync-server/internal/domain"
)

type RecordRepository interface {
	// Upsert writes a record by (table, id) inside the caller's
	// transaction, inserting or replacing the payload.
	Upsert(ctx context.Context, tx *sql.Tx, tableName, recordID string, payload json.RawMessage, now time.Time) error

	// Delete removes a record if present. Deleting a missing record is
	// not an error; the bool reports whether a row existed.
	Delete(ctx context.Context, tx *sql.Tx, tableName, recordID string) (bool, error)

	// Get returns (nil, nil) when the record does not exist.
	Get(ctx context.Context, tableName, recordID string) (*domain.Record, error)

	// ListAll streams every record, used by the snapshot dump. Runs
	// inside tx when one is given so the dump is consistent with the
	// journal position read in the same transaction.
	ListAll(ctx context.Context, tx *sql.Tx) ([]*domain.Record, error)
}

type recordRepository struct {
	db *sql.DB
}

func NewRecordRepository(db *sql.DB) RecordRepository {
	return &recordRepository{db: db}
}

func (r *recordRepository) Upsert(ctx context.Context, tx *sql.Tx, tableName, recordID string, payload json.RawMessage, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO sync_records (table_name, record_id, payload, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (table_name, record_id) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		tableName, recordID, string(payload), now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert record %s/%s: %w", tableName, recordID, err)
	}
	return nil
}

func (r *recordRepository) Delete(ctx context.Context, tx *sql.Tx, tableName, recordID string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`DELETE FROM sync_records WHERE table_name = ? AND record_id = ?`,
		tableName, recordID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete record %s/%s: %w", tableName, recordID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read delete result: %w", err)
	}

	return affected > 0, nil
}

func (r *recordRepository) Get(ctx context.Context, tableName, recordID string) (*domain.Record, error) {
	var record domain.Record
	var payload string

	err := r.db.QueryRowContext(ctx, `
		SELECT table_name, record_id, payload, updated_at
		FROM sync_records
		WHERE table_name = ? AND record_id = ?`,
		tableName, recordID,
	).Scan(&record.TableName, &record.RecordID, &payload, &record.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record %s/%s: %w", tableName, recordID, err)
	}

	record.Payload = []byte(payload)
	return &record, nil
}

func (r *recordRepository) ListAll(ctx context.Context, tx *sql.Tx) ([]*domain.Record, error) {
	query := `
		SELECT table_name, record_id, payload, updated_at
		FROM sync_records
		ORDER BY table_name, record_id`

	var rows *sql.Rows
	var err error
	if tx != nil {
		rows, err = tx.QueryContext(ctx, query)
	} else {
		rows, err = r.db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var records []*domain.Record
	for rows.Next() {
		var record domain.Record
		var payload string
		if err := rows.Scan(&record.TableName, &record.RecordID, &payload, &record.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		record.Payload = []byte(payload)
		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}

	return records, nil
}
