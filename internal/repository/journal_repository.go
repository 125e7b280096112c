package repository

import (
	"context"
	"database/sql"
	"fmt"

	"peersync-server/internal/domain"
)

type JournalRepository interface {
	// Append inserts an entry inside the caller's transaction and returns
	// the assigned local sequence. Entries are immutable once appended.
	Append(ctx context.Context, tx *sql.Tx, entry *domain.JournalEntry) (int64, error)

	// EntriesSince returns entries with sequence > watermark, excluding
	// those that originated from originExcluded, ascending, capped at
	// limit. An empty result means the caller is caught up.
	EntriesSince(ctx context.Context, originExcluded string, watermark int64, limit int) ([]*domain.JournalEntry, error)

	// MaxSequence returns the highest assigned sequence, 0 when empty.
	// Runs inside tx when one is given.
	MaxSequence(ctx context.Context, tx *sql.Tx) (int64, error)
}

type journalRepository struct {
	db *sql.DB
}

func NewJournalRepository(db *sql.DB) JournalRepository {
	return &journalRepository{db: db}
}

func (r *journalRepository) Append(ctx context.Context, tx *sql.Tx, entry *domain.JournalEntry) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO journal_entries
			(origin_node_id, table_name, operation, record_id, before_payload, after_payload, checksum, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.OriginNodeID,
		entry.TableName,
		string(entry.Operation),
		entry.RecordID,
		nullableJSON(entry.BeforePayload),
		nullableJSON(entry.AfterPayload),
		entry.Checksum,
		entry.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to append journal entry: %w", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read assigned sequence: %w", err)
	}

	entry.SequenceID = seq
	return seq, nil
}

func (r *journalRepository) EntriesSince(ctx context.Context, originExcluded string, watermark int64, limit int) ([]*domain.JournalEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT sequence_id, origin_node_id, table_name, operation, record_id,
		       before_payload, after_payload, checksum, created_at
		FROM journal_entries
		WHERE sequence_id > ? AND origin_node_id != ?
		ORDER BY sequence_id ASC
		LIMIT ?`,
		watermark, originExcluded, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal entries: %w", err)
	}
	defer rows.Close()

	var entries []*domain.JournalEntry
	for rows.Next() {
		entry, err := scanJournalEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate journal entries: %w", err)
	}

	return entries, nil
}

func (r *journalRepository) MaxSequence(ctx context.Context, tx *sql.Tx) (int64, error) {
	query := `SELECT COALESCE(MAX(sequence_id), 0) FROM journal_entries`

	var row *sql.Row
	if tx != nil {
		row = tx.QueryRowContext(ctx, query)
	} else {
		row = r.db.QueryRowContext(ctx, query)
	}

	var seq int64
	if err := row.Scan(&seq); err != nil {
		return 0, fmt.Errorf("failed to read max sequence: %w", err)
	}

	return seq, nil
}

func scanJournalEntry(rows *sql.Rows) (*domain.JournalEntry, error) {
	var entry domain.JournalEntry
	var op string
	var before, after sql.NullString

	if err := rows.Scan(
		&entry.SequenceID,
		&entry.OriginNodeID,
		&entry.TableName,
		&op,
		&entry.RecordID,
		&before,
		&after,
		&entry.Checksum,
		&entry.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to scan journal entry: %w", err)
	}

	entry.Operation = domain.Operation(op)
	if before.Valid {
		entry.BeforePayload = []byte(before.String)
	}
	if after.Valid {
		entry.AfterPayload = []byte(after.String)
	}

	return &entry, nil
}

func nullableJSON(payload []byte) interface{} {
	if len(payload) == 0 {
		return nil
	}
	return string(payload)
}
