package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"peersync-server/internal/domain"

	sqlite3 "github.com/mattn/go-sqlite3"
)

type SessionRepository interface {
	// Create inserts a new session row. Returns
	// ErrDuplicateActiveSession when an active session already exists for
	// the same (source, target) pair; no row is created in that case.
	Create(ctx context.Context, session *domain.SyncSession) error

	FindByID(ctx context.Context, id string) (*domain.SyncSession, error)
	List(ctx context.Context, limit int) ([]*domain.SyncSession, error)

	// UpdateStatus and UpdateProgress are compare-and-swap writes: the
	// UPDATE carries the status the caller read, so a row whose status
	// moved in the meantime is left untouched and ErrStaleSession is
	// returned. Terminal rows stay terminal even under racing writers.
	UpdateStatus(ctx context.Context, id string, from, to domain.SessionStatus, errorMessage string, completedAt *time.Time, updatedAt time.Time) error
	UpdateProgress(ctx context.Context, id string, from domain.SessionStatus, progress int, step string, total, transferred, bytes int64, updatedAt time.Time) error
}

type sessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, session *domain.SyncSession) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_sessions
			(id, kind, source_node_id, target_node_id, status, progress, current_step,
			 total_records, transferred_records, transferred_bytes, error_message,
			 started_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		string(session.Kind),
		session.SourceNodeID,
		session.TargetNodeID,
		string(session.Status),
		session.Progress,
		session.CurrentStep,
		session.TotalRecords,
		session.TransferredRecords,
		session.TransferredBytes,
		session.ErrorMessage,
		session.StartedAt,
		session.UpdatedAt,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return ErrDuplicateActiveSession
		}
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *sessionRepository) FindByID(ctx context.Context, id string) (*domain.SyncSession, error) {
	row := r.db.QueryRowContext(ctx, sessionSelect+` WHERE id = ?`, id)

	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	return session, nil
}

func (r *sessionRepository) List(ctx context.Context, limit int) ([]*domain.SyncSession, error) {
	rows, err := r.db.QueryContext(ctx, sessionSelect+` ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.SyncSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}

	return sessions, nil
}

func (r *sessionRepository) UpdateStatus(ctx context.Context, id string, from, to domain.SessionStatus, errorMessage string, completedAt *time.Time, updatedAt time.Time) error {
	var completed interface{}
	if completedAt != nil {
		completed = *completedAt
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE sync_sessions
		SET status = ?, error_message = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(to), errorMessage, completed, updatedAt, id, string(from),
	)
	if err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return r.staleOrMissing(ctx, id)
	}

	return nil
}

func (r *sessionRepository) UpdateProgress(ctx context.Context, id string, from domain.SessionStatus, progress int, step string, total, transferred, bytes int64, updatedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sync_sessions
		SET progress = ?, current_step = ?, total_records = ?,
		    transferred_records = ?, transferred_bytes = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		progress, step, total, transferred, bytes, updatedAt, id, string(from),
	)
	if err != nil {
		return fmt.Errorf("failed to update session progress: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return r.staleOrMissing(ctx, id)
	}

	return nil
}

// staleOrMissing distinguishes the two causes of an unmatched
// compare-and-swap: the row is gone, or another writer moved its status.
func (r *sessionRepository) staleOrMissing(ctx context.Context, id string) error {
	if _, err := r.FindByID(ctx, id); err != nil {
		return err
	}
	return ErrStaleSession
}

const sessionSelect = `
	SELECT id, kind, source_node_id, target_node_id, status, progress, current_step,
	       total_records, transferred_records, transferred_bytes, error_message,
	       started_at, updated_at, completed_at
	FROM sync_sessions`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*domain.SyncSession, error) {
	var session domain.SyncSession
	var kind, status string
	var completedAt sql.NullTime

	if err := row.Scan(
		&session.ID,
		&kind,
		&session.SourceNodeID,
		&session.TargetNodeID,
		&status,
		&session.Progress,
		&session.CurrentStep,
		&session.TotalRecords,
		&session.TransferredRecords,
		&session.TransferredBytes,
		&session.ErrorMessage,
		&session.StartedAt,
		&session.UpdatedAt,
		&completedAt,
	); err != nil {
		return nil, err
	}

	session.Kind = domain.SessionKind(kind)
	session.Status = domain.SessionStatus(status)
	if completedAt.Valid {
		t := completedAt.Time
		session.CompletedAt = &t
	}

	return &session, nil
}
