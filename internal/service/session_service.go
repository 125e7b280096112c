package service

import (
	"context"
	"errors"
	"log"
	"time"

	"peersync-server/internal/domain"
	"peersync-server/internal/repository"

	"github.com/google/uuid"
)

// ProgressNotifier receives every session change, used to stream progress
// to operator clients. Implementations must not block.
type ProgressNotifier interface {
	NotifySessionProgress(session *domain.SyncSession)
}

// SessionService is the only mutator of sync sessions. All writes go
// through the state machine in domain.CanTransition; terminal sessions
// are immutable.
type SessionService struct {
	sessionRepo repository.SessionRepository
	notifier    ProgressNotifier
}

func NewSessionService(sessionRepo repository.SessionRepository, notifier ProgressNotifier) *SessionService {
	return &SessionService{
		sessionRepo: sessionRepo,
		notifier:    notifier,
	}
}

// Create opens a new session in PREPARING. At most one active session may
// exist per (source, target) pair; a second attempt returns
// ErrSessionConflict and creates nothing.
func (s *SessionService) Create(ctx context.Context, kind domain.SessionKind, sourceNodeID, targetNodeID string) (*domain.SyncSession, error) {
	now := time.Now().UTC()

	session := &domain.SyncSession{
		ID:           uuid.NewString(),
		Kind:         kind,
		SourceNodeID: sourceNodeID,
		TargetNodeID: targetNodeID,
		Status:       domain.StatusPreparing,
		CurrentStep:  "preparing",
		StartedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		if errors.Is(err, repository.ErrDuplicateActiveSession) {
			return nil, ErrSessionConflict
		}
		return nil, err
	}

	log.Printf("session %s created: %s %s -> %s", session.ID, kind, sourceNodeID, targetNodeID)
	s.notify(session)

	return session, nil
}

// Transition moves a session to a new status, stamping timestamps and the
// error message. Illegal transitions are rejected.
func (s *SessionService) Transition(ctx context.Context, id string, status domain.SessionStatus, errorMessage string) (*domain.SyncSession, error) {
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !domain.CanTransition(session.Status, status) {
		return nil, ErrIllegalTransition
	}

	now := time.Now().UTC()
	var completedAt *time.Time
	if status.Terminal() {
		completedAt = &now
	}

	// The repository write compares against the status read above, so a
	// transition that raced with another writer is rejected instead of
	// overwriting its result.
	if err := s.sessionRepo.UpdateStatus(ctx, id, session.Status, status, errorMessage, completedAt, now); err != nil {
		if errors.Is(err, repository.ErrStaleSession) {
			log.Printf("session %s: %s -> %s rejected, status changed concurrently", id, session.Status, status)
			return nil, ErrIllegalTransition
		}
		return nil, err
	}

	log.Printf("session %s: %s -> %s", id, session.Status, status)

	session.Status = status
	session.ErrorMessage = errorMessage
	session.UpdatedAt = now
	session.CompletedAt = completedAt
	if status == domain.StatusCompleted {
		session.Progress = 100
	}
	s.notify(session)

	return session, nil
}

// UpdateProgress refreshes the counters of an active session without
// changing its status.
func (s *SessionService) UpdateProgress(ctx context.Context, id string, progress int, step string, total, transferred, bytes int64) (*domain.SyncSession, error) {
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if session.Status.Terminal() {
		return nil, ErrIllegalTransition
	}

	now := time.Now().UTC()
	if err := s.sessionRepo.UpdateProgress(ctx, id, session.Status, progress, step, total, transferred, bytes, now); err != nil {
		if errors.Is(err, repository.ErrStaleSession) {
			return nil, ErrIllegalTransition
		}
		return nil, err
	}

	session.Progress = progress
	session.CurrentStep = step
	session.TotalRecords = total
	session.TransferredRecords = transferred
	session.TransferredBytes = bytes
	session.UpdatedAt = now
	s.notify(session)

	return session, nil
}

// Cancel stops a session by explicit operator action. Refused once
// applying has started: partial application must complete or fail.
func (s *SessionService) Cancel(ctx context.Context, id string) (*domain.SyncSession, error) {
	return s.Transition(ctx, id, domain.StatusCancelled, "cancelled by operator")
}

func (s *SessionService) Get(ctx context.Context, id string) (*domain.SyncSession, error) {
	session, err := s.sessionRepo.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (s *SessionService) List(ctx context.Context, limit int) ([]*domain.SyncSession, error) {
	return s.sessionRepo.List(ctx, limit)
}

func (s *SessionService) notify(session *domain.SyncSession) {
	if s.notifier != nil {
		s.notifier.NotifySessionProgress(session)
	}
}
