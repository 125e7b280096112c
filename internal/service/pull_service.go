package service

import (
	"context"
	"time"

	"peersync-server/internal/domain"
	"peersync-server/internal/repository"
)

// PullService serves a page of journal entries to a requesting peer.
// The requester's own-origin entries are excluded so changes never
// reflect back to their source.
type PullService struct {
	journalRepo repository.JournalRepository
}

func NewPullService(journalRepo repository.JournalRepository) *PullService {
	return &PullService{journalRepo: journalRepo}
}

// HandlePull returns entries newer than the requester's watermark.
// requesterNodeID comes from the authenticated request, not the body.
// An empty page is a success, not an error.
func (s *PullService) HandlePull(ctx context.Context, requesterNodeID string, req *domain.PullRequest) (*domain.PullResponse, error) {
	events, err := s.journalRepo.EntriesSince(ctx, requesterNodeID, req.Watermark, req.MaxEvents)
	if err != nil {
		return nil, err
	}

	if events == nil {
		events = []*domain.JournalEntry{}
	}

	return &domain.PullResponse{
		Events:        events,
		HasMoreEvents: len(events) == req.MaxEvents,
		SyncTime:      time.Now().UTC(),
	}, nil
}
