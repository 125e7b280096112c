package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"peersync-server/internal/domain"
	"peersync-server/internal/service"
	"peersync-server/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

type SessionHandler struct {
	sessionService  *service.SessionService
	syncRunner      *service.SyncRunner
	snapshotService *service.SnapshotService
	validate        *validator.Validate
	listLimit       int
}

func NewSessionHandler(
	sessionService *service.SessionService,
	syncRunner *service.SyncRunner,
	snapshotService *service.SnapshotService,
	listLimit int,
) *SessionHandler {
	return &SessionHandler{
		sessionService:  sessionService,
		syncRunner:      syncRunner,
		snapshotService: snapshotService,
		validate:        validator.New(),
		listLimit:       listLimit,
	}
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.sessionService.List(r.Context(), h.listLimit)
	if err != nil {
		response.InternalError(w, "failed to list sessions")
		return
	}

	response.Success(w, sessions)
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	session, err := h.sessionService.Get(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			response.NotFound(w, "session not found")
			return
		}
		response.InternalError(w, "failed to load session")
		return
	}

	response.Success(w, session)
}

func (h *SessionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	session, err := h.sessionService.Cancel(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			response.NotFound(w, "session not found")
			return
		}
		if errors.Is(err, service.ErrIllegalTransition) {
			response.Conflict(w, "session can no longer be cancelled")
			return
		}
		response.InternalError(w, "failed to cancel session")
		return
	}

	response.Success(w, session)
}

// StartPull kicks off an incremental pull from a registered peer. The
// session is returned immediately; the transfer runs in the background.
func (h *SessionHandler) StartPull(w http.ResponseWriter, r *http.Request) {
	var req domain.StartSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	session, err := h.syncRunner.StartPull(r.Context(), req.PeerNodeID)
	if err != nil {
		h.startError(w, err)
		return
	}

	response.Accepted(w, session)
}

// StartInitialLoad snapshots this node's records and seeds the target
// peer with them.
func (h *SessionHandler) StartInitialLoad(w http.ResponseWriter, r *http.Request) {
	var req domain.StartSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	session, err := h.snapshotService.StartInitialLoad(r.Context(), req.PeerNodeID, req.Force)
	if err != nil {
		h.startError(w, err)
		return
	}

	response.Accepted(w, session)
}

func (h *SessionHandler) startError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrPeerNotFound):
		response.NotFound(w, "peer not found")
	case errors.Is(err, service.ErrPeerInactive):
		response.Conflict(w, "peer is deactivated")
	case errors.Is(err, service.ErrSessionConflict):
		response.Conflict(w, "a sync session with this peer is already running")
	default:
		response.InternalError(w, "failed to start sync")
	}
}
