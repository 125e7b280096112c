package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"peersync-server/internal/domain"
	"peersync-server/internal/middleware"
	"peersync-server/internal/service"
	"peersync-server/pkg/response"

	"github.com/go-playground/validator/v10"
)

type SnapshotHandler struct {
	snapshotService *service.SnapshotService
	validate        *validator.Validate
}

func NewSnapshotHandler(snapshotService *service.SnapshotService) *SnapshotHandler {
	return &SnapshotHandler{
		snapshotService: snapshotService,
		validate:        validator.New(),
	}
}

// Deliver stores an inbound snapshot file sent by a peer that is
// seeding this node. Applying it happens separately via Restore.
func (h *SnapshotHandler) Deliver(w http.ResponseWriter, r *http.Request) {
	nodeID := middleware.GetNodeID(r)
	if nodeID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req domain.SnapshotDeliverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	if req.SourceNodeID != nodeID {
		response.Forbidden(w, "source node does not match credentials")
		return
	}

	size, err := h.snapshotService.ReceiveSnapshot(r.Context(), &req)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	response.Success(w, map[string]int64{"received_bytes": size})
}

func (h *SnapshotHandler) Restore(w http.ResponseWriter, r *http.Request) {
	nodeID := middleware.GetNodeID(r)
	if nodeID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req domain.RestoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	if req.SourceNodeID != nodeID {
		response.Forbidden(w, "source node does not match credentials")
		return
	}

	result, err := h.snapshotService.Restore(r.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrWatermarkExists) {
			response.Conflict(w, "node already has sync history for this peer, use force to overwrite")
			return
		}
		if errors.Is(err, service.ErrSnapshotMissing) {
			response.NotFound(w, "no snapshot delivered for this session")
			return
		}
		response.InternalError(w, err.Error())
		return
	}

	response.Success(w, result)
}
