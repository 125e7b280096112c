package handler

import (
	"encoding/json"
	"net/http"

	"peersync-server/internal/domain"
	"peersync-server/internal/middleware"
	"peersync-server/internal/service"
	"peersync-server/pkg/response"

	"github.com/go-playground/validator/v10"
)

type SyncHandler struct {
	pullService *service.PullService
	validate    *validator.Validate
}

func NewSyncHandler(pullService *service.PullService) *SyncHandler {
	return &SyncHandler{
		pullService: pullService,
		validate:    validator.New(),
	}
}

// Pull serves a page of journal events to an authenticated peer. The
// requester's identity comes from the auth middleware, not from the
// body; a body claiming a different node is rejected.
func (h *SyncHandler) Pull(w http.ResponseWriter, r *http.Request) {
	nodeID := middleware.GetNodeID(r)
	if nodeID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req domain.PullRequest
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

	resp, err := h.pullService.HandlePull(r.Context(), nodeID, &req)
	if err != nil {
		response.InternalError(w, "failed to read journal")
		return
	}

	response.Success(w, resp)
}
