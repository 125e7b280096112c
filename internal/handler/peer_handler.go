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

type PeerHandler struct {
	peerService *service.PeerService
	validate    *validator.Validate
}

func NewPeerHandler(peerService *service.PeerService) *PeerHandler {
	return &PeerHandler{
		peerService: peerService,
		validate:    validator.New(),
	}
}

func (h *PeerHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterPeerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	peer, err := h.peerService.Register(r.Context(), &req)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	response.Created(w, peer)
}

func (h *PeerHandler) List(w http.ResponseWriter, r *http.Request) {
	peers, err := h.peerService.List(r.Context())
	if err != nil {
		response.InternalError(w, "failed to list peers")
		return
	}

	response.Success(w, peers)
}

func (h *PeerHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	nodeID := mux.Vars(r)["id"]

	if err := h.peerService.SetActive(r.Context(), nodeID, false); err != nil {
		if errors.Is(err, service.ErrPeerNotFound) {
			response.NotFound(w, "peer not found")
			return
		}
		response.InternalError(w, "failed to deactivate peer")
		return
	}

	response.Success(w, map[string]string{"message": "Peer deactivated"})
}

func (h *PeerHandler) Activate(w http.ResponseWriter, r *http.Request) {
	nodeID := mux.Vars(r)["id"]

	if err := h.peerService.SetActive(r.Context(), nodeID, true); err != nil {
		if errors.Is(err, service.ErrPeerNotFound) {
			response.NotFound(w, "peer not found")
			return
		}
		response.InternalError(w, "failed to activate peer")
		return
	}

	response.Success(w, map[string]string{"message": "Peer activated"})
}
