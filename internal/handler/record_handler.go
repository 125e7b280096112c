package handler

import (
	"encoding/json"
	"net/http"

	"peersync-server/internal/domain"
	"peersync-server/internal/service"
	"peersync-server/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

// RecordHandler is the local write surface. Every mutation that goes
// through it lands in the journal and is picked up by peers on their
// next pull.
type RecordHandler struct {
	journalService *service.JournalService
	validate       *validator.Validate
}

func NewRecordHandler(journalService *service.JournalService) *RecordHandler {
	return &RecordHandler{
		journalService: journalService,
		validate:       validator.New(),
	}
}

func (h *RecordHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req domain.UpsertRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	entry, err := h.journalService.UpsertRecord(r.Context(), req.TableName, req.RecordID, req.Payload)
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}

	response.Created(w, entry)
}

func (h *RecordHandler) Get(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	record, err := h.journalService.GetRecord(r.Context(), vars["table"], vars["id"])
	if err != nil {
		response.InternalError(w, "failed to load record")
		return
	}
	if record == nil {
		response.NotFound(w, "record not found")
		return
	}

	response.Success(w, record)
}

func (h *RecordHandler) Delete(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	entry, err := h.journalService.DeleteRecord(r.Context(), vars["table"], vars["id"])
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}

	response.Success(w, entry)
}
