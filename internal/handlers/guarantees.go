package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/daman-app/daman/internal/api"
	"github.com/daman-app/daman/internal/database"
	"github.com/daman-app/daman/internal/middleware"
	"github.com/daman-app/daman/internal/services"
	"github.com/daman-app/daman/internal/utils"
)

// actor returns the username recorded on history events for this request.
// Import keys carry no session, so intake rows fall back to "importer".
func actor(r *http.Request) string {
	if user := middleware.GetUserFromContext(r.Context()); user != "" {
		return user
	}
	return "importer"
}

// handleImportGuarantee handles POST /api/guarantees
func (h *APIHandler) handleImportGuarantee(w http.ResponseWriter, r *http.Request) {
	var req api.ImportGuaranteeRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if fieldErrors := api.Validate(req); fieldErrors != nil {
		api.RespondValidationError(w, fieldErrors)
		return
	}

	// Spreadsheet cells carry control characters and stray whitespace;
	// clean them before they become part of the audit trail.
	record := services.ImportRecord{
		ContractNumber: utils.SanitizeCellText(req.ContractNumber),
		SupplierText:   utils.SanitizeCellText(req.SupplierText),
		BankText:       utils.SanitizeCellText(req.BankText),
		Amount:         req.Amount,
		IssueDate:      req.IssueDate,
		ExpiryDate:     req.ExpiryDate,
		Extra:          req.Extra,
	}

	g, err := h.decisions.CreateFromImport(record, actor(r))
	if err != nil {
		api.RespondServiceError(w, err)
		return
	}

	log.Printf("APIHandler: Imported guarantee %s (contract %s, supplier %q)",
		g.UUID, g.ContractNumber, utils.EscapeForLogging(g.SupplierText, 80))
	api.RespondJSON(w, http.StatusCreated, g)
}

// handleListGuarantees handles GET /api/guarantees
func (h *APIHandler) handleListGuarantees(w http.ResponseWriter, r *http.Request) {
	p := api.ParsePagination(r)

	total, err := h.decisions.CountGuarantees()
	if err != nil {
		api.RespondServiceError(w, err)
		return
	}
	guarantees, err := h.decisions.ListGuarantees(p.PerPage, p.Offset())
	if err != nil {
		api.RespondServiceError(w, err)
		return
	}

	api.RespondJSON(w, http.StatusOK, api.PaginatedResponse{
		Data: api.GuaranteesToListItems(guarantees),
		Pagination: api.PaginationMeta{
			Page:       p.Page,
			PerPage:    p.PerPage,
			Total:      total,
			TotalPages: p.TotalPages(total),
		},
	})
}

// handleGetGuarantee handles GET /api/guarantees/:uuid
func (h *APIHandler) handleGetGuarantee(w http.ResponseWriter, r *http.Request) {
	g, err := h.decisions.GetGuaranteeByUUID(r.PathValue("uuid"))
	if err != nil {
		api.RespondServiceError(w, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, g)
}

// handleCommitDecision handles POST /api/guarantees/:uuid/commit
func (h *APIHandler) handleCommitDecision(w http.ResponseWriter, r *http.Request) {
	g, err := h.decisions.GetGuaranteeByUUID(r.PathValue("uuid"))
	if err != nil {
		api.RespondServiceError(w, err)
		return
	}

	var req api.CommitDecisionRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if fieldErrors := api.Validate(req); fieldErrors != nil {
		api.RespondValidationError(w, fieldErrors)
		return
	}

	// The raw text defaults to the imported cell for the chosen side, so
	// the learning store is fed even when the client omits it.
	rawText := req.RawText
	if rawText == "" {
		if req.Field == services.FieldSupplier {
			rawText = g.SupplierText
		} else {
			rawText = g.BankText
		}
	}

	updated, err := h.decisions.Commit(g.ID, req.Field, req.EntityID, rawText, actor(r))
	if err != nil {
		api.RespondServiceError(w, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, updated)
}

// handleTransition handles POST /api/guarantees/:uuid/status
func (h *APIHandler) handleTransition(w http.ResponseWriter, r *http.Request) {
	g, err := h.decisions.GetGuaranteeByUUID(r.PathValue("uuid"))
	if err != nil {
		api.RespondServiceError(w, err)
		return
	}

	var req api.TransitionRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if fieldErrors := api.Validate(req); fieldErrors != nil {
		api.RespondValidationError(w, fieldErrors)
		return
	}

	updated, err := h.decisions.Transition(g.ID, database.GuaranteeStatus(req.Status), actor(r), req.Note)
	if err != nil {
		api.RespondServiceError(w, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, updated)
}

// handleCorrection handles POST /api/guarantees/:uuid/corrections
func (h *APIHandler) handleCorrection(w http.ResponseWriter, r *http.Request) {
	g, err := h.decisions.GetGuaranteeByUUID(r.PathValue("uuid"))
	if err != nil {
		api.RespondServiceError(w, err)
		return
	}

	var req api.CorrectionRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if fieldErrors := api.Validate(req); fieldErrors != nil {
		api.RespondValidationError(w, fieldErrors)
		return
	}

	updated, err := h.correction.Correct(g.ID, req.Fields, req.Reason, actor(r))
	if err != nil {
		api.RespondServiceError(w, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, updated)
}

// handleHistory handles GET /api/guarantees/:uuid/history
func (h *APIHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	g, err := h.decisions.GetGuaranteeByUUID(r.PathValue("uuid"))
	if err != nil {
		api.RespondServiceError(w, err)
		return
	}

	events, err := h.history.Events(g.ID)
	if err != nil {
		api.RespondServiceError(w, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, api.EventsToItems(events))
}

// handleStateAt handles GET /api/guarantees/:uuid/state?at=RFC3339
func (h *APIHandler) handleStateAt(w http.ResponseWriter, r *http.Request) {
	g, err := h.decisions.GetGuaranteeByUUID(r.PathValue("uuid"))
	if err != nil {
		api.RespondServiceError(w, err)
		return
	}

	atParam := r.URL.Query().Get("at")
	if atParam == "" {
		api.RespondError(w, http.StatusBadRequest, "Query parameter 'at' is required")
		return
	}
	at, err := time.Parse(time.RFC3339, atParam)
	if err != nil {
		api.RespondError(w, http.StatusBadRequest, "Invalid 'at' timestamp, expected RFC3339")
		return
	}

	state, err := h.history.StateAt(g.ID, at)
	if err != nil {
		api.RespondServiceError(w, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, state)
}
