package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/daman-app/daman/internal/api"
	"github.com/daman-app/daman/internal/database"
)

// parseEntityKind validates the kind query/body value
func parseEntityKind(value string) (database.EntityKind, bool) {
	switch database.EntityKind(value) {
	case database.EntityKindSupplier:
		return database.EntityKindSupplier, true
	case database.EntityKindBank:
		return database.EntityKindBank, true
	}
	return "", false
}

// parseEntityID extracts the numeric entity id from the request path
func parseEntityID(r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

// handleSuggestions handles GET /api/suggestions?q=&hint=&kind=
func (h *APIHandler) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseEntityKind(r.URL.Query().Get("kind"))
	if !ok {
		api.RespondError(w, http.StatusBadRequest, "Query parameter 'kind' must be supplier or bank")
		return
	}

	rawText := r.URL.Query().Get("q")
	sourceHint := r.URL.Query().Get("hint")

	suggestions, err := h.matcher.GetSuggestions(rawText, sourceHint, kind)
	if err != nil {
		api.RespondServiceError(w, err)
		return
	}

	api.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"query":       rawText,
		"key":         h.normalizer.Key(rawText),
		"suggestions": suggestions,
	})
}

// handleLearningHistory handles GET /api/learning/:key. The path segment
// is raw text from the caller, it is normalized before the lookup.
func (h *APIHandler) handleLearningHistory(w http.ResponseWriter, r *http.Request) {
	key := h.normalizer.Key(r.PathValue("key"))

	confirmations, err := h.learning.History(key)
	if err != nil {
		api.RespondServiceError(w, err)
		return
	}

	api.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"key":           key,
		"confirmations": confirmations,
	})
}

// handleListEntities handles GET /api/entities?kind=
func (h *APIHandler) handleListEntities(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseEntityKind(r.URL.Query().Get("kind"))
	if !ok {
		api.RespondError(w, http.StatusBadRequest, "Query parameter 'kind' must be supplier or bank")
		return
	}

	entities, err := h.registry.ListByKind(kind)
	if err != nil {
		api.RespondServiceError(w, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, entities)
}

// handleCreateEntity handles POST /api/entities
func (h *APIHandler) handleCreateEntity(w http.ResponseWriter, r *http.Request) {
	var req api.CreateEntityRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if fieldErrors := api.Validate(req); fieldErrors != nil {
		api.RespondValidationError(w, fieldErrors)
		return
	}

	entity, err := h.registry.CreateEntity(database.EntityKind(req.Kind), req.OfficialName)
	if err != nil {
		api.RespondServiceError(w, err)
		return
	}

	log.Printf("APIHandler: Created %s entity %d (%s)", entity.Kind, entity.ID, entity.OfficialName)
	api.RespondJSON(w, http.StatusCreated, entity)
}

// handleGetEntity handles GET /api/entities/:id
func (h *APIHandler) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	id, ok := parseEntityID(r)
	if !ok {
		api.RespondError(w, http.StatusBadRequest, "Invalid entity ID")
		return
	}

	entity, err := h.registry.GetEntity(id)
	if err != nil {
		api.RespondServiceError(w, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, entity)
}

// handleRenameEntity handles PUT /api/entities/:id
func (h *APIHandler) handleRenameEntity(w http.ResponseWriter, r *http.Request) {
	id, ok := parseEntityID(r)
	if !ok {
		api.RespondError(w, http.StatusBadRequest, "Invalid entity ID")
		return
	}

	var req api.RenameEntityRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if fieldErrors := api.Validate(req); fieldErrors != nil {
		api.RespondValidationError(w, fieldErrors)
		return
	}

	entity, err := h.registry.RenameEntity(id, req.OfficialName)
	if err != nil {
		api.RespondServiceError(w, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, entity)
}

// handleListAlternatives handles GET /api/entities/:id/alternatives
func (h *APIHandler) handleListAlternatives(w http.ResponseWriter, r *http.Request) {
	id, ok := parseEntityID(r)
	if !ok {
		api.RespondError(w, http.StatusBadRequest, "Invalid entity ID")
		return
	}

	if _, err := h.registry.GetEntity(id); err != nil {
		api.RespondServiceError(w, err)
		return
	}

	alternatives, err := h.registry.Alternatives(id)
	if err != nil {
		api.RespondServiceError(w, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, alternatives)
}

// handleRegisterAlternative handles POST /api/entities/:id/alternatives
func (h *APIHandler) handleRegisterAlternative(w http.ResponseWriter, r *http.Request) {
	id, ok := parseEntityID(r)
	if !ok {
		api.RespondError(w, http.StatusBadRequest, "Invalid entity ID")
		return
	}

	var req api.RegisterAlternativeRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if fieldErrors := api.Validate(req); fieldErrors != nil {
		api.RespondValidationError(w, fieldErrors)
		return
	}

	if err := h.registry.RegisterAlternative(id, req.RawText); err != nil {
		api.RespondServiceError(w, err)
		return
	}

	alternatives, err := h.registry.Alternatives(id)
	if err != nil {
		api.RespondServiceError(w, err)
		return
	}
	api.RespondJSON(w, http.StatusCreated, alternatives)
}
