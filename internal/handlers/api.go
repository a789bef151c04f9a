package handlers

import (
	"net/http"
	"time"

	"github.com/daman-app/daman/internal/api"
	"github.com/daman-app/daman/internal/normalize"
	"github.com/daman-app/daman/internal/services"
)

// APIHandler handles API endpoints for the review UI and importers
type APIHandler struct {
	registry   *services.RegistryService
	learning   *services.LearningService
	matcher    *services.MatchingService
	decisions  *services.DecisionService
	history    *services.HistoryService
	correction *services.CorrectionService
	normalizer *normalize.Normalizer
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(registry *services.RegistryService, learning *services.LearningService, matcher *services.MatchingService, decisions *services.DecisionService, history *services.HistoryService, correction *services.CorrectionService, normalizer *normalize.Normalizer) *APIHandler {
	return &APIHandler{
		registry:   registry,
		learning:   learning,
		matcher:    matcher,
		decisions:  decisions,
		history:    history,
		correction: correction,
		normalizer: normalizer,
	}
}

// SetupRoutes sets up all API routes
func (h *APIHandler) SetupRoutes(mux *http.ServeMux) {
	// Matching
	mux.HandleFunc("GET /api/suggestions", h.handleSuggestions)
	mux.HandleFunc("GET /api/learning/{key}", h.handleLearningHistory)

	// Guarantees
	mux.HandleFunc("GET /api/guarantees", h.handleListGuarantees)
	mux.HandleFunc("GET /api/guarantees/{uuid}", h.handleGetGuarantee)
	mux.HandleFunc("POST /api/guarantees/{uuid}/commit", h.handleCommitDecision)
	mux.HandleFunc("POST /api/guarantees/{uuid}/status", h.handleTransition)
	mux.HandleFunc("POST /api/guarantees/{uuid}/corrections", h.handleCorrection)
	mux.HandleFunc("GET /api/guarantees/{uuid}/history", h.handleHistory)
	mux.HandleFunc("GET /api/guarantees/{uuid}/state", h.handleStateAt)

	// Entity registry
	mux.HandleFunc("GET /api/entities", h.handleListEntities)
	mux.HandleFunc("POST /api/entities", h.handleCreateEntity)
	mux.HandleFunc("GET /api/entities/{id}", h.handleGetEntity)
	mux.HandleFunc("PUT /api/entities/{id}", h.handleRenameEntity)
	mux.HandleFunc("GET /api/entities/{id}/alternatives", h.handleListAlternatives)
	mux.HandleFunc("POST /api/entities/{id}/alternatives", h.handleRegisterAlternative)

	mux.HandleFunc("GET /health", h.handleHealth)
}

// SetupImportRoutes registers the spreadsheet intake endpoint. It is kept
// separate so the caller can wrap it with importer key authentication
// instead of the JWT session middleware.
func (h *APIHandler) SetupImportRoutes(mux *http.ServeMux, wrap func(http.HandlerFunc) http.HandlerFunc) {
	if wrap == nil {
		wrap = func(f http.HandlerFunc) http.HandlerFunc { return f }
	}
	mux.HandleFunc("POST /api/guarantees", wrap(h.handleImportGuarantee))
}

// handleHealth handles GET /health
func (h *APIHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	api.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
