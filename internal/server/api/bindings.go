// Package api provides the REST handlers for the Mudra gesture session
// engine.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/mudra/internal/dataset"
	"github.com/ayusman/mudra/internal/store"
)

// BindingHandler handles HTTP requests for gesture-to-action bindings.
type BindingHandler struct {
	store *store.Store
}

// NewBindingHandler creates a BindingHandler with the given store.
func NewBindingHandler(s *store.Store) *BindingHandler {
	return &BindingHandler{store: s}
}

// ServeHTTP routes collection and item requests.
// Expected paths: /api/bindings or /api/bindings/{gesture}
func (h *BindingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/bindings")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPut:
			h.upsert(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	gesture := dataset.NormalizeLabel(path)
	switch r.Method {
	case http.MethodDelete:
		h.delete(w, r, gesture)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type upsertBindingRequest struct {
	Gesture string `json:"gesture"`
	Action  string `json:"action"`
}

type bindingResponse struct {
	ID        string `json:"id"`
	Gesture   string `json:"gesture"`
	Action    string `json:"action"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type listBindingsResponse struct {
	Bindings []bindingResponse `json:"bindings"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toBindingResponse(b *store.Binding) bindingResponse {
	return bindingResponse{
		ID:        b.ID,
		Gesture:   b.Gesture,
		Action:    b.Action,
		CreatedAt: b.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt: b.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// list handles GET /api/bindings and returns all bindings.
func (h *BindingHandler) list(w http.ResponseWriter, r *http.Request) {
	bindings, err := h.store.Bindings().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list bindings")
		return
	}

	response := listBindingsResponse{
		Bindings: make([]bindingResponse, 0, len(bindings)),
	}
	for _, b := range bindings {
		response.Bindings = append(response.Bindings, toBindingResponse(b))
	}

	writeJSON(w, http.StatusOK, response)
}

// upsert handles PUT /api/bindings and creates or replaces a binding.
func (h *BindingHandler) upsert(w http.ResponseWriter, r *http.Request) {
	var req upsertBindingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Gesture == "" {
		writeError(w, http.StatusBadRequest, "Gesture is required")
		return
	}
	if req.Action == "" {
		writeError(w, http.StatusBadRequest, "Action is required")
		return
	}

	gesture := dataset.NormalizeLabel(req.Gesture)
	binding, err := h.store.Bindings().Upsert(gesture, req.Action)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save binding")
		return
	}

	writeJSON(w, http.StatusOK, toBindingResponse(binding))
}

// delete handles DELETE /api/bindings/{gesture}.
func (h *BindingHandler) delete(w http.ResponseWriter, r *http.Request, gesture string) {
	if err := h.store.Bindings().Delete(gesture); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Binding not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete binding")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
