package api

import (
	"net/http"
	"strconv"

	"github.com/ayusman/mudra/internal/store"
)

// RunHandler serves the training run history.
type RunHandler struct {
	store *store.Store
}

// NewRunHandler creates a RunHandler with the given store.
func NewRunHandler(s *store.Store) *RunHandler {
	return &RunHandler{store: s}
}

type runResponse struct {
	ID         string `json:"id"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	Samples    int    `json:"samples"`
	Labels     int    `json:"labels"`
}

type listRunsResponse struct {
	Runs []runResponse `json:"runs"`
}

// ServeHTTP handles GET /api/runs?limit=N, newest first.
func (h *RunHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	runs, err := h.store.Runs().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	response := listRunsResponse{Runs: make([]runResponse, 0, len(runs))}
	for _, run := range runs {
		resp := runResponse{
			ID:        run.ID,
			StartedAt: run.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
			Status:    run.Status,
			Error:     run.Error,
			Samples:   run.Samples,
			Labels:    run.Labels,
		}
		if run.FinishedAt != nil {
			resp.FinishedAt = run.FinishedAt.Format("2006-01-02T15:04:05Z07:00")
		}
		response.Runs = append(response.Runs, resp)
	}

	writeJSON(w, http.StatusOK, response)
}
