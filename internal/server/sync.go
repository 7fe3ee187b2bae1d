package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plsync/internal/manifest"
	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
	"github.com/desertthunder/plsync/internal/tasks"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SyncHandler starts, cancels and reports sync runs of playlists under a library root.
type SyncHandler struct {
	engine tasks.SyncEngine
	root   string
	logger *log.Logger
}

// NewSyncHandler creates a handler serving playlist folders directly under root.
func NewSyncHandler(engine tasks.SyncEngine, root string, logger *log.Logger) *SyncHandler {
	if logger == nil {
		logger = shared.NewDiscardLogger()
	}
	return &SyncHandler{engine: engine, root: root, logger: logger}
}

// Routes returns the sync endpoints.
func (h *SyncHandler) Routes() []Route {
	return []Route{
		{Method: http.MethodPost, Path: "/sync", Handler: h.StartSync},
		{Method: http.MethodPost, Path: "/runs/{id}/cancel", Handler: h.CancelRun},
		{Method: http.MethodGet, Path: "/runs/{id}", Handler: h.GetRun},
		{Method: http.MethodGet, Path: "/healthz", Handler: h.Health},
	}
}

type syncRequest struct {
	Playlist string `json:"playlist"` // folder name under the library root
}

type runResponse struct {
	RunID     string             `json:"run_id"`
	Playlist  string             `json:"playlist,omitempty"`
	State     string             `json:"state"`
	Step      int                `json:"step"`
	Total     int                `json:"total"`
	StartedAt *time.Time         `json:"started_at,omitempty"`
	Report    *models.SyncReport `json:"report,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// StartSync handles POST /sync and answers 202 with the id of the started run.
func (h *SyncHandler) StartSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	name := strings.TrimSpace(req.Playlist)
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		writeJSONError(w, "playlist must be a folder name", http.StatusBadRequest)
		return
	}
	dir := filepath.Join(h.root, name)
	if _, err := os.Stat(manifest.Path(dir)); err != nil {
		writeJSONError(w, "Playlist not found", http.StatusNotFound)
		return
	}

	id := h.engine.Start(r.Context(), dir, nil)
	h.logger.Info("sync started over http", "run_id", id, "playlist", name)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Location", "/runs/"+id)
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, h.logger, runResponse{RunID: id, Playlist: dir, State: models.StateFetchingRemoteListing.String()})
}

// CancelRun handles POST /runs/{id}/cancel.
func (h *SyncHandler) CancelRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.engine.Cancel(id); err != nil {
		h.writeEngineError(w, err)
		return
	}
	st, err := h.engine.Status(id)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, h.logger, toRunResponse(st))
}

// GetRun handles GET /runs/{id}.
func (h *SyncHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	st, err := h.engine.Status(mux.Vars(r)["id"])
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, h.logger, toRunResponse(st))
}

// Health handles GET /healthz.
func (h *SyncHandler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, h.logger, map[string]string{"status": "ok"})
}

func (h *SyncHandler) writeEngineError(w http.ResponseWriter, err error) {
	if errors.Is(err, shared.ErrRunNotFound) {
		writeJSONError(w, "Run not found", http.StatusNotFound)
		return
	}
	h.logger.Error("engine request failed", "error", err)
	writeJSONError(w, "Internal server error", http.StatusInternalServerError)
}

func toRunResponse(st tasks.RunStatus) runResponse {
	resp := runResponse{
		RunID:    st.ID,
		Playlist: st.Playlist,
		State:    st.State.String(),
		Step:     st.Step,
		Total:    st.Total,
		Report:   st.Report,
	}
	if !st.StartedAt.IsZero() {
		started := st.StartedAt
		resp.StartedAt = &started
	}
	if st.Err != nil {
		resp.Error = st.Err.Error()
	}
	return resp
}

// MetricsHandler exposes the Prometheus registry.
type MetricsHandler struct{}

// Routes returns GET /metrics.
func (MetricsHandler) Routes() []Route {
	return []Route{{Method: http.MethodGet, Path: "/metrics", Handler: promhttp.Handler().ServeHTTP}}
}

func writeJSON(w http.ResponseWriter, logger *log.Logger, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
