package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mesplatform/schedopt/pkg/logging"
	"github.com/mesplatform/schedopt/pkg/models"
	"github.com/mesplatform/schedopt/pkg/scheduler"
	"github.com/mesplatform/schedopt/pkg/store"
)

// RunIDHeader carries the optimizer run ID on every schedule response
const RunIDHeader = "X-Run-ID"

// Optimizer is the scheduling entry point the handler depends on
type Optimizer interface {
	Optimize(ctx context.Context, jobs []models.Job, machines []models.Machine) (*models.ScheduleResult, error)
}

// Handler serves the scheduling API
type Handler struct {
	store     store.PlanStore
	optimizer Optimizer
	logger    *logging.Logger
}

// NewHandler creates a handler resolving inputs from s
func NewHandler(s store.PlanStore, o Optimizer, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Handler{store: s, optimizer: o, logger: logger}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/ai/schedule-optimize", h.ScheduleOptimize).Methods("POST")
	r.HandleFunc("/api/equipment", h.ListEquipment).Methods("GET")
	r.HandleFunc("/api/equipment/{id}/status", h.UpdateEquipmentStatus).Methods("PUT")
	r.HandleFunc("/health", h.Health).Methods("GET")
}

// ScheduleRequest names the plans to schedule. plan_ids is accepted as an alias.
type ScheduleRequest struct {
	JobIDs  []string `json:"job_ids"`
	PlanIDs []string `json:"plan_ids"`
}

func (r ScheduleRequest) ids() []string {
	if len(r.JobIDs) > 0 {
		return r.JobIDs
	}
	return r.PlanIDs
}

type errorResponse struct {
	Error string `json:"error"`
}

// ScheduleOptimize resolves the requested plans and available machines and runs the optimizer
func (h *Handler) ScheduleOptimize(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	ctx := r.Context()
	jobs, err := h.store.GetJobs(ctx, req.ids())
	if err != nil {
		h.logger.Error("Failed to load plans", logging.Fields{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load plans"})
		return
	}
	machines, err := h.store.ListMachines(ctx)
	if err != nil {
		h.logger.Error("Failed to load equipment", logging.Fields{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load equipment"})
		return
	}

	res, err := h.optimizer.Optimize(ctx, scheduler.SortJobs(jobs), machines)
	if err != nil {
		var ie *scheduler.InputError
		if errors.As(err, &ie) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: ie.Message})
			return
		}
		h.logger.Error("Schedule optimization failed", logging.Fields{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "schedule optimization failed"})
		return
	}

	w.Header().Set(RunIDHeader, res.RunID)
	writeJSON(w, http.StatusOK, models.NewResponse(res))
}

// ListEquipment returns every machine with its availability
func (h *Handler) ListEquipment(w http.ResponseWriter, r *http.Request) {
	machines, err := h.store.ListMachines(r.Context())
	if err != nil {
		h.logger.Error("Failed to load equipment", logging.Fields{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load equipment"})
		return
	}
	if machines == nil {
		machines = []models.Machine{}
	}
	writeJSON(w, http.StatusOK, machines)
}

// UpdateEquipmentStatus sets a machine to RUN, IDLE or DOWN
func (h *Handler) UpdateEquipmentStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	err := h.store.SetMachineStatus(r.Context(), id, body.Status)
	switch {
	case errors.Is(err, store.ErrMachineNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "equipment not found"})
		return
	case err != nil:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	h.logger.Info("Equipment status updated", logging.Fields{"equipment": id, "status": body.Status})
	writeJSON(w, http.StatusOK, map[string]string{"equip_code": id, "status": body.Status})
}

// Health reports whether the plan store is reachable
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.HealthCheck(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
