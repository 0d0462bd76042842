package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mini-rodalies-3d/overlay/internal/logging"
	"github.com/mini-rodalies-3d/overlay/internal/metrics"
	"github.com/mini-rodalies-3d/overlay/internal/realtime/markers"
)

// HealthResponse is the JSON response for GET /health
type HealthResponse struct {
	Status    string                    `json:"status"`
	Timestamp time.Time                 `json:"timestamp"`
	StartedAt time.Time                 `json:"started_at"`
	Lines     int                       `json:"lines"`
	Stations  int                       `json:"stations"`
	Batches   []metrics.IntervalSummary `json:"batches"`
	Error     string                    `json:"error,omitempty"`
}

// Health handles GET /health
// Reports the static network size and the observed batch cadence per scope
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		StartedAt: s.startedAt,
		Lines:     len(s.network.Lines),
		Stations:  len(s.network.Stations),
		Batches:   []metrics.IntervalSummary{},
	}

	intervals, err := s.layer.Intervals(ctx)
	if err != nil {
		resp.Status = "error"
		resp.Error = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	if intervals != nil {
		resp.Batches = intervals
	}
	writeJSON(w, http.StatusOK, resp)
}

// VehiclesResponse is the JSON response for GET /api/vehicles
type VehiclesResponse struct {
	Vehicles  []markers.Vehicle `json:"vehicles"`
	Count     int               `json:"count"`
	Timestamp time.Time         `json:"timestamp"`
}

// GetVehicles handles GET /api/vehicles
// Returns every tracked vehicle at its currently displayed position
func (s *Server) GetVehicles(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	vs, err := s.layer.Vehicles(ctx)
	if err != nil {
		logging.LogError(s.logger, "vehicle snapshot failed", err)
		writeError(w, http.StatusServiceUnavailable, "Realtime layer unavailable", map[string]interface{}{
			"internal": err.Error(),
		})
		return
	}
	if vs == nil {
		vs = []markers.Vehicle{}
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, VehiclesResponse{
		Vehicles:  vs,
		Count:     len(vs),
		Timestamp: time.Now().UTC(),
	})
}

// OpenDetail handles POST /api/detail/{id}
func (s *Server) OpenDetail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	err := s.layer.OpenDetail(ctx, id)
	switch {
	case errors.Is(err, markers.ErrNotTracked):
		writeError(w, http.StatusNotFound, "Vehicle not tracked", map[string]interface{}{"id": id})
	case err != nil:
		logging.LogError(s.logger, "open detail failed", err, slog.String("id", id))
		writeError(w, http.StatusServiceUnavailable, "Realtime layer unavailable", nil)
	default:
		writeJSON(w, http.StatusOK, map[string]string{"tracking": id})
	}
}

// CloseDetail handles DELETE /api/detail
func (s *Server) CloseDetail(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	if err := s.layer.CloseDetail(ctx); err != nil {
		logging.LogError(s.logger, "close detail failed", err)
		writeError(w, http.StatusServiceUnavailable, "Realtime layer unavailable", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
