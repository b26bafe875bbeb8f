package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/nerrad567/otg-controller/internal/audit"
	"github.com/nerrad567/otg-controller/internal/automation"
	"github.com/nerrad567/otg-controller/internal/device"
)

// settingsRequest is the body of PUT /automation. Absent fields keep their
// stored value; triggers are managed through /automation/triggers.
type settingsRequest struct {
	Name                *string                 `json:"name"`
	Platform            *device.Platform        `json:"platform"`
	DeviceIDs           *[]string               `json:"device_ids"`
	PostIntervalSeconds *float64                `json:"post_interval_seconds"`
	ScrollDelaySeconds  *float64                `json:"scroll_delay_seconds"`
	ViewingTime         *automation.ViewingTime `json:"viewing_time"`
}

// apply copies the fields present in the request onto cfg.
func (req settingsRequest) apply(cfg *automation.Config) {
	if req.Name != nil {
		cfg.Name = *req.Name
	}
	if req.Platform != nil {
		cfg.Platform = *req.Platform
	}
	if req.DeviceIDs != nil {
		cfg.DeviceIDs = append([]string(nil), (*req.DeviceIDs)...)
	}
	if req.PostIntervalSeconds != nil {
		cfg.PostIntervalSeconds = *req.PostIntervalSeconds
	}
	if req.ScrollDelaySeconds != nil {
		cfg.ScrollDelaySeconds = *req.ScrollDelaySeconds
	}
	if req.ViewingTime != nil {
		vt := *req.ViewingTime
		cfg.ViewingTime = &vt
	}
}

// handleGetAutomation returns the stored automation settings and triggers.
func (s *Server) handleGetAutomation(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.automation.LoadConfig(r.Context())
	if err != nil {
		s.logger.Error("loading automation config", "error", err)
		writeInternalError(w, "failed to load automation config")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// handleUpdateAutomation merges a partial settings update into the stored
// record. Changes reach a running engine at its next start.
func (s *Server) handleUpdateAutomation(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	ctx := r.Context()
	cfg, err := s.automation.LoadConfig(ctx)
	if err != nil {
		writeInternalError(w, "failed to load automation config")
		return
	}
	req.apply(cfg)

	if err := s.automation.SaveConfig(ctx, cfg); err != nil {
		if errors.Is(err, automation.ErrInvalidConfig) || errors.Is(err, automation.ErrInvalidTrigger) {
			writeValidationError(w, err.Error())
			return
		}
		s.logger.Error("saving automation config", "error", err)
		writeInternalError(w, "failed to save automation config")
		return
	}
	s.recordAudit(r, audit.ActionUpdate, audit.EntityAutomation, "", map[string]any{
		"platform": cfg.Platform,
		"devices":  len(cfg.DeviceIDs),
	})

	saved, err := s.automation.LoadConfig(ctx)
	if err != nil {
		writeInternalError(w, "failed to load automation config")
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// handleAutomationStats returns the engine snapshot.
func (s *Server) handleAutomationStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Stats())
}

// handleStartAutomation starts the engine.
func (s *Server) handleStartAutomation(w http.ResponseWriter, r *http.Request) {
	res := s.engine.Start(r.Context())
	if !res.Success {
		writeJSON(w, startStatus(res.Err), res)
		return
	}
	s.recordAudit(r, audit.ActionStart, audit.EntityAutomation, "", nil)
	writeJSON(w, http.StatusOK, res)
}

// handleStopAutomation asks the engine to stop after its current device.
func (s *Server) handleStopAutomation(w http.ResponseWriter, r *http.Request) {
	res := s.engine.Stop(r.Context())
	if !res.Success {
		status := http.StatusInternalServerError
		if errors.Is(res.Err, automation.ErrNotRunning) || errors.Is(res.Err, automation.ErrAlreadyStopping) {
			status = http.StatusConflict
		}
		writeJSON(w, status, res)
		return
	}
	s.recordAudit(r, audit.ActionStop, audit.EntityAutomation, "", nil)
	writeJSON(w, http.StatusOK, res)
}

// handleEmergencyStop forces the engine idle. It always succeeds.
func (s *Server) handleEmergencyStop(w http.ResponseWriter, r *http.Request) {
	s.engine.EmergencyStop(r.Context())
	s.logger.Warn("emergency stop requested", "request_id", r.Context().Value(ctxKeyRequestID))
	s.recordAudit(r, audit.ActionEmergencyStop, audit.EntityAutomation, "", nil)
	writeJSON(w, http.StatusOK, automation.Result{Success: true})
}

// handleListCycles returns recent cycle results, newest first.
//
// Query parameters:
//   - limit: maximum number of results (the store caps and defaults it)
func (s *Server) handleListCycles(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	cycles, err := s.automation.RecentCycles(r.Context(), limit)
	if err != nil {
		s.logger.Error("listing cycles", "error", err)
		writeInternalError(w, "failed to list cycles")
		return
	}
	if cycles == nil {
		cycles = []automation.CycleResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"cycles": cycles, "count": len(cycles)})
}

// startStatus maps a start failure to an HTTP status.
func startStatus(err error) int {
	switch {
	case errors.Is(err, automation.ErrAlreadyRunning), errors.Is(err, automation.ErrStopping):
		return http.StatusConflict
	case errors.Is(err, automation.ErrNoDevicesSelected),
		errors.Is(err, automation.ErrNoEligibleDevices),
		errors.Is(err, automation.ErrCoordinatesNotConfigured),
		errors.Is(err, automation.ErrInvalidConfig):
		return http.StatusUnprocessableEntity
	case errors.Is(err, automation.ErrEngineClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
