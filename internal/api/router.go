package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/otg-controller/internal/device"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Monitoring (no auth required)
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		// WebSocket authenticates via ticket in the handler
		r.Get(s.wsPath(), s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/ws-ticket", s.handleWSTicket)
			r.Get("/audit", s.handleListAudit)

			r.Route("/automation", func(r chi.Router) {
				r.Get("/", s.handleGetAutomation)
				r.Put("/", s.handleUpdateAutomation)
				r.Get("/stats", s.handleAutomationStats)
				r.Get("/cycles", s.handleListCycles)
				r.Post("/start", s.handleStartAutomation)
				r.Post("/stop", s.handleStopAutomation)
				r.Post("/emergency-stop", s.handleEmergencyStop)

				r.Route("/triggers", func(r chi.Router) {
					r.Get("/", s.handleListTriggers)
					r.Post("/", s.handleCreateTrigger)

					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", s.handleGetTrigger)
						r.Put("/", s.handleUpdateTrigger)
						r.Delete("/", s.handleDeleteTrigger)
					})
				})
			})

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)
				r.Post("/sync", s.handleSyncDevices)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetDevice)
					r.Patch("/", s.handleUpdateDevice)
					r.Delete("/", s.handleDeleteDevice)
					r.Put("/coords", s.handleSetCoordinate)
					r.Get("/screenshot", s.handleScreenshot)
				})
			})
		})
	})

	return r
}

// wsPath returns the WebSocket route relative to /api/v1.
func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return "/ws"
	}
	return s.wsCfg.Path
}

// handleHealth returns engine state, an automation summary and device counts.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.engine.Stats()
	resp := map[string]any{
		"status":  "ok",
		"version": s.version,
		"engine":  stats,
	}

	devStats := s.devices.GetStats()
	devices := map[string]any{"total": devStats.TotalDevices}

	cfg, err := s.automation.LoadConfig(r.Context())
	if err != nil {
		s.logger.Warn("health: loading automation config", "error", err)
		resp["status"] = "degraded"
	} else {
		resp["automation"] = map[string]any{
			"name":          cfg.Name,
			"platform":      cfg.Platform,
			"device_count":  len(cfg.DeviceIDs),
			"trigger_count": len(cfg.Triggers),
			"running":       cfg.Running,
		}
		devices["configured"] = devStats.Calibrated[cfg.Platform]
	}
	resp["devices"] = devices

	writeJSON(w, http.StatusOK, resp)
}

// checkPlatform validates an optional platform query parameter.
func checkPlatform(raw string) (device.Platform, bool) {
	if raw == "" {
		return "", true
	}
	p := device.Platform(raw)
	return p, p.Valid()
}
