package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	wsPath := s.wsCfg.Path
	if wsPath == "" {
		wsPath = "/ws"
	}
	r.Get(wsPath, s.fanout.HandleUpgrade)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.handleRoot)
		r.Get("/health", s.handleHealth)
		r.Get("/alerts", s.handleCurrentAlerts)

		r.Route("/weather", func(r chi.Router) {
			r.Get("/", s.handleCurrentWeather)
			r.Get("/history", s.handleWeatherHistory)
		})

		r.Route("/freezer", func(r chi.Router) {
			r.Get("/", s.handleFreezerState)
		})

		r.Route("/door", func(r chi.Router) {
			r.Get("/", s.handleDoorState)
			r.Post("/command", s.handleDoorCommand)
		})

		r.Route("/light", func(r chi.Router) {
			r.Get("/", s.handleLightState)
			r.Post("/command", s.handleLightCommand)
		})

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Route("/{deviceID}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Post("/reboot", s.handleRebootDevice)
				r.Post("/update", s.handleTriggerOTA)
				r.Get("/update/preview", s.handlePreviewOTA)
			})
		})
	})

	return r
}

// handleRoot is a welcome payload identifying the service and its version,
// for clients probing the API base URL before calling anything else.
func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "iris-core",
		"version": s.version,
	})
}

// handleHealth reports that the Query Surface itself is up, alongside Bus
// Adapter MQTT connectivity and the State Store's known-device count, the
// equivalent of the original's mqtt_connected liveness field.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	busConnected := s.bus != nil && s.bus.IsConnected()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"version":       s.version,
		"bus_connected": busConnected,
		"device_count":  len(s.store.SnapshotAll()),
	})
}
