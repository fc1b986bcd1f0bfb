package server

import (
	"net/http"
)

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Calculation
	mux.HandleFunc("/api/calculate", s.app.CalculationHandler.CalculateHandler)           // POST
	mux.HandleFunc("/api/metadata", s.app.MetadataHandler.MetadataHandler)                // GET
	mux.HandleFunc("/api/leads/", s.app.CalculationHandler.LeadCalculationsHandler)       // GET /{lead_id}/calculations
	mux.HandleFunc("/api/calculations/", s.app.CalculationHandler.CalculationRoutes)      // GET/DELETE /{id}, GET /{id}/report
	mux.HandleFunc("/api/matrix/stats", s.app.MetadataHandler.MatrixStatsHandler)         // GET

	// Rate parameters
	mux.HandleFunc("/api/settings", s.app.SettingsHandler.ListSettingsHandler) // GET
	mux.HandleFunc("/api/settings/", s.app.SettingsHandler.SettingRoutes)      // PUT/DELETE /{key}

	// System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	mux.HandleFunc("/", s.app.APIHandler.NotFoundHandler)

	return mux
}
