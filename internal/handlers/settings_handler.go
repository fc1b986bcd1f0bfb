package handlers

import (
	"errors"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ecocalc/internal/services/settings"
)

// SettingsHandler administers the stored rate parameters
type SettingsHandler struct {
	service SettingsService
	logger  arbor.ILogger
}

// NewSettingsHandler creates a settings handler
func NewSettingsHandler(service SettingsService, logger arbor.ILogger) *SettingsHandler {
	return &SettingsHandler{
		service: service,
		logger:  logger,
	}
}

type updateSettingRequest struct {
	Value string `json:"value"`
}

// ListSettingsHandler handles GET /api/settings
func (h *SettingsHandler) ListSettingsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	list, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list settings")
		WriteInternalError(w, "Failed to list settings", err)
		return
	}
	WriteJSON(w, http.StatusOK, list)
}

// SettingRoutes handles PUT and DELETE on /api/settings/{key}.
// DELETE removes the override so the configured default applies.
func (h *SettingsHandler) SettingRoutes(w http.ResponseWriter, r *http.Request) {
	segments, err := PathSegments(r, "/api/settings/")
	if err != nil || len(segments) != 1 || segments[0] == "" {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}
	key := segments[0]

	switch r.Method {
	case http.MethodPut:
		var body updateSettingRequest
		if err := DecodeJSON(w, r, &body); err != nil {
			WriteJSON(w, http.StatusBadRequest, ErrorResponse{Message: "Invalid request body", Error: err.Error()})
			return
		}
		err = h.service.Set(r.Context(), key, body.Value)
	case http.MethodDelete:
		err = h.service.Reset(r.Context(), key)
	default:
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	switch {
	case err == nil:
	case errors.Is(err, settings.ErrUnknownSetting):
		WriteError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, settings.ErrInvalidValue):
		WriteValidationError(w, map[string]string{"value": err.Error()})
		return
	default:
		h.logger.Error().Err(err).Str("key", key).Msg("Failed to update setting")
		WriteInternalError(w, "Failed to update setting", err)
		return
	}

	list, err := h.service.List(r.Context())
	if err != nil {
		WriteInternalError(w, "Failed to list settings", err)
		return
	}
	WriteJSON(w, http.StatusOK, list)
}
