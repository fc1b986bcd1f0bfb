package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ecocalc/internal/interfaces"
	"github.com/ternarybob/ecocalc/internal/models"
	"github.com/ternarybob/ecocalc/internal/services/calculations"
	"github.com/ternarybob/ecocalc/internal/services/report"
	"github.com/ternarybob/ecocalc/internal/services/validation"
)

// SaveFailedResponse is returned when a calculation succeeded but could not be recorded
type SaveFailedResponse struct {
	Calculation *models.CalculationResult `json:"calculation"`
	Saved       bool                      `json:"saved"`
	Message     string                    `json:"message"`
	Error       string                    `json:"error"`
}

// CalculationHandler serves calculations and recorded calculation history
type CalculationHandler struct {
	service CalculationService
	reports ReportRenderer
	logger  arbor.ILogger
}

// NewCalculationHandler creates a calculation handler
func NewCalculationHandler(service CalculationService, reports ReportRenderer, logger arbor.ILogger) *CalculationHandler {
	return &CalculationHandler{
		service: service,
		reports: reports,
		logger:  logger,
	}
}

// CalculateHandler handles POST /api/calculate.
// 200 for any computed result, including per-measure no-match errors and
// full-mode success:false. 422 for validation failures, 500 for internal ones.
func (h *CalculationHandler) CalculateHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req models.CalculationRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		h.logger.Debug().Err(err).Msg("Invalid calculate request body")
		WriteJSON(w, http.StatusBadRequest, ErrorResponse{Message: "Invalid request body", Error: err.Error()})
		return
	}

	if req.LeadID == "" {
		result, err := h.service.Calculate(r.Context(), &req)
		if err != nil {
			h.writeCalculateError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, result)
		return
	}

	result, record, err := h.service.CalculateAndSave(r.Context(), req.LeadID, &req)
	if err != nil {
		if errors.Is(err, calculations.ErrSaveFailed) && result != nil {
			WriteJSON(w, http.StatusInternalServerError, SaveFailedResponse{
				Calculation: result,
				Saved:       false,
				Message:     "Calculation succeeded but could not be saved",
				Error:       err.Error(),
			})
			return
		}
		h.writeCalculateError(w, err)
		return
	}

	if record != nil {
		w.Header().Set("X-Calculation-Id", record.ID)
	}
	WriteJSON(w, http.StatusOK, result)
}

func (h *CalculationHandler) writeCalculateError(w http.ResponseWriter, err error) {
	if verr, ok := validation.AsError(err); ok {
		WriteValidationError(w, verr.Fields)
		return
	}
	h.logger.Error().Err(err).Msg("Calculation failed")
	WriteInternalError(w, "Calculation failed", err)
}

// LeadCalculationsHandler handles GET /api/leads/{lead_id}/calculations
func (h *CalculationHandler) LeadCalculationsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	segments, err := PathSegments(r, "/api/leads/")
	if err != nil || len(segments) != 2 || segments[0] == "" || segments[1] != "calculations" {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}
	leadID := segments[0]

	records, err := h.service.ListByLead(r.Context(), leadID)
	if err != nil {
		h.logger.Error().Err(err).Str("lead_id", leadID).Msg("Failed to list calculations")
		WriteInternalError(w, "Failed to list calculations", err)
		return
	}
	if records == nil {
		records = []*models.CalculationRecord{}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"lead_id":      leadID,
		"calculations": records,
		"count":        len(records),
	})
}

// CalculationRoutes handles /api/calculations/{id} and /api/calculations/{id}/report
func (h *CalculationHandler) CalculationRoutes(w http.ResponseWriter, r *http.Request) {
	segments, err := PathSegments(r, "/api/calculations/")
	if err != nil || len(segments) == 0 || segments[0] == "" {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}
	id := segments[0]

	switch {
	case len(segments) == 1:
		switch r.Method {
		case http.MethodGet:
			h.getCalculation(w, r, id)
		case http.MethodDelete:
			h.deleteCalculation(w, r, id)
		default:
			WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	case len(segments) == 2 && segments[1] == "report":
		if !RequireMethod(w, r, http.MethodGet) {
			return
		}
		h.reportCalculation(w, r, id)
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

func (h *CalculationHandler) getCalculation(w http.ResponseWriter, r *http.Request, id string) {
	record, ok := h.loadRecord(w, r, id)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, record)
}

func (h *CalculationHandler) deleteCalculation(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, interfaces.ErrCalculationNotFound) {
			WriteError(w, http.StatusNotFound, "Calculation not found")
			return
		}
		h.logger.Error().Err(err).Str("calculation_id", id).Msg("Failed to delete calculation")
		WriteInternalError(w, "Failed to delete calculation", err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Calculation deleted",
	})
}

func (h *CalculationHandler) reportCalculation(w http.ResponseWriter, r *http.Request, id string) {
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	record, ok := h.loadRecord(w, r, id)
	if !ok {
		return
	}

	body, err := h.reports.Render(record, format)
	if err != nil {
		WriteInternalError(w, "Failed to render report", err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	if format == report.FormatPDF {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+format.Extension()))
	}
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (h *CalculationHandler) loadRecord(w http.ResponseWriter, r *http.Request, id string) (*models.CalculationRecord, bool) {
	record, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, interfaces.ErrCalculationNotFound) {
			WriteError(w, http.StatusNotFound, "Calculation not found")
			return nil, false
		}
		h.logger.Error().Err(err).Str("calculation_id", id).Msg("Failed to load calculation")
		WriteInternalError(w, "Failed to load calculation", err)
		return nil, false
	}
	return record, true
}
