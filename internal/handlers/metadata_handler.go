package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ecocalc/internal/interfaces"
)

// MetadataHandler serves reference data and matrix statistics
type MetadataHandler struct {
	metadata MetadataProvider
	matrix   interfaces.RateMatrixStore
	logger   arbor.ILogger
}

// NewMetadataHandler creates a metadata handler
func NewMetadataHandler(metadata MetadataProvider, matrix interfaces.RateMatrixStore, logger arbor.ILogger) *MetadataHandler {
	return &MetadataHandler{
		metadata: metadata,
		matrix:   matrix,
		logger:   logger,
	}
}

// MetadataHandler handles GET /api/metadata
func (h *MetadataHandler) MetadataHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	metadata, err := h.metadata.Metadata(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to build metadata")
		WriteInternalError(w, "Failed to load metadata", err)
		return
	}
	WriteJSON(w, http.StatusOK, metadata)
}

// MatrixStatsHandler handles GET /api/matrix/stats
func (h *MetadataHandler) MatrixStatsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	stats, err := h.matrix.Stats(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to read matrix stats")
		WriteInternalError(w, "Failed to read matrix stats", err)
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}
