package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"vaxdash/internal/services"
	"vaxdash/internal/utils"
)

type BoundaryHandler struct {
	service *services.BoundaryService
	logr    *zap.Logger
}

func NewBoundaryHandler(svc *services.BoundaryService, logr *zap.Logger) *BoundaryHandler {
	return &BoundaryHandler{service: svc, logr: logr}
}

// GetBoundaries returns region polygons with per-10k doses and coverage for
// the choropleth map
func (h *BoundaryHandler) GetBoundaries(w http.ResponseWriter, r *http.Request) {
	fc, err := h.service.Boundaries(r.Context(), utils.ParseQueryList(r.URL.Query(), "regions"))
	if err != nil {
		writeError(w, h.logr, "failed to retrieve region boundaries", err)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=300")
	writeJSON(w, http.StatusOK, fc)
}
