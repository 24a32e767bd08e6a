package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"vaxdash/internal/middleware"
	"vaxdash/internal/services"
)

type AdminHandler struct {
	dashboard *services.DashboardService
	logr      *zap.Logger
}

func NewAdminHandler(dashboard *services.DashboardService, logr *zap.Logger) *AdminHandler {
	return &AdminHandler{dashboard: dashboard, logr: logr}
}

// Reload re-reads the configured data source. On failure the previous
// dataset keeps being served.
func (h *AdminHandler) Reload(w http.ResponseWriter, r *http.Request) {
	var by string
	if c, ok := middleware.ClaimsFromContext(r.Context()); ok {
		by = c.Subject
	}
	info, err := h.dashboard.Reload(r.Context())
	if err != nil {
		writeError(w, h.logr, "dataset reload failed", err)
		return
	}
	h.logr.Info("dataset reload requested", zap.String("analyst_id", by), zap.String("fingerprint", info.Fingerprint))
	writeJSON(w, http.StatusOK, info)
}

func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
