package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"vaxdash/internal/models"
	"vaxdash/internal/services"
	"vaxdash/internal/utils"
)

type DashboardHandler struct {
	service *services.DashboardService
	logr    *zap.Logger
}

func NewDashboardHandler(svc *services.DashboardService, logr *zap.Logger) *DashboardHandler {
	return &DashboardHandler{service: svc, logr: logr}
}

func (h *DashboardHandler) GetTimeSeries(w http.ResponseWriter, r *http.Request) {
	q, err := parseDashboardQuery(r)
	if err != nil {
		writeError(w, h.logr, "invalid query", err)
		return
	}
	ts, err := h.service.TimeSeries(r.Context(), q)
	if err != nil {
		writeError(w, h.logr, "failed to build time series", err)
		return
	}
	writeJSON(w, http.StatusOK, ts)
}

func (h *DashboardHandler) GetRegionalTimeSeries(w http.ResponseWriter, r *http.Request) {
	q, err := parseDashboardQuery(r)
	if err != nil {
		writeError(w, h.logr, "invalid query", err)
		return
	}
	series, err := h.service.RegionalTimeSeries(r.Context(), q)
	if err != nil {
		writeError(w, h.logr, "failed to build regional time series", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": series, "count": len(series)})
}

// GetWeeklyPattern returns the ISO week x weekday heatmap cells.
func (h *DashboardHandler) GetWeeklyPattern(w http.ResponseWriter, r *http.Request) {
	q, err := parseDashboardQuery(r)
	if err != nil {
		writeError(w, h.logr, "invalid query", err)
		return
	}
	cells, err := h.service.WeeklyPattern(r.Context(), q)
	if err != nil {
		writeError(w, h.logr, "failed to build weekly pattern", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": cells})
}

func (h *DashboardHandler) GetHeadline(w http.ResponseWriter, r *http.Request) {
	at, err := queryDate(r.URL.Query(), "date")
	if err != nil {
		writeError(w, h.logr, "invalid query", err)
		return
	}
	kpi, err := h.service.Headline(r.Context(), at)
	if err != nil {
		writeError(w, h.logr, "failed to compute headline", err)
		return
	}
	writeJSON(w, http.StatusOK, kpi)
}

func (h *DashboardHandler) GetRegionalSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.RegionalSummary(r.Context(), utils.ParseQueryList(r.URL.Query(), "regions"))
	if err != nil {
		writeError(w, h.logr, "failed to aggregate regions", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func parseDashboardQuery(r *http.Request) (models.DashboardQuery, error) {
	q := r.URL.Query()

	from, err := queryDate(q, "date_from")
	if err != nil {
		return models.DashboardQuery{}, err
	}
	to, err := queryDate(q, "date_to")
	if err != nil {
		return models.DashboardQuery{}, err
	}
	window, err := queryInt(q, "window", 0)
	if err != nil {
		return models.DashboardQuery{}, err
	}

	return models.DashboardQuery{
		DateFrom: from,
		DateTo:   to,
		Regions:  utils.ParseQueryList(q, "regions"),
		Window:   window,
	}, nil
}
