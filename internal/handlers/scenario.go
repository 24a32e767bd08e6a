package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"vaxdash/internal/models"
	"vaxdash/internal/services"
	"vaxdash/internal/utils"
)

// Slider defaults of the dashboard.
const (
	defaultBoostPct     = 10
	defaultR0           = 1.3
	defaultRecoveryDays = 7
)

type ScenarioHandler struct {
	service *services.ScenarioService
	logr    *zap.Logger
}

func NewScenarioHandler(svc *services.ScenarioService, logr *zap.Logger) *ScenarioHandler {
	return &ScenarioHandler{service: svc, logr: logr}
}

// Simulate runs the boosted scenario against the baseline.
// ?trajectories=false drops the daily SIR compartments from the response.
func (h *ScenarioHandler) Simulate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params, err := parseScenarioParams(q)
	if err != nil {
		writeError(w, h.logr, "invalid scenario parameters", err)
		return
	}

	out, err := h.service.Simulate(r.Context(), params)
	if err != nil {
		writeError(w, h.logr, "scenario simulation failed", err)
		return
	}
	if raw := first(q, "trajectories"); raw != "" && !parseBool(raw) {
		out.Simulation.Baseline = nil
		out.Simulation.Boosted = nil
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ScenarioHandler) Table(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params, err := parseScenarioParams(q)
	if err != nil {
		writeError(w, h.logr, "invalid scenario parameters", err)
		return
	}
	boosts, err := parseCSVFloat("boosts", strings.Join(utils.ParseQueryList(q, "boosts"), ","))
	if err != nil {
		writeError(w, h.logr, "invalid scenario parameters", err)
		return
	}
	target, err := queryFloat(q, "target", 0)
	if err != nil {
		writeError(w, h.logr, "invalid scenario parameters", err)
		return
	}

	rows, err := h.service.Table(r.Context(), boosts, params, target)
	if err != nil {
		writeError(w, h.logr, "scenario table failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": rows, "count": len(rows)})
}

func (h *ScenarioHandler) Sensitivity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params, err := parseScenarioParams(q)
	if err != nil {
		writeError(w, h.logr, "invalid scenario parameters", err)
		return
	}
	runs, err := queryInt(q, "runs", 0)
	if err != nil {
		writeError(w, h.logr, "invalid scenario parameters", err)
		return
	}

	band, err := h.service.Sensitivity(r.Context(), params, runs)
	if err != nil {
		writeError(w, h.logr, "sensitivity analysis failed", err)
		return
	}
	writeJSON(w, http.StatusOK, band)
}

// parseScenarioParams reads boost, r0 and either recovery_rate or
// recovery_days (rate = 1/days). Range checks are left to the service.
func parseScenarioParams(q url.Values) (models.ScenarioParameters, error) {
	boost, err := queryFloat(q, "boost", defaultBoostPct)
	if err != nil {
		return models.ScenarioParameters{}, err
	}
	r0, err := queryFloat(q, "r0", defaultR0)
	if err != nil {
		return models.ScenarioParameters{}, err
	}

	rate, err := queryFloat(q, "recovery_rate", 0)
	if err != nil {
		return models.ScenarioParameters{}, err
	}
	if first(q, "recovery_rate") == "" {
		days, err := queryFloat(q, "recovery_days", defaultRecoveryDays)
		if err != nil {
			return models.ScenarioParameters{}, err
		}
		if days <= 0 {
			return models.ScenarioParameters{}, &models.InvalidParameterError{Field: "recovery_days", Value: days, Reason: "must be positive"}
		}
		rate = 1 / days
	}

	return models.ScenarioParameters{BoostPct: boost, R0: r0, RecoveryRate: rate}, nil
}
