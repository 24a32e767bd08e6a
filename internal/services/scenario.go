package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"vaxdash/internal/metrics"
	"vaxdash/internal/models"
	"vaxdash/internal/pipeline"
)

// MaxSensitivityRuns bounds the Monte-Carlo work a single request can ask for.
const MaxSensitivityRuns = 500

// DefaultBoosts are the rows of the comparison table when none are requested.
var DefaultBoosts = []float64{0, 5, 10, 15, 20}

type ScenarioService struct {
	dashboard *DashboardService
	settings  Settings
	metrics   *metrics.Metrics
	logr      *zap.Logger
}

func NewScenarioService(dashboard *DashboardService, settings Settings, m *metrics.Metrics, logr *zap.Logger) *ScenarioService {
	return &ScenarioService{dashboard: dashboard, settings: settings, metrics: m, logr: logr}
}

// Simulate boosts the national series and compares both trajectories with
// the SIR estimator. Parameters are validated before any data is loaded.
func (s *ScenarioService) Simulate(ctx context.Context, params models.ScenarioParameters) (*models.ScenarioOutcome, error) {
	if err := pipeline.ValidateParameters(params); err != nil {
		return nil, err
	}
	baseline, boosted, err := s.trajectories(ctx, params.BoostPct)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	sim, err := pipeline.EstimateAvoidance(baseline.CumulativeDoses(), boosted.Series.CumulativeDoses(), params, s.settings.Epidemic)
	s.metrics.ObserveStage("sir", start)
	if err != nil {
		return nil, err
	}
	s.reportDiagnostics(params, sim)

	return &models.ScenarioOutcome{
		Parameters: params,
		Epidemic:   s.settings.Epidemic,
		Baseline:   baseline,
		Boosted:    boosted,
		Simulation: sim,
	}, nil
}

// Table compares several boost levels against the target coverage.
// targetPct <= 0 selects the configured target.
func (s *ScenarioService) Table(ctx context.Context, boosts []float64, params models.ScenarioParameters, targetPct float64) ([]models.ScenarioRow, error) {
	if err := pipeline.ValidateParameters(params); err != nil {
		return nil, err
	}
	if len(boosts) == 0 {
		boosts = DefaultBoosts
	}
	if targetPct <= 0 {
		targetPct = s.settings.TargetPct
	}

	baseline, err := s.dashboard.TimeSeries(ctx, models.DashboardQuery{})
	if err != nil {
		return nil, err
	}
	defer s.metrics.ObserveStage("scenario_table", time.Now())
	return pipeline.ScenarioTable(baseline, boosts, params, s.settings.Epidemic, targetPct)
}

// Sensitivity runs the seeded Monte-Carlo band. runs <= 0 selects the
// configured number of runs.
func (s *ScenarioService) Sensitivity(ctx context.Context, params models.ScenarioParameters, runs int) (models.SensitivityBand, error) {
	if err := pipeline.ValidateParameters(params); err != nil {
		return models.SensitivityBand{}, err
	}
	if runs <= 0 {
		runs = s.settings.SensitivityRuns
	}
	if runs > MaxSensitivityRuns {
		return models.SensitivityBand{}, &models.InvalidParameterError{Field: "runs", Value: float64(runs), Reason: "too many runs"}
	}

	baseline, boosted, err := s.trajectories(ctx, params.BoostPct)
	if err != nil {
		return models.SensitivityBand{}, err
	}
	defer s.metrics.ObserveStage("sensitivity", time.Now())
	return pipeline.Sensitivity(baseline.CumulativeDoses(), boosted.Series.CumulativeDoses(), params, s.settings.Epidemic, runs, pipeline.DefaultSensitivitySeed)
}

func (s *ScenarioService) trajectories(ctx context.Context, boostPct float64) (models.TimeSeries, models.BoostedSeries, error) {
	baseline, err := s.dashboard.TimeSeries(ctx, models.DashboardQuery{})
	if err != nil {
		return models.TimeSeries{}, models.BoostedSeries{}, err
	}
	boosted, err := pipeline.Boost(baseline, boostPct)
	if err != nil {
		return models.TimeSeries{}, models.BoostedSeries{}, err
	}
	if boosted.ClampedDays > 0 {
		s.logr.Warn("boosted doses clamped at zero", zap.Float64("boost_pct", boostPct), zap.Int("days", boosted.ClampedDays))
		s.metrics.Clamped("boost_negative_day", boosted.ClampedDays)
	}
	return baseline, boosted, nil
}

func (s *ScenarioService) reportDiagnostics(params models.ScenarioParameters, sim models.SimulationResult) {
	for run, d := range map[string]models.RunDiagnostics{"baseline": sim.BaselineDiagnostics, "boosted": sim.BoostedDiagnostics} {
		if d.SusceptibleClamps == 0 && d.InfectedClamps == 0 && d.NegativeDoseDays == 0 {
			continue
		}
		s.logr.Warn("simulation values clamped",
			zap.String("run", run),
			zap.Float64("r0", params.R0),
			zap.Float64("recovery_rate", params.RecoveryRate),
			zap.Int("susceptible_clamps", d.SusceptibleClamps),
			zap.Int("infected_clamps", d.InfectedClamps),
			zap.Int("negative_dose_days", d.NegativeDoseDays),
			zap.Float64("unused_doses", d.UnusedDoses),
		)
		s.metrics.Clamped("susceptible", d.SusceptibleClamps)
		s.metrics.Clamped("infected", d.InfectedClamps)
		s.metrics.Clamped("negative_dose_day", d.NegativeDoseDays)
	}
}
