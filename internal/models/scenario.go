package models

import "time"

// ScenarioParameters are the user-facing what-if knobs.
type ScenarioParameters struct {
	BoostPct     float64 `json:"boost_pct"`
	R0           float64 `json:"r0" validate:"gt=0"`
	RecoveryRate float64 `json:"recovery_rate" validate:"gt=0,lt=1"`
}

// EpidemicConfig holds the fixed assumptions of the compartmental estimate.
type EpidemicConfig struct {
	Population          float64 `json:"population"`
	InitialInfected     float64 `json:"initial_infected"`
	HospitalizationRate float64 `json:"hospitalization_rate"`
	// HorizonDays <= 0 means "as long as the longest trajectory".
	HorizonDays int `json:"horizon_days"`
}

type SIRPoint struct {
	Day                 int     `json:"day"`
	Susceptible         float64 `json:"susceptible"`
	Infected            float64 `json:"infected"`
	Recovered           float64 `json:"recovered"`
	Vaccinated          float64 `json:"vaccinated"`
	NewInfections       float64 `json:"new_infections"`
	NewHospitalizations float64 `json:"new_hospitalizations"`
}

// RunDiagnostics records every correction applied during one SIR run.
type RunDiagnostics struct {
	SusceptibleClamps   int     `json:"susceptible_clamps"`
	InfectedClamps      int     `json:"infected_clamps"`
	NegativeDoseDays    int     `json:"negative_dose_days"`
	UnusedDoses         float64 `json:"unused_doses"`
	CumulativeInfected  float64 `json:"cumulative_infected"`
	CumulativeHospitals float64 `json:"cumulative_hospitalizations"`
}

// SimulationResult compares the baseline and boosted SIR runs.
type SimulationResult struct {
	Baseline                []SIRPoint     `json:"baseline"`
	Boosted                 []SIRPoint     `json:"boosted"`
	HospitalizationsAvoided float64        `json:"hospitalizations_avoided"`
	BaselineDiagnostics     RunDiagnostics `json:"baseline_diagnostics"`
	BoostedDiagnostics      RunDiagnostics `json:"boosted_diagnostics"`
}

// ScenarioOutcome is what the simulate endpoint returns: both dose
// trajectories plus the compartmental comparison.
type ScenarioOutcome struct {
	Parameters ScenarioParameters `json:"parameters"`
	Epidemic   EpidemicConfig     `json:"epidemic"`
	Baseline   TimeSeries         `json:"baseline_doses"`
	Boosted    BoostedSeries      `json:"boosted_doses"`
	Simulation SimulationResult   `json:"simulation"`
}

// ScenarioRow is one line of the boost comparison table. TargetDate is nil
// when the target cannot be reached at the current pace.
type ScenarioRow struct {
	BoostPct                float64    `json:"boost_pct"`
	TargetDate              *time.Time `json:"target_date"`
	Projected               bool       `json:"projected"`
	ExtraVaccinated         float64    `json:"extra_vaccinated"`
	HospitalizationsAvoided float64    `json:"hospitalizations_avoided"`
}

type SensitivityPoint struct {
	Day    int     `json:"day"`
	P10    float64 `json:"avoided_p10"`
	Median float64 `json:"avoided_median"`
	P90    float64 `json:"avoided_p90"`
}

type SensitivityBand struct {
	Runs          int                `json:"runs"`
	Seed          uint64             `json:"seed"`
	Points        []SensitivityPoint `json:"points"`
	MedianAvoided float64            `json:"median_avoided_total"`
}
