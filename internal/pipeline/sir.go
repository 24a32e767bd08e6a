package pipeline

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"vaxdash/internal/models"
)

var paramValidator = newParamValidator()

func newParamValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateParameters rejects R0 <= 0, recovery rates outside (0,1) and
// non-finite values. It must run before any simulation step.
func ValidateParameters(p models.ScenarioParameters) error {
	fields := []struct {
		name  string
		value float64
	}{
		{"boost_pct", p.BoostPct},
		{"r0", p.R0},
		{"recovery_rate", p.RecoveryRate},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return &models.InvalidParameterError{Field: f.name, Value: f.value, Reason: "must be finite"}
		}
	}

	err := paramValidator.Struct(p)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		v, _ := fe.Value().(float64)
		return &models.InvalidParameterError{Field: fe.Field(), Value: v, Reason: fmt.Sprintf("failed %s=%s", fe.Tag(), fe.Param())}
	}
	return fmt.Errorf("validate parameters: %w", err)
}

func validateEpidemic(epi models.EpidemicConfig) error {
	switch {
	case !(epi.Population > 0) || math.IsInf(epi.Population, 0):
		return &models.InvalidParameterError{Field: "population", Value: epi.Population, Reason: "must be positive"}
	case !(epi.InitialInfected >= 0) || epi.InitialInfected > epi.Population:
		return &models.InvalidParameterError{Field: "initial_infected", Value: epi.InitialInfected, Reason: "must be within [0, population]"}
	case !(epi.HospitalizationRate >= 0) || epi.HospitalizationRate > 1:
		return &models.InvalidParameterError{Field: "hospitalization_rate", Value: epi.HospitalizationRate, Reason: "must be within [0, 1]"}
	}
	return nil
}

// EstimateAvoidance runs the discrete SIR model once per vaccination
// trajectory (given as cumulative doses per day) and converts the difference
// in cumulative infections into hospitalizations avoided.
//
// Each day, with beta = R0 * recovery_rate:
//
//	new_infections = beta * S * I / N
//	S -= new_infections + vaccinated_today
//	I += new_infections - recovery_rate * I
//	R += recovery_rate * I
//
// Infections are capped at S and vaccinations at what is left of S; each
// cap is counted in the run diagnostics.
func EstimateAvoidance(baselineCum, boostedCum []float64, params models.ScenarioParameters, epi models.EpidemicConfig) (models.SimulationResult, error) {
	if err := ValidateParameters(params); err != nil {
		return models.SimulationResult{}, err
	}
	if err := validateEpidemic(epi); err != nil {
		return models.SimulationResult{}, err
	}
	if len(baselineCum) == 0 || len(boostedCum) == 0 {
		return models.SimulationResult{}, models.ErrEmptyInput
	}

	horizon := epi.HorizonDays
	if horizon <= 0 {
		horizon = max(len(baselineCum), len(boostedCum))
	}

	base, baseDiag := runSIR(baselineCum, params, epi, horizon)
	boost, boostDiag := runSIR(boostedCum, params, epi, horizon)

	return models.SimulationResult{
		Baseline:                base,
		Boosted:                 boost,
		HospitalizationsAvoided: (baseDiag.CumulativeInfected - boostDiag.CumulativeInfected) * epi.HospitalizationRate,
		BaselineDiagnostics:     baseDiag,
		BoostedDiagnostics:      boostDiag,
	}, nil
}

func runSIR(cumulative []float64, params models.ScenarioParameters, epi models.EpidemicConfig, horizon int) ([]models.SIRPoint, models.RunDiagnostics) {
	gamma := params.RecoveryRate
	beta := params.R0 * gamma
	n := epi.Population

	s := n - epi.InitialInfected
	i := epi.InitialInfected
	var r, v float64

	var diag models.RunDiagnostics
	points := make([]models.SIRPoint, 0, horizon)
	prevCum := 0.0
	for day := 0; day < horizon; day++ {
		vax := 0.0
		if day < len(cumulative) {
			vax = cumulative[day] - prevCum
			prevCum = cumulative[day]
			if vax < 0 {
				diag.NegativeDoseDays++
				vax = 0
			}
		}

		newInf := beta * s * i / n
		if newInf > s {
			diag.SusceptibleClamps++
			newInf = s
		}
		applied := vax
		if applied > s-newInf {
			diag.SusceptibleClamps++
			applied = s - newInf
			diag.UnusedDoses += vax - applied
		}
		newRec := gamma * i

		s = s - newInf - applied
		if s < 0 {
			s = 0
		}
		i = i + newInf - newRec
		if i < 0 {
			diag.InfectedClamps++
			i = 0
		}
		r += newRec
		v += applied

		diag.CumulativeInfected += newInf
		diag.CumulativeHospitals += newInf * epi.HospitalizationRate
		points = append(points, models.SIRPoint{
			Day:                 day,
			Susceptible:         s,
			Infected:            i,
			Recovered:           r,
			Vaccinated:          v,
			NewInfections:       newInf,
			NewHospitalizations: newInf * epi.HospitalizationRate,
		})
	}
	return points, diag
}
