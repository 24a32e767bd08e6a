package pipeline

import (
	"math"
	"math/rand/v2"
	"slices"

	"vaxdash/internal/models"
)

const (
	DefaultSensitivityRuns = 25
	DefaultSensitivitySeed = 42

	r0Spread       = 0.2
	recoverySpread = 0.15 // relative to the recovery rate

	minR0       = 0.1
	minRecovery = 0.01
	maxRecovery = 0.99
)

// Sensitivity repeats EstimateAvoidance with R0 and recovery rate drawn from
// normal distributions centred on params, and reports for every day the 10th,
// 50th and 90th percentile of hospitalizations avoided that day. The draws
// come from a PCG generator seeded with seed, so equal inputs give equal bands.
func Sensitivity(baselineCum, boostedCum []float64, params models.ScenarioParameters, epi models.EpidemicConfig, runs int, seed uint64) (models.SensitivityBand, error) {
	if runs < 1 {
		return models.SensitivityBand{}, &models.InvalidParameterError{Field: "runs", Value: float64(runs), Reason: "must be at least 1"}
	}
	if err := ValidateParameters(params); err != nil {
		return models.SensitivityBand{}, err
	}

	rng := rand.New(rand.NewPCG(seed, seed))

	var perDay [][]float64
	totals := make([]float64, 0, runs)
	for run := 0; run < runs; run++ {
		p := params
		p.R0 = math.Max(minR0, params.R0+rng.NormFloat64()*r0Spread)
		g := params.RecoveryRate + rng.NormFloat64()*recoverySpread*params.RecoveryRate
		p.RecoveryRate = math.Min(maxRecovery, math.Max(minRecovery, g))

		sim, err := EstimateAvoidance(baselineCum, boostedCum, p, epi)
		if err != nil {
			return models.SensitivityBand{}, err
		}
		if perDay == nil {
			perDay = make([][]float64, len(sim.Baseline))
			for d := range perDay {
				perDay[d] = make([]float64, 0, runs)
			}
		}
		for d := range sim.Baseline {
			perDay[d] = append(perDay[d], sim.Baseline[d].NewHospitalizations-sim.Boosted[d].NewHospitalizations)
		}
		totals = append(totals, sim.HospitalizationsAvoided)
	}

	band := models.SensitivityBand{
		Runs:          runs,
		Seed:          seed,
		Points:        make([]models.SensitivityPoint, len(perDay)),
		MedianAvoided: quantile(totals, 0.5),
	}
	for d, samples := range perDay {
		band.Points[d] = models.SensitivityPoint{
			Day:    d,
			P10:    quantile(samples, 0.1),
			Median: quantile(samples, 0.5),
			P90:    quantile(samples, 0.9),
		}
	}
	return band, nil
}

// quantile interpolates linearly between the closest ranks. It sorts xs.
func quantile(xs []float64, q float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	slices.Sort(xs)
	pos := q * float64(len(xs)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return xs[lo]
	}
	return xs[lo] + (xs[hi]-xs[lo])*(pos-float64(lo))
}
