package pipeline

import (
	"math"
	"slices"
	"time"

	"vaxdash/internal/models"
)

// DefaultTargetCoveragePct is the share of the population the scenario table
// measures time-to-target against.
const DefaultTargetCoveragePct = 75.0

// projectionDays is how many trailing boosted days feed the pace estimate
// when the target lies beyond the observed range.
const projectionDays = 14

// maxProjectionDays bounds how far past the last observed day a target date
// is projected. Slower paces report no date.
const maxProjectionDays = 3650

// ScenarioTable compares a set of boost levels against the baseline. For each
// boost it reports when the boosted cumulative curve reaches targetPct of the
// population, how many extra doses were given by the end of the period and
// the hospitalizations avoided according to EstimateAvoidance.
//
// Boost values are de-duplicated and returned in ascending order.
func ScenarioTable(ts models.TimeSeries, boosts []float64, params models.ScenarioParameters, epi models.EpidemicConfig, targetPct float64) ([]models.ScenarioRow, error) {
	if len(ts.Points) == 0 {
		return nil, models.ErrEmptyInput
	}
	if !(targetPct > 0) || targetPct > 100 {
		return nil, &models.InvalidParameterError{Field: "target", Value: targetPct, Reason: "must be within (0, 100]"}
	}
	if err := validateEpidemic(epi); err != nil {
		return nil, err
	}

	levels := slices.Clone(boosts)
	slices.Sort(levels)
	levels = slices.Compact(levels)

	baselineCum := ts.CumulativeDoses()
	baselineLast := baselineCum[len(baselineCum)-1]
	target := epi.Population * targetPct / 100

	rows := make([]models.ScenarioRow, 0, len(levels))
	for _, b := range levels {
		p := params
		p.BoostPct = b
		if err := ValidateParameters(p); err != nil {
			return nil, err
		}
		boosted, err := Boost(ts, b)
		if err != nil {
			return nil, err
		}
		boostedCum := boosted.Series.CumulativeDoses()
		sim, err := EstimateAvoidance(baselineCum, boostedCum, p, epi)
		if err != nil {
			return nil, err
		}

		row := models.ScenarioRow{
			BoostPct:                b,
			ExtraVaccinated:         math.Max(0, boostedCum[len(boostedCum)-1]-baselineLast),
			HospitalizationsAvoided: sim.HospitalizationsAvoided,
		}
		row.TargetDate, row.Projected = targetDate(boosted.Series, target)
		rows = append(rows, row)
	}
	return rows, nil
}

// targetDate finds the first day the cumulative curve reaches target. When
// it never does, the date is projected from the mean daily pace of the last
// projectionDays days. A pace of zero or less, or one that would need more
// than maxProjectionDays, yields nil.
func targetDate(ts models.TimeSeries, target float64) (*time.Time, bool) {
	for _, p := range ts.Points {
		if p.Cumulative >= target {
			d := p.Date
			return &d, false
		}
	}

	last := ts.Points[len(ts.Points)-1]
	tail := ts.Points[max(0, len(ts.Points)-projectionDays):]
	var sum float64
	for _, p := range tail {
		sum += p.Doses
	}
	pace := sum / float64(len(tail))
	if !(pace > 0) {
		return nil, true
	}
	days := math.Ceil((target - last.Cumulative) / pace)
	if days > maxProjectionDays {
		return nil, true
	}
	d := last.Date.AddDate(0, 0, int(days))
	return &d, true
}
