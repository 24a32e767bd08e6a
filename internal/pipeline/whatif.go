package pipeline

import (
	"math"

	"vaxdash/internal/models"
)

// Boost scales every day of the baseline by (1 + boostPct/100) and recomputes
// the rolling and cumulative columns with the baseline's window. The boost is
// applied to the whole observed period. A day whose scaled value would be
// negative is set to zero and counted in ClampedDays.
func Boost(ts models.TimeSeries, boostPct float64) (models.BoostedSeries, error) {
	if math.IsNaN(boostPct) || math.IsInf(boostPct, 0) {
		return models.BoostedSeries{}, &models.InvalidParameterError{Field: "boost_pct", Value: boostPct, Reason: "must be finite"}
	}
	if err := checkWindow(ts.Window); err != nil {
		return models.BoostedSeries{}, err
	}
	if len(ts.Points) == 0 {
		return models.BoostedSeries{}, models.ErrEmptyInput
	}

	factor := 1 + boostPct/100
	points := make([]models.DailyPoint, len(ts.Points))
	clamped := 0
	for i, p := range ts.Points {
		d := p.Doses * factor
		if d < 0 {
			clamped++
		}
		if d <= 0 {
			// also folds -0 into 0
			d = 0
		}
		points[i] = models.DailyPoint{Date: p.Date, Doses: d}
	}
	fillAggregates(points, ts.Window)

	return models.BoostedSeries{
		BoostPct:    boostPct,
		Series:      models.TimeSeries{Window: ts.Window, Points: points},
		ClampedDays: clamped,
	}, nil
}
