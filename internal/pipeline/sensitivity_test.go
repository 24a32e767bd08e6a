package pipeline

import (
	"errors"
	"math"
	"testing"

	"vaxdash/internal/models"
)

func TestSensitivityIsReproducible(t *testing.T) {
	base := cumulativeOf(200_000, 60, 0)
	boosted := cumulativeOf(200_000, 60, 20)
	params := models.ScenarioParameters{BoostPct: 20, R0: 1.3, RecoveryRate: 0.1}

	a, err := Sensitivity(base, boosted, params, testEpidemic, DefaultSensitivityRuns, DefaultSensitivitySeed)
	if err != nil {
		t.Fatalf("Sensitivity: %v", err)
	}
	b, _ := Sensitivity(base, boosted, params, testEpidemic, DefaultSensitivityRuns, DefaultSensitivitySeed)

	if len(a.Points) != testEpidemic.HorizonDays {
		t.Fatalf("points = %d, want %d", len(a.Points), testEpidemic.HorizonDays)
	}
	for i := range a.Points {
		if a.Points[i] != b.Points[i] {
			t.Fatalf("day %d differs between identical runs", i)
		}
		p := a.Points[i]
		if p.P10 > p.Median || p.Median > p.P90 {
			t.Errorf("day %d band out of order: %+v", i, p)
		}
	}
	if a.MedianAvoided != b.MedianAvoided || a.MedianAvoided <= 0 {
		t.Errorf("median avoided = %v / %v", a.MedianAvoided, b.MedianAvoided)
	}
}

func TestSensitivityIdenticalTrajectoriesGiveZeroBand(t *testing.T) {
	cum := cumulativeOf(1000, 10, 0)
	band, err := Sensitivity(cum, cum, models.ScenarioParameters{R0: 1, RecoveryRate: 0.2}, testEpidemic, 5, 7)
	if err != nil {
		t.Fatalf("Sensitivity: %v", err)
	}
	for _, p := range band.Points {
		if p.P10 != 0 || p.Median != 0 || p.P90 != 0 {
			t.Fatalf("day %d band = %+v, want zeros", p.Day, p)
		}
	}
}

func TestSensitivityErrors(t *testing.T) {
	var pe *models.InvalidParameterError
	cum := []float64{1}
	if _, err := Sensitivity(cum, cum, models.ScenarioParameters{R0: 1, RecoveryRate: 0.1}, testEpidemic, 0, 1); !errors.As(err, &pe) {
		t.Errorf("runs 0 err = %v", err)
	}
	if _, err := Sensitivity(cum, cum, models.ScenarioParameters{R0: -1, RecoveryRate: 0.1}, testEpidemic, 3, 1); !errors.As(err, &pe) {
		t.Errorf("r0 -1 err = %v", err)
	}
}

func TestQuantile(t *testing.T) {
	tests := []struct {
		xs   []float64
		q    float64
		want float64
	}{
		{[]float64{3, 1, 2}, 0.5, 2},
		{[]float64{1, 2, 3, 4}, 0.5, 2.5},
		{[]float64{10, 0}, 0.1, 1},
		{[]float64{5}, 0.9, 5},
	}
	for _, tt := range tests {
		if got := quantile(tt.xs, tt.q); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("quantile(%v, %v) = %v, want %v", tt.xs, tt.q, got, tt.want)
		}
	}
	if !math.IsNaN(quantile(nil, 0.5)) {
		t.Error("quantile of empty slice should be NaN")
	}
}
