package pipeline

import (
	"errors"
	"math"
	"testing"

	"vaxdash/internal/models"
)

func baselineSeries(t *testing.T) models.TimeSeries {
	t.Helper()
	ts, err := BuildTimeSeries([]models.DoseRecord{
		dose("2024-10-01", "R1", 100),
		dose("2024-10-02", "R1", 200),
		dose("2024-10-04", "R1", 50),
	}, 7)
	if err != nil {
		t.Fatalf("BuildTimeSeries: %v", err)
	}
	return ts
}

func TestBoostZeroIsIdentity(t *testing.T) {
	ts := baselineSeries(t)
	b, err := Boost(ts, 0)
	if err != nil {
		t.Fatalf("Boost: %v", err)
	}
	for i := range ts.Points {
		if b.Series.Points[i] != ts.Points[i] {
			t.Errorf("day %d: boosted %+v, baseline %+v", i, b.Series.Points[i], ts.Points[i])
		}
	}
	if b.ClampedDays != 0 {
		t.Errorf("clamped = %d, want 0", b.ClampedDays)
	}
}

func TestBoostScalesAndRecomputes(t *testing.T) {
	ts := baselineSeries(t)
	b, err := Boost(ts, 10)
	if err != nil {
		t.Fatalf("Boost: %v", err)
	}
	if b.Series.Len() != ts.Len() || b.Series.Window != ts.Window {
		t.Fatalf("shape changed: %d/%d", b.Series.Len(), b.Series.Window)
	}
	if got := b.Series.Points[1].Doses; math.Abs(got-220) > 1e-9 {
		t.Errorf("day 1 doses = %v, want 220", got)
	}
	if got := b.Series.Points[3].Cumulative; math.Abs(got-385) > 1e-9 {
		t.Errorf("final cumulative = %v, want 385", got)
	}
	for i := range ts.Points {
		if b.Series.Points[i].Cumulative < ts.Points[i].Cumulative {
			t.Errorf("day %d: boosted cumulative below baseline", i)
		}
	}
}

func TestBoostMinusHundredZeroesEverything(t *testing.T) {
	b, err := Boost(baselineSeries(t), -100)
	if err != nil {
		t.Fatalf("Boost: %v", err)
	}
	for i, p := range b.Series.Points {
		if p.Doses != 0 || p.RollingAvg != 0 || p.Cumulative != 0 {
			t.Errorf("day %d = %+v, want zeros", i, p)
		}
		if math.Signbit(p.Doses) {
			t.Errorf("day %d doses is negative zero", i)
		}
	}
}

func TestBoostClampsNegativeDays(t *testing.T) {
	b, err := Boost(baselineSeries(t), -150)
	if err != nil {
		t.Fatalf("Boost: %v", err)
	}
	// Three days carry doses; the gap day stays at zero and is not a clamp.
	if b.ClampedDays != 3 {
		t.Errorf("clamped = %d, want 3", b.ClampedDays)
	}
}

func TestBoostErrors(t *testing.T) {
	if _, err := Boost(models.TimeSeries{Window: 7}, 10); !errors.Is(err, models.ErrEmptyInput) {
		t.Errorf("empty err = %v", err)
	}
	var pe *models.InvalidParameterError
	if _, err := Boost(baselineSeries(t), math.NaN()); !errors.As(err, &pe) {
		t.Errorf("NaN err = %v", err)
	}
}
