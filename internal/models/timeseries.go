package models

import "time"

// DailyPoint is one calendar day of a continuous dose series.
type DailyPoint struct {
	Date       time.Time `json:"date"`
	Doses      float64   `json:"daily_doses"`
	RollingAvg float64   `json:"rolling_avg_doses"`
	Cumulative float64   `json:"cumulative_doses"`
}

// TimeSeries has exactly one point per calendar day between its first and
// last date; Window is the trailing window used for RollingAvg.
type TimeSeries struct {
	Window int          `json:"window"`
	Points []DailyPoint `json:"points"`
}

func (ts TimeSeries) Len() int { return len(ts.Points) }

// Daily returns the daily dose column.
func (ts TimeSeries) Daily() []float64 {
	out := make([]float64, len(ts.Points))
	for i, p := range ts.Points {
		out[i] = p.Doses
	}
	return out
}

// CumulativeDoses returns the cumulative dose column.
func (ts TimeSeries) CumulativeDoses() []float64 {
	out := make([]float64, len(ts.Points))
	for i, p := range ts.Points {
		out[i] = p.Cumulative
	}
	return out
}

// BoostedSeries is the counterfactual trajectory produced by the what-if simulator.
// ClampedDays counts days whose boosted dose count was negative and set to zero.
type BoostedSeries struct {
	BoostPct    float64    `json:"boost_pct"`
	Series      TimeSeries `json:"series"`
	ClampedDays int        `json:"clamped_days"`
}

type RegionalSeries struct {
	RegionCode string     `json:"region_code"`
	Series     TimeSeries `json:"series"`
}

// Headline carries the KPI header values for one day.
type Headline struct {
	Date            time.Time `json:"date"`
	CumulativeDoses float64   `json:"cumulative_doses"`
	RollingAvg      float64   `json:"rolling_avg_doses"`
	CoveragePct     *float64  `json:"national_coverage_pct"`
}

// WeeklyCell is one cell of the ISO week x weekday heat map. Weekday 0 is Monday.
type WeeklyCell struct {
	Date       time.Time `json:"date"`
	ISOYear    int       `json:"iso_year"`
	ISOWeek    int       `json:"iso_week"`
	Weekday    int       `json:"weekday"`
	RollingAvg float64   `json:"rolling_avg_doses"`
}

type DashboardQuery struct {
	DateFrom time.Time
	DateTo   time.Time
	Regions  []string
	Window   int
}
