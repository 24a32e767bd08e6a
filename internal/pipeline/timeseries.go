package pipeline

import (
	"fmt"
	"sort"
	"time"

	"vaxdash/internal/models"
)

// DefaultWindow is the trailing window of the rolling average, in days.
const DefaultWindow = 7

// BuildTimeSeries turns unordered dose records into a continuous daily series
// from the earliest to the latest observed date. Days without records count
// as zero doses; records sharing a date are summed. A record without a date
// or with a non-finite or negative count fails the whole build.
func BuildTimeSeries(records []models.DoseRecord, window int) (models.TimeSeries, error) {
	if err := checkWindow(window); err != nil {
		return models.TimeSeries{}, err
	}
	if len(records) == 0 {
		return models.TimeSeries{}, models.ErrEmptyInput
	}

	byDay := make(map[time.Time]float64, len(records))
	var first, last time.Time
	for i, r := range records {
		if err := r.Validate(i); err != nil {
			return models.TimeSeries{}, err
		}
		d := civilDay(r.Date)
		byDay[d] += r.Count
		if i == 0 || d.Before(first) {
			first = d
		}
		if i == 0 || d.After(last) {
			last = d
		}
	}

	n := daysBetween(first, last) + 1
	points := make([]models.DailyPoint, n)
	for i := 0; i < n; i++ {
		d := first.AddDate(0, 0, i)
		points[i] = models.DailyPoint{Date: d, Doses: byDay[d]}
	}
	fillAggregates(points, window)

	return models.TimeSeries{Window: window, Points: points}, nil
}

// BuildRegionalTimeSeries builds one continuous series per region. Each
// region's series spans only that region's own observed date range.
func BuildRegionalTimeSeries(records []models.DoseRecord, window int) ([]models.RegionalSeries, error) {
	if err := checkWindow(window); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, models.ErrEmptyInput
	}

	grouped := make(map[string][]models.DoseRecord)
	for i, r := range records {
		if err := r.Validate(i); err != nil {
			return nil, err
		}
		grouped[r.RegionCode] = append(grouped[r.RegionCode], r)
	}

	codes := make([]string, 0, len(grouped))
	for code := range grouped {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	out := make([]models.RegionalSeries, 0, len(codes))
	for _, code := range codes {
		ts, err := BuildTimeSeries(grouped[code], window)
		if err != nil {
			return nil, fmt.Errorf("region %s: %w", code, err)
		}
		out = append(out, models.RegionalSeries{RegionCode: code, Series: ts})
	}
	return out, nil
}

// SliceTimeSeries keeps the points within [from, to]. Zero bounds are open.
// Aggregates are not recomputed: a cumulative value still counts doses
// dispensed before from.
func SliceTimeSeries(ts models.TimeSeries, from, to time.Time) models.TimeSeries {
	out := models.TimeSeries{Window: ts.Window, Points: make([]models.DailyPoint, 0, len(ts.Points))}
	if !from.IsZero() {
		from = civilDay(from)
	}
	if !to.IsZero() {
		to = civilDay(to)
	}
	for _, p := range ts.Points {
		if !from.IsZero() && p.Date.Before(from) {
			continue
		}
		if !to.IsZero() && p.Date.After(to) {
			continue
		}
		out.Points = append(out.Points, p)
	}
	return out
}

// Headline reports the KPI header for the given day, or for the last day when
// at is zero or outside the series. Coverage is nil when population is not positive.
func Headline(ts models.TimeSeries, at time.Time, population float64) (models.Headline, error) {
	if len(ts.Points) == 0 {
		return models.Headline{}, models.ErrEmptyInput
	}
	p := ts.Points[len(ts.Points)-1]
	if !at.IsZero() {
		at = civilDay(at)
		for _, candidate := range ts.Points {
			if candidate.Date.Equal(at) {
				p = candidate
				break
			}
		}
	}

	h := models.Headline{Date: p.Date, CumulativeDoses: p.Cumulative, RollingAvg: p.RollingAvg}
	if population > 0 {
		pct := p.Cumulative / population * 100
		h.CoveragePct = &pct
	}
	return h, nil
}

// WeeklyPattern lays the rolling average out on an ISO week x weekday grid.
func WeeklyPattern(ts models.TimeSeries) []models.WeeklyCell {
	cells := make([]models.WeeklyCell, len(ts.Points))
	for i, p := range ts.Points {
		year, week := p.Date.ISOWeek()
		cells[i] = models.WeeklyCell{
			Date:       p.Date,
			ISOYear:    year,
			ISOWeek:    week,
			Weekday:    (int(p.Date.Weekday()) + 6) % 7,
			RollingAvg: p.RollingAvg,
		}
	}
	return cells
}

// fillAggregates computes the cumulative and trailing rolling values in place.
// Windows at the start of the series are truncated to the days available.
func fillAggregates(points []models.DailyPoint, window int) {
	var cum float64
	for i := range points {
		cum += points[i].Doses
		points[i].Cumulative = cum

		start := i - window + 1
		if start < 0 {
			start = 0
		}
		var sum float64
		for j := start; j <= i; j++ {
			sum += points[j].Doses
		}
		points[i].RollingAvg = sum / float64(i-start+1)
	}
}

func checkWindow(window int) error {
	if window < 1 {
		return &models.InvalidParameterError{Field: "window", Value: float64(window), Reason: "must be at least 1"}
	}
	return nil
}

func civilDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
