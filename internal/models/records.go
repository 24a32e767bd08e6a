package models

import (
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/uptrace/bun"
)

// DoseRecord is one raw dispensing row: doses administered in a region on a day.
type DoseRecord struct {
	bun.BaseModel `bun:"table:app.dose_acts,alias:da"`

	Date       time.Time `bun:"act_date" json:"date"`
	RegionCode string    `bun:"region_code" json:"region_code"`
	Count      float64   `bun:"administered_count" json:"administered_count"`
}

// Validate checks the record at position index can be aggregated: it has a
// date and a finite, non-negative count.
func (r DoseRecord) Validate(index int) error {
	if r.Date.IsZero() {
		return &InvalidDateError{Index: index}
	}
	return checkAmount(index, "administered_count", r.Count)
}

// CoverageRecord is an official coverage figure published for a region.
type CoverageRecord struct {
	bun.BaseModel `bun:"table:app.coverage,alias:cv"`

	RegionCode string    `bun:"region_code" json:"region_code"`
	Percentage float64   `bun:"coverage_percentage" json:"coverage_percentage"`
	AsOf       time.Time `bun:"as_of_date" json:"as_of_date"`
}

// Validate checks the coverage percentage is finite and non-negative.
func (r CoverageRecord) Validate(index int) error {
	return checkAmount(index, "coverage_percentage", r.Percentage)
}

func checkAmount(index int, field string, v float64) error {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return &InvalidValueError{Index: index, Field: field, Value: strconv.FormatFloat(v, 'g', -1, 64), Reason: "must be finite"}
	case v < 0:
		return &InvalidValueError{Index: index, Field: field, Value: strconv.FormatFloat(v, 'g', -1, 64), Reason: "must not be negative"}
	}
	return nil
}

// Region is an administrative area. Population is nil when no figure was
// supplied; Geometry is the raw GeoJSON geometry and is only passed through.
type Region struct {
	bun.BaseModel `bun:"table:app.regions,alias:rg"`

	Code       string          `bun:"code,pk" json:"code"`
	Name       string          `bun:"name" json:"name"`
	Population *int64          `bun:"population" json:"population"`
	Geometry   json.RawMessage `bun:"geometry" json:"geometry,omitempty"`
}

// Dataset is everything one load produced. It is read-only once returned.
type Dataset struct {
	Doses       []DoseRecord     `json:"-"`
	Coverage    []CoverageRecord `json:"-"`
	Regions     []Region         `json:"-"`
	Source      string           `json:"source"`
	Fingerprint string           `json:"fingerprint"`
	LoadedAt    time.Time        `json:"loaded_at"`
}

// RegionByCode indexes the regions of the dataset.
func (d *Dataset) RegionByCode() map[string]Region {
	out := make(map[string]Region, len(d.Regions))
	for _, r := range d.Regions {
		out[r.Code] = r
	}
	return out
}

// DatasetInfo is the summary returned after a reload.
type DatasetInfo struct {
	Source        string    `json:"source"`
	Fingerprint   string    `json:"fingerprint"`
	LoadedAt      time.Time `json:"loaded_at"`
	DoseRecords   int       `json:"dose_records"`
	CoverageCount int       `json:"coverage_records"`
	RegionCount   int       `json:"regions"`
}
