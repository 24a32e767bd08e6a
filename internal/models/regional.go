package models

import "time"

// RegionStats is the summary line of one region. DosesPer10k and
// CoveragePercentage are nil when not available.
type RegionStats struct {
	RegionCode         string     `json:"region_code"`
	Name               string     `json:"name"`
	Population         *int64     `json:"population"`
	TotalDoses         float64    `json:"total_doses"`
	DosesPer10k        *float64   `json:"doses_per_10k"`
	CoveragePercentage *float64   `json:"coverage_percentage"`
	CoverageAsOf       *time.Time `json:"coverage_as_of,omitempty"`
}

// RegionalSummary maps region codes to their stats. Records referencing
// unknown regions are excluded and reported in Unmatched; regions whose
// population is absent or not positive are listed so the not-available
// output is traceable.
type RegionalSummary struct {
	Regions             map[string]RegionStats `json:"regions"`
	MissingPopulation   []string               `json:"missing_population,omitempty"`
	InvalidPopulation   []string               `json:"invalid_population,omitempty"`
	DuplicateRegionDefs []string               `json:"duplicate_region_definitions,omitempty"`
	Unmatched           *UnmatchedRegionError  `json:"unmatched,omitempty"`
}

// Codes returns region codes in lexical order.
func (s RegionalSummary) Codes() []string {
	return sortedKeys(s.Regions)
}
