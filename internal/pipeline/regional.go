package pipeline

import (
	"sort"

	"github.com/shopspring/decimal"

	"vaxdash/internal/models"
)

var perTenThousand = decimal.NewFromInt(10000)

// AggregateRegions joins dose and coverage records to the known regions.
//
// Totals are summed in decimal so that the per-10k ratio does not drift with
// record order. The coverage figure is the one with the latest as-of date;
// when several records share that date the one appearing last in the input
// wins. If a region code is defined twice, the later definition replaces the
// earlier one and the code is listed in DuplicateRegionDefs.
//
// A non-finite or negative count or percentage fails the aggregation with
// *models.InvalidValueError.
func AggregateRegions(doses []models.DoseRecord, coverage []models.CoverageRecord, regions []models.Region) (models.RegionalSummary, error) {
	for i, d := range doses {
		if err := d.Validate(i); err != nil {
			return models.RegionalSummary{}, err
		}
	}
	for i, c := range coverage {
		if err := c.Validate(i); err != nil {
			return models.RegionalSummary{}, err
		}
	}

	known := make(map[string]models.Region, len(regions))
	var duplicates []string
	for _, r := range regions {
		if _, ok := known[r.Code]; ok {
			duplicates = append(duplicates, r.Code)
		}
		known[r.Code] = r
	}

	unmatched := &models.UnmatchedRegionError{}

	totals := make(map[string]decimal.Decimal, len(known))
	for _, d := range doses {
		if _, ok := known[d.RegionCode]; !ok {
			if unmatched.Doses == nil {
				unmatched.Doses = make(map[string]int)
			}
			unmatched.Doses[d.RegionCode]++
			continue
		}
		totals[d.RegionCode] = totals[d.RegionCode].Add(decimal.NewFromFloat(d.Count))
	}

	latest := make(map[string]models.CoverageRecord, len(known))
	for _, c := range coverage {
		if _, ok := known[c.RegionCode]; !ok {
			if unmatched.Coverage == nil {
				unmatched.Coverage = make(map[string]int)
			}
			unmatched.Coverage[c.RegionCode]++
			continue
		}
		if best, ok := latest[c.RegionCode]; !ok || !c.AsOf.Before(best.AsOf) {
			latest[c.RegionCode] = c
		}
	}

	summary := models.RegionalSummary{
		Regions:             make(map[string]models.RegionStats, len(known)),
		DuplicateRegionDefs: duplicates,
	}
	for code, r := range known {
		total := totals[code]
		stats := models.RegionStats{
			RegionCode: code,
			Name:       r.Name,
			Population: r.Population,
			TotalDoses: total.InexactFloat64(),
		}

		switch {
		case r.Population == nil:
			summary.MissingPopulation = append(summary.MissingPopulation, code)
		case *r.Population <= 0:
			summary.InvalidPopulation = append(summary.InvalidPopulation, code)
		default:
			per10k := total.Mul(perTenThousand).Div(decimal.NewFromInt(*r.Population)).InexactFloat64()
			stats.DosesPer10k = &per10k
		}

		if c, ok := latest[code]; ok {
			pct := c.Percentage
			asOf := c.AsOf
			stats.CoveragePercentage = &pct
			stats.CoverageAsOf = &asOf
		}

		summary.Regions[code] = stats
	}
	sort.Strings(summary.MissingPopulation)
	sort.Strings(summary.InvalidPopulation)

	if unmatched.Total() > 0 {
		summary.Unmatched = unmatched
	}
	return summary, nil
}
