package services

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"vaxdash/internal/metrics"
	"vaxdash/internal/models"
	"vaxdash/internal/pipeline"
)

// DatasetProvider is satisfied by *loader.CachedLoader.
type DatasetProvider interface {
	Load(ctx context.Context) (*models.Dataset, error)
	Reload(ctx context.Context) (*models.Dataset, error)
}

// Settings are the fixed assumptions shared by the dashboard and scenario
// services.
type Settings struct {
	Window          int
	Epidemic        models.EpidemicConfig
	TargetPct       float64
	SensitivityRuns int
}

type DashboardService struct {
	data     DatasetProvider
	cache    *ResultCache
	settings Settings
	metrics  *metrics.Metrics
	logr     *zap.Logger
}

func NewDashboardService(data DatasetProvider, cache *ResultCache, settings Settings, m *metrics.Metrics, logr *zap.Logger) *DashboardService {
	return &DashboardService{data: data, cache: cache, settings: settings, metrics: m, logr: logr}
}

func (s *DashboardService) window(q models.DashboardQuery) int {
	if q.Window != 0 {
		return q.Window
	}
	return s.settings.Window
}

// TimeSeries builds the national (or region-filtered) daily series and
// restricts it to the requested date range.
func (s *DashboardService) TimeSeries(ctx context.Context, q models.DashboardQuery) (models.TimeSeries, error) {
	ds, err := s.data.Load(ctx)
	if err != nil {
		return models.TimeSeries{}, fmt.Errorf("load dataset: %w", err)
	}
	regions := normalizeCodes(q.Regions)
	w := s.window(q)

	full, err := cached(s.cache, cacheKey(ds.Fingerprint, "timeseries", w, strings.Join(regions, ",")), func() (models.TimeSeries, error) {
		defer s.metrics.ObserveStage("timeseries", time.Now())
		return pipeline.BuildTimeSeries(filterDoses(ds.Doses, regions), w)
	})
	if err != nil {
		return models.TimeSeries{}, err
	}
	return pipeline.SliceTimeSeries(full, q.DateFrom, q.DateTo), nil
}

// RegionalTimeSeries builds one series per region, each sliced to the
// requested date range.
func (s *DashboardService) RegionalTimeSeries(ctx context.Context, q models.DashboardQuery) ([]models.RegionalSeries, error) {
	ds, err := s.data.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	regions := normalizeCodes(q.Regions)
	w := s.window(q)

	all, err := cached(s.cache, cacheKey(ds.Fingerprint, "regional-timeseries", w, strings.Join(regions, ",")), func() ([]models.RegionalSeries, error) {
		defer s.metrics.ObserveStage("regional_timeseries", time.Now())
		return pipeline.BuildRegionalTimeSeries(filterDoses(ds.Doses, regions), w)
	})
	if err != nil {
		return nil, err
	}

	out := make([]models.RegionalSeries, len(all))
	for i, rs := range all {
		out[i] = models.RegionalSeries{RegionCode: rs.RegionCode, Series: pipeline.SliceTimeSeries(rs.Series, q.DateFrom, q.DateTo)}
	}
	return out, nil
}

// RegionalSummary joins doses and coverage to the region table. Records with
// unknown region codes are excluded, counted and logged.
func (s *DashboardService) RegionalSummary(ctx context.Context, regions []string) (models.RegionalSummary, error) {
	ds, err := s.data.Load(ctx)
	if err != nil {
		return models.RegionalSummary{}, fmt.Errorf("load dataset: %w", err)
	}

	summary, err := cached(s.cache, cacheKey(ds.Fingerprint, "regional-summary"), func() (models.RegionalSummary, error) {
		defer s.metrics.ObserveStage("regional_summary", time.Now())
		sum, err := pipeline.AggregateRegions(ds.Doses, ds.Coverage, ds.Regions)
		if err != nil {
			return models.RegionalSummary{}, err
		}
		s.reportSummary(sum)
		return sum, nil
	})
	if err != nil {
		return models.RegionalSummary{}, err
	}

	codes := normalizeCodes(regions)
	if len(codes) == 0 {
		return summary, nil
	}
	filtered := summary
	filtered.Regions = make(map[string]models.RegionStats, len(codes))
	for _, c := range codes {
		if st, ok := summary.Regions[c]; ok {
			filtered.Regions[c] = st
		}
	}
	return filtered, nil
}

func (s *DashboardService) reportSummary(sum models.RegionalSummary) {
	if sum.Unmatched != nil {
		s.logr.Warn("records with unknown region codes excluded",
			zap.Int("doses", len(sum.Unmatched.Doses)),
			zap.Int("coverage", len(sum.Unmatched.Coverage)),
			zap.Int("records", sum.Unmatched.Total()),
			zap.Error(sum.Unmatched),
		)
		for _, n := range sum.Unmatched.Doses {
			s.metrics.Unmatched("doses", n)
		}
		for _, n := range sum.Unmatched.Coverage {
			s.metrics.Unmatched("coverage", n)
		}
	}
	if len(sum.MissingPopulation) > 0 || len(sum.InvalidPopulation) > 0 {
		s.logr.Warn("regions without usable population, per-10k ratio not available",
			zap.Strings("missing", sum.MissingPopulation),
			zap.Strings("invalid", sum.InvalidPopulation),
		)
	}
	if len(sum.DuplicateRegionDefs) > 0 {
		s.logr.Warn("region defined more than once, last definition kept", zap.Strings("codes", sum.DuplicateRegionDefs))
	}
}

// Headline reports the KPI header for a day (the last day when at is zero).
func (s *DashboardService) Headline(ctx context.Context, at time.Time) (models.Headline, error) {
	ts, err := s.TimeSeries(ctx, models.DashboardQuery{})
	if err != nil {
		return models.Headline{}, err
	}
	return pipeline.Headline(ts, at, s.settings.Epidemic.Population)
}

func (s *DashboardService) WeeklyPattern(ctx context.Context, q models.DashboardQuery) ([]models.WeeklyCell, error) {
	ts, err := s.TimeSeries(ctx, q)
	if err != nil {
		return nil, err
	}
	return pipeline.WeeklyPattern(ts), nil
}

// Reload re-reads the data source and drops every cached result.
func (s *DashboardService) Reload(ctx context.Context) (models.DatasetInfo, error) {
	ds, err := s.data.Reload(ctx)
	if err != nil {
		s.logr.Error("dataset reload failed", zap.Error(err))
		return models.DatasetInfo{}, fmt.Errorf("reload dataset: %w", err)
	}
	s.cache.Purge()

	s.logr.Info("dataset reloaded", zap.String("source", ds.Source), zap.String("fingerprint", ds.Fingerprint))
	return models.DatasetInfo{
		Source:        ds.Source,
		Fingerprint:   ds.Fingerprint,
		LoadedAt:      ds.LoadedAt,
		DoseRecords:   len(ds.Doses),
		CoverageCount: len(ds.Coverage),
		RegionCount:   len(ds.Regions),
	}, nil
}

// normalizeCodes trims, drops empties, sorts and de-duplicates region codes.
func normalizeCodes(codes []string) []string {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func filterDoses(doses []models.DoseRecord, regions []string) []models.DoseRecord {
	if len(regions) == 0 {
		return doses
	}
	out := make([]models.DoseRecord, 0, len(doses))
	for _, d := range doses {
		if _, ok := slices.BinarySearch(regions, d.RegionCode); ok {
			out = append(out, d)
		}
	}
	return out
}
