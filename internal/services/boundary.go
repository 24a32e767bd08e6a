package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"vaxdash/internal/models"
)

type BoundaryService struct {
	data      DatasetProvider
	dashboard *DashboardService
	logr      *zap.Logger
}

func NewBoundaryService(data DatasetProvider, dashboard *DashboardService, logr *zap.Logger) *BoundaryService {
	return &BoundaryService{data: data, dashboard: dashboard, logr: logr}
}

// Boundaries returns the region polygons as a FeatureCollection with the
// regional statistics attached as properties
func (s *BoundaryService) Boundaries(ctx context.Context, regions []string) (*models.BoundaryCollection, error) {
	ds, err := s.data.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	summary, err := s.dashboard.RegionalSummary(ctx, regions)
	if err != nil {
		return nil, err
	}

	byCode := ds.RegionByCode()
	codes := summary.Codes()

	features := make([]models.BoundaryFeature, 0, len(codes))
	skipped := 0
	for _, code := range codes {
		region := byCode[code]
		// Regions without geometry can't be drawn
		if len(region.Geometry) == 0 || string(region.Geometry) == "null" {
			skipped++
			continue
		}
		st := summary.Regions[code]

		features = append(features, models.BoundaryFeature{
			Type:     "Feature",
			ID:       code,
			Geometry: region.Geometry,
			Properties: map[string]any{
				"region_code":         code,
				"name":                st.Name,
				"population":          st.Population,
				"total_doses":         st.TotalDoses,
				"doses_per_10k":       st.DosesPer10k,
				"coverage_percentage": st.CoveragePercentage,
				"coverage_as_of":      st.CoverageAsOf,
			},
		})
	}
	if skipped > 0 {
		s.logr.Debug("regions without geometry skipped", zap.Int("count", skipped))
	}

	return &models.BoundaryCollection{
		Type:     "FeatureCollection",
		Features: features,
		Count:    len(features),
	}, nil
}
