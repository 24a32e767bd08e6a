package loader

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"vaxdash/internal/models"
)

// PostgresLoader reads the three datasets from the app schema. Region
// geometry is stored as PostGIS and converted with ST_AsGeoJSON.
type PostgresLoader struct {
	db          *bun.DB
	populations map[string]int64
	logr        *zap.Logger
}

func NewPostgresLoader(db *bun.DB, populations map[string]int64, logr *zap.Logger) *PostgresLoader {
	if logr == nil {
		logr = zap.NewNop()
	}
	return &PostgresLoader{db: db, populations: populations, logr: logr}
}

func (l *PostgresLoader) Name() string { return "postgres" }

// Invalidate is a no-op: every Load queries the database.
func (l *PostgresLoader) Invalidate() {}

func (l *PostgresLoader) Load(ctx context.Context) (*models.Dataset, error) {
	var doses []models.DoseRecord
	err := l.db.NewSelect().
		Model(&doses).
		Where("act_date IS NOT NULL").
		OrderExpr("act_date ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select dose acts: %w", err)
	}

	var coverage []models.CoverageRecord
	if err := l.db.NewSelect().Model(&coverage).OrderExpr("as_of_date ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("select coverage: %w", err)
	}

	for i, d := range doses {
		if err := d.Validate(i); err != nil {
			return nil, fmt.Errorf("dose acts: %w", err)
		}
	}
	for i, c := range coverage {
		if err := c.Validate(i); err != nil {
			return nil, fmt.Errorf("coverage: %w", err)
		}
	}

	// Geometry comes back as text so it can be passed through untouched
	var rows []struct {
		Code       string         `bun:"code"`
		Name       string         `bun:"name"`
		Population sql.NullInt64  `bun:"population"`
		GeoJSON    sql.NullString `bun:"geojson"`
	}
	err = l.db.NewSelect().
		Column("code", "name", "population").
		ColumnExpr("ST_AsGeoJSON(geom) AS geojson").
		TableExpr("app.regions").
		OrderExpr("code ASC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("select regions: %w", err)
	}

	regions := make([]models.Region, 0, len(rows))
	for _, r := range rows {
		region := models.Region{Code: r.Code, Name: r.Name}
		if r.Population.Valid {
			p := r.Population.Int64
			region.Population = &p
		}
		if r.GeoJSON.Valid {
			region.Geometry = []byte(r.GeoJSON.String)
		}
		regions = append(regions, region)
	}
	applyPopulations(regions, l.populations)

	l.logr.Info("dataset loaded",
		zap.String("source", "postgres"),
		zap.Int("doses", len(doses)),
		zap.Int("coverage", len(coverage)),
		zap.Int("regions", len(regions)),
	)

	return &models.Dataset{
		Doses:    doses,
		Coverage: coverage,
		Regions:  regions,
		Source:   "postgres",
		Fingerprint: fingerprint(
			strconv.Itoa(len(doses)),
			strconv.Itoa(len(coverage)),
			strconv.Itoa(len(regions)),
			time.Now().UTC().Format(time.RFC3339Nano),
		),
		LoadedAt: time.Now().UTC(),
	}, nil
}
