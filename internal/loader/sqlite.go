package loader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"vaxdash/internal/models"
)

// SQLiteSchema is the layout expected in an extract file. Dates are stored
// as ISO text; geometry as GeoJSON text.
const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS dose_acts (
	act_date TEXT NOT NULL,
	region_code TEXT NOT NULL,
	administered_count REAL NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS coverage (
	region_code TEXT NOT NULL,
	coverage_percentage REAL NOT NULL,
	as_of_date TEXT
);
CREATE TABLE IF NOT EXISTS regions (
	code TEXT PRIMARY KEY,
	name TEXT,
	population INTEGER,
	geometry TEXT
);`

// SQLiteLoader reads an offline extract produced by the export job.
type SQLiteLoader struct {
	path        string
	populations map[string]int64
	logr        *zap.Logger
}

func NewSQLiteLoader(path string, populations map[string]int64, logr *zap.Logger) *SQLiteLoader {
	if logr == nil {
		logr = zap.NewNop()
	}
	return &SQLiteLoader{path: path, populations: populations, logr: logr}
}

func (l *SQLiteLoader) Name() string { return "sqlite" }

func (l *SQLiteLoader) Invalidate() {}

func (l *SQLiteLoader) Load(ctx context.Context) (*models.Dataset, error) {
	info, err := os.Stat(l.path)
	if err != nil {
		return nil, fmt.Errorf("stat sqlite extract: %w", err)
	}
	db, err := sql.Open("sqlite", l.path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	defer func() { _ = db.Close() }()

	doses, err := l.selectDoses(ctx, db)
	if err != nil {
		return nil, err
	}
	coverage, err := l.selectCoverage(ctx, db)
	if err != nil {
		return nil, err
	}
	regions, err := l.selectRegions(ctx, db)
	if err != nil {
		return nil, err
	}
	applyPopulations(regions, l.populations)

	l.logr.Info("dataset loaded",
		zap.String("source", "sqlite"),
		zap.String("path", l.path),
		zap.Int("doses", len(doses)),
		zap.Int("coverage", len(coverage)),
		zap.Int("regions", len(regions)),
	)

	return &models.Dataset{
		Doses:       doses,
		Coverage:    coverage,
		Regions:     regions,
		Source:      "sqlite",
		Fingerprint: fingerprint(l.path, strconv.FormatInt(info.Size(), 10), info.ModTime().UTC().Format(time.RFC3339Nano)),
		LoadedAt:    time.Now().UTC(),
	}, nil
}

func (l *SQLiteLoader) selectDoses(ctx context.Context, db *sql.DB) ([]models.DoseRecord, error) {
	rows, err := db.QueryContext(ctx, `SELECT act_date, region_code, administered_count FROM dose_acts`)
	if err != nil {
		return nil, fmt.Errorf("select dose_acts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.DoseRecord
	for i := 0; rows.Next(); i++ {
		var raw string
		var rec models.DoseRecord
		if err := rows.Scan(&raw, &rec.RegionCode, &rec.Count); err != nil {
			return nil, fmt.Errorf("scan dose_acts: %w", err)
		}
		d, err := parseDate(raw)
		if err != nil {
			return nil, &models.InvalidDateError{Index: i, Value: raw}
		}
		rec.Date = d
		if err := rec.Validate(i); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (l *SQLiteLoader) selectCoverage(ctx context.Context, db *sql.DB) ([]models.CoverageRecord, error) {
	rows, err := db.QueryContext(ctx, `SELECT region_code, coverage_percentage, as_of_date FROM coverage`)
	if err != nil {
		return nil, fmt.Errorf("select coverage: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.CoverageRecord
	for i := 0; rows.Next(); i++ {
		var asOf sql.NullString
		var rec models.CoverageRecord
		if err := rows.Scan(&rec.RegionCode, &rec.Percentage, &asOf); err != nil {
			return nil, fmt.Errorf("scan coverage: %w", err)
		}
		if asOf.Valid && asOf.String != "" {
			d, err := parseDate(asOf.String)
			if err != nil {
				return nil, &models.InvalidDateError{Index: i, Value: asOf.String}
			}
			rec.AsOf = d
		}
		if err := rec.Validate(i); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (l *SQLiteLoader) selectRegions(ctx context.Context, db *sql.DB) ([]models.Region, error) {
	rows, err := db.QueryContext(ctx, `SELECT code, name, population, geometry FROM regions ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("select regions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.Region
	for rows.Next() {
		var (
			r    models.Region
			name sql.NullString
			pop  sql.NullInt64
			geom sql.NullString
		)
		if err := rows.Scan(&r.Code, &name, &pop, &geom); err != nil {
			return nil, fmt.Errorf("scan regions: %w", err)
		}
		r.Name = name.String
		if pop.Valid {
			p := pop.Int64
			r.Population = &p
		}
		if geom.Valid && geom.String != "" {
			r.Geometry = []byte(geom.String)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.New("sqlite extract has no regions")
	}
	return out, nil
}
