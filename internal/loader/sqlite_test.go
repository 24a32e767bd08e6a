package loader

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"vaxdash/internal/models"
)

func writeExtract(t *testing.T, stmts ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "extract.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(SQLiteSchema); err != nil {
		t.Fatalf("schema: %v", err)
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("exec %q: %v", s, err)
		}
	}
	return path
}

func TestSQLiteLoader(t *testing.T) {
	path := writeExtract(t,
		`INSERT INTO dose_acts VALUES ('2024-10-01', 'R1', 100), ('2024-10-03', 'R1', 50), ('2024-10-02', 'R2', 7)`,
		`INSERT INTO coverage VALUES ('R1', 40.5, '2024-10-03'), ('R2', 12, NULL)`,
		`INSERT INTO regions VALUES ('R1', 'North', 20000, '{"type":"Point","coordinates":[0,0]}'), ('R2', 'South', NULL, NULL)`,
	)

	ds, err := NewSQLiteLoader(path, map[string]int64{"R2": 900}, nil).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(ds.Doses) != 3 || len(ds.Coverage) != 2 || len(ds.Regions) != 2 {
		t.Fatalf("sizes = %d/%d/%d", len(ds.Doses), len(ds.Coverage), len(ds.Regions))
	}
	if ds.Regions[0].Code != "R1" || *ds.Regions[0].Population != 20000 || len(ds.Regions[0].Geometry) == 0 {
		t.Errorf("R1 = %+v", ds.Regions[0])
	}
	if p := ds.Regions[1].Population; p == nil || *p != 900 {
		t.Errorf("R2 population = %v, want 900", p)
	}
	if !ds.Coverage[1].AsOf.IsZero() {
		t.Errorf("null as-of should stay zero")
	}
	if ds.Source != "sqlite" || ds.Fingerprint == "" {
		t.Errorf("source/fingerprint = %q/%q", ds.Source, ds.Fingerprint)
	}
}

func TestSQLiteLoaderInvalidDate(t *testing.T) {
	path := writeExtract(t,
		`INSERT INTO dose_acts VALUES ('yesterday', 'R1', 1)`,
		`INSERT INTO regions VALUES ('R1', 'North', 1, NULL)`,
	)
	_, err := NewSQLiteLoader(path, nil, nil).Load(context.Background())
	var de *models.InvalidDateError
	if !errors.As(err, &de) || de.Value != "yesterday" {
		t.Errorf("err = %v, want InvalidDateError", err)
	}
}

func TestSQLiteLoaderMissingFile(t *testing.T) {
	if _, err := NewSQLiteLoader(filepath.Join(t.TempDir(), "nope.db"), nil, nil).Load(context.Background()); err == nil {
		t.Error("expected error for missing extract")
	}
}

func TestSQLiteLoaderNegativeCount(t *testing.T) {
	path := writeExtract(t,
		`INSERT INTO dose_acts VALUES ('2024-10-01', 'R1', 100), ('2024-10-02', 'R1', -40)`,
		`INSERT INTO regions VALUES ('R1', 'North', 1, NULL)`,
	)
	_, err := NewSQLiteLoader(path, nil, nil).Load(context.Background())
	var ve *models.InvalidValueError
	if !errors.As(err, &ve) || ve.Index != 1 || ve.Value != "-40" {
		t.Errorf("err = %v, want InvalidValueError for record 1", err)
	}
}
