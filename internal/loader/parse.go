package loader

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"vaxdash/internal/models"
)

// Accepted header names per column, in order of preference.
var (
	dateColumns     = []string{"date", "jour", "jour_date"}
	regionColumns   = []string{"region_code", "code", "reg"}
	countColumns    = []string{"administered_count", "valeur", "doses"}
	coverageColumns = []string{"coverage_percentage", "taux", "couverture", "valeur"}
	asOfColumns     = []string{"as_of_date", "date"}
)

var dateLayouts = []string{"2006-01-02", "02/01/2006", time.RFC3339}

// ParseDoses reads a dispensing CSV. Rows with an unparsable date fail the
// whole file with *models.InvalidDateError, and unparsable, non-finite or
// negative counts with *models.InvalidValueError. A blank count is read as
// zero. Error indexes count data rows from 0, header excluded.
func ParseDoses(r io.Reader) ([]models.DoseRecord, error) {
	header, rows, err := readTable(r)
	if err != nil {
		return nil, err
	}
	dateIdx, err := column(header, dateColumns)
	if err != nil {
		return nil, err
	}
	regionIdx, err := column(header, regionColumns)
	if err != nil {
		return nil, err
	}
	countIdx, err := column(header, countColumns)
	if err != nil {
		return nil, err
	}

	out := make([]models.DoseRecord, 0, len(rows))
	for i, row := range rows {
		d, err := parseDate(row[dateIdx])
		if err != nil {
			return nil, &models.InvalidDateError{Index: i, Value: row[dateIdx]}
		}
		n, err := parseNumber(row[countIdx])
		if err != nil {
			return nil, &models.InvalidValueError{Index: i, Field: "administered_count", Value: row[countIdx], Reason: "not a number"}
		}
		rec := models.DoseRecord{
			Date:       d,
			RegionCode: strings.TrimSpace(row[regionIdx]),
			Count:      n,
		}
		if err := rec.Validate(i); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// ParseCoverage reads a coverage CSV. When the file has no as-of column every
// record gets the zero time, so the last record per region wins.
func ParseCoverage(r io.Reader) ([]models.CoverageRecord, error) {
	header, rows, err := readTable(r)
	if err != nil {
		return nil, err
	}
	regionIdx, err := column(header, regionColumns)
	if err != nil {
		return nil, err
	}
	pctIdx, err := column(header, coverageColumns)
	if err != nil {
		return nil, err
	}
	asOfIdx, _ := column(header, asOfColumns)

	out := make([]models.CoverageRecord, 0, len(rows))
	for i, row := range rows {
		pct, err := parseNumber(row[pctIdx])
		if err != nil {
			return nil, &models.InvalidValueError{Index: i, Field: "coverage_percentage", Value: row[pctIdx], Reason: "not a number"}
		}
		rec := models.CoverageRecord{RegionCode: strings.TrimSpace(row[regionIdx]), Percentage: pct}
		if err := rec.Validate(i); err != nil {
			return nil, err
		}
		if asOfIdx >= 0 && strings.TrimSpace(row[asOfIdx]) != "" {
			d, err := parseDate(row[asOfIdx])
			if err != nil {
				return nil, &models.InvalidDateError{Index: i, Value: row[asOfIdx]}
			}
			rec.AsOf = d
		}
		out = append(out, rec)
	}
	return out, nil
}

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Type       string          `json:"type"`
	Properties map[string]any  `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

// ParseRegions reads a GeoJSON FeatureCollection of region boundaries. The
// code is taken from the first of code / region_code / reg present in the
// feature properties; population is read only when it is numeric.
func ParseRegions(r io.Reader) ([]models.Region, error) {
	var fc featureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("decode geojson: expected FeatureCollection, got %q", fc.Type)
	}

	out := make([]models.Region, 0, len(fc.Features))
	for i, f := range fc.Features {
		code := firstString(f.Properties, "code", "region_code", "reg")
		if code == "" {
			return nil, fmt.Errorf("feature %d: no region code", i)
		}
		region := models.Region{
			Code:     code,
			Name:     firstString(f.Properties, "nom", "name", "libelle"),
			Geometry: f.Geometry,
		}
		if p, ok := f.Properties["population"].(float64); ok {
			n := int64(p)
			region.Population = &n
		}
		out = append(out, region)
	}
	return out, nil
}

func readTable(r io.Reader) ([]string, [][]string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))

	cr := csv.NewReader(bytes.NewReader(raw))
	cr.Comma = sniffDelimiter(raw)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, models.ErrEmptyInput
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read rows: %w", err)
	}
	return header, rows, nil
}

// sniffDelimiter picks ';' when the header line has more semicolons than commas.
func sniffDelimiter(raw []byte) rune {
	line := raw
	if i := bytes.IndexByte(raw, '\n'); i >= 0 {
		line = raw[:i]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}

func column(header, names []string) (int, error) {
	for _, name := range names {
		for i, h := range header {
			if h == name {
				return i, nil
			}
		}
	}
	return -1, fmt.Errorf("missing column, expected one of %s", strings.Join(names, ", "))
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
}

func firstString(props map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := props[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}
