package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"go.uber.org/zap"

	"vaxdash/internal/models"
	"vaxdash/internal/services"
)

type staticProvider struct{ ds *models.Dataset }

func (p staticProvider) Load(context.Context) (*models.Dataset, error)   { return p.ds, nil }
func (p staticProvider) Reload(context.Context) (*models.Dataset, error) { return p.ds, nil }

func newServices(t *testing.T) (*services.DashboardService, *services.ScenarioService) {
	t.Helper()
	start, _ := time.Parse(dateLayout, "2024-10-01")
	var doses []models.DoseRecord
	for i := range 21 {
		doses = append(doses, models.DoseRecord{Date: start.AddDate(0, 0, i), RegionCode: "R1", Count: 1000})
	}
	pop := int64(1_000_000)
	ds := &models.Dataset{
		Doses:       doses,
		Regions:     []models.Region{{Code: "R1", Name: "North", Population: &pop}},
		Fingerprint: "fp",
	}

	cache, err := services.NewResultCache(16, nil)
	if err != nil {
		t.Fatal(err)
	}
	settings := services.Settings{
		Window:          7,
		Epidemic:        models.EpidemicConfig{Population: 1_000_000, InitialInfected: 100, HospitalizationRate: 0.05, HorizonDays: 30},
		TargetPct:       75,
		SensitivityRuns: 3,
	}
	dash := services.NewDashboardService(staticProvider{ds}, cache, settings, nil, zap.NewNop())
	return dash, services.NewScenarioService(dash, settings, nil, zap.NewNop())
}

func TestWriteErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&models.InvalidParameterError{Field: "r0", Value: -1, Reason: "must be positive"}, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", &queryError{key: "window", value: "x"}), http.StatusBadRequest},
		{models.ErrEmptyInput, http.StatusUnprocessableEntity},
		{fmt.Errorf("load dataset: %w", &models.InvalidDateError{Index: 3, Value: "soon"}), http.StatusUnprocessableEntity},
		{fmt.Errorf("load dataset: %w", &models.InvalidValueError{Index: 1, Field: "administered_count", Value: "NaN", Reason: "must be finite"}), http.StatusUnprocessableEntity},
		{services.ErrInvalidCredentials, http.StatusUnauthorized},
		{errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		writeError(rec, zap.NewNop(), "failed", tt.err)
		if rec.Code != tt.want {
			t.Errorf("writeError(%v) status = %d, want %d", tt.err, rec.Code, tt.want)
		}
		var body map[string]string
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil || body["error"] != "failed" {
			t.Errorf("body = %v (%v)", body, err)
		}
		if _, leaked := body["detail"]; leaked != (tt.want < 500) {
			t.Errorf("detail present = %v for status %d", leaked, tt.want)
		}
	}
}

func TestWriteJSONEncodeFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	far := time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC)
	writeJSON(rec, http.StatusOK, map[string]time.Time{"target_date": far})
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Error("empty body")
	}
}

func TestParseScenarioParams(t *testing.T) {
	tests := []struct {
		raw     string
		want    models.ScenarioParameters
		wantErr bool
	}{
		{"", models.ScenarioParameters{BoostPct: 10, R0: 1.3, RecoveryRate: 1.0 / 7}, false},
		{"boost=20&r0=2&recovery_days=10", models.ScenarioParameters{BoostPct: 20, R0: 2, RecoveryRate: 0.1}, false},
		{"recovery_rate=0.25&recovery_days=10", models.ScenarioParameters{BoostPct: 10, R0: 1.3, RecoveryRate: 0.25}, false},
		{"recovery_days=0", models.ScenarioParameters{}, true},
		{"r0=abc", models.ScenarioParameters{}, true},
	}
	for _, tt := range tests {
		q, _ := url.ParseQuery(tt.raw)
		got, err := parseScenarioParams(q)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseScenarioParams(%q) err = %v", tt.raw, err)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseScenarioParams(%q) = %+v, want %+v", tt.raw, got, tt.want)
		}
	}
}

func TestSplitCSVAndFloats(t *testing.T) {
	if got := splitCSV(" a, ,b,"); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("splitCSV = %q", got)
	}
	if got, err := parseCSVFloat("boosts", "0, 5,10"); err != nil || len(got) != 3 || got[2] != 10 {
		t.Errorf("parseCSVFloat = %v, %v", got, err)
	}
	if _, err := parseCSVFloat("boosts", "5,ten"); err == nil {
		t.Error("expected error for non-numeric boost")
	}
	if !parseBool(" TRUE ") || parseBool("no") {
		t.Error("parseBool")
	}
}

func TestDashboardHandlers(t *testing.T) {
	dash, _ := newServices(t)
	h := NewDashboardHandler(dash, zap.NewNop())

	tests := []struct {
		name    string
		handler http.HandlerFunc
		target  string
		want    int
	}{
		{"series", h.GetTimeSeries, "/?date_from=2024-10-05&date_to=2024-10-06", http.StatusOK},
		{"bad date", h.GetTimeSeries, "/?date_from=05/10/2024", http.StatusBadRequest},
		{"bad window", h.GetTimeSeries, "/?window=0x", http.StatusBadRequest},
		{"negative window", h.GetTimeSeries, "/?window=-3", http.StatusBadRequest},
		{"regional", h.GetRegionalTimeSeries, "/?regions=R1", http.StatusOK},
		{"weekly", h.GetWeeklyPattern, "/", http.StatusOK},
		{"kpi", h.GetHeadline, "/?date=2024-10-10", http.StatusOK},
		{"summary", h.GetRegionalSummary, "/?regions=R1", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handler(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("content type = %q", ct)
			}
		})
	}

	rec := httptest.NewRecorder()
	h.GetTimeSeries(rec, httptest.NewRequest(http.MethodGet, "/?date_from=2024-10-05&date_to=2024-10-06", nil))
	var ts models.TimeSeries
	if err := json.NewDecoder(rec.Body).Decode(&ts); err != nil {
		t.Fatal(err)
	}
	if ts.Len() != 2 || ts.Points[1].Cumulative != 6000 {
		t.Errorf("series = %+v", ts.Points)
	}
}

func TestScenarioHandlers(t *testing.T) {
	_, scen := newServices(t)
	h := NewScenarioHandler(scen, zap.NewNop())

	rec := httptest.NewRecorder()
	h.Simulate(rec, httptest.NewRequest(http.MethodGet, "/?boost=20&r0=1.5&recovery_days=7&trajectories=false", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("simulate status = %d: %s", rec.Code, rec.Body)
	}
	var out models.ScenarioOutcome
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Simulation.Baseline != nil || out.Parameters.BoostPct != 20 {
		t.Errorf("outcome = %+v", out.Parameters)
	}

	tests := []struct {
		name    string
		handler http.HandlerFunc
		target  string
		want    int
	}{
		{"r0 out of range", h.Simulate, "/?r0=-1", http.StatusBadRequest},
		{"recovery rate one", h.Simulate, "/?recovery_rate=1", http.StatusBadRequest},
		{"table", h.Table, "/?boosts=0,10&boosts=20&target=60", http.StatusOK},
		{"table bad boost", h.Table, "/?boosts=0,x", http.StatusBadRequest},
		{"table bad target", h.Table, "/?target=150", http.StatusBadRequest},
		{"sensitivity", h.Sensitivity, "/?runs=4", http.StatusOK},
		{"sensitivity too many runs", h.Sensitivity, "/?runs=100000", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handler(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
		})
	}

	rec = httptest.NewRecorder()
	h.Table(rec, httptest.NewRequest(http.MethodGet, "/?boosts=-99", nil))
	var table struct {
		Data []models.ScenarioRow `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&table); err != nil || rec.Code != http.StatusOK {
		t.Fatalf("table status = %d, decode err = %v", rec.Code, err)
	}
	if len(table.Data) != 1 || table.Data[0].TargetDate != nil {
		t.Errorf("rows = %+v, want one row without a target date", table.Data)
	}
}
