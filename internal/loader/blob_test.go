package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// memSource serves files from memory and counts opens.
type memSource struct {
	mu    sync.Mutex
	files map[string]string
	opens int
}

func (m *memSource) Name() string { return "mem" }

func (m *memSource) Open(_ context.Context, name string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opens++
	body, ok := m.files[name]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", name, os.ErrNotExist)
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func (m *memSource) set(name, body string) {
	m.mu.Lock()
	m.files[name] = body
	m.mu.Unlock()
}

func newMemSource() *memSource {
	return &memSource{files: map[string]string{
		DefaultFiles.Doses:    "date,region_code,administered_count\n2024-10-01,R1,100\n2024-10-03,R1,50\n",
		DefaultFiles.Coverage: "region_code,coverage_percentage,as_of_date\nR1,40,2024-10-03\n",
		DefaultFiles.Regions:  regionsGeoJSON,
	}}
}

func TestBlobLoaderLoad(t *testing.T) {
	src := newMemSource()
	l := NewBlobLoader(src, DefaultFiles, map[string]int64{"84": 5000}, nil)

	ds, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(ds.Doses) != 2 || len(ds.Coverage) != 1 || len(ds.Regions) != 2 {
		t.Fatalf("dataset sizes = %d/%d/%d", len(ds.Doses), len(ds.Coverage), len(ds.Regions))
	}
	byCode := ds.RegionByCode()
	if p := byCode["84"].Population; p == nil || *p != 5000 {
		t.Errorf("configured population not applied: %v", p)
	}
	if p := byCode["R1"].Population; p == nil || *p != 20000 {
		t.Errorf("geojson population lost: %v", p)
	}
	if ds.Source != "mem" || ds.Fingerprint == "" {
		t.Errorf("source/fingerprint = %q/%q", ds.Source, ds.Fingerprint)
	}
}

func TestBlobLoaderFingerprintFollowsContent(t *testing.T) {
	src := newMemSource()
	l := NewBlobLoader(src, DefaultFiles, nil, nil)
	ctx := context.Background()

	first, err := l.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	second, _ := l.Load(ctx)
	if first.Fingerprint != second.Fingerprint {
		t.Errorf("fingerprint changed without content change")
	}
	if &first.Doses[0] != &second.Doses[0] {
		t.Errorf("unchanged doses file was parsed again")
	}

	src.set(DefaultFiles.Doses, "date,region_code,administered_count\n2024-10-01,R1,1\n")
	third, err := l.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if third.Fingerprint == first.Fingerprint {
		t.Errorf("fingerprint unchanged after content change")
	}
	if len(third.Doses) != 1 {
		t.Errorf("doses = %d, want 1", len(third.Doses))
	}
}

func TestBlobLoaderMissingFile(t *testing.T) {
	src := newMemSource()
	delete(src.files, DefaultFiles.Regions)
	_, err := NewBlobLoader(src, DefaultFiles, nil, nil).Load(context.Background())
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want not exist", err)
	}
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	src := newMemSource()
	for name, body := range src.files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	ds, err := NewBlobLoader(DirSource{Dir: dir}, DefaultFiles, nil, nil).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ds.Source != "dir" || len(ds.Doses) != 2 {
		t.Errorf("dataset = %s/%d", ds.Source, len(ds.Doses))
	}

	if _, err := (DirSource{Dir: dir}).Open(context.Background(), "../../etc/passwd"); err == nil {
		t.Error("expected traversal outside the directory to fail")
	}
}

func TestHTTPSourceRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		if r.URL.Path != "/data/doses.csv" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	src := &HTTPSource{BaseURL: srv.URL + "/data", MaxRetries: 5, RetryDelay: time.Millisecond}
	rc, err := src.Open(context.Background(), "doses.csv")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != "ok" {
		t.Errorf("body = %q", body)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestHTTPSourceDoesNotRetryNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	src := &HTTPSource{BaseURL: srv.URL, MaxRetries: 5, RetryDelay: time.Millisecond}
	if _, err := src.Open(context.Background(), "missing.csv"); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}
