// Package loader turns raw open-data files or database tables into a
// models.Dataset. Parsed records are validated here once and trusted by the
// pipeline afterwards.
package loader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"vaxdash/internal/metrics"
	"vaxdash/internal/models"
)

// Loader produces a Dataset. Invalidate drops anything memoized so that the
// next Load reads the source again.
type Loader interface {
	Load(ctx context.Context) (*models.Dataset, error)
	Invalidate()
	Name() string
}

// Files names the three inputs inside a BlobSource.
type Files struct {
	Doses    string
	Coverage string
	Regions  string
}

var DefaultFiles = Files{
	Doses:    "doses-actes-2024.csv",
	Coverage: "couverture-2024.csv",
	Regions:  "regions.geojson",
}

// applyPopulations overrides region populations from configuration. Codes
// absent from the map keep whatever the source supplied.
func applyPopulations(regions []models.Region, pops map[string]int64) {
	for i := range regions {
		if p, ok := pops[regions[i].Code]; ok {
			p := p
			regions[i].Population = &p
		}
	}
}

func fingerprint(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// CachedLoader memoizes the Dataset of an inner Loader until Invalidate.
type CachedLoader struct {
	inner   Loader
	metrics *metrics.Metrics

	mu      sync.RWMutex
	dataset *models.Dataset
}

func NewCachedLoader(inner Loader, m *metrics.Metrics) *CachedLoader {
	return &CachedLoader{inner: inner, metrics: m}
}

func (c *CachedLoader) Name() string { return c.inner.Name() }

func (c *CachedLoader) Load(ctx context.Context) (*models.Dataset, error) {
	c.mu.RLock()
	ds := c.dataset
	c.mu.RUnlock()
	if ds != nil {
		return ds, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dataset != nil {
		return c.dataset, nil
	}

	start := time.Now()
	ds, err := c.inner.Load(ctx)
	c.metrics.LoaderLoad(c.inner.Name(), err)
	c.metrics.ObserveStage("load", start)
	if err != nil {
		return nil, err
	}
	c.dataset = ds
	return ds, nil
}

func (c *CachedLoader) Invalidate() {
	c.mu.Lock()
	c.dataset = nil
	c.mu.Unlock()
	c.inner.Invalidate()
}

// Reload drops the memoized dataset and loads a fresh one. The previous
// dataset stays in place if the new load fails.
func (c *CachedLoader) Reload(ctx context.Context) (*models.Dataset, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.inner.Invalidate()
	start := time.Now()
	ds, err := c.inner.Load(ctx)
	c.metrics.LoaderLoad(c.inner.Name(), err)
	c.metrics.ObserveStage("load", start)
	if err != nil {
		return nil, err
	}
	c.dataset = ds
	return ds, nil
}
