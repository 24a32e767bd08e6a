package loader

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"vaxdash/internal/models"
)

// BlobLoader reads the dispensing CSV, the coverage CSV and the region
// GeoJSON from a BlobSource. The three files are fetched concurrently. Each
// file's parsed records are kept together with the sha256 of its bytes and
// reused while the bytes do not change.
type BlobLoader struct {
	source      BlobSource
	files       Files
	populations map[string]int64
	logr        *zap.Logger

	mu       sync.Mutex
	doses    memo[[]models.DoseRecord]
	coverage memo[[]models.CoverageRecord]
	regions  memo[[]models.Region]
}

type memo[T any] struct {
	hash  string
	value T
}

func NewBlobLoader(source BlobSource, files Files, populations map[string]int64, logr *zap.Logger) *BlobLoader {
	if logr == nil {
		logr = zap.NewNop()
	}
	return &BlobLoader{source: source, files: files, populations: populations, logr: logr}
}

func (l *BlobLoader) Name() string { return l.source.Name() }

func (l *BlobLoader) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.doses = memo[[]models.DoseRecord]{}
	l.coverage = memo[[]models.CoverageRecord]{}
	l.regions = memo[[]models.Region]{}
}

func (l *BlobLoader) Load(ctx context.Context) (*models.Dataset, error) {
	var doseRaw, covRaw, regRaw []byte

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() (err error) {
		doseRaw, err = l.fetch(egCtx, l.files.Doses)
		return err
	})
	eg.Go(func() (err error) {
		covRaw, err = l.fetch(egCtx, l.files.Coverage)
		return err
	})
	eg.Go(func() (err error) {
		regRaw, err = l.fetch(egCtx, l.files.Regions)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	doses, doseHash, err := reuseOrParse(&l.doses, doseRaw, ParseDoses)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.files.Doses, err)
	}
	coverage, covHash, err := reuseOrParse(&l.coverage, covRaw, ParseCoverage)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.files.Coverage, err)
	}
	regions, regHash, err := reuseOrParse(&l.regions, regRaw, ParseRegions)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.files.Regions, err)
	}

	// The memoized slice is shared between datasets; overrides go on a copy.
	regions = append([]models.Region(nil), regions...)
	applyPopulations(regions, l.populations)

	l.logr.Info("dataset loaded",
		zap.String("source", l.source.Name()),
		zap.Int("doses", len(doses)),
		zap.Int("coverage", len(coverage)),
		zap.Int("regions", len(regions)),
	)

	return &models.Dataset{
		Doses:       doses,
		Coverage:    coverage,
		Regions:     regions,
		Source:      l.source.Name(),
		Fingerprint: fingerprint(doseHash, covHash, regHash),
		LoadedAt:    time.Now().UTC(),
	}, nil
}

func (l *BlobLoader) fetch(ctx context.Context, name string) ([]byte, error) {
	rc, err := l.source.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return b, nil
}

func reuseOrParse[T any](m *memo[T], raw []byte, parse func(io.Reader) (T, error)) (T, string, error) {
	sum := sha256.Sum256(raw)
	hash := hex.EncodeToString(sum[:])
	if m.hash == hash {
		return m.value, hash, nil
	}
	v, err := parse(bytes.NewReader(raw))
	if err != nil {
		var zero T
		return zero, "", err
	}
	m.hash, m.value = hash, v
	return v, hash, nil
}
