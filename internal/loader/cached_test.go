package loader

import (
	"context"
	"errors"
	"sync"
	"testing"

	"vaxdash/internal/models"
)

type countingLoader struct {
	mu          sync.Mutex
	loads       int
	invalidated int
	err         error
}

func (c *countingLoader) Name() string { return "counting" }

func (c *countingLoader) Invalidate() {
	c.mu.Lock()
	c.invalidated++
	c.mu.Unlock()
}

func (c *countingLoader) Load(context.Context) (*models.Dataset, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loads++
	if c.err != nil {
		return nil, c.err
	}
	return &models.Dataset{Source: "counting", Fingerprint: string(rune('a' + c.loads))}, nil
}

func TestCachedLoaderMemoizes(t *testing.T) {
	inner := &countingLoader{}
	c := NewCachedLoader(inner, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Load(ctx); err != nil {
				t.Errorf("Load: %v", err)
			}
		}()
	}
	wg.Wait()
	if inner.loads != 1 {
		t.Errorf("inner loads = %d, want 1", inner.loads)
	}

	c.Invalidate()
	if _, err := c.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if inner.loads != 2 || inner.invalidated != 1 {
		t.Errorf("loads/invalidated = %d/%d", inner.loads, inner.invalidated)
	}
}

func TestCachedLoaderReloadKeepsPreviousOnError(t *testing.T) {
	inner := &countingLoader{}
	c := NewCachedLoader(inner, nil)
	ctx := context.Background()

	first, err := c.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	inner.err = errors.New("source down")
	if _, err := c.Reload(ctx); err == nil {
		t.Fatal("expected reload error")
	}
	inner.err = nil

	again, err := c.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if again != first {
		t.Errorf("previous dataset was dropped after a failed reload")
	}

	fresh, err := c.Reload(ctx)
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if fresh.Fingerprint == first.Fingerprint {
		t.Errorf("reload returned the old dataset")
	}
}
