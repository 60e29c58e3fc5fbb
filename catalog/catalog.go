package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"metric-agent/observability"
	"metric-agent/repository"
)

// DefaultTTL is the default catalog cache lifetime.
const DefaultTTL = 10 * time.Minute

// Catalog caches the metric and company alias catalogs with a TTL, rebuilding
// the snapshot from the database when it goes stale. A reload failure keeps
// serving the previous snapshot so transient database trouble degrades
// matching freshness instead of breaking queries.
type Catalog struct {
	source repository.CatalogSource
	ttl    time.Duration

	mu       sync.RWMutex
	snap     *Snapshot
	loadedAt time.Time

	now func() time.Time // injectable for tests
}

// New creates a Catalog backed by the given source. A TTL of 0 falls back to
// DefaultTTL.
func New(source repository.CatalogSource, ttl time.Duration) *Catalog {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Catalog{
		source: source,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Snapshot returns the current catalog snapshot, reloading first if the cache
// is stale or empty.
func (c *Catalog) Snapshot(ctx context.Context) (*Snapshot, error) {
	c.mu.RLock()
	snap, loadedAt := c.snap, c.loadedAt
	c.mu.RUnlock()

	if snap != nil && c.now().Sub(loadedAt) < c.ttl {
		return snap, nil
	}
	return c.load(ctx, false)
}

// Refresh forces a reload regardless of TTL.
func (c *Catalog) Refresh(ctx context.Context) (*Snapshot, error) {
	return c.load(ctx, true)
}

func (c *Catalog) load(ctx context.Context, force bool) (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Another goroutine may have reloaded while we waited for the lock.
	if !force && c.snap != nil && c.now().Sub(c.loadedAt) < c.ttl {
		return c.snap, nil
	}

	metricRows, err := c.source.ListMetricCatalog(ctx)
	if err != nil {
		return c.degrade(fmt.Errorf("metric catalog reload: %w", err))
	}
	companyRows, err := c.source.ListCompanyCatalog(ctx)
	if err != nil {
		return c.degrade(fmt.Errorf("company catalog reload: %w", err))
	}

	snap := buildSnapshot(metricRows, companyRows, c.now())
	c.snap = snap
	c.loadedAt = c.now()

	metrics := observability.GetMetrics()
	metrics.RecordCatalogReload("ok")
	metrics.SetCatalogEntries("metrics", snap.MetricCount())
	metrics.SetCatalogEntries("companies", snap.CompanyCount())

	observability.Info("catalog reloaded",
		"metrics", snap.MetricCount(),
		"companies", snap.CompanyCount())

	return snap, nil
}

// degrade serves the stale snapshot when one exists; callers with no snapshot
// at all get the error.
func (c *Catalog) degrade(err error) (*Snapshot, error) {
	observability.GetMetrics().RecordCatalogReload("error")
	if c.snap != nil {
		observability.Warn("catalog reload failed, serving stale snapshot",
			"error", err,
			"age", c.now().Sub(c.loadedAt).String())
		return c.snap, nil
	}
	return nil, err
}
