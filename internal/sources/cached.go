package sources

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"dashboard/internal/cache"
	"dashboard/internal/core"
	"dashboard/internal/log"
	"dashboard/internal/metrics"
)

// Cached memoizes tables per dataset name for a TTL. Concurrent loads of
// the same name share one upstream fetch, which outlives any single
// caller's context.
type Cached struct {
	next    TableLoader
	tables  *cache.LRUCache[*core.Table]
	group   singleflight.Group
	logger  *log.Logger
	metrics *metrics.Metrics

	// generations counts invalidations per name; a load only stores its
	// table if no invalidation happened since it started.
	mu          sync.Mutex
	generations map[string]uint64
}

var _ TableLoader = (*Cached)(nil)

func NewCached(next TableLoader, size int, ttl time.Duration, logger *log.Logger, m *metrics.Metrics) *Cached {
	return &Cached{
		next:        next,
		tables:      cache.NewLRUCache[*core.Table](size, ttl),
		logger:      logger.WithComponent(log.ComponentCache),
		metrics:     m,
		generations: make(map[string]uint64),
	}
}

func (c *Cached) Load(ctx context.Context, name string) (*core.Table, error) {
	if tbl, ok := c.tables.Get(name); ok {
		c.metrics.CacheHit(true)
		return tbl, nil
	}
	c.metrics.CacheHit(false)

	gen := c.generation(name)
	results := c.group.DoChan(name, func() (any, error) {
		tbl, err := c.next.Load(context.WithoutCancel(ctx), name)
		if err != nil {
			return nil, err
		}
		c.store(name, gen, tbl)
		return tbl, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for dataset %s: %w", name, ctx.Err())
	case res := <-results:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.logger.DebugContext(ctx, "Shared in-flight dataset load", log.FieldDataset, name)
		}
		return res.Val.(*core.Table), nil
	}
}

func (c *Cached) generation(name string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[name]
}

func (c *Cached) store(name string, gen uint64, tbl *core.Table) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[name] != gen {
		c.logger.Debug("Discarding table loaded before invalidation", log.FieldDataset, name)
		return
	}
	c.tables.Set(name, tbl)
}

// Invalidate drops name so the next Load refetches it. A load already in
// flight still answers its callers but is not cached.
func (c *Cached) Invalidate(name string) {
	c.mu.Lock()
	c.generations[name]++
	c.tables.Delete(name)
	c.mu.Unlock()
	c.group.Forget(name)
}

// Cache exposes the underlying LRU for cleanup registration.
func (c *Cached) Cache() *cache.LRUCache[*core.Table] {
	return c.tables
}

// LoadAll loads every name concurrently. The first failure cancels the
// remaining loads and is returned.
func LoadAll(ctx context.Context, loader TableLoader, names ...string) (map[string]*core.Table, error) {
	tables := make([]*core.Table, len(names))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			tbl, err := loader.Load(gctx, name)
			if err != nil {
				return err
			}
			tables[i] = tbl
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make(map[string]*core.Table, len(names))
	for i, name := range names {
		out[name] = tables[i]
	}
	return out, nil
}
