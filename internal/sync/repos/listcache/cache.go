// Package listcache wraps a gateway list client with a read-through
// cache so the list and policy phases of one pass share a single remote
// enumeration instead of re-querying. Any mutation purges the cache;
// correctness never depends on it.
package listcache

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/haukened/blocksync/internal/sync/domain"
	"github.com/haukened/blocksync/internal/sync/services/reconciler"
)

// Cache decorates a GatewayLists with cached reads. Enumeration is a
// single cached value; per-list membership lives in a bounded LRU keyed
// by list ID.
type Cache struct {
	inner reconciler.GatewayLists

	mu      sync.Mutex
	all     []domain.RemoteList
	haveAll bool
	items   *lru.Cache[string, []domain.Hostname]
}

// New wraps inner with a cache bounding membership entries to size.
func New(inner reconciler.GatewayLists, size int) (*Cache, error) {
	items, err := lru.New[string, []domain.Hostname](size)
	if err != nil {
		return nil, err
	}
	return &Cache{inner: inner, items: items}, nil
}

// ListLists returns the cached enumeration, fetching it once.
func (c *Cache) ListLists(ctx context.Context) ([]domain.RemoteList, error) {
	c.mu.Lock()
	if c.haveAll {
		out := make([]domain.RemoteList, len(c.all))
		copy(out, c.all)
		c.mu.Unlock()
		return out, nil
	}
	c.mu.Unlock()

	all, err := c.inner.ListLists(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.all = all
	c.haveAll = true
	out := make([]domain.RemoteList, len(all))
	copy(out, all)
	c.mu.Unlock()
	return out, nil
}

// GetListItems reads membership through the LRU.
func (c *Cache) GetListItems(ctx context.Context, id string) ([]domain.Hostname, error) {
	if items, ok := c.items.Get(id); ok {
		return items, nil
	}
	items, err := c.inner.GetListItems(ctx, id)
	if err != nil {
		return nil, err
	}
	c.items.Add(id, items)
	return items, nil
}

// CreateList delegates and purges.
func (c *Cache) CreateList(ctx context.Context, name string, items []domain.Hostname) (domain.RemoteList, error) {
	created, err := c.inner.CreateList(ctx, name, items)
	if err == nil {
		c.Purge()
	}
	return created, err
}

// UpdateListItems delegates and purges.
func (c *Cache) UpdateListItems(ctx context.Context, id string, add, remove []domain.Hostname) error {
	err := c.inner.UpdateListItems(ctx, id, add, remove)
	if err == nil {
		c.Purge()
	}
	return err
}

// DeleteList delegates and purges.
func (c *Cache) DeleteList(ctx context.Context, id string) error {
	err := c.inner.DeleteList(ctx, id)
	if err == nil {
		c.Purge()
	}
	return err
}

// Purge drops everything cached.
func (c *Cache) Purge() {
	c.mu.Lock()
	c.all = nil
	c.haveAll = false
	c.mu.Unlock()
	c.items.Purge()
}

var _ reconciler.GatewayLists = (*Cache)(nil)
