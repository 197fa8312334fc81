// Package catalog holds the ordered item collection shown to users and
// loads it from a JSON, CSV or parquet file.
package catalog

import (
	"slices"
	"strings"
	"sync"

	"github.com/kailas-cloud/cinesim/internal/domain/item"
)

// Catalog is an ordered, concurrency-safe item collection indexed by id and title.
type Catalog struct {
	mu      sync.RWMutex
	items   []item.Item
	byID    map[string]int
	byTitle map[string]int
}

// New creates a catalog. Later duplicates of an id are dropped.
func New(items []item.Item) *Catalog {
	c := &Catalog{byID: map[string]int{}, byTitle: map[string]int{}}
	c.add(items)
	return c
}

func (c *Catalog) add(items []item.Item) int {
	added := 0
	for _, it := range items {
		if it.IsZero() {
			continue
		}
		if _, dup := c.byID[it.ID()]; dup {
			continue
		}
		c.byID[it.ID()] = len(c.items)
		if key := titleKey(it.Title()); key != "" {
			if _, taken := c.byTitle[key]; !taken {
				c.byTitle[key] = len(c.items)
			}
		}
		c.items = append(c.items, it)
		added++
	}
	return added
}

// Merge appends items whose id is not known yet and returns how many were added.
func (c *Catalog) Merge(items []item.Item) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.add(items)
}

// Items returns a copy of the collection in catalog order.
func (c *Catalog) Items() []item.Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.items)
}

// Len returns the number of items.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// ByID looks an item up by id.
func (c *Catalog) ByID(id string) (item.Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.byID[id]
	if !ok {
		return item.Item{}, false
	}
	return c.items[i], true
}

// ByTitle looks an item up by title, ignoring case and surrounding spaces.
func (c *Catalog) ByTitle(title string) (item.Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.byTitle[titleKey(title)]
	if !ok {
		return item.Item{}, false
	}
	return c.items[i], true
}

// Resolve finds an item by title, falling back to id.
func (c *Catalog) Resolve(ref string) (item.Item, bool) {
	if it, ok := c.ByTitle(ref); ok {
		return it, true
	}
	return c.ByID(ref)
}

func titleKey(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}
