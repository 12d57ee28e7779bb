// Package catalog serves item metadata out of the on-disk item documents.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"auctionflow/models"
)

// Catalog is a process-scoped, lazily populated cache over the item
// document directory. Misses are cached too, so a missing document is read
// from disk at most once per process.
type Catalog struct {
	dir string

	mu      sync.RWMutex
	items   map[int64]models.ItemMetadata
	missing map[int64]struct{}
}

func New(dir string) *Catalog {
	return &Catalog{
		dir:     dir,
		items:   make(map[int64]models.ItemMetadata),
		missing: make(map[int64]struct{}),
	}
}

// Lookup returns the metadata for one item id. The second return is false
// when no document exists on disk or it cannot be decoded.
func (c *Catalog) Lookup(id int64) (models.ItemMetadata, bool) {
	c.mu.RLock()
	meta, ok := c.items[id]
	if ok {
		c.mu.RUnlock()
		return meta, true
	}
	_, miss := c.missing[id]
	c.mu.RUnlock()
	if miss {
		return models.ItemMetadata{}, false
	}

	meta, err := c.load(id)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.missing[id] = struct{}{}
		return models.ItemMetadata{}, false
	}
	c.items[id] = meta
	return meta, true
}

// Size reports how many item documents are currently cached.
func (c *Catalog) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *Catalog) load(id int64) (models.ItemMetadata, error) {
	path := filepath.Join(c.dir, strconv.FormatInt(id, 10)+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return models.ItemMetadata{}, err
	}
	var resp models.ItemResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return models.ItemMetadata{}, fmt.Errorf("decode item %d: %w", id, err)
	}
	return resp.Metadata(), nil
}
