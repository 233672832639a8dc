package baseline

import (
	"sync"

	"gocv.io/x/gocv"
)

// Cache stores decoded baseline images keyed by canonical name. Implementers
// own the stored matrices; Get hands out clones so callers can Close them
// independently of eviction.
type Cache interface {
	Get(name string) (gocv.Mat, bool)
	Put(name string, img gocv.Mat)
	Invalidate(name string)
	Clear()
}

// mapCache is the default Cache: a mutex-guarded map with no eviction.
type mapCache struct {
	mu      sync.RWMutex
	entries map[string]gocv.Mat
}

// NewMapCache returns an unbounded in-memory cache.
func NewMapCache() Cache {
	return &mapCache{entries: make(map[string]gocv.Mat)}
}

func (c *mapCache) Get(name string) (gocv.Mat, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	img, ok := c.entries[name]
	if !ok {
		return gocv.NewMat(), false
	}
	return img.Clone(), true
}

func (c *mapCache) Put(name string, img gocv.Mat) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[name]; ok {
		old.Close()
	}
	c.entries[name] = img.Clone()
}

func (c *mapCache) Invalidate(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[name]; ok {
		old.Close()
		delete(c.entries, name)
	}
}

func (c *mapCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for name, img := range c.entries {
		img.Close()
		delete(c.entries, name)
	}
}
