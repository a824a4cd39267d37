package transpile

import (
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/starford/sunna/internal/checksum"
)

type entry struct {
	hash   string
	result Result
}

// Cache memoizes transform results keyed by (path, content hash). Only one
// hash is retained per path: a content edit replaces the prior entry.
// Failures are cached like successes, so an unedited broken file never
// re-runs the transform. Concurrent requests for the same key share a
// single transform via singleflight.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	group   singleflight.Group
}

// NewCache returns an empty transpile cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]entry)}
}

// Transpile returns the transform result for content at path, either from
// the memo or by running the transform. It also returns the content hash it
// keyed the result under.
func (c *Cache) Transpile(path, content string) (Result, string) {
	hash := checksum.Sum([]byte(content))

	c.mu.RLock()
	e, ok := c.entries[path]
	c.mu.RUnlock()
	if ok && e.hash == hash {
		return e.result, hash
	}

	v, _, _ := c.group.Do(path+"\x00"+hash, func() (any, error) {
		res := transform(path, content)
		c.mu.Lock()
		c.entries[path] = entry{hash: hash, result: res}
		c.mu.Unlock()
		return res, nil
	})
	return v.(Result), hash
}

// Invalidate drops any memoized result for path. Used when a file is
// deleted or renamed away.
func (c *Cache) Invalidate(path string) {
	c.mu.Lock()
	delete(c.entries, path)
	c.mu.Unlock()
}

// InvalidatePrefix drops every memoized result at or under a directory
// path. Used when a directory is deleted or renamed.
func (c *Cache) InvalidatePrefix(dir string) {
	prefix := dir + "/"
	c.mu.Lock()
	for p := range c.entries {
		if p == dir || strings.HasPrefix(p, prefix) {
			delete(c.entries, p)
		}
	}
	c.mu.Unlock()
}

// Len returns the number of memoized paths.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
