package translator

import (
	"context"
	"sync"
)

type cacheKey struct {
	source, target, text string
}

// Cache remembers successful translations in memory. Failures are not cached.
type Cache struct {
	next       Translator
	maxEntries int

	mu      sync.Mutex
	entries map[cacheKey]string
	order   []cacheKey
}

func NewCache(next Translator, maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	return &Cache{next: next, maxEntries: maxEntries, entries: make(map[cacheKey]string)}
}

func (c *Cache) Translate(ctx context.Context, text, source, target string) (string, error) {
	key := cacheKey{source: source, target: target, text: text}
	c.mu.Lock()
	if out, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return out, nil
	}
	c.mu.Unlock()

	out, err := c.next.Translate(ctx, text, source, target)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok {
		if len(c.order) >= c.maxEntries {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = out
	return out, nil
}

func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[cacheKey]string)
	c.order = nil
	c.mu.Unlock()
}
