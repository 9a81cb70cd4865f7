package embedding

import (
	"container/list"
	"context"
	"sync"
)

// Cached wraps an Embedder with an LRU cache keyed by text. Query embeddings
// repeat often within a conversation; passages go through EmbedBatch, which
// is passed straight to the wrapped embedder.
type Cached struct {
	next     Embedder
	capacity int

	mu    sync.Mutex
	items map[string]*list.Element
	lru   *list.List
}

type cacheEntry struct {
	key   string
	value []float32
}

// NewCached returns next wrapped in an LRU cache of the given capacity. A
// capacity of zero or less disables caching.
func NewCached(next Embedder, capacity int) Embedder {
	if capacity <= 0 {
		return next
	}
	return &Cached{
		next:     next,
		capacity: capacity,
		items:    make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Embed returns the cached vector for text or computes and stores it.
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.get(text); ok {
		return v, nil
	}
	v, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.set(text, v)
	return v, nil
}

// EmbedBatch delegates without caching.
func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return c.next.EmbedBatch(ctx, texts)
}

// Dimensions returns the wrapped embedder's dimension.
func (c *Cached) Dimensions() int { return c.next.Dimensions() }

// Len reports the number of cached entries.
func (c *Cached) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *Cached) get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.lru.MoveToFront(elem)
		return elem.Value.(*cacheEntry).value, true
	}
	return nil, false
}

func (c *Cached) set(key string, value []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*cacheEntry).value = value
		return
	}
	c.items[key] = c.lru.PushFront(&cacheEntry{key: key, value: value})
	if c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		c.lru.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).key)
	}
}
