package embedding

import (
	"container/list"
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"careai/internal/domain"
)

type lruEntry struct {
	key uint64
	vec []float32
}

// CachedEmbedder puts an LRU cache in front of an embedding backend. Each
// text is cached on its own, so a batch only sends the texts not seen before.
type CachedEmbedder struct {
	inner   domain.EmbeddingProvider
	maxSize int

	mu    sync.Mutex
	items map[uint64]*list.Element
	order *list.List // front is least recently used

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCachedEmbedder wraps inner with a cache of maxSize vectors. A
// non-positive maxSize returns inner unchanged.
func NewCachedEmbedder(inner domain.EmbeddingProvider, maxSize int) domain.EmbeddingProvider {
	if maxSize <= 0 {
		return inner
	}
	return &CachedEmbedder{
		inner:   inner,
		maxSize: maxSize,
		items:   make(map[uint64]*list.Element, maxSize),
		order:   list.New(),
	}
}

// Embed implements domain.EmbeddingProvider.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return c.inner.Embed(ctx, texts)
	}

	out := make([][]float32, len(texts))
	keys := make([]uint64, len(texts))
	var missIdx []int
	var missTexts []string

	c.mu.Lock()
	for i, t := range texts {
		keys[i] = hashText(t)
		if elem, ok := c.items[keys[i]]; ok {
			c.order.MoveToBack(elem)
			out[i] = elem.Value.(*lruEntry).vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	c.mu.Unlock()

	c.hits.Add(int64(len(texts) - len(missIdx)))
	c.misses.Add(int64(len(missIdx)))
	if len(missIdx) == 0 {
		return out, nil
	}

	fresh, err := c.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		return nil, embedFailure(c.inner.Name(), 0, false,
			fmt.Errorf("got %d embeddings for %d inputs", len(fresh), len(missTexts)))
	}

	c.mu.Lock()
	for j, i := range missIdx {
		out[i] = fresh[j]
		c.put(keys[i], fresh[j])
	}
	c.mu.Unlock()

	return out, nil
}

// Stats returns the cumulative hit and miss counts.
func (c *CachedEmbedder) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Len returns the number of cached vectors.
func (c *CachedEmbedder) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Dimensions implements domain.EmbeddingProvider.
func (c *CachedEmbedder) Dimensions() int { return c.inner.Dimensions() }

// Name implements domain.EmbeddingProvider.
func (c *CachedEmbedder) Name() string { return c.inner.Name() }

func hashText(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

// put inserts or refreshes key. Caller holds c.mu.
func (c *CachedEmbedder) put(key uint64, vec []float32) {
	if elem, ok := c.items[key]; ok {
		elem.Value.(*lruEntry).vec = vec
		c.order.MoveToBack(elem)
		return
	}
	if c.order.Len() >= c.maxSize {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*lruEntry).key)
	}
	c.items[key] = c.order.PushBack(&lruEntry{key: key, vec: vec})
}

var _ domain.EmbeddingProvider = (*CachedEmbedder)(nil)
