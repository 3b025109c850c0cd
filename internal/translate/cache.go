package translate

import (
	"context"
	"sync"
)

type cacheKey struct {
	text   string
	source string
	target string
}

// Cache memoizes translations by (source text, source language, target
// language). Writes are idempotent upserts, so concurrent recomputation of
// the same key is harmless.
type Cache struct {
	mu      sync.RWMutex
	entries map[cacheKey]string
}

func NewCache() *Cache {
	return &Cache{entries: make(map[cacheKey]string)}
}

func (c *Cache) Get(text, source, target string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.entries[cacheKey{text, source, target}]
	return v, ok
}

func (c *Cache) Put(text, source, target, translated string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[cacheKey{text, source, target}] = translated
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// CachingTranslator wraps a Translator with the cache. Identical utterances
// short-circuit the external call.
type CachingTranslator struct {
	next  Translator
	cache *Cache
	// Hit is invoked on every cache hit; may be nil.
	Hit func()
}

func NewCachingTranslator(next Translator) *CachingTranslator {
	return &CachingTranslator{
		next:  next,
		cache: NewCache(),
	}
}

func (c *CachingTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if translated, ok := c.cache.Get(text, sourceLang, targetLang); ok {
		if c.Hit != nil {
			c.Hit()
		}
		return translated, nil
	}

	translated, err := c.next.Translate(ctx, text, sourceLang, targetLang)
	if err != nil {
		return "", err
	}

	c.cache.Put(text, sourceLang, targetLang, translated)
	return translated, nil
}
