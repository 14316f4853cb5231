package prompt

import "sync"

// Cache memoizes parsed IR per TemplateID, read-through against a Store.
// An entry is served only while its freshness token matches the current
// source; a stale entry is replaced on the next lookup. Failed loads and
// failed parses are never cached, so a retry after a source fix succeeds
// without a restart.
//
// Cached documents are immutable after construction and safe to read from
// any number of concurrent renders. Concurrent misses for the same id may
// race to parse; parsing is pure, so the later write simply overwrites an
// equivalent entry.
type Cache struct {
	store Store

	mu      sync.RWMutex
	entries map[TemplateID]cacheEntry
}

type cacheEntry struct {
	doc   *Document
	token Token
}

func NewCache(store Store) *Cache {
	return &Cache{store: store, entries: map[TemplateID]cacheEntry{}}
}

// GetOrParse returns the parsed IR for id, reusing the cached copy when the
// source is unchanged.
func (c *Cache) GetOrParse(id TemplateID) (*Document, error) {
	token, err := c.store.Freshness(id)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	entry, ok := c.entries[id]
	c.mu.RUnlock()
	if ok && entry.token == token {
		return entry.doc, nil
	}

	src, err := c.store.Load(id)
	if err != nil {
		return nil, err
	}
	doc, err := Parse(src.ID, src.Text)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[id] = cacheEntry{doc: doc, token: src.Token}
	c.mu.Unlock()
	return doc, nil
}

// Invalidate drops the entry for id, if any.
func (c *Cache) Invalidate(id TemplateID) {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
