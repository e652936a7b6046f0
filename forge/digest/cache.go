package digest

import (
	"sync"

	"github.com/promptforge/promptforge/forge/convstate"
)

// resultCache is a small LRU keyed by the summarization prompt, so retries
// and digest replacements for an unchanged iteration skip the model call.
type resultCache struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*cacheEntry
	head     *cacheEntry
	tail     *cacheEntry
}

type cacheEntry struct {
	key    string
	digest convstate.IterationDigest
	prev   *cacheEntry
	next   *cacheEntry
}

func newResultCache(capacity int) *resultCache {
	return &resultCache{
		capacity: capacity,
		items:    make(map[string]*cacheEntry),
	}
}

func (c *resultCache) get(key string) (convstate.IterationDigest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.items[key]
	if !ok {
		return convstate.IterationDigest{}, false
	}
	c.moveToFront(entry)
	return entry.digest, true
}

func (c *resultCache) put(key string, digest convstate.IterationDigest) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.items[key]; ok {
		entry.digest = digest
		c.moveToFront(entry)
		return
	}

	entry := &cacheEntry{key: key, digest: digest}
	c.items[key] = entry
	c.pushFront(entry)

	if len(c.items) > c.capacity && c.tail != nil {
		evicted := c.tail
		c.remove(evicted)
		delete(c.items, evicted.key)
	}
}

func (c *resultCache) pushFront(entry *cacheEntry) {
	entry.prev = nil
	entry.next = c.head
	if c.head != nil {
		c.head.prev = entry
	}
	c.head = entry
	if c.tail == nil {
		c.tail = entry
	}
}

func (c *resultCache) remove(entry *cacheEntry) {
	if entry.prev != nil {
		entry.prev.next = entry.next
	} else {
		c.head = entry.next
	}
	if entry.next != nil {
		entry.next.prev = entry.prev
	} else {
		c.tail = entry.prev
	}
	entry.prev = nil
	entry.next = nil
}

func (c *resultCache) moveToFront(entry *cacheEntry) {
	if c.head == entry {
		return
	}
	c.remove(entry)
	c.pushFront(entry)
}
