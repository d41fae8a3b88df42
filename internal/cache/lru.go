package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRUCache bounds its entries by count and by age. Entries may belong to a
// group so that everything derived from one vehicle can be dropped at once.
type LRUCache[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	now     func() time.Time

	order   *list.List // front is most recently used
	entries map[string]*list.Element
	groups  map[string]map[string]struct{}
}

type entry[T any] struct {
	key, group string
	value      T
	expiresAt  time.Time
}

var _ Cache[int] = (*LRUCache[int])(nil)

func NewLRUCache[T any](maxSize int, ttl time.Duration) *LRUCache[T] {
	return &LRUCache[T]{
		maxSize: max(maxSize, 1),
		ttl:     ttl,
		now:     time.Now,
		order:   list.New(),
		entries: make(map[string]*list.Element),
		groups:  make(map[string]map[string]struct{}),
	}
}

// Get returns a live entry and marks it as recently used. Expired entries
// are dropped on sight.
func (c *LRUCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	el, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	e := el.Value.(*entry[T])
	if c.expired(e, c.now()) {
		c.unlink(el)
		return zero, false
	}
	c.order.MoveToFront(el)
	return e.value, true
}

// Set stores an ungrouped entry.
func (c *LRUCache[T]) Set(key string, value T) {
	c.SetInGroup("", key, value)
}

// SetInGroup stores value under key as a member of group, replacing any
// previous entry for key. The least recently used entry is evicted when the
// cache is full.
func (c *LRUCache[T]) SetInGroup(group, key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.unlink(el)
	}
	e := &entry[T]{key: key, group: group, value: value, expiresAt: c.now().Add(c.ttl)}
	c.entries[key] = c.order.PushFront(e)
	if group != "" {
		members := c.groups[group]
		if members == nil {
			members = make(map[string]struct{})
			c.groups[group] = members
		}
		members[key] = struct{}{}
	}

	for c.order.Len() > c.maxSize {
		c.unlink(c.order.Back())
	}
}

func (c *LRUCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.unlink(el)
	}
}

// DeleteGroup removes every entry of group and reports how many there were.
func (c *LRUCache[T]) DeleteGroup(group string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	members := c.groups[group]
	n := len(members)
	for key := range members {
		c.unlink(c.entries[key])
	}
	return n
}

// CleanExpired removes all expired entries and returns how many were removed.
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if c.expired(el.Value.(*entry[T]), now) {
			c.unlink(el)
			n++
		}
		el = prev
	}
	return n
}

func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *LRUCache[T]) expired(e *entry[T], now time.Time) bool {
	return now.After(e.expiresAt)
}

// unlink drops el from every index. Callers hold mu.
func (c *LRUCache[T]) unlink(el *list.Element) {
	e := c.order.Remove(el).(*entry[T])
	delete(c.entries, e.key)
	if members, ok := c.groups[e.group]; ok {
		delete(members, e.key)
		if len(members) == 0 {
			delete(c.groups, e.group)
		}
	}
}
