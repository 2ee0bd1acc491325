// Package lru is a size-bounded least-recently-used cache whose entries also expire. Time comes
// from an injectable clock so expiry can be tested without sleeping.
package lru

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/soapbox-pub/ditto-sub000/cache"
)

var _ cache.Cache[string, int] = (*LRU[string, int])(nil)

type entry[V any] struct {
	value   V
	expires time.Time
}

type LRU[K comparable, V any] struct {
	inner *lru.Cache[K, entry[V]]

	// TTL applies to values stored with Set. Zero means they never expire.
	TTL time.Duration

	// Now is the clock. It defaults to time.Now.
	Now func() time.Time
}

func New[K comparable, V any](size int, ttl time.Duration) *LRU[K, V] {
	inner, err := lru.New[K, entry[V]](size)
	if err != nil {
		panic(err)
	}
	return &LRU[K, V]{inner: inner, TTL: ttl, Now: time.Now}
}

func (c *LRU[K, V]) Get(k K) (v V, ok bool) {
	e, ok := c.inner.Get(k)
	if !ok {
		return v, false
	}
	if !e.expires.IsZero() && !c.Now().Before(e.expires) {
		c.inner.Remove(k)
		return v, false
	}
	return e.value, true
}

// Has is like Get but does not refresh the entry's position.
func (c *LRU[K, V]) Has(k K) bool {
	e, ok := c.inner.Peek(k)
	if !ok {
		return false
	}
	return e.expires.IsZero() || c.Now().Before(e.expires)
}

func (c *LRU[K, V]) Delete(k K) { c.inner.Remove(k) }

func (c *LRU[K, V]) Set(k K, v V) bool { return c.SetWithTTL(k, v, c.TTL) }

func (c *LRU[K, V]) SetWithTTL(k K, v V, d time.Duration) bool {
	e := entry[V]{value: v}
	if d > 0 {
		e.expires = c.Now().Add(d)
	}
	c.inner.Add(k, e)
	return true
}

func (c *LRU[K, V]) Len() int { return c.inner.Len() }
