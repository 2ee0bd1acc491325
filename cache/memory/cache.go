// Package cache_memory is a cost-bounded cache on top of ristretto. Writes are buffered, so a
// value may not be readable right after Set; call Wait when that matters.
package cache_memory

import (
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/soapbox-pub/ditto-sub000/cache"
)

type Key interface {
	uint64 | string | int64 | int
}

var _ cache.Cache[string, int] = (*RistrettoCache[string, int])(nil)

type RistrettoCache[K Key, V any] struct {
	Cache *ristretto.Cache[K, V]
}

func New[K Key, V any](max int64) *RistrettoCache[K, V] {
	c, _ := ristretto.NewCache(&ristretto.Config[K, V]{
		NumCounters: max * 10,
		MaxCost:     max,
		BufferItems: 64,
	})
	return &RistrettoCache[K, V]{Cache: c}
}

func (s RistrettoCache[K, V]) Get(k K) (v V, ok bool) { return s.Cache.Get(k) }
func (s RistrettoCache[K, V]) Delete(k K)             { s.Cache.Del(k) }
func (s RistrettoCache[K, V]) Set(k K, v V) bool      { return s.Cache.Set(k, v, 1) }

func (s RistrettoCache[K, V]) SetWithTTL(k K, v V, d time.Duration) bool {
	return s.Cache.SetWithTTL(k, v, 1, d)
}

// Wait blocks until buffered writes are applied.
func (s RistrettoCache[K, V]) Wait() { s.Cache.Wait() }

func (s RistrettoCache[K, V]) Close() { s.Cache.Close() }
