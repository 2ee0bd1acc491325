// Package cache holds the small interface shared by the in-process caches.
package cache

import "time"

type Cache[K comparable, V any] interface {
	Get(k K) (v V, ok bool)
	Delete(k K)
	Set(k K, v V) bool
	SetWithTTL(k K, v V, d time.Duration) bool
}
