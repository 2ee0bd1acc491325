package policies

import (
	"context"
	"net/http"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	nostr "github.com/soapbox-pub/ditto-sub000"
	"github.com/soapbox-pub/ditto-sub000/relay"
	"golang.org/x/time/rate"
)

// maxTrackedKeys bounds how many limiters are kept. The least recently used are forgotten.
const maxTrackedKeys = 65536

func EventIPRateLimiter(tokensPerInterval int, interval time.Duration, maxTokens int) func(ctx context.Context, _ nostr.Event) (reject bool, msg string) {
	rl := startRateLimitSystem[string](tokensPerInterval, interval, maxTokens)

	return func(ctx context.Context, _ nostr.Event) (reject bool, msg string) {
		ip := relay.GetIP(ctx)
		if ip == "" || ip == "127.0.0.1" || ip == "::1" {
			return false, ""
		}
		return rl(ip), "rate-limited: slow down, please"
	}
}

func EventPubKeyRateLimiter(tokensPerInterval int, interval time.Duration, maxTokens int) func(ctx context.Context, _ nostr.Event) (reject bool, msg string) {
	rl := startRateLimitSystem[nostr.PubKey](tokensPerInterval, interval, maxTokens)

	return func(ctx context.Context, evt nostr.Event) (reject bool, msg string) {
		return rl(evt.PubKey), "rate-limited: slow down, please"
	}
}

func ConnectionRateLimiter(tokensPerInterval int, interval time.Duration, maxTokens int) func(r *http.Request) bool {
	rl := startRateLimitSystem[string](tokensPerInterval, interval, maxTokens)

	return func(r *http.Request) bool {
		ip := relay.GetIPFromRequest(r)
		if ip == "127.0.0.1" || ip == "::1" {
			return false
		}
		return rl(ip)
	}
}

func FilterIPRateLimiter(tokensPerInterval int, interval time.Duration, maxTokens int) func(ctx context.Context, _ nostr.Filter) (reject bool, msg string) {
	rl := startRateLimitSystem[string](tokensPerInterval, interval, maxTokens)

	return func(ctx context.Context, _ nostr.Filter) (reject bool, msg string) {
		ip := relay.GetIP(ctx)
		if ip == "" || ip == "127.0.0.1" {
			return false, ""
		}
		return rl(ip), "rate-limited: there is a bug in the client, no one should be making so many requests"
	}
}

// startRateLimitSystem gives every key a token bucket refilled with tokensPerInterval tokens
// each interval and holding at most maxTokens. The returned function reports whether the key
// is over its budget.
func startRateLimitSystem[K comparable](tokensPerInterval int, interval time.Duration, maxTokens int) func(key K) (ratelimited bool) {
	limiters, err := lru.New[K, *rate.Limiter](maxTrackedKeys)
	if err != nil {
		panic(err)
	}
	every := rate.Every(interval / time.Duration(tokensPerInterval))

	var mu sync.Mutex
	return func(key K) bool {
		mu.Lock()
		limiter, ok := limiters.Get(key)
		if !ok {
			limiter = rate.NewLimiter(every, maxTokens)
			limiters.Add(key, limiter)
		}
		mu.Unlock()

		return !limiter.Allow()
	}
}
