package policies

import (
	"context"
	"strings"
	"testing"
	"time"

	nostr "github.com/soapbox-pub/ditto-sub000"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

func TestEventPolicies(t *testing.T) {
	now := nostr.Now()
	pk := nostr.MustPubKeyFromHex("79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798")

	manyTags := make(nostr.Tags, 0, 14)
	for range 13 {
		manyTags = append(manyTags, nostr.Tag{"p", pk.Hex()})
	}

	policy := SeqEvent(
		RejectEventsWithBase64Media,
		PreventLargeTags(100),
		PreventTooManyIndexableTags(12, []nostr.Kind{3}, nil),
		PreventLargeContent(50),
		RestrictToSpecifiedKinds(true, 0, 1, 3, 7),
		PreventTimestampsInTheFuture(time.Minute),
		PreventTimestampsInThePast(24*time.Hour),
	)

	tests := []struct {
		name   string
		event  nostr.Event
		reason string
	}{
		{"plain note", nostr.Event{Kind: 1, CreatedAt: now, Content: "hello"}, ""},
		{"base64 image", nostr.Event{Kind: 1, CreatedAt: now, Content: "data:image/png;base64,AAAA"}, "event with base64 media"},
		{"large tag", nostr.Event{Kind: 1, CreatedAt: now, Tags: nostr.Tags{{"t", strings.Repeat("x", 101)}}}, "event contains too large tags"},
		{"too many tags", nostr.Event{Kind: 1, CreatedAt: now, Tags: manyTags}, "too many indexable tags"},
		{"follow list with many tags", nostr.Event{Kind: 3, CreatedAt: now, Tags: manyTags}, ""},
		{"large content", nostr.Event{Kind: 1, CreatedAt: now, Content: strings.Repeat("a", 51)}, "content is too big"},
		{"kind not allowed", nostr.Event{Kind: 30023, CreatedAt: now}, "received event kind 30023 not allowed"},
		{"ephemeral allowed", nostr.Event{Kind: 20001, CreatedAt: now}, ""},
		{"future", nostr.Event{Kind: 1, CreatedAt: now + 120}, "event too much in the future"},
		{"ancient", nostr.Event{Kind: 1, CreatedAt: now - 2*86400}, "event too old"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reject, reason := policy(ctx, tt.event)
			require.Equal(t, tt.reason != "", reject)
			if reject {
				require.Equal(t, tt.reason, reason)
			}
		})
	}
}

func TestPubKeyRateLimiter(t *testing.T) {
	limit := EventPubKeyRateLimiter(1, time.Hour, 2)

	alice := nostr.Event{PubKey: nostr.MustPubKeyFromHex("79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798")}
	bob := nostr.Event{PubKey: nostr.MustPubKeyFromHex("c6047f9441ed7d6d3045406e95c07cd85c778e4b8cef3ca7abac09b95c709ee5")}

	for range 2 {
		reject, _ := limit(ctx, alice)
		require.False(t, reject)
	}
	reject, msg := limit(ctx, alice)
	require.True(t, reject)
	require.Equal(t, "rate-limited: slow down, please", msg)

	reject, _ = limit(ctx, bob)
	require.False(t, reject)
}

func TestRequestPolicies(t *testing.T) {
	reject, _ := NoSearchQueries(ctx, nostr.Filter{Search: "hello"})
	require.True(t, reject)

	reject, _ = NoComplexFilters(ctx, nostr.Filter{Kinds: []nostr.Kind{1, 2}, Tags: nostr.TagMap{"e": {"x"}, "p": {"y"}, "t": {"z"}}})
	require.True(t, reject)

	reject, _ = SeqRequest(NoSearchQueries, NoComplexFilters)(ctx, nostr.Filter{Kinds: []nostr.Kind{1}})
	require.False(t, reject)
}
