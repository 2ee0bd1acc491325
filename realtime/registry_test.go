package realtime

import (
	"context"
	"testing"
	"time"

	nostr "github.com/soapbox-pub/ditto-sub000"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

var sk = nostr.MustSecretKeyFromHex("0000000000000000000000000000000000000000000000000000000000000005")

func event(t *testing.T, kind nostr.Kind, createdAt nostr.Timestamp, content string) nostr.Event {
	evt := nostr.Event{Kind: kind, CreatedAt: createdAt, Content: content, Tags: nostr.Tags{}}
	require.NoError(t, evt.Sign(sk))
	return evt
}

func TestFulfill(t *testing.T) {
	r := NewRegistry()
	now := time.Unix(1_700_000_000, 0)
	r.Now = func() time.Time { return now }

	notes := r.Subscribe([]nostr.Filter{{Kinds: []nostr.Kind{1}}})
	reactions := r.Subscribe([]nostr.Filter{{Kinds: []nostr.Kind{7}}})
	searching := r.Subscribe([]nostr.Filter{{Kinds: []nostr.Kind{1}, Search: "hello"}})
	require.Equal(t, 3, r.Len())
	require.Positive(t, r.ApproxBytes())

	fresh := event(t, 1, nostr.Timestamp(now.Unix()-10), "hello")
	require.NoError(t, r.Fulfill(ctx, fresh))

	require.Equal(t, fresh, <-notes.Events())
	require.Empty(t, reactions.Events())
	require.Empty(t, searching.Events())

	// too old for live delivery
	stale := event(t, 1, nostr.Timestamp(now.Unix()-61), "hello")
	require.NoError(t, r.Fulfill(ctx, stale))
	require.Empty(t, notes.Events())

	ephemeral := event(t, 20001, nostr.Timestamp(now.Unix()-61), "")
	err := r.Fulfill(ctx, ephemeral)
	require.True(t, nostr.IsRelayErrorKind(err, nostr.ErrInvalid))
	require.Equal(t, "invalid: event too old", err.Error())
}

func TestUnsubscribe(t *testing.T) {
	r := NewRegistry()

	a := r.Subscribe([]nostr.Filter{{Kinds: []nostr.Kind{1}}})
	b := r.Subscribe([]nostr.Filter{{Authors: []nostr.PubKey{sk.Public()}}})
	total := r.ApproxBytes()

	r.Unsubscribe(a.ID)
	r.Unsubscribe(a.ID)
	require.Equal(t, 1, r.Len())
	require.Less(t, r.ApproxBytes(), total)

	_, open := <-a.Events()
	require.False(t, open)
	require.NoError(t, a.Err())

	r.Unsubscribe(b.ID)
	require.Zero(t, r.Len())
	require.Zero(t, r.ApproxBytes())
}

func TestSlowConsumer(t *testing.T) {
	r := NewRegistry()
	r.Buffer = 2

	sub := r.Subscribe([]nostr.Filter{{Kinds: []nostr.Kind{1}}})
	for i := range 3 {
		require.NoError(t, r.Fulfill(ctx, event(t, 1, nostr.Now(), string(rune('a'+i)))))
	}

	require.Zero(t, r.Len())
	require.ErrorIs(t, sub.Err(), ErrSlowConsumer)

	// what was buffered is still readable
	var received int
	for range sub.Events() {
		received++
	}
	require.Equal(t, 2, received)
}
