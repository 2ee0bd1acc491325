package test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	nostr "github.com/soapbox-pub/ditto-sub000"
	"github.com/soapbox-pub/ditto-sub000/eventstore"
	"github.com/stretchr/testify/require"
)

func idempotenceTest(t *testing.T, db eventstore.Store, ful *collector) {
	evt := signed(t, sk3, nostr.Event{Kind: 1, CreatedAt: 1000, Content: "once"})

	require.NoError(t, db.Write(ctx, evt))
	require.NoError(t, db.Write(ctx, evt))

	require.Len(t, query(t, db, nostr.Filter{IDs: []nostr.ID{evt.ID}}), 1)
	require.Len(t, ful.received(), 1, "a duplicate must not be fulfilled twice")
}

func concurrentDuplicatesTest(t *testing.T, db eventstore.Store, _ *collector) {
	first := signed(t, sk3, nostr.Event{Kind: 3, CreatedAt: 0, Content: "first"})
	second := signed(t, sk3, nostr.Event{Kind: 3, CreatedAt: 1, Content: "second"})

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(2)
		go func() { defer wg.Done(); db.Write(ctx, first) }()
		go func() { defer wg.Done(); db.Write(ctx, second) }()
	}
	wg.Wait()

	evts := query(t, db, nostr.Filter{Kinds: []nostr.Kind{3}})
	require.Len(t, evts, 1)
	require.Equal(t, second.ID, evts[0].ID)
}

func adminDeletionTest(t *testing.T, db eventstore.Store, _ *collector) {
	note := signed(t, sk3, nostr.Event{Kind: 1, CreatedAt: 1000, Content: "bad"})
	require.NoError(t, db.Write(ctx, note))

	del := signed(t, admin, nostr.Event{Kind: 5, CreatedAt: 1100, Tags: nostr.Tags{{"e", note.ID.Hex()}}})
	require.NoError(t, db.Write(ctx, del))

	require.Empty(t, query(t, db, nostr.Filter{IDs: []nostr.ID{note.ID}}))
	require.ErrorIs(t, db.Write(ctx, note), eventstore.ErrDeletedByAdmin)

	// deleted before it was ever seen
	unseen := signed(t, sk4, nostr.Event{Kind: 1, CreatedAt: 1000, Content: "never"})
	require.NoError(t, db.Write(ctx, signed(t, admin, nostr.Event{
		Kind: 5, CreatedAt: 1200, Tags: nostr.Tags{{"e", unseen.ID.Hex()}},
	})))
	err := db.Write(ctx, unseen)
	require.ErrorIs(t, err, eventstore.ErrDeletedByAdmin)
	require.Equal(t, "blocked: event deleted by admin", err.Error())

	// addresses only cover versions up to the deletion's timestamp
	article := signed(t, sk3, nostr.Event{Kind: 30023, CreatedAt: 100, Tags: nostr.Tags{{"d", "post"}}})
	require.NoError(t, db.Write(ctx, article))
	addr, _ := article.Address()
	require.NoError(t, db.Write(ctx, signed(t, admin, nostr.Event{
		Kind: 5, CreatedAt: 200, Tags: nostr.Tags{{"a", addr.String()}},
	})))
	require.Empty(t, query(t, db, addr.AsFilter()))

	older := signed(t, sk3, nostr.Event{Kind: 30023, CreatedAt: 150, Tags: nostr.Tags{{"d", "post"}}})
	require.ErrorIs(t, db.Write(ctx, older), eventstore.ErrDeletedByAdmin)

	newer := signed(t, sk3, nostr.Event{Kind: 30023, CreatedAt: 300, Tags: nostr.Tags{{"d", "post"}}})
	require.NoError(t, db.Write(ctx, newer))
	results := query(t, db, addr.AsFilter())
	require.Len(t, results, 1)
	require.Equal(t, newer.ID, results[0].ID)
}

func userDeletionTest(t *testing.T, db eventstore.Store, _ *collector) {
	note := signed(t, sk3, nostr.Event{Kind: 1, CreatedAt: 1000, Content: "mine"})
	require.NoError(t, db.Write(ctx, note))

	// somebody else cannot delete it
	require.NoError(t, db.Write(ctx, signed(t, sk4, nostr.Event{
		Kind: 5, CreatedAt: 1100, Tags: nostr.Tags{{"e", note.ID.Hex()}},
	})))
	require.Len(t, query(t, db, nostr.Filter{IDs: []nostr.ID{note.ID}}), 1)

	own := signed(t, sk3, nostr.Event{Kind: 5, CreatedAt: 1200, Tags: nostr.Tags{{"e", note.ID.Hex()}}})
	require.NoError(t, db.Write(ctx, own))
	require.Empty(t, query(t, db, nostr.Filter{IDs: []nostr.ID{note.ID}}))

	// deletion requests stay visible and are not deletable
	require.NoError(t, db.Write(ctx, signed(t, sk3, nostr.Event{
		Kind: 5, CreatedAt: 1300, Tags: nostr.Tags{{"e", own.ID.Hex()}},
	})))
	require.Len(t, query(t, db, nostr.Filter{Kinds: []nostr.Kind{5}, Authors: []nostr.PubKey{sk3.Public()}}), 2)

	// writing a deleted event again is accepted silently
	require.NoError(t, db.Write(ctx, note))
}

func ephemeralTest(t *testing.T, db eventstore.Store, ful *collector) {
	evt := signed(t, sk3, nostr.Event{Kind: 20001, CreatedAt: nostr.Now(), Content: "now or never"})
	require.NoError(t, db.Write(ctx, evt))

	require.Empty(t, query(t, db, nostr.Filter{Kinds: []nostr.Kind{20001}}))
	require.Empty(t, query(t, db, nostr.Filter{IDs: []nostr.ID{evt.ID}}))

	received := ful.received()
	require.Len(t, received, 1)
	require.Equal(t, evt, received[0])
}

func filterValidationTest(t *testing.T, db eventstore.Store, _ *collector) {
	for _, filter := range []nostr.Filter{
		{Since: nostr.Timestamp(nostr.MaxKind)},
		{Until: nostr.Timestamp(nostr.MaxKind) + 5},
		{Kinds: []nostr.Kind{1, nostr.MaxKind}},
	} {
		_, err := db.Query(ctx, []nostr.Filter{filter}, eventstore.QueryOptions{})
		require.Error(t, err, filter.String())
		require.True(t, nostr.IsRelayErrorKind(err, nostr.ErrInvalid), err.Error())

		_, err = db.Count(ctx, []nostr.Filter{filter}, eventstore.QueryOptions{})
		require.True(t, nostr.IsRelayErrorKind(err, nostr.ErrInvalid))
	}

	require.NoError(t, db.Write(ctx, signed(t, sk3, nostr.Event{Kind: 1, CreatedAt: 10})))
	require.Empty(t, query(t, db, nostr.Filter{Kinds: []nostr.Kind{1}, Limit: 0, LimitZero: true}))
	require.Empty(t, query(t, db, nostr.Filter{Kinds: []nostr.Kind{20000, 29999}}))
	require.Len(t, query(t, db, nostr.Filter{Kinds: []nostr.Kind{1, 20000}}), 1)
}

func streamChunksTest(t *testing.T, db eventstore.Store, _ *collector) {
	for i := range 5 {
		require.NoError(t, db.Write(ctx, signed(t, sk3, nostr.Event{
			Kind: 1, CreatedAt: nostr.Timestamp(100 + i), Content: fmt.Sprintf("chunk %d", i),
		})))
	}

	stream := db.Stream(ctx, []nostr.Filter{{Kinds: []nostr.Kind{1}}}, eventstore.QueryOptions{ChunkSize: 2})
	sizes := make([]int, 0, 3)
	for chunk := range stream.Chunks() {
		sizes = append(sizes, len(chunk))
	}
	require.NoError(t, stream.Err())
	require.Equal(t, []int{2, 2, 1}, sizes)

	// closing early stops the producer without an error surfacing to the caller
	stream = db.Stream(ctx, []nostr.Filter{{Kinds: []nostr.Kind{1}}}, eventstore.QueryOptions{ChunkSize: 1})
	first := <-stream.Chunks()
	require.Len(t, first, 1)
	require.Equal(t, nostr.Timestamp(104), first[0].CreatedAt)
	stream.Close()
}

func searchTest(t *testing.T, db eventstore.Store, _ *collector) {
	hello := signed(t, sk3, nostr.Event{Kind: 1, CreatedAt: 100, Content: "Hello World from the relay"})
	bye := signed(t, sk3, nostr.Event{Kind: 1, CreatedAt: 101, Content: "goodbye"})
	reaction := signed(t, sk3, nostr.Event{Kind: 7, CreatedAt: 102, Content: "hello"})
	for _, evt := range []nostr.Event{hello, bye, reaction} {
		require.NoError(t, db.Write(ctx, evt))
	}

	results := query(t, db, nostr.Filter{Search: "hello"})
	require.Len(t, results, 1)
	require.Equal(t, hello.ID, results[0].ID)

	require.Len(t, query(t, db, nostr.Filter{Search: "world hello"}), 1)
	require.Empty(t, query(t, db, nostr.Filter{Search: "hello moon"}))
	require.Len(t, query(t, db, nostr.Filter{Search: "hello protocol:nostr"}), 1)
	require.Empty(t, query(t, db, nostr.Filter{Search: "hello protocol:activitypub"}))
	require.Len(t, query(t, db, nostr.Filter{Search: "reply:false"}), 2)

	// no domain resolver configured
	require.Empty(t, query(t, db, nostr.Filter{Search: "hello domain:example.com"}))
}

func unindexedTagsTest(t *testing.T, db eventstore.Store, _ *collector) {
	evt := signed(t, sk3, nostr.Event{Kind: 1, CreatedAt: 100, Tags: nostr.Tags{
		{"x", "whatever"},
		{"t", "Nostr"},
		{"t", "nostr"},
	}})
	require.NoError(t, db.Write(ctx, evt))

	require.Empty(t, query(t, db, nostr.Filter{Tags: nostr.TagMap{"x": {"whatever"}}}))
	require.Empty(t, query(t, db, nostr.Filter{Tags: nostr.TagMap{"t": {"Nostr"}}}))
	require.Len(t, query(t, db, nostr.Filter{Tags: nostr.TagMap{"t": {"nostr"}}}), 1)
	require.Empty(t, query(t, db, nostr.Filter{Tags: nostr.TagMap{"t": {}}}))
}

func removeTest(t *testing.T, db eventstore.Store, _ *collector) {
	keep := signed(t, sk3, nostr.Event{Kind: 1, CreatedAt: 100})
	drop := signed(t, sk4, nostr.Event{Kind: 1, CreatedAt: 101, Tags: nostr.Tags{{"t", "spam"}}})
	require.NoError(t, db.Write(ctx, keep))
	require.NoError(t, db.Write(ctx, drop))

	require.NoError(t, db.Remove(ctx, []nostr.Filter{{Tags: nostr.TagMap{"t": {"spam"}}}}))

	results := query(t, db, nostr.Filter{Kinds: []nostr.Kind{1}})
	require.Len(t, results, 1)
	require.Equal(t, keep.ID, results[0].ID)

	// removed events are not remembered
	require.NoError(t, db.Write(ctx, drop))
	require.Len(t, query(t, db, nostr.Filter{Kinds: []nostr.Kind{1}}), 2)
}

func countTest(t *testing.T, db eventstore.Store, _ *collector) {
	for i := range 7 {
		sk := sk3
		if i%2 == 0 {
			sk = sk4
		}
		require.NoError(t, db.Write(ctx, signed(t, sk, nostr.Event{Kind: 1, CreatedAt: nostr.Timestamp(100 + i)})))
	}

	n, err := db.Count(ctx, []nostr.Filter{{Authors: []nostr.PubKey{sk4.Public()}}}, eventstore.QueryOptions{})
	require.NoError(t, err)
	require.Equal(t, int64(4), n)

	n, err = db.Count(ctx, []nostr.Filter{{Kinds: []nostr.Kind{1}, Since: 103}}, eventstore.QueryOptions{})
	require.NoError(t, err)
	require.Equal(t, int64(4), n)
}

func timeoutTest(t *testing.T, db eventstore.Store, _ *collector) {
	for i := range 3 {
		require.NoError(t, db.Write(ctx, signed(t, sk3, nostr.Event{
			Kind: 1, CreatedAt: nostr.Timestamp(100 + i), Content: fmt.Sprintf("slow %d", i),
		})))
	}
	filters := []nostr.Filter{{Kinds: []nostr.Kind{1}}}

	// nobody reads until the budget is spent, so the producer can only give up
	stream := db.Stream(ctx, filters, eventstore.QueryOptions{Timeout: time.Nanosecond, ChunkSize: 1})
	time.Sleep(20 * time.Millisecond)
	_, err := stream.Collect()
	require.ErrorIs(t, err, eventstore.ErrTimeout)
	require.Equal(t, "error: relay could not respond fast enough", nostr.AsRelayError(err).Error())

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = db.Query(cancelled, filters, eventstore.QueryOptions{Timeout: time.Minute})
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, errors.Is(err, eventstore.ErrTimeout))

	// a generous budget changes nothing
	res, err := db.Query(ctx, filters, eventstore.QueryOptions{Timeout: time.Minute})
	require.NoError(t, err)
	require.Len(t, res, 3)
}
