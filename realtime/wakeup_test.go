package realtime

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	nostr "github.com/soapbox-pub/ditto-sub000"
	"github.com/soapbox-pub/ditto-sub000/cache/lru"
	"github.com/soapbox-pub/ditto-sub000/eventstore"
	"github.com/soapbox-pub/ditto-sub000/eventstore/slicestore"
	"github.com/soapbox-pub/ditto-sub000/eventstore/sqldb"
	"github.com/soapbox-pub/ditto-sub000/eventstore/sqlstore"
	"github.com/stretchr/testify/require"
)

func TestWakeup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifier := &LocalNotifier{}
	registry := NewRegistry()

	// a writer that knows nothing about the registry
	writer := &slicestore.SliceStore{Notifier: notifier}
	require.NoError(t, writer.Init(ctx))

	seen := lru.New[nostr.ID, struct{}](100, 0)
	w := &Wakeup{Notifier: notifier, Store: writer, Fulfiller: registry, Seen: seen}

	done := make(chan error)
	go func() { done <- w.Run(ctx) }()

	sub := registry.Subscribe([]nostr.Filter{{Kinds: []nostr.Kind{1}}})

	// wait until the listener is attached
	require.Eventually(t, func() bool {
		notifier.mu.Lock()
		defer notifier.mu.Unlock()
		return len(notifier.listeners) == 1
	}, time.Second, 5*time.Millisecond)

	already := event(t, 1, nostr.Now(), "handled locally")
	seen.Set(already.ID, struct{}{})
	require.NoError(t, writer.Write(ctx, already))

	remote := event(t, 1, nostr.Now(), "written elsewhere")
	require.NoError(t, writer.Write(ctx, remote))

	select {
	case evt := <-sub.Events():
		require.Equal(t, remote.ID, evt.ID)
	case <-time.After(time.Second):
		t.Fatal("announced event was not delivered")
	}
	require.True(t, seen.Has(remote.ID))

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestWakeupIgnoresOwnWrites(t *testing.T) {
	for _, tc := range []struct {
		name string
		open func(t *testing.T, registry *Registry, notifier *LocalNotifier, seen *lru.LRU[nostr.ID, struct{}]) eventstore.Store
	}{
		{"slicestore", func(t *testing.T, registry *Registry, notifier *LocalNotifier, seen *lru.LRU[nostr.ID, struct{}]) eventstore.Store {
			return &slicestore.SliceStore{Fulfiller: registry, Notifier: notifier, Seen: seen}
		}},
		{"sqlstore", func(t *testing.T, registry *Registry, notifier *LocalNotifier, seen *lru.LRU[nostr.ID, struct{}]) eventstore.Store {
			db, err := sqldb.Open(filepath.Join(t.TempDir(), "wakeup.db"))
			require.NoError(t, err)
			return &sqlstore.SQLStore{DB: db, Fulfiller: registry, Notifier: notifier, Seen: seen}
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			// every write is announced back to this process, like a database trigger does
			notifier := &LocalNotifier{}
			registry := NewRegistry()
			seen := lru.New[nostr.ID, struct{}](100, 0)

			local := tc.open(t, registry, notifier, seen)
			require.NoError(t, local.Init(ctx))
			t.Cleanup(local.Close)

			// another process writing into the same database
			remote := &slicestore.SliceStore{Notifier: notifier}
			require.NoError(t, remote.Init(ctx))
			shared := &sharedReader{local, remote}

			w := &Wakeup{Notifier: notifier, Store: shared, Fulfiller: registry, Seen: seen}
			done := make(chan error)
			go func() { done <- w.Run(ctx) }()

			require.Eventually(t, func() bool {
				notifier.mu.Lock()
				defer notifier.mu.Unlock()
				return len(notifier.listeners) == 1
			}, time.Second, 5*time.Millisecond)

			sub := registry.Subscribe([]nostr.Filter{{Kinds: []nostr.Kind{1}}})

			own := event(t, 1, nostr.Now(), "written here")
			require.NoError(t, local.Write(ctx, own))
			require.Equal(t, own.ID, (<-sub.Events()).ID)

			// announcements arrive in order, so once this one is delivered the echo was handled
			other := event(t, 1, nostr.Now(), "written elsewhere")
			require.NoError(t, remote.Write(ctx, other))

			select {
			case evt := <-sub.Events():
				require.Equal(t, other.ID, evt.ID, "own write delivered twice")
			case <-time.After(time.Second):
				t.Fatal("announced event was not delivered")
			}

			select {
			case evt := <-sub.Events():
				t.Fatalf("unexpected delivery of %s", evt.ID.Hex())
			default:
			}

			cancel()
			require.ErrorIs(t, <-done, context.Canceled)
		})
	}
}

// sharedReader answers lookups from both stores, standing in for one shared database.
type sharedReader struct {
	eventstore.Store
	other eventstore.Store
}

func (s *sharedReader) Query(ctx context.Context, filters []nostr.Filter, opts eventstore.QueryOptions) ([]nostr.Event, error) {
	res, err := s.Store.Query(ctx, filters, opts)
	if err != nil || len(res) > 0 {
		return res, err
	}
	return s.other.Query(ctx, filters, opts)
}
