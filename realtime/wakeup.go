package realtime

import (
	"context"

	"github.com/rs/zerolog"
	nostr "github.com/soapbox-pub/ditto-sub000"
	"github.com/soapbox-pub/ditto-sub000/cache/lru"
	"github.com/soapbox-pub/ditto-sub000/eventstore"
)

// Wakeup re-fetches events announced by other processes and hands them to the registry.
type Wakeup struct {
	Notifier  Notifier
	Store     eventstore.Store
	Fulfiller eventstore.Fulfiller

	// Seen is shared with the ingestion pipeline. Ids in it were already fulfilled here.
	Seen *lru.LRU[nostr.ID, struct{}]

	Logger *zerolog.Logger
}

// Run blocks until ctx ends or the notifier stops.
func (w *Wakeup) Run(ctx context.Context) error {
	ch, err := w.Notifier.Listen(ctx)
	if err != nil {
		return err
	}

	for id := range ch {
		if w.Seen != nil {
			if w.Seen.Has(id) {
				continue
			}
			w.Seen.Set(id, struct{}{})
		}

		evts, err := w.Store.Query(ctx, []nostr.Filter{{IDs: []nostr.ID{id}}}, eventstore.QueryOptions{Limit: 1})
		if err != nil {
			w.log().Warn().Err(err).Str("id", id.Hex()).Msg("failed to fetch announced event")
			continue
		}
		for _, evt := range evts {
			if err := w.Fulfiller.Fulfill(ctx, evt); err != nil {
				w.log().Debug().Err(err).Str("id", id.Hex()).Msg("fulfill failed")
			}
		}
	}

	return ctx.Err()
}

func (w *Wakeup) log() *zerolog.Logger {
	if w.Logger == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return w.Logger
}
