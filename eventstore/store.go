package eventstore

import (
	"context"
	"time"

	nostr "github.com/soapbox-pub/ditto-sub000"
)

// Store is a persistence layer for nostr events handled by a relay.
type Store interface {
	// Init is called at the very beginning, allowing a storage to initialize its internal resources.
	Init(ctx context.Context) error

	// Close must be called after you're done using the store, to free up resources and so on.
	Close()

	// Write persists an event, resolving replacements and deletions. Writing an event that is
	// already stored is not an error.
	Write(ctx context.Context, evt nostr.Event) error

	// Query returns all events matching any of the filters, newest first.
	Query(ctx context.Context, filters []nostr.Filter, opts QueryOptions) ([]nostr.Event, error)

	// Stream is like Query but hands results out in bounded chunks.
	Stream(ctx context.Context, filters []nostr.Filter, opts QueryOptions) *Stream

	// Count counts events matching any of the filters. It may be approximate.
	Count(ctx context.Context, filters []nostr.Filter, opts QueryOptions) (int64, error)

	// Remove physically deletes every event matching any of the filters.
	Remove(ctx context.Context, filters []nostr.Filter) error
}

type QueryOptions struct {
	// Timeout bounds the whole query. Zero means no timeout besides the context's.
	Timeout time.Duration

	// Limit caps every filter's limit.
	Limit int

	// ChunkSize is the number of events handed out at once by Stream.
	ChunkSize int
}

// Fulfiller receives every event once it is stored (or, for ephemeral events, instead of
// being stored). It is implemented by the subscription registry.
type Fulfiller interface {
	Fulfill(ctx context.Context, evt nostr.Event) error
}

// Notifier tells other processes an event was written.
type Notifier interface {
	Publish(ctx context.Context, id nostr.ID) error
}

// DomainResolver returns the authors whose verified identifier lives on the given host.
type DomainResolver interface {
	PubkeysByDomain(ctx context.Context, domain string) ([]nostr.PubKey, error)
}
