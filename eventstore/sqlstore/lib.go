// Package sqlstore is the relational event store. It runs on PostgreSQL in production and on
// SQLite for single-node setups and tests.
package sqlstore

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	nostr "github.com/soapbox-pub/ditto-sub000"
	"github.com/soapbox-pub/ditto-sub000/cache/lru"
	"github.com/soapbox-pub/ditto-sub000/eventstore"
	"github.com/soapbox-pub/ditto-sub000/eventstore/bluge"
	"github.com/soapbox-pub/ditto-sub000/eventstore/sqldb"
	"github.com/soapbox-pub/ditto-sub000/eventstore/tagindex"
)

var _ eventstore.Store = (*SQLStore)(nil)

// StatsUpdater is updated in the same transaction that writes an event.
type StatsUpdater interface {
	Update(ctx context.Context, tx *sqlx.Tx, evt nostr.Event, x int) error
	Reverse(ctx context.Context, tx *sqlx.Tx, deleted []nostr.Event) error
}

type SQLStore struct {
	DB *sqldb.DB

	// Admin is the relay's own key. Its deletions apply to anybody's events and block the
	// deleted events from ever coming back.
	Admin nostr.PubKey

	Indexer   tagindex.Indexer
	Stats     StatsUpdater
	Fulfiller eventstore.Fulfiller
	Notifier  eventstore.Notifier
	Domains   eventstore.DomainResolver

	// Seen gets the id of every event this store fulfills before the write commits, so a
	// wake-up loop sharing the cache ignores the announcement of our own write.
	Seen *lru.LRU[nostr.ID, struct{}]

	// Search, when set, answers free-text queries instead of the search column.
	Search *bluge.SearchIndex

	Logger *zerolog.Logger
}

func (s *SQLStore) Init(ctx context.Context) error {
	if s.Logger == nil {
		nop := zerolog.Nop()
		s.Logger = &nop
	}
	if s.Indexer.Rules == nil {
		s.Indexer = tagindex.Default()
	}
	if err := s.DB.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate %s database: %w", s.DB.Dialect, err)
	}
	return nil
}

func (s *SQLStore) Close() {
	if err := s.DB.Close(); err != nil {
		s.Logger.Warn().Err(err).Msg("failed to close database")
	}
}

const eventColumns = "id, kind, pubkey, content, created_at, tags, sig"

type eventRow struct {
	ID        string `db:"id"`
	Kind      int64  `db:"kind"`
	PubKey    string `db:"pubkey"`
	Content   string `db:"content"`
	CreatedAt int64  `db:"created_at"`
	Tags      string `db:"tags"`
	Sig       string `db:"sig"`
}

func (row eventRow) toEvent() (nostr.Event, error) {
	evt := nostr.Event{
		Kind:      nostr.Kind(row.Kind),
		CreatedAt: nostr.Timestamp(row.CreatedAt),
		Content:   row.Content,
	}

	var err error
	if evt.ID, err = nostr.IDFromHex(row.ID); err != nil {
		return evt, err
	}
	if evt.PubKey, err = nostr.PubKeyFromHexCheap(row.PubKey); err != nil {
		return evt, err
	}
	if len(row.Sig) != 128 {
		return evt, fmt.Errorf("malformed signature on %s", row.ID)
	}
	if _, err := hex.Decode(evt.Sig[:], []byte(row.Sig)); err != nil {
		return evt, fmt.Errorf("malformed signature on %s: %w", row.ID, err)
	}
	if err := evt.Tags.UnmarshalJSON([]byte(row.Tags)); err != nil {
		return evt, fmt.Errorf("malformed tags on %s: %w", row.ID, err)
	}
	return evt, nil
}

func toEvents(rows []eventRow, logger *zerolog.Logger) []nostr.Event {
	events := make([]nostr.Event, 0, len(rows))
	for _, row := range rows {
		evt, err := row.toEvent()
		if err != nil {
			logger.Error().Err(err).Str("id", row.ID).Msg("skipping unreadable row")
			continue
		}
		events = append(events, evt)
	}
	return events
}
