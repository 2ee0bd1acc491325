// Package stats keeps running counters about authors and events in side tables. Every update
// is a read-modify-write of a locked row inside the caller's transaction.
package stats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	nostr "github.com/soapbox-pub/ditto-sub000"
	"github.com/soapbox-pub/ditto-sub000/eventstore/sqldb"
)

// DefaultStreakWindow is the longest gap between two posts that keeps a streak going.
const DefaultStreakWindow = 36 * time.Hour

type Aggregator struct {
	DB           *sqldb.DB
	StreakWindow time.Duration
	Logger       *zerolog.Logger
}

func New(db *sqldb.DB) *Aggregator {
	nop := zerolog.Nop()
	return &Aggregator{DB: db, StreakWindow: DefaultStreakWindow, Logger: &nop}
}

type AuthorStats struct {
	PubKey              string         `db:"pubkey"`
	FollowersCount      int64          `db:"followers_count"`
	FollowingCount      int64          `db:"following_count"`
	NotesCount          int64          `db:"notes_count"`
	StreakStart         sql.NullInt64  `db:"streak_start"`
	StreakEnd           sql.NullInt64  `db:"streak_end"`
	Nip05               sql.NullString `db:"nip05"`
	Nip05Domain         sql.NullString `db:"nip05_domain"`
	Nip05Hostname       sql.NullString `db:"nip05_hostname"`
	Nip05LastVerifiedAt sql.NullInt64  `db:"nip05_last_verified_at"`
}

type EventStats struct {
	EventID         string `db:"event_id"`
	RepliesCount    int64  `db:"replies_count"`
	RepostsCount    int64  `db:"reposts_count"`
	ReactionsCount  int64  `db:"reactions_count"`
	QuotesCount     int64  `db:"quotes_count"`
	Reactions       string `db:"reactions"`
	ZapsAmount      int64  `db:"zaps_amount"`
	ZapsAmountCashu int64  `db:"zaps_amount_cashu"`
}

// Update applies the contribution of evt to the counters, multiplied by x. x is +1 when the
// event is being stored and -1 when it is being deleted.
func (a *Aggregator) Update(ctx context.Context, tx *sqlx.Tx, evt nostr.Event, x int) error {
	if x != 1 && x != -1 {
		return fmt.Errorf("stats sign must be 1 or -1, got %d", x)
	}

	switch evt.Kind {
	case nostr.KindTextNote, nostr.KindPicture, nostr.KindComment:
		return a.handlePost(ctx, tx, evt, x)
	case nostr.KindFollowList:
		return a.handleFollowList(ctx, tx, evt, x)
	case nostr.KindRepost, nostr.KindGenericRepost:
		return a.handleRepost(ctx, tx, evt, x)
	case nostr.KindReaction:
		return a.handleReaction(ctx, tx, evt, x)
	case nostr.KindZap:
		return a.handleZap(ctx, tx, evt, x)
	case nostr.KindNutZap:
		return a.handleNutzap(ctx, tx, evt, x)
	}
	return nil
}

// Reverse undoes the contribution of events removed by a deletion.
func (a *Aggregator) Reverse(ctx context.Context, tx *sqlx.Tx, deleted []nostr.Event) error {
	for _, evt := range deleted {
		if err := a.Update(ctx, tx, evt, -1); err != nil {
			return fmt.Errorf("failed to reverse stats of %s: %w", evt.ID.Hex(), err)
		}
	}
	return nil
}

func (a *Aggregator) updateAuthor(ctx context.Context, tx *sqlx.Tx, pubkey string, fn func(*AuthorStats)) error {
	if _, err := tx.ExecContext(ctx, tx.Rebind(
		`INSERT INTO author_stats (pubkey) VALUES (?) ON CONFLICT DO NOTHING`), pubkey); err != nil {
		return fmt.Errorf("failed to create author stats: %w", err)
	}

	var row AuthorStats
	if err := tx.GetContext(ctx, &row, tx.Rebind(
		`SELECT * FROM author_stats WHERE pubkey = ?`+a.DB.Dialect.ForUpdate()), pubkey); err != nil {
		return fmt.Errorf("failed to lock author stats: %w", err)
	}

	fn(&row)
	row.FollowersCount = max(row.FollowersCount, 0)
	row.FollowingCount = max(row.FollowingCount, 0)
	row.NotesCount = max(row.NotesCount, 0)

	_, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE author_stats SET
		followers_count = ?, following_count = ?, notes_count = ?, streak_start = ?, streak_end = ?
		WHERE pubkey = ?`),
		row.FollowersCount, row.FollowingCount, row.NotesCount, row.StreakStart, row.StreakEnd, pubkey)
	if err != nil {
		return fmt.Errorf("failed to update author stats: %w", err)
	}
	return nil
}

func (a *Aggregator) updateEvent(ctx context.Context, tx *sqlx.Tx, id string, fn func(*EventStats)) error {
	if _, err := tx.ExecContext(ctx, tx.Rebind(
		`INSERT INTO event_stats (event_id) VALUES (?) ON CONFLICT DO NOTHING`), id); err != nil {
		return fmt.Errorf("failed to create event stats: %w", err)
	}

	var row EventStats
	if err := tx.GetContext(ctx, &row, tx.Rebind(
		`SELECT * FROM event_stats WHERE event_id = ?`+a.DB.Dialect.ForUpdate()), id); err != nil {
		return fmt.Errorf("failed to lock event stats: %w", err)
	}

	fn(&row)
	row.RepliesCount = max(row.RepliesCount, 0)
	row.RepostsCount = max(row.RepostsCount, 0)
	row.QuotesCount = max(row.QuotesCount, 0)
	row.ZapsAmount = max(row.ZapsAmount, 0)
	row.ZapsAmountCashu = max(row.ZapsAmountCashu, 0)

	_, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE event_stats SET
		replies_count = ?, reposts_count = ?, reactions_count = ?, quotes_count = ?, reactions = ?,
		zaps_amount = ?, zaps_amount_cashu = ?
		WHERE event_id = ?`),
		row.RepliesCount, row.RepostsCount, row.ReactionsCount, row.QuotesCount, row.Reactions,
		row.ZapsAmount, row.ZapsAmountCashu, id)
	if err != nil {
		return fmt.Errorf("failed to update event stats: %w", err)
	}
	return nil
}

// GetAuthorStats returns the counters of an author. Authors nobody has seen yet get zeroes.
func (a *Aggregator) GetAuthorStats(ctx context.Context, pubkey nostr.PubKey) (AuthorStats, error) {
	row := AuthorStats{PubKey: pubkey.Hex()}
	err := a.DB.GetContext(ctx, &row, a.DB.Rebind(`SELECT * FROM author_stats WHERE pubkey = ?`), pubkey.Hex())
	if errors.Is(err, sql.ErrNoRows) {
		return row, nil
	}
	return row, err
}

// GetEventStats returns the counters of an event. Events nobody interacted with get zeroes.
func (a *Aggregator) GetEventStats(ctx context.Context, id nostr.ID) (EventStats, error) {
	row := EventStats{EventID: id.Hex(), Reactions: "{}"}
	err := a.DB.GetContext(ctx, &row, a.DB.Rebind(`SELECT * FROM event_stats WHERE event_id = ?`), id.Hex())
	if errors.Is(err, sql.ErrNoRows) {
		return row, nil
	}
	return row, err
}
