package sqldb

import (
	"context"
	"fmt"
)

// NotifyChannel is the PostgreSQL channel on which the id of every inserted event is announced.
const NotifyChannel = "nostr_event"

var sharedSchema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		kind BIGINT NOT NULL,
		pubkey TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		tags TEXT NOT NULL,
		tags_index TEXT NOT NULL,
		sig TEXT NOT NULL,
		d TEXT,
		search TEXT NOT NULL DEFAULT '',
		search_ext TEXT NOT NULL DEFAULT '{}',
		deleted_at BIGINT
	)`,
	`CREATE INDEX IF NOT EXISTS events_created_at_idx ON events (created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS events_kind_created_at_idx ON events (kind, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS events_pubkey_kind_created_at_idx ON events (pubkey, kind, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS events_replaceable_idx ON events (kind, pubkey, d)`,

	`CREATE TABLE IF NOT EXISTS event_tags (
		event_id TEXT NOT NULL,
		name TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (event_id, name, value)
	)`,
	`CREATE INDEX IF NOT EXISTS event_tags_name_value_idx ON event_tags (name, value)`,

	`CREATE TABLE IF NOT EXISTS event_exts (
		event_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (event_id, key)
	)`,
	`CREATE INDEX IF NOT EXISTS event_exts_key_value_idx ON event_exts (key, value)`,

	`CREATE TABLE IF NOT EXISTS author_stats (
		pubkey TEXT PRIMARY KEY,
		followers_count BIGINT NOT NULL DEFAULT 0,
		following_count BIGINT NOT NULL DEFAULT 0,
		notes_count BIGINT NOT NULL DEFAULT 0,
		streak_start BIGINT,
		streak_end BIGINT,
		nip05 TEXT,
		nip05_domain TEXT,
		nip05_hostname TEXT,
		nip05_last_verified_at BIGINT
	)`,
	`CREATE INDEX IF NOT EXISTS author_stats_nip05_hostname_idx ON author_stats (nip05_hostname)`,

	`CREATE TABLE IF NOT EXISTS event_stats (
		event_id TEXT PRIMARY KEY,
		replies_count BIGINT NOT NULL DEFAULT 0,
		reposts_count BIGINT NOT NULL DEFAULT 0,
		reactions_count BIGINT NOT NULL DEFAULT 0,
		quotes_count BIGINT NOT NULL DEFAULT 0,
		reactions TEXT NOT NULL DEFAULT '{}',
		zaps_amount BIGINT NOT NULL DEFAULT 0,
		zaps_amount_cashu BIGINT NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS event_zaps (
		receipt_id TEXT PRIMARY KEY,
		target_event_id TEXT NOT NULL,
		sender_pubkey TEXT NOT NULL,
		amount_millisats BIGINT NOT NULL,
		comment TEXT NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS event_zaps_target_idx ON event_zaps (target_event_id)`,
}

var postgresSchema = []string{
	`CREATE OR REPLACE FUNCTION notify_nostr_event() RETURNS trigger AS $$
	BEGIN
		PERFORM pg_notify('` + NotifyChannel + `', NEW.id);
		RETURN NEW;
	END;
	$$ LANGUAGE plpgsql`,
	`DROP TRIGGER IF EXISTS nostr_event_notify ON events`,
	`CREATE TRIGGER nostr_event_notify AFTER INSERT ON events FOR EACH ROW EXECUTE FUNCTION notify_nostr_event()`,
}

// Migrate creates every table the relay needs. It is safe to run on every start.
func (db *DB) Migrate(ctx context.Context) error {
	statements := sharedSchema
	if db.Dialect == Postgres {
		statements = append(statements[:len(statements):len(statements)], postgresSchema...)
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed on %.60q: %w", stmt, err)
		}
	}
	return nil
}
