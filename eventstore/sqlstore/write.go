package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/jmoiron/sqlx"
	"github.com/mailru/easyjson/jwriter"
	nostr "github.com/soapbox-pub/ditto-sub000"
	"github.com/soapbox-pub/ditto-sub000/eventstore"
	"github.com/soapbox-pub/ditto-sub000/eventstore/sqldb"
)

// errAlreadyStored aborts a write transaction when the event turns out to be stored already.
var errAlreadyStored = errors.New("already stored")

type statsError struct{ err error }

func (e *statsError) Error() string { return "stats update failed: " + e.err.Error() }
func (e *statsError) Unwrap() error { return e.err }

type writeResult struct {
	inserted bool
	removed  []nostr.ID
}

func (s *SQLStore) Write(ctx context.Context, evt nostr.Event) error {
	if evt.Kind.IsEphemeral() {
		if s.Fulfiller == nil {
			return nil
		}
		return s.Fulfiller.Fulfill(ctx, evt)
	}

	deleted, err := s.isDeletedByAdmin(ctx, evt)
	if err != nil {
		return err
	}
	if deleted {
		return eventstore.ErrDeletedByAdmin
	}

	if s.Seen != nil && s.Fulfiller != nil {
		s.Seen.Set(evt.ID, struct{}{})
	}

	res, err := s.write(ctx, evt, s.Stats != nil)
	if se := (*statsError)(nil); errors.As(err, &se) {
		s.Logger.Warn().Err(err).Str("id", evt.ID.Hex()).Msg("writing without stats")
		res, err = s.write(ctx, evt, false)
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", evt.ID.Hex(), err)
	}

	if s.Search != nil {
		if len(res.removed) > 0 {
			if err := s.Search.Delete(res.removed...); err != nil {
				s.Logger.Warn().Err(err).Msg("failed to remove from search index")
			}
		}
		if res.inserted {
			text, ext := s.Indexer.Document(evt)
			if err := s.Search.Index(evt, text, ext); err != nil {
				s.Logger.Warn().Err(err).Str("id", evt.ID.Hex()).Msg("failed to index")
			}
		}
	}

	if !res.inserted {
		return nil
	}

	if s.Fulfiller != nil {
		if err := s.Fulfiller.Fulfill(ctx, evt); err != nil {
			s.Logger.Debug().Err(err).Str("id", evt.ID.Hex()).Msg("fulfill failed")
		}
	}
	if s.Notifier != nil {
		if err := s.Notifier.Publish(ctx, evt.ID); err != nil {
			s.Logger.Warn().Err(err).Str("id", evt.ID.Hex()).Msg("failed to publish wake-up")
		}
	}

	return nil
}

// isDeletedByAdmin looks for an admin deletion pointing at the event's id or, for replaceable
// events, at its address with a timestamp not older than the event.
func (s *SQLStore) isDeletedByAdmin(ctx context.Context, evt nostr.Event) (bool, error) {
	if s.Admin == nostr.ZeroPK {
		return false, nil
	}

	query := `SELECT COUNT(*) FROM event_tags t JOIN events e ON e.id = t.event_id
		WHERE e.kind = ? AND e.pubkey = ? AND e.deleted_at IS NULL
		AND ((t.name = 'e' AND t.value = ?)`
	args := []any{int64(nostr.KindDeletion), s.Admin.Hex(), evt.ID.Hex()}
	if addr, ok := evt.Address(); ok {
		query += ` OR (t.name = 'a' AND t.value = ? AND e.created_at >= ?)`
		args = append(args, addr.String(), int64(evt.CreatedAt))
	}
	query += `)`

	var n int
	if err := s.DB.GetContext(ctx, &n, s.DB.Rebind(query), args...); err != nil {
		return false, fmt.Errorf("failed to check admin deletions: %w", err)
	}
	return n > 0, nil
}

func (s *SQLStore) write(ctx context.Context, evt nostr.Event, withStats bool) (writeResult, error) {
	var res writeResult

	err := s.DB.WithTx(ctx, func(tx *sqlx.Tx) error {
		res = writeResult{}

		addr, replaceable := evt.Address()
		if replaceable {
			if err := s.DB.LockKey(ctx, tx, addr.String()); err != nil {
				return fmt.Errorf("failed to lock %s: %w", addr, err)
			}
		}

		var n int
		if err := tx.GetContext(ctx, &n, tx.Rebind(`SELECT COUNT(*) FROM events WHERE id = ?`), evt.ID.Hex()); err != nil {
			return err
		}
		if n > 0 {
			return errAlreadyStored
		}

		if evt.Kind == nostr.KindDeletion {
			deleted, err := s.processDeletion(ctx, tx, evt)
			if err != nil {
				return err
			}
			if withStats && len(deleted) > 0 {
				if err := s.Stats.Reverse(ctx, tx, deleted); err != nil {
					return &statsError{err}
				}
			}
			for _, d := range deleted {
				res.removed = append(res.removed, d.ID)
			}
		}

		var previous []string
		if replaceable {
			var rows []struct {
				ID        string `db:"id"`
				CreatedAt int64  `db:"created_at"`
			}
			query := `SELECT id, created_at FROM events WHERE kind = ? AND pubkey = ? AND deleted_at IS NULL`
			args := []any{int64(evt.Kind), evt.PubKey.Hex()}
			if evt.Kind.IsAddressable() {
				query += ` AND d = ?`
				args = append(args, addr.Identifier)
			}
			if err := tx.SelectContext(ctx, &rows, tx.Rebind(query), args...); err != nil {
				return fmt.Errorf("failed to look for previous versions: %w", err)
			}
			for _, row := range rows {
				if row.CreatedAt >= int64(evt.CreatedAt) {
					return errAlreadyStored
				}
				previous = append(previous, row.ID)
			}
		}

		if withStats {
			if err := s.Stats.Update(ctx, tx, evt, 1); err != nil {
				return &statsError{err}
			}
		}

		if len(previous) > 0 {
			if err := s.deleteRows(ctx, tx, previous); err != nil {
				return fmt.Errorf("failed to replace previous versions: %w", err)
			}
			for _, id := range previous {
				res.removed = append(res.removed, nostr.MustIDFromHex(id))
			}
		}

		if err := s.insert(ctx, tx, evt); err != nil {
			return err
		}

		res.inserted = true
		return nil
	})

	if errors.Is(err, errAlreadyStored) {
		return writeResult{}, nil
	}
	return res, err
}

func (s *SQLStore) insert(ctx context.Context, tx *sqlx.Tx, evt nostr.Event) error {
	indexed := s.Indexer.Index(evt)
	text, ext := s.Indexer.Document(evt)

	tagsJSON, err := evt.Tags.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}
	indexTags := make(nostr.Tags, len(indexed))
	for i, t := range indexed {
		indexTags[i] = nostr.Tag{t.Name, t.Value}
	}
	indexJSON, err := indexTags.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode tag index: %w", err)
	}

	var d sql.NullString
	if evt.Kind.IsAddressable() {
		d = sql.NullString{String: evt.Tags.GetD(), Valid: true}
	}

	result, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO events
		(id, kind, pubkey, content, created_at, tags, tags_index, sig, d, search, search_ext)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`),
		evt.ID.Hex(), int64(evt.Kind), evt.PubKey.Hex(), evt.Content, int64(evt.CreatedAt),
		string(tagsJSON), string(indexJSON), fmt.Sprintf("%x", evt.Sig[:]), d,
		eventstore.FoldText(text), encodeExtensions(ext))
	if err != nil {
		if sqldb.IsUniqueViolation(err) {
			return errAlreadyStored
		}
		return fmt.Errorf("failed to insert event: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return errAlreadyStored
	}

	for _, t := range indexed {
		if _, err := tx.ExecContext(ctx, tx.Rebind(
			`INSERT INTO event_tags (event_id, name, value) VALUES (?, ?, ?) ON CONFLICT DO NOTHING`),
			evt.ID.Hex(), t.Name, t.Value); err != nil {
			return fmt.Errorf("failed to insert tag %s: %w", t.Name, err)
		}
	}
	for key, value := range ext {
		if _, err := tx.ExecContext(ctx, tx.Rebind(
			`INSERT INTO event_exts (event_id, key, value) VALUES (?, ?, ?) ON CONFLICT DO NOTHING`),
			evt.ID.Hex(), key, value); err != nil {
			return fmt.Errorf("failed to insert extension %s: %w", key, err)
		}
	}

	return nil
}

// deleteRows physically removes events together with their index rows.
func (s *SQLStore) deleteRows(ctx context.Context, tx *sqlx.Tx, ids []string) error {
	for _, table := range []struct{ name, column string }{
		{"event_tags", "event_id"},
		{"event_exts", "event_id"},
		{"events", "id"},
	} {
		query, args, err := s.DB.In(`DELETE FROM `+table.name+` WHERE `+table.column+` IN (?)`, ids)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to delete from %s: %w", table.name, err)
		}
	}
	return nil
}

func encodeExtensions(ext map[string]string) string {
	keys := make([]string, 0, len(ext))
	for k := range ext {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	w := jwriter.Writer{NoEscapeHTML: true}
	w.RawByte('{')
	for i, k := range keys {
		if i > 0 {
			w.RawByte(',')
		}
		w.String(k)
		w.RawByte(':')
		w.String(ext[k])
	}
	w.RawByte('}')
	return string(w.Buffer.BuildBytes())
}
