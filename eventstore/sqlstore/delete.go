package sqlstore

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	nostr "github.com/soapbox-pub/ditto-sub000"
)

// processDeletion hides the events a deletion request points at and returns them. The admin may
// delete anything; everybody else only deletes their own events. Deletions are never deleted.
func (s *SQLStore) processDeletion(ctx context.Context, tx *sqlx.Tx, deletion nostr.Event) ([]nostr.Event, error) {
	isAdmin := s.Admin != nostr.ZeroPK && deletion.PubKey == s.Admin

	var ids []string
	for tag := range deletion.Tags.FindAll("e") {
		if nostr.IsValid32ByteHex(tag[1]) {
			ids = append(ids, tag[1])
		}
	}

	var rows []eventRow
	if len(ids) > 0 {
		query := `SELECT ` + eventColumns + ` FROM events
			WHERE id IN (?) AND kind != ? AND deleted_at IS NULL`
		args := []any{ids, int64(nostr.KindDeletion)}
		if !isAdmin {
			query += ` AND pubkey = ?`
			args = append(args, deletion.PubKey.Hex())
		}
		query, args, err := s.DB.In(query, args...)
		if err != nil {
			return nil, err
		}
		if err := tx.SelectContext(ctx, &rows, query, args...); err != nil {
			return nil, fmt.Errorf("failed to load deletion targets: %w", err)
		}
	}

	for tag := range deletion.Tags.FindAll("a") {
		addr, err := nostr.ParseAddress(tag[1])
		if err != nil {
			continue
		}
		if !isAdmin && addr.PubKey != deletion.PubKey {
			continue
		}
		if addr.Kind == nostr.KindDeletion || !(addr.Kind.IsReplaceable() || addr.Kind.IsAddressable()) {
			continue
		}

		query := `SELECT ` + eventColumns + ` FROM events
			WHERE kind = ? AND pubkey = ? AND created_at <= ? AND deleted_at IS NULL`
		args := []any{int64(addr.Kind), addr.PubKey.Hex(), int64(deletion.CreatedAt)}
		if addr.Kind.IsAddressable() {
			query += ` AND d = ?`
			args = append(args, addr.Identifier)
		}

		var found []eventRow
		if err := tx.SelectContext(ctx, &found, tx.Rebind(query), args...); err != nil {
			return nil, fmt.Errorf("failed to load deletion targets of %s: %w", addr, err)
		}
		rows = append(rows, found...)
	}

	if len(rows) == 0 {
		return nil, nil
	}

	seen := make(map[string]struct{}, len(rows))
	hexes := make([]string, 0, len(rows))
	targets := make([]eventRow, 0, len(rows))
	for _, row := range rows {
		if _, ok := seen[row.ID]; ok {
			continue
		}
		seen[row.ID] = struct{}{}
		hexes = append(hexes, row.ID)
		targets = append(targets, row)
	}

	query, args, err := s.DB.In(`UPDATE events SET deleted_at = ? WHERE id IN (?)`, int64(deletion.CreatedAt), hexes)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to delete targets: %w", err)
	}

	s.Logger.Debug().Str("deletion", deletion.ID.Hex()).Int("count", len(targets)).Msg("deleted events")
	return toEvents(targets, s.Logger), nil
}
