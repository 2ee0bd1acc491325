package stats

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	nostr "github.com/soapbox-pub/ditto-sub000"
)

// Nip05 is the verified identity of an author. The zero value clears it.
type Nip05 struct {
	Identifier string
	Domain     string
	Hostname   string
}

// SetNip05 records the outcome of an identity check.
func (a *Aggregator) SetNip05(ctx context.Context, pubkey nostr.PubKey, id Nip05, verifiedAt nostr.Timestamp) error {
	nullable := func(s string) sql.NullString { return sql.NullString{String: s, Valid: s != ""} }

	return a.DB.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(
			`INSERT INTO author_stats (pubkey) VALUES (?) ON CONFLICT DO NOTHING`), pubkey.Hex()); err != nil {
			return fmt.Errorf("failed to create author stats: %w", err)
		}
		_, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE author_stats SET
			nip05 = ?, nip05_domain = ?, nip05_hostname = ?, nip05_last_verified_at = ?
			WHERE pubkey = ?`),
			nullable(id.Identifier), nullable(id.Domain), nullable(strings.ToLower(id.Hostname)),
			int64(verifiedAt), pubkey.Hex())
		if err != nil {
			return fmt.Errorf("failed to store nip05: %w", err)
		}
		return nil
	})
}

// PubkeysByDomain lists the authors verified under a hostname.
func (a *Aggregator) PubkeysByDomain(ctx context.Context, domain string) ([]nostr.PubKey, error) {
	var hexes []string
	if err := a.DB.SelectContext(ctx, &hexes, a.DB.Rebind(
		`SELECT pubkey FROM author_stats WHERE nip05_hostname = ? ORDER BY pubkey`), strings.ToLower(domain)); err != nil {
		return nil, fmt.Errorf("failed to list authors of %s: %w", domain, err)
	}

	pubkeys := make([]nostr.PubKey, 0, len(hexes))
	for _, h := range hexes {
		pk, err := nostr.PubKeyFromHexCheap(h)
		if err != nil {
			a.Logger.Warn().Str("pubkey", h).Msg("skipping malformed pubkey in author stats")
			continue
		}
		pubkeys = append(pubkeys, pk)
	}
	return pubkeys, nil
}
