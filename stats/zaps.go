package stats

import (
	"context"
	"fmt"

	nostr "github.com/soapbox-pub/ditto-sub000"
	"github.com/soapbox-pub/ditto-sub000/nip57"
)

type ZapRow struct {
	ReceiptID       string `db:"receipt_id"`
	TargetEventID   string `db:"target_event_id"`
	SenderPubKey    string `db:"sender_pubkey"`
	AmountMillisats int64  `db:"amount_millisats"`
	Comment         string `db:"comment"`
	CreatedAt       int64  `db:"created_at"`
}

// RecordZap keeps a row per zap receipt so zaps can be listed per event. Receipts without a
// known sender are skipped.
func (a *Aggregator) RecordZap(ctx context.Context, receipt nostr.Event) error {
	zap, ok := nip57.ParseZap(receipt)
	if !ok || zap.Sender == nostr.ZeroPK {
		return nil
	}

	_, err := a.DB.ExecContext(ctx, a.DB.Rebind(`INSERT INTO event_zaps
		(receipt_id, target_event_id, sender_pubkey, amount_millisats, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`),
		zap.ReceiptID.Hex(), zap.Target.Hex(), zap.Sender.Hex(), int64(zap.Amount), zap.Comment, int64(receipt.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to record zap %s: %w", receipt.ID.Hex(), err)
	}
	return nil
}

// Zaps lists the zaps an event received, biggest first.
func (a *Aggregator) Zaps(ctx context.Context, target nostr.ID) ([]ZapRow, error) {
	var rows []ZapRow
	err := a.DB.SelectContext(ctx, &rows, a.DB.Rebind(`SELECT * FROM event_zaps
		WHERE target_event_id = ? ORDER BY amount_millisats DESC, created_at DESC`), target.Hex())
	return rows, err
}
