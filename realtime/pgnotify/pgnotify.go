// Package pgnotify listens for event ids on the PostgreSQL channel fed by the events table
// trigger.
package pgnotify

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	nostr "github.com/soapbox-pub/ditto-sub000"
	"github.com/soapbox-pub/ditto-sub000/eventstore/sqldb"
	"github.com/soapbox-pub/ditto-sub000/realtime"
)

var _ realtime.Notifier = (*Notifier)(nil)

type Notifier struct {
	URL     string
	Channel string
	Logger  *zerolog.Logger

	// RetryDelay is how long to wait before reconnecting after the connection drops.
	RetryDelay time.Duration
}

func New(url string) *Notifier {
	nop := zerolog.Nop()
	return &Notifier{URL: url, Channel: sqldb.NotifyChannel, Logger: &nop, RetryDelay: 5 * time.Second}
}

// Publish does nothing: inserts are announced by the events table trigger.
func (n *Notifier) Publish(ctx context.Context, id nostr.ID) error { return nil }

func (n *Notifier) Listen(ctx context.Context) (<-chan nostr.ID, error) {
	conn, err := n.connect(ctx)
	if err != nil {
		return nil, err
	}

	ch := make(chan nostr.ID, realtime.DefaultBuffer)
	go func() {
		defer close(ch)
		for {
			n.receive(ctx, conn, ch)
			conn.Close(context.Background())
			if ctx.Err() != nil {
				return
			}

			for {
				select {
				case <-ctx.Done():
					return
				case <-time.After(n.RetryDelay):
				}
				if conn, err = n.connect(ctx); err == nil {
					break
				}
				n.Logger.Warn().Err(err).Msg("failed to reconnect to postgres")
			}
		}
	}()

	return ch, nil
}

func (n *Notifier) connect(ctx context.Context) (*pgx.Conn, error) {
	conn, err := pgx.Connect(ctx, n.URL)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{n.Channel}.Sanitize()); err != nil {
		conn.Close(ctx)
		return nil, err
	}
	return conn, nil
}

func (n *Notifier) receive(ctx context.Context, conn *pgx.Conn, ch chan<- nostr.ID) {
	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() == nil {
				n.Logger.Warn().Err(err).Msg("lost postgres notification connection")
			}
			return
		}

		id, err := nostr.IDFromHex(notification.Payload)
		if err != nil {
			n.Logger.Debug().Str("payload", notification.Payload).Msg("ignoring bad notification")
			continue
		}

		select {
		case ch <- id:
		case <-ctx.Done():
			return
		}
	}
}
