// Package redisnotify announces written event ids over Redis pub/sub.
package redisnotify

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	nostr "github.com/soapbox-pub/ditto-sub000"
	"github.com/soapbox-pub/ditto-sub000/eventstore/sqldb"
	"github.com/soapbox-pub/ditto-sub000/realtime"
)

var _ realtime.Notifier = (*Notifier)(nil)

type Notifier struct {
	Client  *redis.Client
	Channel string
	Logger  *zerolog.Logger
}

func New(url string) (*Notifier, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	nop := zerolog.Nop()
	return &Notifier{Client: redis.NewClient(opts), Channel: sqldb.NotifyChannel, Logger: &nop}, nil
}

func (n *Notifier) Publish(ctx context.Context, id nostr.ID) error {
	return n.Client.Publish(ctx, n.Channel, id.Hex()).Err()
}

func (n *Notifier) Listen(ctx context.Context) (<-chan nostr.ID, error) {
	pubsub := n.Client.Subscribe(ctx, n.Channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", n.Channel, err)
	}

	ch := make(chan nostr.ID, realtime.DefaultBuffer)
	go func() {
		defer close(ch)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				id, err := nostr.IDFromHex(msg.Payload)
				if err != nil {
					n.Logger.Debug().Str("payload", msg.Payload).Msg("ignoring bad notification")
					continue
				}
				select {
				case ch <- id:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}

func (n *Notifier) Close() error { return n.Client.Close() }
