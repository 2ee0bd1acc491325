package realtime

import (
	"context"
	"sync"

	nostr "github.com/soapbox-pub/ditto-sub000"
	"github.com/soapbox-pub/ditto-sub000/eventstore"
)

// Notifier carries the ids of written events between processes.
type Notifier interface {
	eventstore.Notifier

	// Listen returns a channel of announced ids that is closed when ctx ends.
	Listen(ctx context.Context) (<-chan nostr.ID, error)
}

// LocalNotifier connects writers and listeners living in the same process.
type LocalNotifier struct {
	mu        sync.Mutex
	listeners map[chan nostr.ID]struct{}
}

var _ Notifier = (*LocalNotifier)(nil)

func (n *LocalNotifier) Publish(ctx context.Context, id nostr.ID) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.listeners {
		select {
		case ch <- id:
		default:
		}
	}
	return nil
}

func (n *LocalNotifier) Listen(ctx context.Context) (<-chan nostr.ID, error) {
	ch := make(chan nostr.ID, DefaultBuffer)

	n.mu.Lock()
	if n.listeners == nil {
		n.listeners = make(map[chan nostr.ID]struct{})
	}
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()

	go func() {
		<-ctx.Done()
		n.mu.Lock()
		delete(n.listeners, ch)
		close(ch)
		n.mu.Unlock()
	}()

	return ch, nil
}
