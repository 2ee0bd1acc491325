// Package realtime delivers freshly written events to open subscriptions, including events
// written by other processes that announce them over a wake-up channel.
package realtime

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"
	nostr "github.com/soapbox-pub/ditto-sub000"
	"github.com/soapbox-pub/ditto-sub000/eventstore"
)

const (
	DefaultMaxAge = 60 * time.Second
	DefaultBuffer = 256
)

var ErrSlowConsumer = errors.New("subscription closed: slow consumer")

var _ eventstore.Fulfiller = (*Registry)(nil)

type Subscription struct {
	ID      string
	Filters []nostr.Filter

	mu     sync.Mutex
	ch     chan nostr.Event
	closed bool
	err    error
	size   int64
}

// Events is closed when the subscription ends.
func (s *Subscription) Events() <-chan nostr.Event { return s.ch }

// Err reports why the subscription was closed by the registry, if it was.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription) close(err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	s.err = err
	close(s.ch)
	return true
}

// push never blocks. It reports false when the buffer was full.
func (s *Subscription) push(evt nostr.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- evt:
		return true
	default:
		return false
	}
}

func (s *Subscription) matches(evt nostr.Event) bool {
	for _, filter := range s.Filters {
		// search is only honored by the store
		if filter.Search != "" {
			continue
		}
		if filter.Matches(evt) {
			return true
		}
	}
	return false
}

type Registry struct {
	// MaxAge is how old an event may be and still be delivered.
	MaxAge time.Duration

	// Buffer is the capacity of each subscription's channel.
	Buffer int

	Now    func() time.Time
	Logger *zerolog.Logger

	subs   *xsync.MapOf[string, *Subscription]
	serial atomic.Uint64
	bytes  atomic.Int64
}

func NewRegistry() *Registry {
	nop := zerolog.Nop()
	return &Registry{
		MaxAge: DefaultMaxAge,
		Buffer: DefaultBuffer,
		Now:    time.Now,
		Logger: &nop,
		subs:   xsync.NewMapOf[string, *Subscription](),
	}
}

func (r *Registry) Subscribe(filters []nostr.Filter) *Subscription {
	sub := &Subscription{
		ID:      strconv.FormatUint(r.serial.Add(1), 10),
		Filters: filters,
		ch:      make(chan nostr.Event, r.Buffer),
	}
	for _, filter := range filters {
		sub.size += int64(len(filter.String()))
	}

	r.subs.Store(sub.ID, sub)
	r.bytes.Add(sub.size)
	return sub
}

func (r *Registry) Unsubscribe(id string) {
	r.remove(id, nil)
}

func (r *Registry) remove(id string, reason error) {
	sub, ok := r.subs.LoadAndDelete(id)
	if !ok {
		return
	}
	r.bytes.Add(-sub.size)
	sub.close(reason)
}

// Fulfill hands the event to every subscription with a matching filter. Stale events are
// dropped, except ephemeral ones which fail since live delivery was their only purpose.
func (r *Registry) Fulfill(ctx context.Context, evt nostr.Event) error {
	if age := r.Now().Sub(evt.CreatedAt.Time()); age > r.MaxAge {
		if evt.Kind.IsEphemeral() {
			return nostr.Invalid("event too old")
		}
		return nil
	}

	r.subs.Range(func(id string, sub *Subscription) bool {
		if ctx.Err() != nil {
			return false
		}
		if !sub.matches(evt) {
			return true
		}
		if !sub.push(evt) {
			r.Logger.Debug().Str("sub", id).Msg("dropping slow subscription")
			r.remove(id, ErrSlowConsumer)
		}
		return true
	})

	return ctx.Err()
}

func (r *Registry) Len() int { return r.subs.Size() }

// ApproxBytes is the serialized size of all held filters.
func (r *Registry) ApproxBytes() int64 { return r.bytes.Load() }
