package eventstore

import (
	"context"
	"sync"
	"time"

	nostr "github.com/soapbox-pub/ditto-sub000"
)

const DefaultChunkSize = 20

// Stream is a cancellable cursor over query results. A producer goroutine pushes chunks of
// events on a channel until it runs out of results or the context ends. Consumers range over
// Chunks and check Err once the channel is closed.
type Stream struct {
	chunks chan []nostr.Event
	cancel context.CancelFunc

	mu  sync.Mutex
	err error
}

// Produce is the producer side of a Stream: it must call emit for each chunk and stop as soon
// as emit returns false.
type Produce func(ctx context.Context, emit func([]nostr.Event) bool) error

// NewStream starts the producer in its own goroutine. The producer stops when ctx ends, when
// Close is called, or when it returns.
func NewStream(ctx context.Context, timeout time.Duration, produce Produce) *Stream {
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	s := &Stream{
		chunks: make(chan []nostr.Event),
		cancel: cancel,
	}

	go func() {
		defer close(s.chunks)
		defer cancel()

		err := produce(ctx, func(chunk []nostr.Event) bool {
			if len(chunk) == 0 {
				return ctx.Err() == nil
			}
			select {
			case s.chunks <- chunk:
				return true
			case <-ctx.Done():
				return false
			}
		})

		if cerr := ContextError(ctx); cerr != nil {
			err = cerr
		}
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
	}()

	return s
}

// ErrStream returns a stream that yields nothing and fails with err.
func ErrStream(err error) *Stream {
	s := &Stream{chunks: make(chan []nostr.Event), cancel: func() {}, err: err}
	close(s.chunks)
	return s
}

func (s *Stream) Chunks() <-chan []nostr.Event { return s.chunks }

// Err reports why the stream ended. It is only meaningful after Chunks is closed.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops the producer. Pending chunks are discarded.
func (s *Stream) Close() {
	s.cancel()
	for range s.chunks {
	}
}

// Collect drains the stream into a slice.
func (s *Stream) Collect() ([]nostr.Event, error) {
	var events []nostr.Event
	for chunk := range s.chunks {
		events = append(events, chunk...)
	}
	return events, s.Err()
}

// ChunkEvents splits a result set into chunks of the given size and emits them in order.
func ChunkEvents(events []nostr.Event, size int, emit func([]nostr.Event) bool) {
	if size <= 0 {
		size = DefaultChunkSize
	}
	for len(events) > 0 {
		n := min(size, len(events))
		if !emit(events[:n]) {
			return
		}
		events = events[n:]
	}
}
