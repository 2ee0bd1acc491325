// Package workers runs signature verification and policy evaluation away from the request
// path, each call bounded by its own timeout.
package workers

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	nostr "github.com/soapbox-pub/ditto-sub000"
)

var (
	ErrClosed  = errors.New("worker pool closed")
	ErrTimeout = errors.New("worker timed out")
)

type verifyJob struct {
	evt   nostr.Event
	reply chan bool
}

// VerifyPool checks ids and signatures on a fixed set of goroutines.
type VerifyPool struct {
	Timeout time.Duration

	jobs      chan verifyJob
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewVerifyPool starts n workers. n <= 0 means one per CPU.
func NewVerifyPool(n int) *VerifyPool {
	if n <= 0 {
		n = runtime.NumCPU()
	}

	p := &VerifyPool{
		Timeout: 5 * time.Second,
		jobs:    make(chan verifyJob, n*4),
		done:    make(chan struct{}),
	}
	p.wg.Add(n)
	for range n {
		go p.run()
	}
	return p
}

func (p *VerifyPool) run() {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			return
		case job := <-p.jobs:
			job.reply <- verify(job.evt)
		}
	}
}

func verify(evt nostr.Event) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	return evt.CheckID() && evt.VerifySignature()
}

// Verify reports whether the event's id matches its contents and the signature is valid.
func (p *VerifyPool) Verify(ctx context.Context, evt nostr.Event) (bool, error) {
	select {
	case <-p.done:
		return false, ErrClosed
	default:
	}
	if ctx.Err() != nil {
		return false, contextError(ctx)
	}

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	reply := make(chan bool, 1)
	select {
	case p.jobs <- verifyJob{evt, reply}:
	case <-p.done:
		return false, ErrClosed
	case <-ctx.Done():
		return false, contextError(ctx)
	}

	select {
	case ok := <-reply:
		return ok, nil
	case <-ctx.Done():
		return false, contextError(ctx)
	}
}

func (p *VerifyPool) Close() {
	p.closeOnce.Do(func() { close(p.done) })
	p.wg.Wait()
}

func contextError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return fmt.Errorf("worker call abandoned: %w", ctx.Err())
}
