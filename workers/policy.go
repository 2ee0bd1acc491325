package workers

import (
	"context"
	"fmt"

	nostr "github.com/soapbox-pub/ditto-sub000"
)

// Verdict is the answer of a policy, shaped like an OK message.
type Verdict struct {
	ID     nostr.ID
	OK     bool
	Reason string

	// Shadow rejections look accepted to the sender but are not stored.
	Shadow bool
}

// Policy decides whether an event is accepted. An error means the policy itself failed.
type Policy interface {
	Check(ctx context.Context, evt nostr.Event) (Verdict, error)
}

// FuncPolicy runs a reject function in-process.
type FuncPolicy func(ctx context.Context, evt nostr.Event) (reject bool, msg string)

func (fn FuncPolicy) Check(ctx context.Context, evt nostr.Event) (v Verdict, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("policy panicked: %v", r)
		}
	}()

	reject, msg := fn(ctx, evt)
	return Verdict{ID: evt.ID, OK: !reject, Reason: msg}, nil
}

// AcceptAll is the policy used when none is configured.
var AcceptAll = FuncPolicy(func(context.Context, nostr.Event) (bool, string) { return false, "" })
