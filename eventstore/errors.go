package eventstore

import (
	"context"
	"errors"

	nostr "github.com/soapbox-pub/ditto-sub000"
)

var (
	ErrDupEvent       = errors.New("duplicate: event already exists")
	ErrDeletedByAdmin = nostr.Blocked("event deleted by admin")

	// ErrTimeout is what clients see when a query exceeds its time budget.
	ErrTimeout = nostr.Failure("relay could not respond fast enough")
)

// ContextError translates the reason a context ended into what clients see. A timeout becomes
// ErrTimeout, a cancellation stays context.Canceled so both can be told apart in logs.
func ContextError(ctx context.Context) error {
	switch err := ctx.Err(); {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	default:
		return err
	}
}
