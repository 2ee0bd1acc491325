package policies

import (
	"context"

	nostr "github.com/soapbox-pub/ditto-sub000"
)

func SeqEvent(
	funcs ...func(ctx context.Context, evt nostr.Event) (bool, string),
) func(context.Context, nostr.Event) (reject bool, reason string) {
	return func(ctx context.Context, evt nostr.Event) (reject bool, reason string) {
		for _, fn := range funcs {
			reject, reason := fn(ctx, evt)
			if reject {
				return reject, reason
			}
		}
		return false, ""
	}
}

func SeqRequest(
	funcs ...func(ctx context.Context, filter nostr.Filter) (bool, string),
) func(context.Context, nostr.Filter) (reject bool, reason string) {
	return func(ctx context.Context, evt nostr.Filter) (reject bool, reason string) {
		for _, fn := range funcs {
			reject, reason := fn(ctx, evt)
			if reject {
				return reject, reason
			}
		}
		return false, ""
	}
}
