package keyer

import (
	"context"

	nostr "github.com/soapbox-pub/ditto-sub000"
)

var _ Signer = (*ManualSigner)(nil)

// ManualSigner delegates to user-provided functions, for when the key lives somewhere else.
type ManualSigner struct {
	ManualGetPublicKey func(context.Context) (nostr.PubKey, error)
	ManualSignEvent    func(context.Context, *nostr.Event) error
}

func (ms ManualSigner) SignEvent(ctx context.Context, evt *nostr.Event) error {
	return ms.ManualSignEvent(ctx, evt)
}

func (ms ManualSigner) GetPublicKey(ctx context.Context) (nostr.PubKey, error) {
	return ms.ManualGetPublicKey(ctx)
}
