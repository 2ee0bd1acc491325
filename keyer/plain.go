package keyer

import (
	"context"

	nostr "github.com/soapbox-pub/ditto-sub000"
)

var _ Signer = (*KeySigner)(nil)

// KeySigner is a signer that holds the private key in memory
type KeySigner struct {
	sk nostr.SecretKey
	pk nostr.PubKey
}

func NewPlainKeySigner(sec nostr.SecretKey) KeySigner {
	return KeySigner{sec, nostr.GetPublicKey(sec)}
}

// SignEvent sets the event's ID, PubKey and Sig fields.
func (ks KeySigner) SignEvent(ctx context.Context, evt *nostr.Event) error { return evt.Sign(ks.sk) }

func (ks KeySigner) GetPublicKey(ctx context.Context) (nostr.PubKey, error) { return ks.pk, nil }
