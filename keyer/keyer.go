// Package keyer holds the signers the relay uses to publish events under its own key.
package keyer

import (
	"context"

	nostr "github.com/soapbox-pub/ditto-sub000"
)

// User can tell who it is.
type User interface {
	GetPublicKey(context.Context) (nostr.PubKey, error)
}

// Signer fills ID, PubKey and Sig on an event.
type Signer interface {
	User
	SignEvent(context.Context, *nostr.Event) error
}
