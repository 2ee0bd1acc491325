package keyer

import (
	"context"
	"fmt"

	nostr "github.com/soapbox-pub/ditto-sub000"
)

var _ Signer = (*ReadOnlySigner)(nil)

// ReadOnlySigner knows the admin pubkey but cannot sign. Derived records are skipped with it.
type ReadOnlySigner struct {
	pk nostr.PubKey
}

func NewReadOnlySigner(pk nostr.PubKey) ReadOnlySigner {
	return ReadOnlySigner{pk}
}

var ErrReadOnly = fmt.Errorf("read-only, we don't have the secret key, cannot sign")

func (ros ReadOnlySigner) SignEvent(context.Context, *nostr.Event) error {
	return ErrReadOnly
}

func (ros ReadOnlySigner) GetPublicKey(context.Context) (nostr.PubKey, error) {
	return ros.pk, nil
}
