package nostr

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// VerifySignature checks the schnorr signature against the hash of the serialized event. The
// ID field is not consulted; use CheckID for that.
func (evt Event) VerifySignature() bool {
	pubkey, err := schnorr.ParsePubKey(evt.PubKey[:])
	if err != nil {
		return false
	}
	sig, err := schnorr.ParseSignature(evt.Sig[:])
	if err != nil {
		return false
	}

	hash := sha256.Sum256(evt.Serialize())
	return sig.Verify(hash[:], pubkey)
}

// Sign fills PubKey, ID and Sig. Nil tags become an empty list so the id matches what
// clients compute from the JSON form.
func (evt *Event) Sign(secretKey SecretKey) error {
	if evt.Tags == nil {
		evt.Tags = Tags{}
	}

	sk, pk := btcec.PrivKeyFromBytes(secretKey[:])
	evt.PubKey = PubKey(schnorr.SerializePubKey(pk))

	evt.ID = evt.GetID()
	sig, err := schnorr.Sign(sk, evt.ID[:], schnorr.FastSign())
	if err != nil {
		return err
	}
	evt.Sig = [64]byte(sig.Serialize())

	return nil
}
