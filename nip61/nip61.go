package nip61

import (
	"encoding/json"

	"github.com/elnosh/gonuts/cashu"
	nostr "github.com/soapbox-pub/ditto-sub000"
)

// GetAmountFromNutzap sums the amounts of every cashu proof carried by a nutzap (kind 9321).
// Proofs that cannot be decoded are skipped.
func GetAmountFromNutzap(evt nostr.Event) uint64 {
	var total uint64
	for _, tag := range evt.Tags {
		if len(tag) >= 2 && tag[0] == "proof" {
			var proof cashu.Proof
			if err := json.Unmarshal([]byte(tag[1]), &proof); err != nil {
				continue
			}
			total += proof.Amount
		}
	}
	return total
}

// GetTarget returns the event a nutzap was sent for.
func GetTarget(evt nostr.Event) (nostr.ID, bool) {
	tag := evt.Tags.Find("e")
	if tag == nil {
		return nostr.ZeroID, false
	}
	id, err := nostr.IDFromHex(tag[1])
	return id, err == nil
}
