package nostr

import (
	"fmt"
	"strconv"
	"strings"
)

// Address points at the latest version of a replaceable or addressable event, written as
// "<kind>:<pubkey>:<d>".
type Address struct {
	Kind       Kind
	PubKey     PubKey
	Identifier string
}

// ParseAddress reads an address reference. The kind must be a non-negative integer and the
// pubkey must look like 64 lowercase hex characters.
func ParseAddress(addr string) (Address, error) {
	spl := strings.SplitN(addr, ":", 3)
	if len(spl) != 3 {
		return Address{}, fmt.Errorf("invalid address '%s'", addr)
	}

	kind, err := strconv.ParseInt(spl[0], 10, 64)
	if err != nil || kind < 0 {
		return Address{}, fmt.Errorf("invalid kind in address '%s'", addr)
	}

	if !IsValid32ByteHex(spl[1]) {
		return Address{}, fmt.Errorf("invalid pubkey in address '%s'", addr)
	}

	return Address{
		Kind:       Kind(kind),
		PubKey:     MustPubKeyFromHex(spl[1]),
		Identifier: spl[2],
	}, nil
}

func (a Address) String() string {
	return strconv.FormatInt(int64(a.Kind), 10) + ":" + a.PubKey.Hex() + ":" + a.Identifier
}

func (a Address) MatchesEvent(evt Event) bool {
	return a.PubKey == evt.PubKey &&
		a.Kind == evt.Kind &&
		evt.Tags.GetD() == a.Identifier
}

func (a Address) AsFilter() Filter {
	return Filter{
		Kinds:   []Kind{a.Kind},
		Authors: []PubKey{a.PubKey},
		Tags:    TagMap{"d": []string{a.Identifier}},
	}
}

// Address returns the event's address and true when the event is replaceable or addressable.
// Replaceable events have an empty identifier.
func (evt Event) Address() (Address, bool) {
	switch {
	case evt.Kind.IsReplaceable():
		return Address{Kind: evt.Kind, PubKey: evt.PubKey}, true
	case evt.Kind.IsAddressable():
		return Address{Kind: evt.Kind, PubKey: evt.PubKey, Identifier: evt.Tags.GetD()}, true
	}
	return Address{}, false
}
