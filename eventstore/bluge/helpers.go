package bluge

import (
	nostr "github.com/soapbox-pub/ditto-sub000"
	"github.com/templexxx/xhex"
)

// document field names
const (
	idField        = "i"
	contentField   = "c"
	kindField      = "k"
	createdAtField = "a"
	pubkeyField    = "p"
	extFieldPrefix = "x."
)

// documentID makes an event id usable as the bluge document identifier.
type documentID nostr.ID

func (id documentID) Field() string { return idField }

func (id documentID) Term() []byte {
	term := make([]byte, 64)
	xhex.Encode(term, id[:])
	return term
}
