package nip57

import (
	"strconv"

	"github.com/mailru/easyjson"
	nostr "github.com/soapbox-pub/ditto-sub000"
)

// Zap is what a zap receipt (kind 9735) says about the payment it acknowledges.
type Zap struct {
	ReceiptID nostr.ID
	Target    nostr.ID
	Recipient nostr.PubKey
	Sender    nostr.PubKey
	Amount    uint64
	Comment   string
}

// GetAmountFromZap takes a zap receipt event (kind 9735) and returns the amount in millisats.
// It first checks the event's "amount" tag, and if not present, checks the embedded zap request's "amount" tag.
func GetAmountFromZap(event nostr.Event) uint64 {
	if tag := event.Tags.Find("amount"); tag != nil {
		if amt, err := strconv.ParseUint(tag[1], 10, 64); err == nil {
			return amt
		}
	}

	if request, ok := GetZapRequest(event); ok {
		if tag := request.Tags.Find("amount"); tag != nil {
			if amt, err := strconv.ParseUint(tag[1], 10, 64); err == nil {
				return amt
			}
		}
	}

	return 0
}

// GetZapRequest decodes the zap request embedded in a receipt's "description" tag.
func GetZapRequest(event nostr.Event) (nostr.Event, bool) {
	var request nostr.Event
	descTag := event.Tags.Find("description")
	if descTag == nil {
		return request, false
	}
	if err := easyjson.Unmarshal([]byte(descTag[1]), &request); err != nil {
		return request, false
	}
	return request, request.Kind == nostr.KindZapRequest
}

// ParseZap reads a zap receipt. It fails when the receipt does not point at an event or carries
// no amount.
func ParseZap(event nostr.Event) (Zap, bool) {
	if event.Kind != nostr.KindZap {
		return Zap{}, false
	}

	zap := Zap{ReceiptID: event.ID, Amount: GetAmountFromZap(event)}
	if zap.Amount == 0 {
		return zap, false
	}

	eTag := event.Tags.Find("e")
	if eTag == nil {
		return zap, false
	}
	target, err := nostr.IDFromHex(eTag[1])
	if err != nil {
		return zap, false
	}
	zap.Target = target

	if pTag := event.Tags.Find("p"); pTag != nil {
		zap.Recipient, _ = nostr.PubKeyFromHexCheap(pTag[1])
	}

	if request, ok := GetZapRequest(event); ok {
		zap.Sender = request.PubKey
		zap.Comment = request.Content
	} else if pTag := event.Tags.Find("P"); pTag != nil {
		zap.Sender, _ = nostr.PubKeyFromHexCheap(pTag[1])
	}

	return zap, true
}
