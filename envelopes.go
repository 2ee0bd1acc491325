package nostr

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mailru/easyjson"
	"github.com/mailru/easyjson/jwriter"
	"github.com/tidwall/gjson"
)

var (
	UnknownLabel        = errors.New("unknown envelope label")
	InvalidJsonEnvelope = errors.New("invalid json envelope")
)

// ParseMessage reads a client or relay message. The label is sniffed before the whole
// message is parsed.
func ParseMessage(message string) (Envelope, error) {
	firstQuote := strings.IndexByte(message, '"')
	if firstQuote == -1 {
		return nil, InvalidJsonEnvelope
	}
	secondQuote := strings.IndexByte(message[firstQuote+1:], '"')
	if secondQuote == -1 {
		return nil, InvalidJsonEnvelope
	}
	label := message[firstQuote+1 : firstQuote+1+secondQuote]

	var v Envelope
	switch label {
	case "EVENT":
		v = &EventEnvelope{}
	case "REQ":
		v = &ReqEnvelope{}
	case "COUNT":
		v = &CountEnvelope{}
	case "NOTICE":
		x := NoticeEnvelope("")
		v = &x
	case "EOSE":
		x := EOSEEnvelope("")
		v = &x
	case "OK":
		v = &OKEnvelope{}
	case "CLOSED":
		v = &ClosedEnvelope{}
	case "CLOSE":
		x := CloseEnvelope("")
		v = &x
	default:
		return nil, UnknownLabel
	}

	if !gjson.Valid(message) {
		return nil, InvalidJsonEnvelope
	}
	if err := v.FromJSON(message); err != nil {
		return nil, err
	}

	return v, nil
}

// Envelope is the interface for all nostr message envelopes.
type Envelope interface {
	Label() string
	FromJSON(string) error
	MarshalJSON() ([]byte, error)
	String() string
}

var (
	_ Envelope = (*EventEnvelope)(nil)
	_ Envelope = (*ReqEnvelope)(nil)
	_ Envelope = (*CountEnvelope)(nil)
	_ Envelope = (*NoticeEnvelope)(nil)
	_ Envelope = (*EOSEEnvelope)(nil)
	_ Envelope = (*CloseEnvelope)(nil)
	_ Envelope = (*ClosedEnvelope)(nil)
	_ Envelope = (*OKEnvelope)(nil)
)

func envelopeString(v json.Marshaler) string {
	j, _ := v.MarshalJSON()
	return string(j)
}

// EventEnvelope represents an EVENT message.
type EventEnvelope struct {
	SubscriptionID *string
	Event
}

func (EventEnvelope) Label() string     { return "EVENT" }
func (v EventEnvelope) String() string { return envelopeString(v) }

func (v *EventEnvelope) FromJSON(data string) error {
	arr := gjson.Parse(data).Array()
	switch len(arr) {
	case 2:
		return easyjson.Unmarshal([]byte(arr[1].Raw), &v.Event)
	case 3:
		subid := arr[1].String()
		v.SubscriptionID = &subid
		return easyjson.Unmarshal([]byte(arr[2].Raw), &v.Event)
	default:
		return fmt.Errorf("failed to decode EVENT envelope")
	}
}

func (v EventEnvelope) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{NoEscapeHTML: true}
	w.RawString(`["EVENT",`)
	if v.SubscriptionID != nil {
		w.String(*v.SubscriptionID)
		w.RawByte(',')
	}
	v.Event.MarshalEasyJSON(&w)
	w.RawByte(']')
	return w.BuildBytes()
}

// ReqEnvelope represents a REQ message.
type ReqEnvelope struct {
	SubscriptionID string
	Filters        []Filter
}

func (ReqEnvelope) Label() string     { return "REQ" }
func (v ReqEnvelope) String() string { return envelopeString(v) }

func (v *ReqEnvelope) FromJSON(data string) error {
	arr := gjson.Parse(data).Array()
	if len(arr) < 3 {
		return fmt.Errorf("failed to decode REQ envelope: missing filters")
	}
	v.SubscriptionID = arr[1].String()

	v.Filters = make([]Filter, len(arr)-2)
	for i, filterj := range arr[2:] {
		if err := easyjson.Unmarshal([]byte(filterj.Raw), &v.Filters[i]); err != nil {
			return fmt.Errorf("on filter: %w", err)
		}
	}

	return nil
}

func (v ReqEnvelope) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{NoEscapeHTML: true}
	w.RawString(`["REQ",`)
	w.String(v.SubscriptionID)
	for _, filter := range v.Filters {
		w.RawByte(',')
		filter.MarshalEasyJSON(&w)
	}
	w.RawByte(']')
	return w.BuildBytes()
}

// CountEnvelope is either a COUNT request (with filters) or a COUNT response (with a count).
type CountEnvelope struct {
	SubscriptionID string
	Filters        []Filter
	Count          *int64
}

func (CountEnvelope) Label() string     { return "COUNT" }
func (v CountEnvelope) String() string { return envelopeString(v) }

func (v *CountEnvelope) FromJSON(data string) error {
	arr := gjson.Parse(data).Array()
	if len(arr) < 3 {
		return fmt.Errorf("failed to decode COUNT envelope: missing filters")
	}
	v.SubscriptionID = arr[1].String()

	if count := arr[2].Get("count"); count.Exists() && len(arr) == 3 {
		n := count.Int()
		v.Count = &n
		return nil
	}

	v.Filters = make([]Filter, len(arr)-2)
	for i, filterj := range arr[2:] {
		if err := easyjson.Unmarshal([]byte(filterj.Raw), &v.Filters[i]); err != nil {
			return fmt.Errorf("on filter: %w", err)
		}
	}
	return nil
}

func (v CountEnvelope) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{NoEscapeHTML: true}
	w.RawString(`["COUNT",`)
	w.String(v.SubscriptionID)
	if v.Count != nil {
		w.RawString(`,{"count":`)
		w.Int64(*v.Count)
		w.RawByte('}')
	} else {
		for _, filter := range v.Filters {
			w.RawByte(',')
			filter.MarshalEasyJSON(&w)
		}
	}
	w.RawByte(']')
	return w.BuildBytes()
}

func marshalLabeledStrings(label string, items ...string) ([]byte, error) {
	w := jwriter.Writer{NoEscapeHTML: true}
	w.RawString(`["`)
	w.RawString(label)
	w.RawByte('"')
	for _, item := range items {
		w.RawByte(',')
		w.String(item)
	}
	w.RawByte(']')
	return w.BuildBytes()
}

func secondString(data, label string) (string, error) {
	arr := gjson.Parse(data).Array()
	if len(arr) < 2 {
		return "", fmt.Errorf("failed to decode %s envelope", label)
	}
	return arr[1].String(), nil
}

// NoticeEnvelope represents a NOTICE message.
type NoticeEnvelope string

func (NoticeEnvelope) Label() string     { return "NOTICE" }
func (v NoticeEnvelope) String() string { return envelopeString(v) }

func (v *NoticeEnvelope) FromJSON(data string) error {
	s, err := secondString(data, "NOTICE")
	*v = NoticeEnvelope(s)
	return err
}

func (v NoticeEnvelope) MarshalJSON() ([]byte, error) {
	return marshalLabeledStrings("NOTICE", string(v))
}

// EOSEEnvelope represents an EOSE (End of Stored Events) message.
type EOSEEnvelope string

func (EOSEEnvelope) Label() string     { return "EOSE" }
func (v EOSEEnvelope) String() string { return envelopeString(v) }

func (v *EOSEEnvelope) FromJSON(data string) error {
	s, err := secondString(data, "EOSE")
	*v = EOSEEnvelope(s)
	return err
}

func (v EOSEEnvelope) MarshalJSON() ([]byte, error) {
	return marshalLabeledStrings("EOSE", string(v))
}

// CloseEnvelope represents a CLOSE message.
type CloseEnvelope string

func (CloseEnvelope) Label() string     { return "CLOSE" }
func (v CloseEnvelope) String() string { return envelopeString(v) }

func (v *CloseEnvelope) FromJSON(data string) error {
	s, err := secondString(data, "CLOSE")
	*v = CloseEnvelope(s)
	return err
}

func (v CloseEnvelope) MarshalJSON() ([]byte, error) {
	return marshalLabeledStrings("CLOSE", string(v))
}

// ClosedEnvelope represents a CLOSED message.
type ClosedEnvelope struct {
	SubscriptionID string
	Reason         string
}

func (ClosedEnvelope) Label() string     { return "CLOSED" }
func (v ClosedEnvelope) String() string { return envelopeString(v) }

func (v *ClosedEnvelope) FromJSON(data string) error {
	arr := gjson.Parse(data).Array()
	if len(arr) < 3 {
		return fmt.Errorf("failed to decode CLOSED envelope")
	}
	*v = ClosedEnvelope{
		SubscriptionID: arr[1].String(),
		Reason:         arr[2].String(),
	}
	return nil
}

func (v ClosedEnvelope) MarshalJSON() ([]byte, error) {
	return marshalLabeledStrings("CLOSED", v.SubscriptionID, v.Reason)
}

// OKEnvelope represents an OK message.
type OKEnvelope struct {
	EventID ID
	OK      bool
	Reason  string
}

func (OKEnvelope) Label() string     { return "OK" }
func (v OKEnvelope) String() string { return envelopeString(v) }

func (v *OKEnvelope) FromJSON(data string) error {
	arr := gjson.Parse(data).Array()
	if len(arr) < 4 {
		return fmt.Errorf("failed to decode OK envelope: missing fields")
	}
	id, err := IDFromHex(arr[1].String())
	if err != nil {
		return err
	}
	v.EventID = id
	v.OK = arr[2].Bool()
	v.Reason = arr[3].String()

	return nil
}

func (v OKEnvelope) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{NoEscapeHTML: true}
	w.RawString(`["OK","`)
	w.RawString(v.EventID.Hex())
	w.RawString(`",`)
	w.Bool(v.OK)
	w.RawByte(',')
	w.String(v.Reason)
	w.RawByte(']')
	return w.BuildBytes()
}

// OKFromError builds the OK answer for an event given the outcome of its ingestion.
// Duplicates count as accepted.
func OKFromError(id ID, err error) OKEnvelope {
	if err == nil {
		return OKEnvelope{EventID: id, OK: true}
	}
	re := AsRelayError(err)
	return OKEnvelope{EventID: id, OK: re.Kind == ErrDuplicate, Reason: re.Error()}
}
