package nostr

import (
	"encoding/hex"
	"fmt"

	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"
	"github.com/templexxx/xhex"
)

func decodeHexInto(in *jlexer.Lexer, field string, dst []byte) {
	b := in.UnsafeBytes()
	if len(b) != len(dst)*2 {
		in.AddError(fmt.Errorf("%s should be %d-char hex, got %d chars", field, len(dst)*2, len(b)))
		return
	}
	if !isLowerHex(string(b)) {
		in.AddError(fmt.Errorf("%s is not lowercase hex", field))
		return
	}
	if _, err := hex.Decode(dst, b); err != nil {
		in.AddError(fmt.Errorf("%s: %w", field, err))
	}
}

func easyjsonDecodeEvent(in *jlexer.Lexer, out *Event) {
	isTopLevel := in.IsStart()
	if in.IsNull() {
		if isTopLevel {
			in.Consumed()
		}
		in.Skip()
		return
	}
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeFieldName(true)
		in.WantColon()
		if in.IsNull() {
			in.Skip()
			in.WantComma()
			continue
		}
		switch key {
		case "id":
			decodeHexInto(in, "id", out.ID[:])
		case "pubkey":
			decodeHexInto(in, "pubkey", out.PubKey[:])
		case "created_at":
			out.CreatedAt = Timestamp(in.Int64())
		case "kind":
			out.Kind = Kind(in.Int64())
		case "tags":
			easyjsonDecodeTags(in, &out.Tags)
		case "content":
			out.Content = in.String()
		case "sig":
			decodeHexInto(in, "sig", out.Sig[:])
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
	if isTopLevel {
		in.Consumed()
	}
}

func easyjsonEncodeEvent(out *jwriter.Writer, in Event) {
	out.RawString("{\"id\":\"")
	out.RawString(in.ID.Hex())

	out.RawString("\",\"pubkey\":\"")
	out.RawString(in.PubKey.Hex())

	out.RawString("\",\"created_at\":")
	out.Int64(int64(in.CreatedAt))

	out.RawString(",\"kind\":")
	out.Int64(int64(in.Kind))

	out.RawString(",\"tags\":")
	easyjsonEncodeTags(out, in.Tags)

	out.RawString(",\"content\":")
	out.String(in.Content)

	out.RawString(",\"sig\":\"")
	out.RawString(xhexString(in.Sig[:]))
	out.RawString("\"}")
}

func xhexString(b []byte) string {
	dst := make([]byte, len(b)*2)
	xhex.Encode(dst, b)
	return string(dst)
}

// MarshalJSON supports json.Marshaler interface
func (v Event) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{NoEscapeHTML: true}
	easyjsonEncodeEvent(&w, v)
	return w.Buffer.BuildBytes(), w.Error
}

// MarshalEasyJSON supports easyjson.Marshaler interface
func (v Event) MarshalEasyJSON(w *jwriter.Writer) {
	w.NoEscapeHTML = true
	easyjsonEncodeEvent(w, v)
}

// UnmarshalJSON supports json.Unmarshaler interface
func (v *Event) UnmarshalJSON(data []byte) error {
	r := jlexer.Lexer{Data: data}
	easyjsonDecodeEvent(&r, v)
	return r.Error()
}

// UnmarshalEasyJSON supports easyjson.Unmarshaler interface
func (v *Event) UnmarshalEasyJSON(l *jlexer.Lexer) {
	easyjsonDecodeEvent(l, v)
}
