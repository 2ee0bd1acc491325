package nostr

import (
	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"
)

func easyjsonDecodeTags(in *jlexer.Lexer, out *Tags) {
	in.Delim('[')
	if *out == nil {
		if !in.IsDelim(']') {
			*out = make(Tags, 0, 7)
		} else {
			*out = Tags{}
		}
	} else {
		*out = (*out)[:0]
	}
	for !in.IsDelim(']') {
		var v Tag
		in.Delim('[')
		if !in.IsDelim(']') {
			v = make(Tag, 0, 5)
		} else {
			v = Tag{}
		}
		for !in.IsDelim(']') {
			v = append(v, in.String())
			in.WantComma()
		}
		in.Delim(']')
		*out = append(*out, v)
		in.WantComma()
	}
	in.Delim(']')
}

func easyjsonEncodeTags(out *jwriter.Writer, tags Tags) {
	out.RawByte('[')
	for i, tag := range tags {
		if i > 0 {
			out.RawByte(',')
		}
		out.RawByte('[')
		for j, item := range tag {
			if j > 0 {
				out.RawByte(',')
			}
			out.String(item)
		}
		out.RawByte(']')
	}
	out.RawByte(']')
}

// MarshalJSON supports json.Marshaler interface
func (v Tags) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{NoEscapeHTML: true}
	easyjsonEncodeTags(&w, v)
	return w.Buffer.BuildBytes(), w.Error
}

// UnmarshalJSON supports json.Unmarshaler interface
func (v *Tags) UnmarshalJSON(data []byte) error {
	r := jlexer.Lexer{Data: data}
	easyjsonDecodeTags(&r, v)
	r.Consumed()
	return r.Error()
}
