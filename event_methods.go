package nostr

import (
	"strconv"

	"github.com/mailru/easyjson"
	"github.com/templexxx/xhex"
)

func (evt Event) String() string {
	j, _ := easyjson.Marshal(evt)
	return string(j)
}

// Serialize renders [0,pubkey,created_at,kind,tags,content], the array whose sha256 is the id.
func (evt Event) Serialize() []byte {
	dst := make([]byte, 4+64, 100+len(evt.Content)+len(evt.Tags)*80)

	copy(dst, `[0,"`)
	xhex.Encode(dst[4:], evt.PubKey[:])
	dst = append(dst, `",`...)
	dst = strconv.AppendInt(dst, int64(evt.CreatedAt), 10)
	dst = append(dst, ',')
	dst = strconv.AppendInt(dst, int64(evt.Kind), 10)
	dst = append(dst, ",["...)

	for i, tag := range evt.Tags {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = append(dst, '[')
		for j, item := range tag {
			if j > 0 {
				dst = append(dst, ',')
			}
			dst = escapeString(dst, item)
		}
		dst = append(dst, ']')
	}

	dst = append(dst, "],"...)
	dst = escapeString(dst, evt.Content)
	return append(dst, ']')
}
