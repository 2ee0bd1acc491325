package nostr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseMessage(t *testing.T) {
	sk := MustSecretKeyFromHex("0000000000000000000000000000000000000000000000000000000000000001")
	evt := Event{Kind: 1, CreatedAt: 1700000000, Tags: Tags{{"t", "nostr"}}, Content: "hello \"world\""}
	require.NoError(t, evt.Sign(sk))

	t.Run("event", func(t *testing.T) {
		b, err := EventEnvelope{Event: evt}.MarshalJSON()
		require.NoError(t, err)

		env, err := ParseMessage(string(b))
		require.NoError(t, err)
		parsed := env.(*EventEnvelope)
		require.Nil(t, parsed.SubscriptionID)
		require.Equal(t, evt, parsed.Event)
		require.True(t, parsed.CheckID())
		require.True(t, parsed.VerifySignature())
	})

	t.Run("req", func(t *testing.T) {
		env, err := ParseMessage(`["REQ","sub",{"kinds":[1],"#t":["nostr"],"limit":0},{"search":"gm"}]`)
		require.NoError(t, err)
		req := env.(*ReqEnvelope)
		require.Equal(t, "sub", req.SubscriptionID)
		require.Len(t, req.Filters, 2)
		require.True(t, req.Filters[0].LimitZero)
		require.Equal(t, TagMap{"t": {"nostr"}}, req.Filters[0].Tags)
		require.True(t, req.Filters[0].Matches(evt))
		require.Equal(t, "gm", req.Filters[1].Search)
	})

	t.Run("count", func(t *testing.T) {
		env, err := ParseMessage(`["COUNT","c",{"count":12}]`)
		require.NoError(t, err)
		require.Equal(t, int64(12), *env.(*CountEnvelope).Count)

		env, err = ParseMessage(`["COUNT","c",{"authors":["` + sk.Public().Hex() + `"]}]`)
		require.NoError(t, err)
		count := env.(*CountEnvelope)
		require.Nil(t, count.Count)
		require.Equal(t, []PubKey{sk.Public()}, count.Filters[0].Authors)
	})

	t.Run("close and closed", func(t *testing.T) {
		env, err := ParseMessage(`["CLOSE","sub"]`)
		require.NoError(t, err)
		require.Equal(t, "sub", string(*env.(*CloseEnvelope)))

		b, err := ClosedEnvelope{SubscriptionID: "sub", Reason: "blocked: no"}.MarshalJSON()
		require.NoError(t, err)
		require.Equal(t, `["CLOSED","sub","blocked: no"]`, string(b))
	})

	t.Run("garbage", func(t *testing.T) {
		for _, msg := range []string{``, `[]`, `["NOPE","x"]`, `["EVENT",{"id":]`} {
			_, err := ParseMessage(msg)
			require.Error(t, err, msg)
		}
	})
}

func TestOKFromError(t *testing.T) {
	id := MustIDFromHex("abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789")

	require.Equal(t, OKEnvelope{EventID: id, OK: true}, OKFromError(id, nil))
	require.Equal(t, OKEnvelope{EventID: id, OK: true, Reason: "duplicate: already have this event"},
		OKFromError(id, Duplicate("already have this event")))
	require.Equal(t, OKEnvelope{EventID: id, OK: false, Reason: "invalid: event too old"},
		OKFromError(id, Invalid("event too old")))

	b, err := OKFromError(id, Blocked("author is banned")).MarshalJSON()
	require.NoError(t, err)
	require.Equal(t, `["OK","`+id.Hex()+`",false,"blocked: author is banned"]`, string(b))
}

func TestEnvelopeString(t *testing.T) {
	id := MustIDFromHex("abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789")
	subid := "sub"
	count := int64(3)

	for _, tc := range []struct {
		env      interface{ String() string }
		expected string
	}{
		{NoticeEnvelope("slow down"), `["NOTICE","slow down"]`},
		{EOSEEnvelope("sub"), `["EOSE","sub"]`},
		{CloseEnvelope("sub"), `["CLOSE","sub"]`},
		{ClosedEnvelope{SubscriptionID: "sub", Reason: "error: gone"}, `["CLOSED","sub","error: gone"]`},
		{CountEnvelope{SubscriptionID: "sub", Count: &count}, `["COUNT","sub",{"count":3}]`},
		{ReqEnvelope{SubscriptionID: "sub", Filters: []Filter{{Kinds: []Kind{1}}}}, `["REQ","sub",{"kinds":[1]}]`},
		{OKFromError(id, nil), `["OK","` + id.Hex() + `",true,""]`},
	} {
		require.Equal(t, tc.expected, tc.env.String())
	}

	evt := Event{Kind: 1, CreatedAt: 1, Tags: Tags{}}
	require.Contains(t, EventEnvelope{SubscriptionID: &subid, Event: evt}.String(), `["EVENT","sub",{`)
}
