package eventstore

import (
	"context"
	"testing"

	nostr "github.com/soapbox-pub/ditto-sub000"
	"github.com/stretchr/testify/require"
)

type domains map[string][]nostr.PubKey

func (d domains) PubkeysByDomain(_ context.Context, domain string) ([]nostr.PubKey, error) {
	return d[domain], nil
}

func TestParseSearch(t *testing.T) {
	terms, qualifiers := ParseSearch("Ｈｅｌｌｏ Straße language:en domain:Example.com nostr:npub")
	require.Equal(t, []string{"hello", "strasse", "nostr:npub"}, terms)
	require.Equal(t, map[string][]string{"language": {"en"}, "domain": {"Example.com"}}, qualifiers)
}

func TestExpandFilters(t *testing.T) {
	ctx := context.Background()
	alice := nostr.MustSecretKeyFromHex("0000000000000000000000000000000000000000000000000000000000000001").Public()
	bob := nostr.MustSecretKeyFromHex("0000000000000000000000000000000000000000000000000000000000000002").Public()
	resolver := domains{"example.com": {alice, bob}}

	expanded, err := ExpandFilters(ctx, []nostr.Filter{
		{Kinds: []nostr.Kind{20001}},
		{LimitZero: true},
		{Search: "GM domain:EXAMPLE.com reply:false", Authors: []nostr.PubKey{bob}},
		{Search: "gm domain:nowhere.net"},
	}, resolver)
	require.NoError(t, err)
	require.Len(t, expanded, 1)

	exp := expanded[0]
	require.Equal(t, []string{"gm"}, exp.Terms)
	require.Equal(t, "gm", exp.Search)
	require.Equal(t, []nostr.PubKey{bob}, exp.Authors)
	require.Equal(t, map[string][]string{"reply": {"false"}}, exp.Extensions)

	require.True(t, exp.MatchesSearch("ＧＭ friends", map[string]string{"reply": "false"}))
	require.False(t, exp.MatchesSearch("gm friends", map[string]string{"reply": "true"}))
	require.False(t, exp.MatchesSearch("good night", map[string]string{"reply": "false"}))

	_, err = ExpandFilters(ctx, []nostr.Filter{{Until: nostr.Timestamp(nostr.MaxKind)}}, nil)
	require.True(t, nostr.IsRelayErrorKind(err, nostr.ErrInvalid))
}
