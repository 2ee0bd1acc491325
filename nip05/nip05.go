package nip05

import (
	"fmt"
	"regexp"
	"strings"

	nostr "github.com/soapbox-pub/ditto-sub000"
	"github.com/tidwall/gjson"
)

var NIP05_REGEX = regexp.MustCompile(`^(?:([\w.+-]+)@)?([\w_-]+(\.[\w_-]+)+)$`)

type WellKnownResponse struct {
	Names  map[string]nostr.PubKey
	Relays map[nostr.PubKey][]string
}

func IsValidIdentifier(input string) bool {
	return NIP05_REGEX.MatchString(input)
}

func ParseIdentifier(fullname string) (name string, domain string, err error) {
	res := NIP05_REGEX.FindStringSubmatch(fullname)
	if len(res) == 0 {
		return "", "", fmt.Errorf("invalid identifier")
	}
	if res[1] == "" {
		res[1] = "_"
	}
	return res[1], res[2], nil
}

// ParseResponse reads a nostr.json document. Entries with malformed keys are dropped.
func ParseResponse(body []byte) (WellKnownResponse, error) {
	if !gjson.ValidBytes(body) {
		return WellKnownResponse{}, fmt.Errorf("invalid json")
	}

	var resp WellKnownResponse
	doc := gjson.ParseBytes(body)

	doc.Get("names").ForEach(func(name, value gjson.Result) bool {
		pk, err := nostr.PubKeyFromHex(value.String())
		if err != nil {
			return true
		}
		if resp.Names == nil {
			resp.Names = make(map[string]nostr.PubKey)
		}
		resp.Names[name.String()] = pk
		return true
	})

	doc.Get("relays").ForEach(func(key, value gjson.Result) bool {
		pk, err := nostr.PubKeyFromHex(key.String())
		if err != nil || !value.IsArray() {
			return true
		}
		if resp.Relays == nil {
			resp.Relays = make(map[nostr.PubKey][]string)
		}
		for _, url := range value.Array() {
			resp.Relays[pk] = append(resp.Relays[pk], url.String())
		}
		return true
	})

	return resp, nil
}

func NormalizeIdentifier(fullname string) string {
	if strings.HasPrefix(fullname, "_@") {
		return fullname[2:]
	}

	return fullname
}

func IdentifierToURL(address string) string {
	spl := strings.Split(address, "@")
	if len(spl) == 1 {
		return fmt.Sprintf("https://%s/.well-known/nostr.json?name=_", spl[0])
	}
	return fmt.Sprintf("https://%s/.well-known/nostr.json?name=%s", spl[1], spl[0])
}
