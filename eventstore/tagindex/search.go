package tagindex

import (
	"strings"

	nostr "github.com/soapbox-pub/ditto-sub000"
	"github.com/tidwall/gjson"
)

// SearchText builds the free-text document of an event.
func SearchText(evt nostr.Event) string {
	switch {
	case evt.Kind == nostr.KindProfileMetadata:
		profile := gjson.GetMany(evt.Content, "name", "display_name", "nip05")
		parts := make([]string, 0, 3)
		for _, p := range profile {
			if s := strings.TrimSpace(p.String()); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")

	case isPostKind(evt.Kind):
		return strings.TrimSpace(nostrEntityRe.ReplaceAllString(evt.Content, ""))

	case evt.Kind == nostr.KindLabel || evt.Kind == nostr.KindBadgeDefinition:
		parts := make([]string, 0, len(evt.Tags))
		for _, tag := range evt.Tags {
			if len(tag) >= 2 && tag[0] != "alt" && tag[1] != "" {
				parts = append(parts, tag[1])
			}
		}
		return strings.Join(parts, " ")
	}

	return ""
}
