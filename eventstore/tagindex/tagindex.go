// Package tagindex decides which tags of an event get indexed and builds the search document
// stored next to it.
package tagindex

import (
	"net/url"
	"strconv"
	"strings"

	nostr "github.com/soapbox-pub/ditto-sub000"
)

// MaxValueLength caps every indexed tag value regardless of the rule that admitted it.
const MaxValueLength = 200

// Rule decides whether a tag is indexed. count is the number of tags with the same name that
// were already admitted, index is the tag's position in the event's tag list.
type Rule func(evt nostr.Event, count int, index int, value string) bool

// Tag is an indexed (name, value) pair.
type Tag struct {
	Name  string
	Value string
}

// Indexer is the configuration of everything derived from an event at write time. The zero
// value indexes nothing; use Default.
type Indexer struct {
	Rules      map[string]Rule
	Extensions func(nostr.Event) map[string]string
	SearchText func(nostr.Event) string
}

// Default returns the indexer used by the relay.
func Default() Indexer {
	return Indexer{
		Rules:      DefaultRules(),
		Extensions: LanguageExtensions(DetectLanguage),
		SearchText: SearchText,
	}
}

// Index returns the tags worth indexing, in their original order.
func (ix Indexer) Index(evt nostr.Event) []Tag {
	counts := make(map[string]int, 4)
	tags := make([]Tag, 0, len(evt.Tags))
	for index, tag := range evt.Tags {
		if len(tag) < 2 {
			continue
		}
		name, value := tag[0], tag[1]
		if value == "" || len(value) > MaxValueLength {
			continue
		}
		rule, ok := ix.Rules[name]
		if !ok {
			continue
		}
		count := counts[name]
		if rule(evt, count, index, value) {
			tags = append(tags, Tag{name, value})
			counts[name] = count + 1
		}
	}
	return tags
}

// Document builds the search text and extension attributes of an event.
func (ix Indexer) Document(evt nostr.Event) (string, map[string]string) {
	var text string
	if ix.SearchText != nil {
		text = ix.SearchText(evt)
	}
	var ext map[string]string
	if ix.Extensions != nil {
		ext = ix.Extensions(evt)
	}
	return text, ext
}

func DefaultRules() map[string]Rule {
	return map[string]Rule{
		"a": func(evt nostr.Event, count int, _ int, _ string) bool {
			return evt.Kind == nostr.KindDeletion || count < 15
		},
		"d": func(evt nostr.Event, _ int, index int, _ string) bool {
			return index == 0 && evt.Kind.IsAddressable()
		},
		"e": func(evt nostr.Event, count int, index int, value string) bool {
			if evt.Kind == nostr.KindReaction {
				return index == evt.Tags.LastIndex("e") && nostr.IsValid32ByteHex(value)
			}
			uncapped := evt.Kind == nostr.KindDeletion || evt.Kind == nostr.KindMuteList || evt.Kind == nostr.KindBookmarkList
			return (uncapped || count < 15) && nostr.IsValid32ByteHex(value)
		},
		"p": func(evt nostr.Event, count int, index int, value string) bool {
			if evt.Kind == nostr.KindReaction {
				return index == evt.Tags.LastIndex("p") && nostr.IsValid32ByteHex(value)
			}
			uncapped := evt.Kind == nostr.KindFollowList || evt.Kind == nostr.KindMuteList
			return (uncapped || count < 15) && nostr.IsValid32ByteHex(value)
		},
		"k": func(_ nostr.Event, count int, _ int, value string) bool {
			_, err := strconv.ParseInt(value, 10, 64)
			return count < 3 && err == nil
		},
		"L": labelRule,
		"l": labelRule,
		"n": func(_ nostr.Event, count int, _ int, value string) bool {
			return count < 50 && len(value) < 50
		},
		"P": func(_ nostr.Event, count int, _ int, value string) bool {
			return count == 0 && nostr.IsValid32ByteHex(value)
		},
		"proxy": func(_ nostr.Event, count int, _ int, _ string) bool {
			return count == 0
		},
		"q": func(evt nostr.Event, count int, _ int, value string) bool {
			return count == 0 && evt.Kind == nostr.KindTextNote && nostr.IsValid32ByteHex(value)
		},
		"r": func(evt nostr.Event, count int, _ int, _ string) bool {
			if evt.Kind == nostr.KindLabel {
				return count < 20
			}
			return count < 3
		},
		"t": func(evt nostr.Event, count int, _ int, value string) bool {
			limit := 5
			if evt.Kind == nostr.KindLabel {
				limit = 20
			}
			return count < limit && len(value) < 50 && value == strings.ToLower(value)
		},
		"u": func(_ nostr.Event, count int, _ int, value string) bool {
			return count < 15 && isAbsoluteURL(value)
		},
	}
}

func labelRule(evt nostr.Event, count int, _ int, _ string) bool {
	return evt.Kind == nostr.KindLabel || count == 0
}

func isAbsoluteURL(value string) bool {
	u, err := url.Parse(value)
	return err == nil && u.Scheme != "" && u.Host != ""
}
