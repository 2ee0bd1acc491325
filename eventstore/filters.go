package eventstore

import (
	"context"
	"fmt"
	"slices"
	"strings"

	nostr "github.com/soapbox-pub/ditto-sub000"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// MaxLimit is the largest number of events a single filter may return.
const MaxLimit = 500

// ExtensionKeys are the search qualifiers that become equality constraints on the search
// document's extension attributes.
var ExtensionKeys = []string{"language", "reply", "media", "video", "client", "protocol"}

// Expanded is a filter after search qualifiers have been resolved.
type Expanded struct {
	nostr.Filter

	// Terms are the free-text words left in the search string, folded with FoldText.
	Terms []string

	// Extensions maps an extension key to the values it may take.
	Extensions map[string][]string
}

// CheckFilters rejects filters carrying numbers that can never be satisfied by a valid event.
func CheckFilters(filters []nostr.Filter) error {
	for _, filter := range filters {
		if filter.Since >= nostr.Timestamp(nostr.MaxKind) {
			return nostr.Invalid("since filter too far into the future")
		}
		if filter.Until >= nostr.Timestamp(nostr.MaxKind) {
			return nostr.Invalid("until filter too far into the future")
		}
		for _, kind := range filter.Kinds {
			if kind >= nostr.MaxKind {
				return nostr.Invalid("kind filter too far into the future")
			}
		}
	}
	return nil
}

// ParseSearch splits a search string into free-text words and key:value qualifiers.
func ParseSearch(search string) (terms []string, qualifiers map[string][]string) {
	qualifiers = make(map[string][]string)
	for _, token := range strings.Fields(search) {
		if key, value, ok := strings.Cut(token, ":"); ok && value != "" && isQualifier(key) {
			qualifiers[key] = append(qualifiers[key], value)
			continue
		}
		terms = append(terms, FoldText(token))
	}
	return terms, qualifiers
}

// FoldText is the form search documents and terms are compared in: compatibility
// normalized, then case folded.
func FoldText(s string) string {
	return cases.Fold().String(norm.NFKC.String(s))
}

func isQualifier(key string) bool {
	return key == "domain" || slices.Contains(ExtensionKeys, key)
}

// ExpandFilters validates the filters and resolves their search qualifiers. Filters that can
// never match a stored event are left out of the result, so an empty result means there is
// nothing to query.
func ExpandFilters(ctx context.Context, filters []nostr.Filter, domains DomainResolver) ([]Expanded, error) {
	if err := CheckFilters(filters); err != nil {
		return nil, err
	}

	expanded := make([]Expanded, 0, len(filters))
	for _, filter := range filters {
		if filter.LimitZero {
			continue
		}

		if filter.Kinds != nil {
			kinds := slices.DeleteFunc(slices.Clone(filter.Kinds), func(k nostr.Kind) bool {
				return k.IsEphemeral() || k < 0
			})
			if len(kinds) == 0 {
				continue
			}
			filter.Kinds = kinds
		}

		exp := Expanded{Filter: filter}
		if filter.Search != "" {
			terms, qualifiers := ParseSearch(filter.Search)
			exp.Terms = terms
			exp.Search = strings.Join(terms, " ")

			if hosts, ok := qualifiers["domain"]; ok {
				if domains == nil {
					continue
				}
				allowed := make([]nostr.PubKey, 0, 20)
				for _, host := range hosts {
					pks, err := domains.PubkeysByDomain(ctx, strings.ToLower(host))
					if err != nil {
						return nil, fmt.Errorf("failed to resolve domain '%s': %w", host, err)
					}
					allowed = nostr.AppendUnique(allowed, pks...)
				}
				if filter.Authors != nil {
					allowed = slices.DeleteFunc(allowed, func(pk nostr.PubKey) bool {
						return !slices.Contains(filter.Authors, pk)
					})
				}
				if len(allowed) == 0 {
					continue
				}
				exp.Authors = allowed
				delete(qualifiers, "domain")
			}

			if len(qualifiers) > 0 {
				exp.Extensions = qualifiers
			}
		}

		expanded = append(expanded, exp)
	}

	return expanded, nil
}

// EffectiveLimit is the number of events a filter may return under the given options.
func EffectiveLimit(filter nostr.Filter, opts QueryOptions) int {
	maxLimit := MaxLimit
	if opts.Limit > 0 && opts.Limit < maxLimit {
		maxLimit = opts.Limit
	}
	limit := filter.Limit
	if limit <= 0 || limit > maxLimit {
		limit = maxLimit
	}
	return min(limit, filter.GetTheoreticalLimit())
}

// MatchesSearch tells if a search document satisfies the free-text and extension parts of
// an expanded filter.
func (exp Expanded) MatchesSearch(text string, extensions map[string]string) bool {
	if len(exp.Terms) > 0 {
		text = FoldText(text)
		for _, term := range exp.Terms {
			if !strings.Contains(text, term) {
				return false
			}
		}
	}
	for key, values := range exp.Extensions {
		if !slices.Contains(values, extensions[key]) {
			return false
		}
	}
	return true
}

// MergeResults flattens per-filter results, dropping duplicates, newest first.
func MergeResults(results ...[]nostr.Event) []nostr.Event {
	total := 0
	for _, r := range results {
		total += len(r)
	}
	merged := make([]nostr.Event, 0, total)
	seen := make(map[nostr.ID]struct{}, total)
	for _, r := range results {
		for _, evt := range r {
			if _, ok := seen[evt.ID]; ok {
				continue
			}
			seen[evt.ID] = struct{}{}
			merged = append(merged, evt)
		}
	}
	slices.SortFunc(merged, nostr.CompareEventReverse)
	return merged
}
