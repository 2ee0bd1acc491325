package policies

import (
	"context"

	nostr "github.com/soapbox-pub/ditto-sub000"
)

func NoSearchQueries(ctx context.Context, filter nostr.Filter) (reject bool, msg string) {
	if filter.Search != "" {
		return true, "search is not supported"
	}
	return false, ""
}

// NoComplexFilters rejects filters that would fan out into too many index lookups.
func NoComplexFilters(ctx context.Context, filter nostr.Filter) (reject bool, msg string) {
	items := len(filter.Tags) + len(filter.Kinds)
	if items > 4 && len(filter.Tags) > 2 {
		return true, "too many things to filter for"
	}
	return false, ""
}
