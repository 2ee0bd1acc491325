package nostr

import (
	"math"
	"slices"

	"github.com/mailru/easyjson"
)

type Filter struct {
	IDs     []ID
	Kinds   []Kind
	Authors []PubKey
	Tags    TagMap
	Since   Timestamp
	Until   Timestamp
	Limit   int
	Search  string

	// LimitZero is or must be set when there is a "limit":0 in the filter, and not when "limit" is just omitted
	LimitZero bool `json:"-"`
}

type TagMap map[string][]string

func (ef Filter) String() string {
	j, _ := easyjson.Marshal(ef)
	return string(j)
}

// Matches checks every condition of the filter except search and limit, which only make
// sense against a store.
func (ef Filter) Matches(event Event) bool {
	if ef.Since != 0 && event.CreatedAt < ef.Since {
		return false
	}

	if ef.Until != 0 && event.CreatedAt > ef.Until {
		return false
	}

	if ef.IDs != nil && !slices.Contains(ef.IDs, event.ID) {
		return false
	}

	if ef.Kinds != nil && !slices.Contains(ef.Kinds, event.Kind) {
		return false
	}

	if ef.Authors != nil && !slices.Contains(ef.Authors, event.PubKey) {
		return false
	}

	for f, v := range ef.Tags {
		if v != nil && !event.Tags.ContainsAny(f, v) {
			return false
		}
	}

	return true
}

// GetTheoreticalLimit is the most events the filter can ever match, ignoring its Limit: the
// number of ids, or one per author and kind (and "d" value) when every kind is replaceable
// (or addressable). Otherwise it is math.MaxInt.
func (ef Filter) GetTheoreticalLimit() int {
	if ef.IDs != nil {
		return len(ef.IDs)
	}
	if ef.Authors == nil || ef.Kinds == nil {
		return math.MaxInt
	}

	slots := len(ef.Authors) * len(ef.Kinds)
	if !slices.ContainsFunc(ef.Kinds, func(k Kind) bool { return !k.IsReplaceable() }) {
		return slots
	}
	if d := ef.Tags["d"]; len(d) > 0 && !slices.ContainsFunc(ef.Kinds, func(k Kind) bool { return !k.IsAddressable() }) {
		return slots * len(d)
	}
	return math.MaxInt
}
