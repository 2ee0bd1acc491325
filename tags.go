package nostr

import (
	"iter"
	"slices"
)

// Tag is one tag of an event: a name followed by its values.
type Tag []string

type Tags []Tag

// valued reports whether the tag has a name and at least one value.
func (tag Tag) valued(name string) bool {
	return len(tag) >= 2 && tag[0] == name
}

// GetD returns the first "d" value, the identifier of an addressable event, or "".
func (tags Tags) GetD() string {
	if tag := tags.Find("d"); tag != nil {
		return tag[1]
	}
	return ""
}

// Has tells if any tag is named key, with or without values.
func (tags Tags) Has(key string) bool {
	return slices.ContainsFunc(tags, func(tag Tag) bool { return len(tag) >= 1 && tag[0] == key })
}

// Find returns the first tag named key that has a value.
func (tags Tags) Find(key string) Tag {
	for _, tag := range tags {
		if tag.valued(key) {
			return tag
		}
	}
	return nil
}

// FindAll yields every tag named key that has a value.
func (tags Tags) FindAll(key string) iter.Seq[Tag] {
	return func(yield func(Tag) bool) {
		for _, tag := range tags {
			if tag.valued(key) && !yield(tag) {
				return
			}
		}
	}
}

// FindWithValue returns the first tag named key whose first value is value.
func (tags Tags) FindWithValue(key, value string) Tag {
	for _, tag := range tags {
		if tag.valued(key) && tag[1] == value {
			return tag
		}
	}
	return nil
}

// LastIndex is the position of the last tag named key that has a value, or -1.
func (tags Tags) LastIndex(key string) int {
	for i := len(tags) - 1; i >= 0; i-- {
		if tags[i].valued(key) {
			return i
		}
	}
	return -1
}

// FindLast returns the last tag named key that has a value.
func (tags Tags) FindLast(key string) Tag {
	if i := tags.LastIndex(key); i >= 0 {
		return tags[i]
	}
	return nil
}

// ContainsAny tells if a tag named tagName has one of values as its first value. This is how
// "#x" filter conditions match.
func (tags Tags) ContainsAny(tagName string, values []string) bool {
	for _, tag := range tags {
		if tag.valued(tagName) && slices.Contains(values, tag[1]) {
			return true
		}
	}
	return false
}
