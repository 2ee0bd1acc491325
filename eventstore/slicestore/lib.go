// Package slicestore is an in-memory event store kept as a single sorted slice. It follows the
// same write contract as the relational store and is meant for tests and tiny deployments.
package slicestore

import (
	"bytes"
	"context"
	"slices"
	"sync"

	nostr "github.com/soapbox-pub/ditto-sub000"
	"github.com/soapbox-pub/ditto-sub000/cache/lru"
	"github.com/soapbox-pub/ditto-sub000/eventstore"
	"github.com/soapbox-pub/ditto-sub000/eventstore/tagindex"
)

var _ eventstore.Store = (*SliceStore)(nil)

type entry struct {
	evt     nostr.Event
	tags    []tagindex.Tag
	text    string
	ext     map[string]string
	deleted bool
}

type SliceStore struct {
	sync.Mutex
	internal []*entry

	MaxLimit  int
	Admin     nostr.PubKey
	Indexer   tagindex.Indexer
	Fulfiller eventstore.Fulfiller
	Notifier  eventstore.Notifier
	Domains   eventstore.DomainResolver

	// Seen gets the id of every event fulfilled by this store.
	Seen *lru.LRU[nostr.ID, struct{}]
}

func (b *SliceStore) Init(context.Context) error {
	b.internal = make([]*entry, 0, 5000)
	if b.MaxLimit == 0 {
		b.MaxLimit = eventstore.MaxLimit
	}
	if b.Indexer.Rules == nil {
		b.Indexer = tagindex.Default()
	}
	return nil
}

func (b *SliceStore) Close() {}

func (b *SliceStore) Write(ctx context.Context, evt nostr.Event) error {
	if evt.Kind.IsEphemeral() {
		if b.Fulfiller == nil {
			return nil
		}
		return b.Fulfiller.Fulfill(ctx, evt)
	}

	inserted, err := b.write(evt)
	if err != nil || !inserted {
		return err
	}

	if b.Fulfiller != nil {
		if b.Seen != nil {
			b.Seen.Set(evt.ID, struct{}{})
		}
		b.Fulfiller.Fulfill(ctx, evt)
	}
	if b.Notifier != nil {
		b.Notifier.Publish(ctx, evt.ID)
	}
	return nil
}

func (b *SliceStore) write(evt nostr.Event) (bool, error) {
	b.Lock()
	defer b.Unlock()

	if b.deletedByAdmin(evt) {
		return false, eventstore.ErrDeletedByAdmin
	}
	if _, found := b.find(evt.ID); found {
		return false, nil
	}

	if evt.Kind == nostr.KindDeletion {
		b.processDeletion(evt)
	}

	if addr, ok := evt.Address(); ok {
		var previous []nostr.ID
		for _, e := range b.internal {
			if e.deleted || !addr.MatchesEvent(e.evt) {
				continue
			}
			if e.evt.CreatedAt >= evt.CreatedAt {
				return false, nil
			}
			previous = append(previous, e.evt.ID)
		}
		for _, id := range previous {
			b.delete(id)
		}
	}

	text, ext := b.Indexer.Document(evt)
	e := &entry{evt: evt, tags: b.Indexer.Index(evt), text: text, ext: ext}
	idx, _ := slices.BinarySearchFunc(b.internal, e, entryComparator)
	b.internal = slices.Insert(b.internal, idx, e)
	return true, nil
}

func (b *SliceStore) deletedByAdmin(evt nostr.Event) bool {
	if b.Admin == nostr.ZeroPK {
		return false
	}
	addr, replaceable := evt.Address()
	for _, e := range b.internal {
		if e.deleted || e.evt.Kind != nostr.KindDeletion || e.evt.PubKey != b.Admin {
			continue
		}
		for _, t := range e.tags {
			if t.Name == "e" && t.Value == evt.ID.Hex() {
				return true
			}
			if replaceable && t.Name == "a" && t.Value == addr.String() && e.evt.CreatedAt >= evt.CreatedAt {
				return true
			}
		}
	}
	return false
}

func (b *SliceStore) processDeletion(deletion nostr.Event) {
	isAdmin := b.Admin != nostr.ZeroPK && deletion.PubKey == b.Admin

	var addrs []nostr.Address
	for tag := range deletion.Tags.FindAll("a") {
		if addr, err := nostr.ParseAddress(tag[1]); err == nil {
			addrs = append(addrs, addr)
		}
	}

	for _, e := range b.internal {
		if e.deleted || e.evt.Kind == nostr.KindDeletion {
			continue
		}
		if !isAdmin && e.evt.PubKey != deletion.PubKey {
			continue
		}
		if deletion.Tags.FindWithValue("e", e.evt.ID.Hex()) != nil {
			e.deleted = true
			continue
		}
		for _, addr := range addrs {
			if addr.MatchesEvent(e.evt) && e.evt.CreatedAt <= deletion.CreatedAt {
				e.deleted = true
				break
			}
		}
	}
}

func (b *SliceStore) Query(ctx context.Context, filters []nostr.Filter, opts eventstore.QueryOptions) ([]nostr.Event, error) {
	events, err := b.Stream(ctx, filters, opts).Collect()
	if err != nil {
		return nil, err
	}
	return eventstore.MergeResults(events), nil
}

func (b *SliceStore) Stream(ctx context.Context, filters []nostr.Filter, opts eventstore.QueryOptions) *eventstore.Stream {
	expanded, err := eventstore.ExpandFilters(ctx, filters, b.Domains)
	if err != nil {
		return eventstore.ErrStream(err)
	}
	if b.MaxLimit > 0 && (opts.Limit == 0 || opts.Limit > b.MaxLimit) {
		opts.Limit = b.MaxLimit
	}

	results := make([][]nostr.Event, 0, len(expanded))
	b.Lock()
	for _, exp := range expanded {
		limit := eventstore.EffectiveLimit(exp.Filter, opts)
		events := make([]nostr.Event, 0, min(limit, 100))
		for _, e := range b.scan(exp) {
			if len(events) == limit {
				break
			}
			events = append(events, e.evt)
		}
		results = append(results, events)
	}
	b.Unlock()

	merged := eventstore.MergeResults(results...)
	return eventstore.NewStream(ctx, opts.Timeout, func(ctx context.Context, emit func([]nostr.Event) bool) error {
		eventstore.ChunkEvents(merged, opts.ChunkSize, emit)
		return nil
	})
}

func (b *SliceStore) Count(ctx context.Context, filters []nostr.Filter, opts eventstore.QueryOptions) (int64, error) {
	expanded, err := eventstore.ExpandFilters(ctx, filters, b.Domains)
	if err != nil {
		return 0, err
	}

	b.Lock()
	defer b.Unlock()

	var val int64
	for _, exp := range expanded {
		val += int64(len(b.scan(exp)))
	}
	return val, nil
}

func (b *SliceStore) Remove(ctx context.Context, filters []nostr.Filter) error {
	expanded, err := eventstore.ExpandFilters(ctx, filters, b.Domains)
	if err != nil {
		return err
	}

	b.Lock()
	defer b.Unlock()

	for _, exp := range expanded {
		for _, e := range b.scan(exp) {
			b.delete(e.evt.ID)
		}
	}
	return nil
}

// scan returns the live entries matching a filter, newest first. Callers hold the lock.
func (b *SliceStore) scan(exp eventstore.Expanded) []*entry {
	// efficiently determine where to start and end
	start := 0
	end := len(b.internal)
	if exp.Until != 0 {
		start, _ = slices.BinarySearchFunc(b.internal, exp.Until, entryTimestampComparator)
	}
	if exp.Since != 0 {
		end, _ = slices.BinarySearchFunc(b.internal, exp.Since-1, entryTimestampComparator)
	}
	if end < start {
		return nil
	}

	var matched []*entry
	for _, e := range b.internal[start:end] {
		if !e.deleted && matches(exp, e) {
			matched = append(matched, e)
		}
	}
	return matched
}

func matches(exp eventstore.Expanded, e *entry) bool {
	filter := exp.Filter
	filter.Tags = nil
	if !filter.Matches(e.evt) {
		return false
	}

	// tag constraints only see what the indexer admitted
	for name, values := range exp.Tags {
		if values == nil {
			continue
		}
		found := false
		for _, t := range e.tags {
			if t.Name == name && slices.Contains(values, t.Value) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if exp.Search == "" && len(exp.Extensions) == 0 {
		return true
	}
	return exp.MatchesSearch(e.text, e.ext)
}

func (b *SliceStore) find(id nostr.ID) (int, bool) {
	for i, e := range b.internal {
		if e.evt.ID == id {
			return i, true
		}
	}
	return -1, false
}

func (b *SliceStore) delete(id nostr.ID) {
	if idx, found := b.find(id); found {
		b.internal = slices.Delete(b.internal, idx, idx+1)
	}
}

func entryTimestampComparator(e *entry, t nostr.Timestamp) int {
	return int(t) - int(e.evt.CreatedAt)
}

func entryComparator(a *entry, b *entry) int {
	if a.evt.CreatedAt != b.evt.CreatedAt {
		return int(b.evt.CreatedAt) - int(a.evt.CreatedAt)
	}
	return bytes.Compare(a.evt.ID[:], b.evt.ID[:])
}
