// Package bluge keeps a full-text index of search documents next to the relational store.
// It only answers which ids match; events themselves are always loaded from the store.
package bluge

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/blugelabs/bluge"
	"github.com/blugelabs/bluge/search"
	"github.com/rs/zerolog"
	nostr "github.com/soapbox-pub/ditto-sub000"
	"github.com/soapbox-pub/ditto-sub000/eventstore"
)

type SearchIndex struct {
	sync.Mutex

	// Path is where the index lives. An empty path keeps the index in memory.
	Path   string
	Logger *zerolog.Logger

	writer *bluge.Writer
}

func (b *SearchIndex) Init() error {
	if b.Logger == nil {
		nop := zerolog.Nop()
		b.Logger = &nop
	}

	config := bluge.InMemoryOnlyConfig()
	if b.Path != "" {
		config = bluge.DefaultConfig(b.Path)
	}

	writer, err := bluge.OpenWriter(config)
	if err != nil {
		return fmt.Errorf("error opening writer: %w", err)
	}
	b.writer = writer

	return nil
}

func (b *SearchIndex) Close() {
	if b.writer != nil {
		if err := b.writer.Close(); err != nil {
			b.Logger.Warn().Err(err).Msg("failed to close search index")
		}
	}
}

// Index stores the search document of an event. Events without text are skipped.
func (b *SearchIndex) Index(evt nostr.Event, text string, ext map[string]string) error {
	if text == "" {
		return nil
	}

	id := documentID(evt.ID)
	doc := &bluge.Document{
		bluge.NewKeywordFieldBytes(id.Field(), id.Term()).Sortable().StoreValue(),
	}

	doc.AddField(bluge.NewTextField(contentField, text))
	doc.AddField(bluge.NewKeywordField(kindField, strconv.FormatInt(int64(evt.Kind), 10)))
	doc.AddField(bluge.NewKeywordField(pubkeyField, evt.PubKey.Hex()))
	doc.AddField(bluge.NewNumericField(createdAtField, float64(evt.CreatedAt)))
	for key, value := range ext {
		doc.AddField(bluge.NewKeywordField(extFieldPrefix+key, value))
	}

	if err := b.writer.Update(doc.ID(), doc); err != nil {
		return fmt.Errorf("failed to write '%s' document: %w", evt.ID, err)
	}

	return nil
}

func (b *SearchIndex) Delete(ids ...nostr.ID) error {
	for _, id := range ids {
		if err := b.writer.Delete(documentID(id)); err != nil {
			return fmt.Errorf("failed to delete '%s' document: %w", id, err)
		}
	}
	return nil
}

// Search returns the ids of at most limit documents matching the free-text and extension
// parts of the filter, plus its kinds, authors and time bounds.
func (b *SearchIndex) Search(ctx context.Context, exp eventstore.Expanded, limit int) ([]nostr.ID, error) {
	if len(exp.Terms) == 0 || limit <= 0 {
		return nil, nil
	}

	reader, err := b.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("failed to open reader: %w", err)
	}
	defer reader.Close()

	q := bluge.NewBooleanQuery()
	for _, term := range exp.Terms {
		termQ := bluge.NewMatchQuery(term)
		termQ.SetField(contentField)
		q.AddMust(termQ)
	}

	if len(exp.Kinds) > 0 {
		eitherKind := bluge.NewBooleanQuery()
		eitherKind.SetMinShould(1)
		for _, kind := range exp.Kinds {
			kindQ := bluge.NewTermQuery(strconv.FormatInt(int64(kind), 10))
			kindQ.SetField(kindField)
			eitherKind.AddShould(kindQ)
		}
		q.AddMust(eitherKind)
	}

	if len(exp.Authors) > 0 {
		eitherPubkey := bluge.NewBooleanQuery()
		eitherPubkey.SetMinShould(1)
		for _, pubkey := range exp.Authors {
			pubkeyQ := bluge.NewTermQuery(pubkey.Hex())
			pubkeyQ.SetField(pubkeyField)
			eitherPubkey.AddShould(pubkeyQ)
		}
		q.AddMust(eitherPubkey)
	}

	for key, values := range exp.Extensions {
		either := bluge.NewBooleanQuery()
		either.SetMinShould(1)
		for _, value := range values {
			extQ := bluge.NewTermQuery(value)
			extQ.SetField(extFieldPrefix + key)
			either.AddShould(extQ)
		}
		q.AddMust(either)
	}

	if exp.Since != 0 || exp.Until != 0 {
		min := 0.0
		if exp.Since != 0 {
			min = float64(exp.Since)
		}
		max := float64(nostr.MaxKind)
		if exp.Until != 0 {
			max = float64(exp.Until)
		}
		dateRangeQ := bluge.NewNumericRangeInclusiveQuery(min, max, true, true)
		dateRangeQ.SetField(createdAtField)
		q.AddMust(dateRangeQ)
	}

	dmi, err := reader.Search(ctx, bluge.NewTopNSearch(limit, q))
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	ids := make([]nostr.ID, 0, limit)
	var next *search.DocumentMatch
	for next, err = dmi.Next(); next != nil; next, err = dmi.Next() {
		next.VisitStoredFields(func(field string, value []byte) bool {
			if field != idField {
				return true
			}
			if id, err := nostr.IDFromHex(string(value)); err == nil {
				ids = append(ids, id)
			}
			return false
		})
	}
	if err != nil {
		return ids, fmt.Errorf("failed to iterate results: %w", err)
	}

	return ids, nil
}
