package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/jmoiron/sqlx"
	nostr "github.com/soapbox-pub/ditto-sub000"
	"github.com/soapbox-pub/ditto-sub000/eventstore"
)

// errNoResults marks a filter that cannot match anything, so no query is sent.
var errNoResults = errors.New("filter matches nothing")

type queryParams struct {
	columns     string
	limit       int
	withDeleted bool
}

func (s *SQLStore) Query(ctx context.Context, filters []nostr.Filter, opts eventstore.QueryOptions) ([]nostr.Event, error) {
	events, err := s.Stream(ctx, filters, opts).Collect()
	if err != nil {
		return nil, err
	}
	return eventstore.MergeResults(events), nil
}

func (s *SQLStore) Stream(ctx context.Context, filters []nostr.Filter, opts eventstore.QueryOptions) *eventstore.Stream {
	expanded, err := eventstore.ExpandFilters(ctx, filters, s.Domains)
	if err != nil {
		return eventstore.ErrStream(err)
	}

	return eventstore.NewStream(ctx, opts.Timeout, func(ctx context.Context, emit func([]nostr.Event) bool) error {
		seen := make(map[nostr.ID]struct{})
		for _, exp := range expanded {
			limit := eventstore.EffectiveLimit(exp.Filter, opts)
			if limit <= 0 {
				continue
			}

			query, args, err := s.buildQuery(ctx, exp, queryParams{columns: eventColumns, limit: limit})
			if errors.Is(err, errNoResults) {
				continue
			} else if err != nil {
				return err
			}

			// rows are read in full before emitting so the connection is not held while the
			// consumer is busy
			var rows []eventRow
			if err := s.DB.SelectContext(ctx, &rows, query, args...); err != nil {
				return fmt.Errorf("query failed: %w", err)
			}

			events := toEvents(rows, s.Logger)
			events = slices.DeleteFunc(events, func(evt nostr.Event) bool {
				if _, ok := seen[evt.ID]; ok {
					return true
				}
				seen[evt.ID] = struct{}{}
				return false
			})

			stopped := false
			eventstore.ChunkEvents(events, opts.ChunkSize, func(chunk []nostr.Event) bool {
				if !emit(chunk) {
					stopped = true
				}
				return !stopped
			})
			if stopped {
				return nil
			}
		}
		return nil
	})
}

func (s *SQLStore) Count(ctx context.Context, filters []nostr.Filter, opts eventstore.QueryOptions) (int64, error) {
	expanded, err := eventstore.ExpandFilters(ctx, filters, s.Domains)
	if err != nil {
		return 0, err
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var total int64
	for _, exp := range expanded {
		query, args, err := s.buildQuery(ctx, exp, queryParams{columns: "COUNT(*)"})
		if errors.Is(err, errNoResults) {
			continue
		} else if err != nil {
			return 0, err
		}

		var n int64
		if err := s.DB.GetContext(ctx, &n, query, args...); err != nil {
			if cerr := eventstore.ContextError(ctx); cerr != nil {
				return 0, cerr
			}
			return 0, fmt.Errorf("count failed: %w", err)
		}
		total += n
	}
	return total, nil
}

func (s *SQLStore) Remove(ctx context.Context, filters []nostr.Filter) error {
	expanded, err := eventstore.ExpandFilters(ctx, filters, s.Domains)
	if err != nil {
		return err
	}

	var ids []string
	for _, exp := range expanded {
		query, args, err := s.buildQuery(ctx, exp, queryParams{columns: "id", withDeleted: true})
		if errors.Is(err, errNoResults) {
			continue
		} else if err != nil {
			return err
		}

		var found []string
		if err := s.DB.SelectContext(ctx, &found, query, args...); err != nil {
			return fmt.Errorf("failed to select events to remove: %w", err)
		}
		ids = nostr.AppendUnique(ids, found...)
	}
	if len(ids) == 0 {
		return nil
	}

	if err := s.DB.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.deleteRows(ctx, tx, ids)
	}); err != nil {
		return err
	}

	if s.Search != nil {
		removed := make([]nostr.ID, 0, len(ids))
		for _, id := range ids {
			removed = append(removed, nostr.MustIDFromHex(id))
		}
		if err := s.Search.Delete(removed...); err != nil {
			s.Logger.Warn().Err(err).Msg("failed to remove from search index")
		}
	}

	s.Logger.Info().Int("count", len(ids)).Msg("removed events")
	return nil
}

// buildQuery turns one expanded filter into a SELECT over the events table.
func (s *SQLStore) buildQuery(ctx context.Context, exp eventstore.Expanded, params queryParams) (string, []any, error) {
	conds := make([]string, 0, 8)
	args := make([]any, 0, 8)

	if !params.withDeleted {
		conds = append(conds, "deleted_at IS NULL")
	}

	if exp.IDs != nil {
		if len(exp.IDs) == 0 {
			return "", nil, errNoResults
		}
		ids := make([]string, len(exp.IDs))
		for i, id := range exp.IDs {
			ids[i] = id.Hex()
		}
		conds = append(conds, "id IN (?)")
		args = append(args, ids)
	}

	if exp.Kinds != nil {
		if len(exp.Kinds) == 0 {
			return "", nil, errNoResults
		}
		kinds := make([]int64, len(exp.Kinds))
		for i, k := range exp.Kinds {
			kinds[i] = int64(k)
		}
		conds = append(conds, "kind IN (?)")
		args = append(args, kinds)
	}

	if exp.Authors != nil {
		if len(exp.Authors) == 0 {
			return "", nil, errNoResults
		}
		authors := make([]string, len(exp.Authors))
		for i, pk := range exp.Authors {
			authors[i] = pk.Hex()
		}
		conds = append(conds, "pubkey IN (?)")
		args = append(args, authors)
	}

	if exp.Since != 0 {
		conds = append(conds, "created_at >= ?")
		args = append(args, int64(exp.Since))
	}
	if exp.Until != 0 {
		conds = append(conds, "created_at <= ?")
		args = append(args, int64(exp.Until))
	}

	for _, name := range sortedKeys(exp.Tags) {
		values := exp.Tags[name]
		if values == nil {
			continue
		}
		if len(values) == 0 {
			return "", nil, errNoResults
		}
		conds = append(conds, "EXISTS (SELECT 1 FROM event_tags t WHERE t.event_id = events.id AND t.name = ? AND t.value IN (?))")
		args = append(args, name, values)
	}

	for _, key := range sortedKeys(exp.Extensions) {
		conds = append(conds, "EXISTS (SELECT 1 FROM event_exts x WHERE x.event_id = events.id AND x.key = ? AND x.value IN (?))")
		args = append(args, key, exp.Extensions[key])
	}

	if len(exp.Terms) > 0 {
		if s.Search != nil {
			limit := params.limit
			if limit <= 0 {
				limit = eventstore.MaxLimit
			}
			found, err := s.Search.Search(ctx, exp, limit)
			if err != nil {
				return "", nil, err
			}
			if len(found) == 0 {
				return "", nil, errNoResults
			}
			ids := make([]string, len(found))
			for i, id := range found {
				ids[i] = id.Hex()
			}
			conds = append(conds, "id IN (?)")
			args = append(args, ids)
		} else {
			for _, term := range exp.Terms {
				conds = append(conds, `search LIKE ? ESCAPE '\'`)
				args = append(args, "%"+escapeLike(term)+"%")
			}
		}
	}

	if len(conds) == 0 {
		conds = append(conds, "1 = 1")
	}
	query := "SELECT " + params.columns + " FROM events WHERE " + strings.Join(conds, " AND ")
	if params.limit > 0 {
		query += " ORDER BY created_at DESC, id ASC LIMIT ?"
		args = append(args, params.limit)
	}

	return s.DB.In(query, args...)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(term string) string {
	return likeEscaper.Replace(term)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
