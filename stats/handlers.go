package stats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/mailru/easyjson/jwriter"
	nostr "github.com/soapbox-pub/ditto-sub000"
	"github.com/soapbox-pub/ditto-sub000/nip57"
	"github.com/soapbox-pub/ditto-sub000/nip61"
	"github.com/tidwall/gjson"
)

func (a *Aggregator) handlePost(ctx context.Context, tx *sqlx.Tx, evt nostr.Event, x int) error {
	window := int64(a.StreakWindow.Seconds())
	if window <= 0 {
		window = int64(DefaultStreakWindow.Seconds())
	}

	err := a.updateAuthor(ctx, tx, evt.PubKey.Hex(), func(row *AuthorStats) {
		row.NotesCount += int64(x)
		if x < 0 {
			return
		}

		now := int64(evt.CreatedAt)
		switch {
		case !row.StreakEnd.Valid || now-row.StreakEnd.Int64 > window:
			row.StreakStart = sql.NullInt64{Int64: now, Valid: true}
			row.StreakEnd = sql.NullInt64{Int64: now, Valid: true}
		case now > row.StreakEnd.Int64:
			row.StreakEnd.Int64 = now
		}
	})
	if err != nil {
		return err
	}

	if parent, ok := ReplyTarget(evt); ok {
		if err := a.updateEvent(ctx, tx, parent, func(row *EventStats) {
			row.RepliesCount += int64(x)
		}); err != nil {
			return err
		}
	}

	if q := evt.Tags.Find("q"); q != nil && nostr.IsValid32ByteHex(q[1]) {
		if err := a.updateEvent(ctx, tx, q[1], func(row *EventStats) {
			row.QuotesCount += int64(x)
		}); err != nil {
			return err
		}
	}

	return nil
}

func (a *Aggregator) handleFollowList(ctx context.Context, tx *sqlx.Tx, evt nostr.Event, x int) error {
	next := followed(evt.Tags)

	var prev map[string]struct{}
	if x > 0 {
		var tags string
		err := tx.GetContext(ctx, &tags, tx.Rebind(`SELECT tags FROM events
			WHERE kind = ? AND pubkey = ? AND deleted_at IS NULL AND id != ?
			ORDER BY created_at DESC LIMIT 1`), nostr.KindFollowList, evt.PubKey.Hex(), evt.ID.Hex())
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("failed to load previous follow list: %w", err)
		default:
			var old nostr.Tags
			if err := old.UnmarshalJSON([]byte(tags)); err != nil {
				return fmt.Errorf("failed to decode previous follow list: %w", err)
			}
			prev = followed(old)
		}
	} else {
		// a deleted list unfollows everybody it followed
		prev, next = next, nil
	}

	if err := a.updateAuthor(ctx, tx, evt.PubKey.Hex(), func(row *AuthorStats) {
		row.FollowingCount = int64(len(next))
	}); err != nil {
		return err
	}

	for _, pk := range sortedKeys(next) {
		if _, ok := prev[pk]; ok {
			continue
		}
		if err := a.updateAuthor(ctx, tx, pk, func(row *AuthorStats) {
			row.FollowersCount++
		}); err != nil {
			return err
		}
	}
	for _, pk := range sortedKeys(prev) {
		if _, ok := next[pk]; ok {
			continue
		}
		if err := a.updateAuthor(ctx, tx, pk, func(row *AuthorStats) {
			row.FollowersCount--
		}); err != nil {
			return err
		}
	}
	return nil
}

func (a *Aggregator) handleRepost(ctx context.Context, tx *sqlx.Tx, evt nostr.Event, x int) error {
	e := evt.Tags.Find("e")
	if e == nil || !nostr.IsValid32ByteHex(e[1]) {
		return nil
	}
	return a.updateEvent(ctx, tx, e[1], func(row *EventStats) {
		row.RepostsCount += int64(x)
	})
}

func (a *Aggregator) handleReaction(ctx context.Context, tx *sqlx.Tx, evt nostr.Event, x int) error {
	e := evt.Tags.FindLast("e")
	if e == nil || !nostr.IsValid32ByteHex(e[1]) {
		return nil
	}
	key := ReactionKey(evt)

	return a.updateEvent(ctx, tx, e[1], func(row *EventStats) {
		reactions := decodeReactions(row.Reactions)
		reactions[key] += int64(x)

		var sum int64
		for k, v := range reactions {
			if v <= 0 {
				delete(reactions, k)
				continue
			}
			sum += v
		}
		row.Reactions = encodeReactions(reactions)
		row.ReactionsCount = sum
	})
}

func (a *Aggregator) handleZap(ctx context.Context, tx *sqlx.Tx, evt nostr.Event, x int) error {
	zap, ok := nip57.ParseZap(evt)
	if !ok {
		return nil
	}
	return a.updateEvent(ctx, tx, zap.Target.Hex(), func(row *EventStats) {
		row.ZapsAmount += int64(x) * int64(zap.Amount)
	})
}

func (a *Aggregator) handleNutzap(ctx context.Context, tx *sqlx.Tx, evt nostr.Event, x int) error {
	target, ok := nip61.GetTarget(evt)
	if !ok {
		return nil
	}
	amount := nip61.GetAmountFromNutzap(evt)
	if amount == 0 {
		return nil
	}
	return a.updateEvent(ctx, tx, target.Hex(), func(row *EventStats) {
		row.ZapsAmountCashu += int64(x) * int64(amount)
	})
}

// ReplyTarget returns the id of the event a post answers to, if any.
func ReplyTarget(evt nostr.Event) (string, bool) {
	switch evt.Kind {
	case nostr.KindComment:
		if e := evt.Tags.Find("e"); e != nil && nostr.IsValid32ByteHex(e[1]) {
			return e[1], true
		}
		return "", false
	case nostr.KindTextNote:
		var root, last nostr.Tag
		for tag := range evt.Tags.FindAll("e") {
			if !nostr.IsValid32ByteHex(tag[1]) {
				continue
			}
			if len(tag) >= 4 {
				switch tag[3] {
				case "reply":
					return tag[1], true
				case "root":
					root = tag
				case "mention":
					continue
				}
			}
			last = tag
		}
		if root != nil {
			return root[1], true
		}
		if last != nil {
			return last[1], true
		}
	}
	return "", false
}

// ReactionKey is the symbol a reaction is counted under: the content itself for plain
// reactions, "shortcode:url" for custom emoji.
func ReactionKey(evt nostr.Event) string {
	content := evt.Content
	if content == "" {
		return "+"
	}
	if len(content) > 2 && strings.HasPrefix(content, ":") && strings.HasSuffix(content, ":") {
		shortcode := content[1 : len(content)-1]
		for tag := range evt.Tags.FindAll("emoji") {
			if len(tag) >= 3 && tag[1] == shortcode {
				return shortcode + ":" + tag[2]
			}
		}
	}
	return content
}

func followed(tags nostr.Tags) map[string]struct{} {
	set := make(map[string]struct{})
	for tag := range tags.FindAll("p") {
		if nostr.IsValid32ByteHex(tag[1]) {
			set[tag[1]] = struct{}{}
		}
	}
	return set
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func decodeReactions(raw string) map[string]int64 {
	reactions := make(map[string]int64)
	gjson.Parse(raw).ForEach(func(key, value gjson.Result) bool {
		reactions[key.String()] = value.Int()
		return true
	})
	return reactions
}

func encodeReactions(reactions map[string]int64) string {
	w := jwriter.Writer{}
	w.RawByte('{')
	for i, k := range sortedKeys(reactions) {
		if i > 0 {
			w.RawByte(',')
		}
		w.String(k)
		w.RawByte(':')
		w.Int64(reactions[k])
	}
	w.RawByte('}')
	return string(w.Buffer.BuildBytes())
}
