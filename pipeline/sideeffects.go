package pipeline

import (
	"context"
	"strconv"

	nostr "github.com/soapbox-pub/ditto-sub000"
	"github.com/soapbox-pub/ditto-sub000/linkpreview"
	"github.com/soapbox-pub/ditto-sub000/stats"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
)

// sideEffects starts the bookkeeping of a stored event and returns at once. Failures are only
// logged.
func (p *Pipeline) sideEffects(ctx context.Context, evt nostr.Event) {
	ctx = context.WithoutCancel(ctx)

	var g errgroup.Group
	run := func(name string, fn func(context.Context) error) {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(ctx, p.SideEffectTimeout)
			defer cancel()
			if err := fn(ctx); err != nil {
				p.Logger.Warn().Err(err).Str("task", name).Str("id", evt.ID.Hex()).Msg("side effect failed")
				return err
			}
			return nil
		})
	}

	if evt.Kind == nostr.KindProfileMetadata && p.Stats != nil && p.Identities != nil {
		run("nip05", func(ctx context.Context) error { return p.refreshIdentity(ctx, evt) })
	}
	if evt.Kind == nostr.KindZap && p.Stats != nil {
		run("zap", func(ctx context.Context) error { return p.Stats.RecordZap(ctx, evt) })
	}
	if evt.Kind == nostr.KindReporting || evt.Kind == nostr.KindNameRequest {
		run("set record", func(ctx context.Context) error { return p.createSetRecord(ctx, evt) })
	}
	if evt.Kind == nostr.KindTextNote && p.Previews != nil {
		if link, ok := linkpreview.FirstURL(evt.Content); ok {
			run("link preview", func(ctx context.Context) error { return p.Previews.Prewarm(ctx, link) })
		}
	}
	if p.Push != nil {
		run("push", func(ctx context.Context) error { return p.Push.Dispatch(ctx, evt) })
	}

	p.background.Add(1)
	go func() {
		defer p.background.Done()
		g.Wait()
	}()
}

// refreshIdentity checks the identifier in a profile and records the outcome. Profiles without
// a valid identifier clear what was stored before.
func (p *Pipeline) refreshIdentity(ctx context.Context, evt nostr.Event) error {
	verifiedAt := nostr.Timestamp(p.Now().Unix())

	identifier := gjson.Get(evt.Content, "nip05").String()
	if identifier == "" {
		return p.Stats.SetNip05(ctx, evt.PubKey, stats.Nip05{}, verifiedAt)
	}

	id, err := p.Identities.Verify(ctx, identifier, evt.PubKey)
	if err != nil {
		p.Logger.Debug().Err(err).Str("nip05", identifier).Msg("identity not verified")
		return p.Stats.SetNip05(ctx, evt.PubKey, stats.Nip05{}, verifiedAt)
	}

	return p.Stats.SetNip05(ctx, evt.PubKey, stats.Nip05{
		Identifier: id.Identifier,
		Domain:     id.Domain,
		Hostname:   id.Hostname,
	}, verifiedAt)
}

// createSetRecord files reports and name requests addressed to the admin as an admin-signed
// kind 30383 record, which moderation tools list and update.
func (p *Pipeline) createSetRecord(ctx context.Context, evt nostr.Event) error {
	if p.Signer == nil || p.Admin == nostr.ZeroPK {
		return nil
	}
	if evt.Tags.FindWithValue("p", p.Admin.Hex()) == nil {
		return nil
	}

	status := "open"
	if evt.Kind == nostr.KindNameRequest {
		status = "pending"
	}

	record := nostr.Event{
		Kind:      nostr.KindEventGrants,
		CreatedAt: nostr.Timestamp(p.Now().Unix()),
		Tags: nostr.Tags{
			{"d", evt.ID.Hex()},
			{"p", evt.PubKey.Hex()},
			{"k", strconv.FormatInt(int64(evt.Kind), 10)},
			{"n", status},
		},
	}
	if err := p.Signer.SignEvent(ctx, &record); err != nil {
		return err
	}
	return p.Store.Write(ctx, record)
}
