// Package pipeline decides, for every event a client submits, whether it is stored, and runs
// the bookkeeping that follows an accepted write.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	nostr "github.com/soapbox-pub/ditto-sub000"
	"github.com/soapbox-pub/ditto-sub000/cache/lru"
	"github.com/soapbox-pub/ditto-sub000/eventstore"
	"github.com/soapbox-pub/ditto-sub000/keyer"
	"github.com/soapbox-pub/ditto-sub000/linkpreview"
	"github.com/soapbox-pub/ditto-sub000/nip05"
	"github.com/soapbox-pub/ditto-sub000/stats"
	"github.com/soapbox-pub/ditto-sub000/workers"
)

const (
	DefaultMaxFuture       = time.Minute
	DefaultMaxEphemeralAge = time.Minute
	DefaultSeenSize        = 10_000
)

type SignatureVerifier interface {
	Verify(ctx context.Context, evt nostr.Event) (bool, error)
}

type IdentityVerifier interface {
	Verify(ctx context.Context, identifier string, pubkey nostr.PubKey) (nip05.Identity, error)
}

type LinkPrewarmer interface {
	Prewarm(ctx context.Context, link string) error
}

// PushDispatcher sends notifications about stored events to their recipients.
type PushDispatcher interface {
	Dispatch(ctx context.Context, evt nostr.Event) error
}

var (
	_ SignatureVerifier = (*workers.VerifyPool)(nil)
	_ IdentityVerifier  = (*nip05.Verifier)(nil)
	_ LinkPrewarmer     = (*linkpreview.Fetcher)(nil)
)

type Pipeline struct {
	Store eventstore.Store
	Admin nostr.PubKey

	// Seen holds the ids that went through signature verification. It is shared with the
	// realtime wake-up so events are not delivered twice.
	Seen *lru.LRU[nostr.ID, struct{}]

	Verifier SignatureVerifier
	Policy   workers.Policy

	// optional collaborators for side effects
	Signer     keyer.Signer
	Stats      *stats.Aggregator
	Identities IdentityVerifier
	Previews   LinkPrewarmer
	Push       PushDispatcher

	MaxFuture         time.Duration
	MaxEphemeralAge   time.Duration
	SideEffectTimeout time.Duration

	Now    func() time.Time
	Logger *zerolog.Logger

	background sync.WaitGroup
}

func New(store eventstore.Store, admin nostr.PubKey, verifier SignatureVerifier) *Pipeline {
	nop := zerolog.Nop()
	return &Pipeline{
		Store:             store,
		Admin:             admin,
		Seen:              lru.New[nostr.ID, struct{}](DefaultSeenSize, 0),
		Verifier:          verifier,
		Policy:            workers.AcceptAll,
		MaxFuture:         DefaultMaxFuture,
		MaxEphemeralAge:   DefaultMaxEphemeralAge,
		SideEffectTimeout: 30 * time.Second,
		Now:               time.Now,
		Logger:            &nop,
	}
}

// Handle runs an incoming event through every check and stores it. The returned error is
// either a *nostr.RelayError or an infrastructure failure that callers map with
// nostr.AsRelayError.
func (p *Pipeline) Handle(ctx context.Context, evt nostr.Event) error {
	if p.Seen.Has(evt.ID) {
		return nostr.Duplicate("already have this event")
	}

	now := p.Now()
	if evt.CreatedAt.Time().Sub(now) > p.MaxFuture {
		return nostr.Invalid("event creation date is too far off from the current time")
	}
	if evt.Kind >= nostr.MaxKind {
		return nostr.Invalid("event kind is too big")
	}
	if evt.Kind.IsEphemeral() && now.Sub(evt.CreatedAt.Time()) > p.MaxEphemeralAge {
		return nostr.Invalid("event too old")
	}
	if evt.IsProtected() {
		return nostr.Invalid("protected events are not accepted")
	}

	ok, err := p.Verifier.Verify(ctx, evt)
	if err != nil {
		p.Logger.Warn().Err(err).Str("id", evt.ID.Hex()).Msg("signature verification failed to run")
		if errors.Is(err, workers.ErrTimeout) {
			return nostr.Failure("signature verification timed out")
		}
		return err
	}
	if !ok {
		return nostr.Invalid("signature is invalid")
	}

	// another copy may have been verified meanwhile
	if p.Seen.Has(evt.ID) {
		return nostr.Duplicate("already have this event")
	}
	p.Seen.Set(evt.ID, struct{}{})

	// remote signing handshakes are latency sensitive: no policy, no ban lookup, no side effects
	if evt.Kind == nostr.KindNostrConnect {
		return p.Store.Write(ctx, evt)
	}

	if evt.PubKey != p.Admin {
		verdict, err := p.Policy.Check(ctx, evt)
		if err != nil {
			p.Logger.Warn().Err(err).Str("id", evt.ID.Hex()).Msg("policy failed")
			return nostr.Blocked("policy error")
		}
		if verdict.Shadow {
			return nil
		}
		if !verdict.OK {
			return policyRejection(verdict.Reason)
		}

		banned, err := p.isBanned(ctx, evt.PubKey)
		if err != nil {
			return err
		}
		if banned {
			return nostr.Blocked("author is banned")
		}
	}

	if err := p.Store.Write(ctx, evt); err != nil {
		if re := (*nostr.RelayError)(nil); !errors.As(err, &re) {
			p.Logger.Error().Err(err).Str("id", evt.ID.Hex()).Msg("failed to store event")
		}
		return err
	}

	if !evt.Kind.IsEphemeral() {
		p.sideEffects(ctx, evt)
	}
	return nil
}

// isBanned looks for the admin's user record (kind 30382) about the author carrying n=disabled.
func (p *Pipeline) isBanned(ctx context.Context, pubkey nostr.PubKey) (bool, error) {
	if p.Admin == nostr.ZeroPK {
		return false, nil
	}
	records, err := p.Store.Query(ctx, []nostr.Filter{{
		Kinds:   []nostr.Kind{nostr.KindUserGrants},
		Authors: []nostr.PubKey{p.Admin},
		Tags:    nostr.TagMap{"d": {pubkey.Hex()}, "n": {"disabled"}},
		Limit:   1,
	}}, eventstore.QueryOptions{Limit: 1})
	if err != nil {
		return false, err
	}
	return len(records) > 0, nil
}

func policyRejection(reason string) error {
	if reason == "" {
		return nostr.Blocked("no reason")
	}
	kind, msg, _ := strings.Cut(nostr.NormalizeOKMessage(reason, "blocked"), ": ")
	return &nostr.RelayError{Kind: nostr.ErrorKind(kind), Reason: msg}
}

// Wait blocks until the side effects started so far are done.
func (p *Pipeline) Wait() { p.background.Wait() }
