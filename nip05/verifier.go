package nip05

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	nostr "github.com/soapbox-pub/ditto-sub000"
	"github.com/soapbox-pub/ditto-sub000/cache"
	cache_memory "github.com/soapbox-pub/ditto-sub000/cache/memory"
)

var ErrMismatch = errors.New("identifier points to another pubkey")

// Identity is the outcome of a successful check. Hostname is the domain lowercased.
type Identity struct {
	Identifier string
	Name       string
	Domain     string
	Hostname   string
}

type Verifier struct {
	Cache   cache.Cache[string, nostr.PubKey]
	TTL     time.Duration
	Timeout time.Duration

	// Fetch defaults to the package-level Fetch.
	Fetch func(ctx context.Context, fullname string) (WellKnownResponse, string, error)
}

func NewVerifier() *Verifier {
	return &Verifier{
		Cache:   cache_memory.New[string, nostr.PubKey](10_000),
		TTL:     time.Hour,
		Timeout: 5 * time.Second,
		Fetch:   Fetch,
	}
}

// Lookup returns the pubkey an identifier points to. Only positive answers are cached.
func (v *Verifier) Lookup(ctx context.Context, fullname string) (nostr.PubKey, error) {
	name, domain, err := ParseIdentifier(fullname)
	if err != nil {
		return nostr.PubKey{}, fmt.Errorf("failed to parse '%s': %w", fullname, err)
	}
	key := strings.ToLower(name + "@" + domain)

	if v.Cache != nil {
		if pk, ok := v.Cache.Get(key); ok {
			return pk, nil
		}
	}

	if v.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.Timeout)
		defer cancel()
	}

	fetch := v.Fetch
	if fetch == nil {
		fetch = Fetch
	}
	resp, name, err := fetch(ctx, fullname)
	if err != nil {
		return nostr.PubKey{}, err
	}

	pk, ok := resp.Names[name]
	if !ok {
		return nostr.PubKey{}, fmt.Errorf("no entry for name '%s'", name)
	}

	if v.Cache != nil {
		v.Cache.SetWithTTL(key, pk, v.TTL)
	}
	return pk, nil
}

// Verify checks that fullname resolves to pubkey.
func (v *Verifier) Verify(ctx context.Context, fullname string, pubkey nostr.PubKey) (Identity, error) {
	pk, err := v.Lookup(ctx, fullname)
	if err != nil {
		return Identity{}, err
	}
	if pk != pubkey {
		return Identity{}, ErrMismatch
	}

	name, domain, _ := ParseIdentifier(fullname)
	return Identity{
		Identifier: NormalizeIdentifier(name + "@" + domain),
		Name:       name,
		Domain:     domain,
		Hostname:   strings.ToLower(domain),
	}, nil
}
