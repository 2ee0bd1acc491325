// Package relay speaks the nostr protocol over websockets: EVENT goes through the ingestion
// pipeline, REQ replays stored events and then follows the subscription registry, COUNT asks
// the store.
package relay

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	nostr "github.com/soapbox-pub/ditto-sub000"
	"github.com/soapbox-pub/ditto-sub000/eventstore"
	"github.com/soapbox-pub/ditto-sub000/realtime"
)

// Handler takes events submitted by clients. It is implemented by the ingestion pipeline.
type Handler interface {
	Handle(ctx context.Context, evt nostr.Event) error
}

func New(handler Handler, store eventstore.Store, registry *realtime.Registry) *Relay {
	nop := zerolog.Nop()
	rl := &Relay{
		Handler:  handler,
		Store:    store,
		Registry: registry,

		Logger: &nop,

		Info: &RelayInformationDocument{
			Software:      "https://gitlab.com/soapbox-pub/ditto",
			Version:       "n/a",
			SupportedNIPs: []any{1, 9, 11, 45, 50},
		},

		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},

		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     30 * time.Second,
		MaxMessageSize: 512000,

		QueryTimeout: 5 * time.Second,
		ChunkSize:    eventstore.DefaultChunkSize,
	}

	return rl
}

type Relay struct {
	Handler  Handler
	Store    eventstore.Store
	Registry *realtime.Registry

	// setting this variable overwrites the hackish workaround we do to try to figure out our own base URL
	ServiceURL string

	// hooks that will be called at various times
	RejectFilter     func(ctx context.Context, filter nostr.Filter) (reject bool, msg string)
	RejectConnection func(r *http.Request) bool
	OnConnect        func(ctx context.Context)
	OnDisconnect     func(ctx context.Context)

	// editing info will affect the NIP-11 responses
	Info *RelayInformationDocument

	Logger *zerolog.Logger

	// for establishing websockets
	upgrader websocket.Upgrader

	// websocket options
	WriteWait      time.Duration // Time allowed to write a message to the peer.
	PongWait       time.Duration // Time allowed to read the next pong message from the peer.
	PingPeriod     time.Duration // Send pings to peer with this period. Must be less than pongWait.
	MaxMessageSize int64         // Maximum message size allowed from peer.

	// query options
	QueryTimeout time.Duration
	MaxLimit     int
	ChunkSize    int
}

// ServeHTTP implements http.Handler interface.
func (rl *Relay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Upgrade") == "websocket" {
		rl.HandleWebsocket(w, r)
	} else if r.Header.Get("Accept") == "application/nostr+json" {
		cors.AllowAll().Handler(http.HandlerFunc(rl.HandleNIP11)).ServeHTTP(w, r)
	} else {
		http.NotFound(w, r)
	}
}

func (rl *Relay) getBaseURL(r *http.Request) string {
	if rl.ServiceURL != "" {
		return rl.ServiceURL
	}

	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	proto := r.Header.Get("X-Forwarded-Proto")
	if proto == "" {
		if host == "localhost" {
			proto = "http"
		} else if strings.Contains(host, ":") {
			// has a port number
			proto = "http"
		} else if _, err := strconv.Atoi(strings.ReplaceAll(host, ".", "")); err == nil {
			// it's a naked IP
			proto = "http"
		} else {
			proto = "https"
		}
	}
	return proto + "://" + host
}
