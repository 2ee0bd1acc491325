package relay

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/puzpuzpuz/xsync/v3"
	nostr "github.com/soapbox-pub/ditto-sub000"
	"github.com/soapbox-pub/ditto-sub000/eventstore"
	"github.com/soapbox-pub/ditto-sub000/realtime"
)

func (rl *Relay) HandleWebsocket(w http.ResponseWriter, r *http.Request) {
	if rl.RejectConnection != nil && rl.RejectConnection(r) {
		w.WriteHeader(http.StatusTooManyRequests)
		return
	}

	conn, err := rl.upgrader.Upgrade(w, r, nil)
	if err != nil {
		rl.Logger.Warn().Err(err).Msg("failed to upgrade websocket")
		return
	}

	ticker := time.NewTicker(rl.PingPeriod)

	ws := &WebSocket{
		conn:          conn,
		Request:       r,
		subscriptions: xsync.NewMapOf[string, *realtime.Subscription](),
	}
	ws.Context, ws.cancel = context.WithCancel(context.Background())

	ctx := context.WithValue(ws.Context, wsKey, ws)

	if rl.OnConnect != nil {
		rl.OnConnect(ctx)
	}

	kill := func() {
		if rl.OnDisconnect != nil {
			rl.OnDisconnect(ctx)
		}

		ticker.Stop()
		ws.cancel()
		ws.conn.Close()

		ws.subscriptions.Range(func(_ string, sub *realtime.Subscription) bool {
			rl.Registry.Unsubscribe(sub.ID)
			return true
		})
	}

	go func() {
		defer kill()

		ws.conn.SetReadLimit(rl.MaxMessageSize)
		ws.conn.SetReadDeadline(time.Now().Add(rl.PongWait))
		ws.conn.SetPongHandler(func(string) error {
			ws.conn.SetReadDeadline(time.Now().Add(rl.PongWait))
			return nil
		})

		for {
			typ, message, err := ws.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(
					err,
					websocket.CloseNormalClosure,    // 1000
					websocket.CloseGoingAway,        // 1001
					websocket.CloseNoStatusReceived, // 1005
					websocket.CloseAbnormalClosure,  // 1006
					4537,                            // some client seems to send many of these
				) {
					rl.Logger.Warn().Err(err).Str("ip", GetIPFromRequest(r)).Msg("unexpected close error")
				}
				return
			}

			if typ == websocket.PingMessage {
				ws.WriteMessage(websocket.PongMessage, nil)
				continue
			}

			rl.handleMessage(ctx, ws, string(message))
		}
	}()

	go func() {
		defer kill()

		for {
			select {
			case <-ws.Context.Done():
				return
			case <-ticker.C:
				err := ws.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(rl.WriteWait))
				if err != nil {
					if !errors.Is(err, websocket.ErrCloseSent) {
						rl.Logger.Debug().Err(err).Msg("error writing ping, closing websocket")
					}
					return
				}
			}
		}
	}()
}

func (rl *Relay) handleMessage(ctx context.Context, ws *WebSocket, message string) {
	envelope, err := nostr.ParseMessage(message)
	if err != nil {
		ws.WriteEnvelope(nostr.NoticeEnvelope("failed to parse message: " + err.Error()))
		return
	}

	switch env := envelope.(type) {
	case *nostr.EventEnvelope:
		go rl.handleEvent(ctx, ws, env.Event)
	case *nostr.ReqEnvelope:
		rl.handleReq(ctx, ws, env.SubscriptionID, env.Filters)
	case *nostr.CountEnvelope:
		go rl.handleCount(ctx, ws, env)
	case *nostr.CloseEnvelope:
		rl.closeSubscription(ws, string(*env))
	default:
		ws.WriteEnvelope(nostr.NoticeEnvelope("unsupported message: " + envelope.Label()))
	}
}

func (rl *Relay) handleEvent(ctx context.Context, ws *WebSocket, evt nostr.Event) {
	err := rl.Handler.Handle(ctx, evt)
	if err != nil {
		rl.Logger.Debug().Err(err).Str("id", evt.ID.Hex()).Msg("event not accepted")
	}
	ws.WriteEnvelope(nostr.OKFromError(evt.ID, err))
}

func (rl *Relay) queryOptions() eventstore.QueryOptions {
	return eventstore.QueryOptions{
		Timeout:   rl.QueryTimeout,
		Limit:     rl.MaxLimit,
		ChunkSize: rl.ChunkSize,
	}
}

func (rl *Relay) rejectFilters(ctx context.Context, filters []nostr.Filter) string {
	if rl.RejectFilter == nil {
		return ""
	}
	for _, filter := range filters {
		if reject, msg := rl.RejectFilter(ctx, filter); reject {
			return nostr.NormalizeOKMessage(msg, "blocked")
		}
	}
	return ""
}

func (rl *Relay) handleReq(ctx context.Context, ws *WebSocket, id string, filters []nostr.Filter) {
	ctx = context.WithValue(ctx, subscriptionIdKey, id)

	if msg := rl.rejectFilters(ctx, filters); msg != "" {
		ws.WriteEnvelope(nostr.ClosedEnvelope{SubscriptionID: id, Reason: msg})
		return
	}

	// a REQ with an id already in use replaces the old one
	rl.closeSubscription(ws, id)

	// subscribe before querying so nothing written in between is missed
	sub := rl.Registry.Subscribe(filters)
	ws.subscriptions.Store(id, sub)

	go rl.serveSubscription(ctx, ws, id, sub)
}

// serveSubscription replays stored events, then forwards live ones until the subscription ends.
func (rl *Relay) serveSubscription(ctx context.Context, ws *WebSocket, id string, sub *realtime.Subscription) {
	filters := sub.Filters

	stored := make([]nostr.Filter, 0, len(filters))
	for _, filter := range filters {
		if !filter.LimitZero {
			stored = append(stored, filter)
		}
	}

	if len(stored) > 0 {
		stream := rl.Store.Stream(ctx, stored, rl.queryOptions())
		for chunk := range stream.Chunks() {
			for _, evt := range chunk {
				ws.WriteEnvelope(nostr.EventEnvelope{SubscriptionID: &id, Event: evt})
			}
		}
		if err := stream.Err(); err != nil {
			rl.dropSubscription(ws, id, sub)
			ws.WriteEnvelope(nostr.ClosedEnvelope{SubscriptionID: id, Reason: nostr.AsRelayError(err).Error()})
			return
		}
	}

	ws.WriteEnvelope(nostr.EOSEEnvelope(id))

	for evt := range sub.Events() {
		ws.WriteEnvelope(nostr.EventEnvelope{SubscriptionID: &id, Event: evt})
	}

	if errors.Is(sub.Err(), realtime.ErrSlowConsumer) {
		rl.dropSubscription(ws, id, sub)
		ws.WriteEnvelope(nostr.ClosedEnvelope{SubscriptionID: id, Reason: "error: " + sub.Err().Error()})
	}
}

func (rl *Relay) closeSubscription(ws *WebSocket, id string) {
	if sub, ok := ws.subscriptions.LoadAndDelete(id); ok {
		rl.Registry.Unsubscribe(sub.ID)
	}
}

// dropSubscription forgets sub unless a newer REQ has already reused its id.
func (rl *Relay) dropSubscription(ws *WebSocket, id string, sub *realtime.Subscription) {
	ws.subscriptions.Compute(id, func(current *realtime.Subscription, loaded bool) (*realtime.Subscription, bool) {
		return current, !loaded || current == sub
	})
	rl.Registry.Unsubscribe(sub.ID)
}

func (rl *Relay) handleCount(ctx context.Context, ws *WebSocket, env *nostr.CountEnvelope) {
	if msg := rl.rejectFilters(ctx, env.Filters); msg != "" {
		ws.WriteEnvelope(nostr.ClosedEnvelope{SubscriptionID: env.SubscriptionID, Reason: msg})
		return
	}

	n, err := rl.Store.Count(ctx, env.Filters, rl.queryOptions())
	if err != nil {
		ws.WriteEnvelope(nostr.ClosedEnvelope{SubscriptionID: env.SubscriptionID, Reason: nostr.AsRelayError(err).Error()})
		return
	}

	ws.WriteEnvelope(nostr.CountEnvelope{SubscriptionID: env.SubscriptionID, Count: &n})
}
