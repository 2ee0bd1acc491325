package relay

import (
	"context"
	"net"
	"net/http"
	"strings"

	nostr "github.com/soapbox-pub/ditto-sub000"
)

const (
	wsKey = iota
	subscriptionIdKey
)

func GetConnection(ctx context.Context) *WebSocket {
	wsi := ctx.Value(wsKey)
	if wsi != nil {
		return wsi.(*WebSocket)
	}
	return nil
}

func GetIP(ctx context.Context) string {
	conn := GetConnection(ctx)
	if conn == nil {
		return ""
	}

	return GetIPFromRequest(conn.Request)
}

// GetIPFromRequest trusts the first public address in X-Forwarded-For, then the peer address.
func GetIPFromRequest(r *http.Request) string {
	if xffh := r.Header.Get("X-Forwarded-For"); xffh != "" {
		for _, v := range strings.Split(xffh, ",") {
			if ip := net.ParseIP(strings.TrimSpace(v)); ip != nil && !ip.IsPrivate() && !ip.IsLoopback() {
				return ip.String()
			}
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func GetSubscriptionID(ctx context.Context) string {
	id, _ := ctx.Value(subscriptionIdKey).(string)
	return id
}

func SendNotice(ctx context.Context, msg string) {
	if ws := GetConnection(ctx); ws != nil {
		ws.WriteEnvelope(nostr.NoticeEnvelope(msg))
	}
}
