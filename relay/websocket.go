package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/fasthttp/websocket"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/soapbox-pub/ditto-sub000/realtime"
)

type WebSocket struct {
	conn  *websocket.Conn
	mutex sync.Mutex

	// original request
	Request *http.Request

	// this Context will be canceled whenever the connection is closed from the client side or server-side.
	Context context.Context
	cancel  context.CancelFunc

	// client subscription ids to registry subscriptions
	subscriptions *xsync.MapOf[string, *realtime.Subscription]
}

// WriteEnvelope takes any envelope value; the Envelope interface is only satisfied by pointers.
func (ws *WebSocket) WriteEnvelope(env json.Marshaler) error {
	b, err := env.MarshalJSON()
	if err != nil {
		return err
	}
	return ws.WriteMessage(websocket.TextMessage, b)
}

func (ws *WebSocket) WriteMessage(t int, b []byte) error {
	ws.mutex.Lock()
	err := ws.conn.WriteMessage(t, b)
	ws.mutex.Unlock()
	return err
}
