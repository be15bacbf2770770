package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OpenAgentsInc/pylon"
	"github.com/fasthttp/websocket"
	"github.com/puzpuzpuz/xsync/v3"
)

// WebSocket wraps a client connection. Outgoing frames go through a
// bounded queue drained by a single writer goroutine, so a slow
// consumer can never block the relay: when the queue is full the frame
// is dropped and the client gets one NOTICE about it.
type WebSocket struct {
	conn *websocket.Conn

	// original request
	Request *http.Request

	// this Context will be canceled whenever the connection is closed
	// from the client side or server-side.
	Context context.Context
	cancel  context.CancelCauseFunc

	// active subscriptions of this connection, keyed by subscription id
	subscriptions *xsync.MapOf[string, []nostr.Filter]

	outbound  chan []byte
	closeOnce sync.Once
	dropping  atomic.Bool
}

func newWebSocket(parent context.Context, conn *websocket.Conn, r *http.Request, queueSize int) *WebSocket {
	ctx, cancel := context.WithCancelCause(parent)
	return &WebSocket{
		conn:          conn,
		Request:       r,
		Context:       ctx,
		cancel:        cancel,
		subscriptions: xsync.NewMapOf[string, []nostr.Filter](),
		outbound:      make(chan []byte, queueSize),
	}
}

// WriteEnvelope serializes the envelope and enqueues it for delivery.
// If the outbound queue is full the envelope is dropped.
func (ws *WebSocket) WriteEnvelope(env json.Marshaler) error {
	data, err := env.MarshalJSON()
	if err != nil {
		return err
	}

	select {
	case ws.outbound <- data:
		ws.dropping.Store(false)
	default:
		if ws.dropping.CompareAndSwap(false, true) {
			notice, _ := nostr.NoticeEnvelope("slow consumer: messages are being dropped").MarshalJSON()
			select {
			case ws.outbound <- notice:
			default:
			}
		}
	}
	return nil
}

// writeLoop is the only goroutine allowed to touch the underlying
// connection for writes. It also owns the ping schedule.
func (ws *WebSocket) writeLoop(writeWait, pingPeriod time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ws.Context.Done():
			return
		case data := <-ws.outbound:
			ws.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				ws.close(err)
				return
			}
		case <-ticker.C:
			ws.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				ws.close(err)
				return
			}
		}
	}
}

func (ws *WebSocket) close(cause error) {
	ws.closeOnce.Do(func() {
		ws.cancel(cause)
		ws.conn.Close()
	})
}
