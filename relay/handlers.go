package relay

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/OpenAgentsInc/pylon"
	"github.com/OpenAgentsInc/pylon/eventstore"
	"github.com/fasthttp/websocket"
)

// HandleWebsocket upgrades the request and runs the connection's read
// loop until the client goes away or the relay shuts down.
func (rl *Relay) HandleWebsocket(w http.ResponseWriter, r *http.Request) {
	if rl.RejectConnection != nil && rl.RejectConnection(r) {
		w.WriteHeader(429) // see NIP-01 for the meaning of this
		return
	}

	conn, err := rl.upgrader.Upgrade(w, r, nil)
	if err != nil {
		rl.Log.Printf("failed to upgrade websocket: %v\n", err)
		return
	}

	ws := newWebSocket(rl.ctx, conn, r, rl.OutboundQueueSize)
	rl.addClient(ws)

	ctx := context.WithValue(ws.Context, wsKey, ws)

	if rl.OnConnect != nil {
		rl.OnConnect(ctx)
	}

	go ws.writeLoop(rl.WriteWait, rl.PingPeriod)

	defer func() {
		ws.close(errors.New("connection closed"))
		rl.removeClient(ws)
		if rl.OnDisconnect != nil {
			rl.OnDisconnect(ctx)
		}
	}()

	conn.SetReadLimit(rl.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(rl.PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(rl.PongWait))
		return nil
	})

	for {
		typ, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
				websocket.CloseAbnormalClosure,
			) {
				rl.Log.Printf("unexpected close error from %s: %v\n", GetIPFromRequest(r), err)
			}
			return
		}

		if typ != websocket.TextMessage {
			continue
		}

		rl.handleMessage(ctx, ws, message)
	}
}

// handleMessage dispatches a single client frame. Malformed input is
// fatal to the frame, never to the connection.
func (rl *Relay) handleMessage(ctx context.Context, ws *WebSocket, message []byte) {
	envelope, err := nostr.ParseMessage(string(message))
	if err != nil {
		ws.WriteEnvelope(nostr.NoticeEnvelope("failed to parse message: " + err.Error()))
		return
	}

	switch env := envelope.(type) {
	case *nostr.EventEnvelope:
		rl.handleEventMessage(ctx, ws, env)
	case *nostr.ReqEnvelope:
		rl.handleReqMessage(ctx, ws, env)
	case *nostr.CloseEnvelope:
		ws.closeSubscription(string(*env))
	case *nostr.CountEnvelope:
		rl.handleCountMessage(ctx, ws, env)
	default:
		ws.WriteEnvelope(nostr.NoticeEnvelope("unknown message type " + envelope.Label()))
	}
}

func (rl *Relay) handleEventMessage(ctx context.Context, ws *WebSocket, env *nostr.EventEnvelope) {
	// validate against the wire bytes: lowercase hex fields and the
	// other raw-level rules are lost once the event is decoded
	evt, err := nostr.ParseEvent(env.Raw)
	if err != nil {
		reason := nostr.NormalizeOKMessage(err.Error(), "invalid")
		ws.WriteEnvelope(nostr.OKEnvelope{EventID: env.Event.ID, OK: false, Reason: reason})
		return
	}

	if evt.Kind == nostr.KindDeletion {
		if err := rl.handleDeleteRequest(ctx, evt); err != nil {
			ws.WriteEnvelope(nostr.OKEnvelope{EventID: evt.ID, OK: false, Reason: err.Error()})
			return
		}
	}

	// store and dispatch under one lock: per-connection delivery order
	// must match commit order even with concurrent publishers
	rl.publishLock.Lock()
	skipBroadcast, writeErr := rl.AddEvent(ctx, evt)
	if writeErr == nil && !skipBroadcast {
		rl.notifyListeners(evt)
	}
	rl.publishLock.Unlock()

	if writeErr == nil {
		ws.WriteEnvelope(nostr.OKEnvelope{EventID: evt.ID, OK: true})
	} else if errors.Is(writeErr, eventstore.ErrDupEvent) {
		ws.WriteEnvelope(nostr.OKEnvelope{EventID: evt.ID, OK: true, Reason: "duplicate: already have this event"})
	} else {
		ws.WriteEnvelope(nostr.OKEnvelope{EventID: evt.ID, OK: false, Reason: writeErr.Error()})
	}
}

func (rl *Relay) handleReqMessage(ctx context.Context, ws *WebSocket, env *nostr.ReqEnvelope) {
	if err := nostr.ValidateSubscriptionID(env.SubscriptionID); err != nil {
		ws.WriteEnvelope(nostr.ClosedEnvelope{
			SubscriptionID: env.SubscriptionID,
			Reason:         nostr.NormalizeOKMessage(err.Error(), "invalid"),
		})
		return
	}

	for _, filter := range env.Filters {
		if err := nostr.ValidateFilter(filter); err != nil {
			ws.WriteEnvelope(nostr.ClosedEnvelope{
				SubscriptionID: env.SubscriptionID,
				Reason:         nostr.NormalizeOKMessage(err.Error(), "invalid"),
			})
			return
		}
	}

	// subscribe before replaying so no event published meanwhile is
	// missed; clients must dedupe by id anyway
	ws.openSubscription(env.SubscriptionID, env.Filters)

	eose := sync.WaitGroup{}
	eose.Add(len(env.Filters))
	for _, filter := range env.Filters {
		if err := rl.handleRequest(ctx, env.SubscriptionID, &eose, ws, filter); err != nil {
			ws.closeSubscription(env.SubscriptionID)
			ws.WriteEnvelope(nostr.ClosedEnvelope{SubscriptionID: env.SubscriptionID, Reason: err.Error()})
			return
		}
	}

	eose.Wait()
	ws.WriteEnvelope(nostr.EOSEEnvelope(env.SubscriptionID))
}

func (rl *Relay) handleCountMessage(ctx context.Context, ws *WebSocket, env *nostr.CountEnvelope) {
	if rl.Count == nil {
		ws.WriteEnvelope(nostr.ClosedEnvelope{SubscriptionID: env.SubscriptionID, Reason: "unsupported: this relay does not support COUNT"})
		return
	}

	if rl.OnCount != nil {
		if reject, msg := rl.OnCount(ctx, env.Filter); reject {
			ws.WriteEnvelope(nostr.ClosedEnvelope{
				SubscriptionID: env.SubscriptionID,
				Reason:         nostr.NormalizeOKMessage(msg, "blocked"),
			})
			return
		}
	}

	count, err := rl.Count(ctx, env.Filter)
	if err != nil {
		ws.WriteEnvelope(nostr.NoticeEnvelope(err.Error()))
		return
	}
	ws.WriteEnvelope(nostr.CountEnvelope{SubscriptionID: env.SubscriptionID, Count: &count})
}
