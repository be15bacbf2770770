package relay

import (
	"context"
	"errors"
	"iter"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/OpenAgentsInc/pylon"
	"github.com/OpenAgentsInc/pylon/eventstore"
	"github.com/OpenAgentsInc/pylon/nip11"
	"github.com/fasthttp/websocket"
	"github.com/rs/cors"
)

func NewRelay() *Relay {
	ctx, cancel := context.WithCancelCause(context.Background())

	rl := &Relay{
		ctx:    ctx,
		cancel: cancel,

		Log: log.New(os.Stderr, "[pylon-relay] ", log.LstdFlags),

		Info: &nip11.RelayInformationDocument{
			Software:      "https://github.com/OpenAgentsInc/pylon",
			Version:       "n/a",
			SupportedNIPs: []any{1, 11},
			Limitation: &nip11.RelayLimitationDocument{
				MaxMessageLength: nostr.MaxEventSize,
				MaxSubidLength:   nostr.MaxSubscriptionIDLength,
				MaxEventTags:     nostr.MaxTags,
				MaxContentLength: nostr.MaxContentLength,
				MaxLimit:         nostr.MaxQueryLimit,
			},
		},

		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},

		clients: make(map[*WebSocket]struct{}, 100),

		serveMux: &http.ServeMux{},

		WriteWait:         10 * time.Second,
		PongWait:          60 * time.Second,
		PingPeriod:        30 * time.Second,
		MaxMessageSize:    nostr.MaxEventSize,
		OutboundQueueSize: 512,
	}

	return rl
}

type Relay struct {
	ctx    context.Context
	cancel context.CancelCauseFunc

	// setting this variable overwrites the hackish workaround we do to try to figure out our own base URL
	ServiceURL string

	// hooks that will be called at various times
	OnEvent                   func(ctx context.Context, event nostr.Event) (reject bool, msg string)
	StoreEvent                func(ctx context.Context, event nostr.Event) error
	ReplaceEvent              func(ctx context.Context, event nostr.Event) error
	DeleteEvent               func(ctx context.Context, id nostr.ID) error
	OnEventSaved              func(ctx context.Context, event nostr.Event)
	OnEphemeralEvent          func(ctx context.Context, event nostr.Event)
	OnRequest                 func(ctx context.Context, filter nostr.Filter) (reject bool, msg string)
	OnCount                   func(ctx context.Context, filter nostr.Filter) (reject bool, msg string)
	QueryStored               func(ctx context.Context, filter nostr.Filter) (iter.Seq[nostr.Event], error)
	Count                     func(ctx context.Context, filter nostr.Filter) (int64, error)
	RejectConnection          func(r *http.Request) bool
	OnConnect                 func(ctx context.Context)
	OnDisconnect              func(ctx context.Context)
	OverwriteRelayInformation func(ctx context.Context, r *http.Request, info nip11.RelayInformationDocument) nip11.RelayInformationDocument
	PreventBroadcast          func(ws *WebSocket, event nostr.Event) bool

	// editing info will affect the NIP-11 responses
	Info *nip11.RelayInformationDocument

	// Default logger, as set by NewRelay, is a stdlib logger prefixed with "[pylon-relay] ",
	// outputting to stderr.
	Log *log.Logger

	// for establishing websockets
	upgrader websocket.Upgrader

	// keep a connection reference to all connected clients for Shutdown
	clients      map[*WebSocket]struct{}
	clientsMutex sync.Mutex

	// held across the store call and the fan-out, so dispatch order
	// matches commit order on every subscriber's outbound queue
	publishLock sync.Mutex

	// in case you call Relay.Start
	Addr       string
	serveMux   *http.ServeMux
	httpServer *http.Server

	// websocket options
	WriteWait         time.Duration // Time allowed to write a message to the peer.
	PongWait          time.Duration // Time allowed to read the next pong message from the peer.
	PingPeriod        time.Duration // Send pings to peer with this period. Must be less than pongWait.
	MaxMessageSize    int64         // Maximum message size allowed from peer.
	OutboundQueueSize int           // Per-connection outbound frame queue.

	// NIP-40 expiration manager
	expirationManager *expirationManager
}

// UseEventstore hooks up an eventstore.Store into the relay in the default way.
// It should be used in most cases, when you don't want to do any complicated scheme with your event storage.
func (rl *Relay) UseEventstore(store eventstore.Store) {
	rl.QueryStored = store.QueryEvents
	rl.Count = store.CountEvents
	rl.StoreEvent = store.SaveEvent
	rl.ReplaceEvent = store.ReplaceEvent
	rl.DeleteEvent = func(ctx context.Context, id nostr.ID) error {
		return store.DeleteEvent(ctx, id)
	}

	// only when using the eventstore we automatically set up the expiration manager
	rl.StartExpirationManager(rl.QueryStored, rl.DeleteEvent)
}

// ServeHTTP implements http.Handler: websocket upgrades go to the
// relay proper, application/nostr+json requests get the NIP-11
// document, everything else falls through to the internal mux.
func (rl *Relay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Upgrade") == "websocket" {
		rl.HandleWebsocket(w, r)
	} else if r.Header.Get("Accept") == "application/nostr+json" {
		cors.AllowAll().Handler(http.HandlerFunc(rl.HandleNIP11)).ServeHTTP(w, r)
	} else {
		rl.serveMux.ServeHTTP(w, r)
	}
}

func (rl *Relay) Router() *http.ServeMux {
	return rl.serveMux
}

// Start creates an http server and starts listening on the given address.
func (rl *Relay) Start(host string, port int, started ...chan bool) error {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	rl.Addr = ln.Addr().String()
	rl.httpServer = &http.Server{
		Handler:      cors.Default().Handler(rl),
		Addr:         addr,
		WriteTimeout: 2 * time.Second,
		ReadTimeout:  2 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	// notify caller that we're starting
	for _, started := range started {
		close(started)
	}

	if err := rl.httpServer.Serve(ln); err == http.ErrServerClosed {
		return nil
	} else if err != nil {
		return err
	} else {
		return nil
	}
}

// Shutdown sends a websocket close control message to all connected clients.
func (rl *Relay) Shutdown(ctx context.Context) {
	rl.cancel(errors.New("Shutdown() called"))

	rl.clientsMutex.Lock()
	defer rl.clientsMutex.Unlock()
	for ws := range rl.clients {
		ws.conn.WriteControl(websocket.CloseMessage, nil, time.Now().Add(time.Second))
		ws.close(errors.New("relay shutting down"))
	}
	clear(rl.clients)

	if rl.expirationManager != nil {
		rl.expirationManager.stop()
	}

	if rl.httpServer != nil {
		rl.httpServer.Shutdown(ctx)
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
