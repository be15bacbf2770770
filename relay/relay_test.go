package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/OpenAgentsInc/pylon"
	"github.com/OpenAgentsInc/pylon/eventstore/slicestore"
	"github.com/fasthttp/websocket"
	"github.com/stretchr/testify/require"
)

func startTestRelay(t *testing.T) (*Relay, *httptest.Server) {
	t.Helper()
	rl := NewRelay()
	store := &slicestore.SliceStore{}
	require.NoError(t, store.Init())
	rl.UseEventstore(store)

	server := httptest.NewServer(rl)
	t.Cleanup(server.Close)
	return rl, server
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + server.URL[4:]
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func send(t *testing.T, conn *websocket.Conn, env json.Marshaler) {
	t.Helper()
	data, err := env.MarshalJSON()
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func recv(t *testing.T, conn *websocket.Conn) nostr.Envelope {
	t.Helper()
	_, message, err := conn.ReadMessage()
	require.NoError(t, err)
	env, err := nostr.ParseMessage(string(message))
	require.NoError(t, err, "raw message: %s", message)
	return env
}

func signedEvent(t *testing.T, sk nostr.SecretKey, kind nostr.Kind, content string, tags nostr.Tags) nostr.Event {
	t.Helper()
	return signedEventAt(t, sk, kind, content, nostr.Now(), tags)
}

func signedEventAt(t *testing.T, sk nostr.SecretKey, kind nostr.Kind, content string, createdAt nostr.Timestamp, tags nostr.Tags) nostr.Event {
	t.Helper()
	evt := nostr.Event{
		CreatedAt: createdAt,
		Kind:      kind,
		Tags:      tags,
		Content:   content,
	}
	require.NoError(t, evt.Sign(sk))
	return evt
}

func TestPublishAndReplay(t *testing.T) {
	_, server := startTestRelay(t)
	publisher := dial(t, server)
	reader := dial(t, server)

	sk := nostr.Generate()
	evt := signedEvent(t, sk, 1, "hello relay", nostr.Tags{{"t", "test"}})

	// publish and expect a positive OK
	send(t, publisher, nostr.EventEnvelope{Event: evt})
	ok, isOK := recv(t, publisher).(*nostr.OKEnvelope)
	require.True(t, isOK)
	require.Equal(t, evt.ID, ok.EventID)
	require.True(t, ok.OK)

	// replay it from another connection
	send(t, reader, nostr.ReqEnvelope{SubscriptionID: "replay", Filters: []nostr.Filter{{Kinds: []nostr.Kind{1}}}})

	env := recv(t, reader)
	got, isEvent := env.(*nostr.EventEnvelope)
	require.True(t, isEvent, "expected EVENT, got %s", env.Label())
	require.Equal(t, "replay", *got.SubscriptionID)
	require.Equal(t, evt.ID, got.Event.ID)

	eose, isEOSE := recv(t, reader).(*nostr.EOSEEnvelope)
	require.True(t, isEOSE)
	require.Equal(t, "replay", string(*eose))
}

func TestLiveBroadcast(t *testing.T) {
	_, server := startTestRelay(t)
	subscriber := dial(t, server)
	publisher := dial(t, server)

	// subscribe with a tag filter, nothing stored yet
	send(t, subscriber, nostr.ReqEnvelope{SubscriptionID: "live", Filters: []nostr.Filter{
		{Kinds: []nostr.Kind{1}, Tags: nostr.TagMap{"t": {"wanted"}}},
	}})
	_, isEOSE := recv(t, subscriber).(*nostr.EOSEEnvelope)
	require.True(t, isEOSE)

	sk := nostr.Generate()

	// an event that doesn't match the tag filter is not delivered
	miss := signedEvent(t, sk, 1, "not for you", nostr.Tags{{"t", "other"}})
	send(t, publisher, nostr.EventEnvelope{Event: miss})
	recv(t, publisher) // OK

	// one that matches is
	hit := signedEvent(t, sk, 1, "for you", nostr.Tags{{"t", "wanted"}})
	send(t, publisher, nostr.EventEnvelope{Event: hit})
	recv(t, publisher) // OK

	env := recv(t, subscriber)
	got, isEvent := env.(*nostr.EventEnvelope)
	require.True(t, isEvent, "expected EVENT, got %s", env.Label())
	require.Equal(t, "live", *got.SubscriptionID)
	require.Equal(t, hit.ID, got.Event.ID)
}

func TestDuplicateSuppression(t *testing.T) {
	_, server := startTestRelay(t)
	publisher := dial(t, server)
	subscriber := dial(t, server)

	send(t, subscriber, nostr.ReqEnvelope{SubscriptionID: "all", Filters: []nostr.Filter{{}}})
	_, isEOSE := recv(t, subscriber).(*nostr.EOSEEnvelope)
	require.True(t, isEOSE)

	sk := nostr.Generate()
	evt := signedEvent(t, sk, 1, "only once", nil)

	send(t, publisher, nostr.EventEnvelope{Event: evt})
	ok := recv(t, publisher).(*nostr.OKEnvelope)
	require.True(t, ok.OK)
	require.Empty(t, ok.Reason)

	// resubmission: accepted but flagged as duplicate, not rebroadcast
	send(t, publisher, nostr.EventEnvelope{Event: evt})
	ok = recv(t, publisher).(*nostr.OKEnvelope)
	require.True(t, ok.OK)
	require.Contains(t, ok.Reason, "duplicate:")

	// the subscriber sees exactly one copy; a marker event published
	// afterwards must come through as the second delivery
	marker := signedEvent(t, sk, 1, "marker", nil)
	send(t, publisher, nostr.EventEnvelope{Event: marker})
	recv(t, publisher) // OK

	first := recv(t, subscriber).(*nostr.EventEnvelope)
	require.Equal(t, evt.ID, first.Event.ID)
	second := recv(t, subscriber).(*nostr.EventEnvelope)
	require.Equal(t, marker.ID, second.Event.ID)
}

func TestInvalidEventRejected(t *testing.T) {
	_, server := startTestRelay(t)
	conn := dial(t, server)

	sk := nostr.Generate()
	evt := signedEvent(t, sk, 1, "tampered", nil)
	evt.Content = "changed after signing"

	send(t, conn, nostr.EventEnvelope{Event: evt})
	ok := recv(t, conn).(*nostr.OKEnvelope)
	require.False(t, ok.OK)
	require.Contains(t, ok.Reason, "invalid:")
}

func TestSubscriptionLifecycle(t *testing.T) {
	_, server := startTestRelay(t)
	subscriber := dial(t, server)
	publisher := dial(t, server)

	// open, then close, then publish: nothing should arrive
	send(t, subscriber, nostr.ReqEnvelope{SubscriptionID: "s", Filters: []nostr.Filter{{}}})
	_, isEOSE := recv(t, subscriber).(*nostr.EOSEEnvelope)
	require.True(t, isEOSE)
	send(t, subscriber, nostr.CloseEnvelope("s"))

	// give the relay a moment to process the CLOSE
	time.Sleep(100 * time.Millisecond)

	sk := nostr.Generate()
	evt := signedEvent(t, sk, 1, "into the void", nil)
	send(t, publisher, nostr.EventEnvelope{Event: evt})
	recv(t, publisher) // OK

	subscriber.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	_, _, err := subscriber.ReadMessage()
	require.Error(t, err, "expected no message after CLOSE")
}

func TestSubscriptionOverwrite(t *testing.T) {
	_, server := startTestRelay(t)
	subscriber := dial(t, server)
	publisher := dial(t, server)

	// first subscription wants kind 1
	send(t, subscriber, nostr.ReqEnvelope{SubscriptionID: "s", Filters: []nostr.Filter{{Kinds: []nostr.Kind{1}}}})
	_, isEOSE := recv(t, subscriber).(*nostr.EOSEEnvelope)
	require.True(t, isEOSE)

	// same id resubscribed with kind 7 replaces the old filters
	send(t, subscriber, nostr.ReqEnvelope{SubscriptionID: "s", Filters: []nostr.Filter{{Kinds: []nostr.Kind{7}}}})
	_, isEOSE = recv(t, subscriber).(*nostr.EOSEEnvelope)
	require.True(t, isEOSE)

	sk := nostr.Generate()
	note := signedEvent(t, sk, 1, "note", nil)
	reaction := signedEvent(t, sk, 7, "+", nil)
	send(t, publisher, nostr.EventEnvelope{Event: note})
	recv(t, publisher) // OK
	send(t, publisher, nostr.EventEnvelope{Event: reaction})
	recv(t, publisher) // OK

	got := recv(t, subscriber).(*nostr.EventEnvelope)
	require.Equal(t, reaction.ID, got.Event.ID)
}

func TestReplayLimitTruncation(t *testing.T) {
	_, server := startTestRelay(t)
	publisher := dial(t, server)

	sk := nostr.Generate()
	for i := 0; i < 5; i++ {
		evt := nostr.Event{
			CreatedAt: nostr.Timestamp(1700000000 + i),
			Kind:      1,
			Content:   "numbered",
		}
		require.NoError(t, evt.Sign(sk))
		send(t, publisher, nostr.EventEnvelope{Event: evt})
		ok := recv(t, publisher).(*nostr.OKEnvelope)
		require.True(t, ok.OK)
	}

	reader := dial(t, server)
	send(t, reader, nostr.ReqEnvelope{SubscriptionID: "top2", Filters: []nostr.Filter{{Kinds: []nostr.Kind{1}, Limit: 2}}})

	first := recv(t, reader).(*nostr.EventEnvelope)
	second := recv(t, reader).(*nostr.EventEnvelope)
	require.Equal(t, nostr.Timestamp(1700000004), first.Event.CreatedAt)
	require.Equal(t, nostr.Timestamp(1700000003), second.Event.CreatedAt)

	_, isEOSE := recv(t, reader).(*nostr.EOSEEnvelope)
	require.True(t, isEOSE)
}

func TestBadSubscriptionClosed(t *testing.T) {
	_, server := startTestRelay(t)
	conn := dial(t, server)

	send(t, conn, nostr.ReqEnvelope{SubscriptionID: "bad", Filters: []nostr.Filter{
		{Limit: nostr.MaxQueryLimit + 1},
	}})

	closed := recv(t, conn).(*nostr.ClosedEnvelope)
	require.Equal(t, "bad", closed.SubscriptionID)
	require.Contains(t, closed.Reason, "invalid:")
}

func TestCount(t *testing.T) {
	_, server := startTestRelay(t)
	conn := dial(t, server)

	sk := nostr.Generate()
	for i := 0; i < 3; i++ {
		evt := signedEvent(t, sk, 1, "counted", nil)
		evt.CreatedAt = nostr.Timestamp(1700000000 + i)
		require.NoError(t, evt.Sign(sk))
		send(t, conn, nostr.EventEnvelope{Event: evt})
		recv(t, conn) // OK
	}

	send(t, conn, nostr.CountEnvelope{SubscriptionID: "c", Filter: nostr.Filter{Kinds: []nostr.Kind{1}}})
	count := recv(t, conn).(*nostr.CountEnvelope)
	require.NotNil(t, count.Count)
	require.Equal(t, int64(3), *count.Count)
}

func TestNIP11Document(t *testing.T) {
	rl, server := startTestRelay(t)
	rl.Info.Name = "test relay"

	req, err := http.NewRequest("GET", server.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "application/nostr+json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, "application/nostr+json", resp.Header.Get("Content-Type"))

	var info struct {
		Name          string `json:"name"`
		SupportedNIPs []int  `json:"supported_nips"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	require.Equal(t, "test relay", info.Name)
	require.Contains(t, info.SupportedNIPs, 1)
	require.Contains(t, info.SupportedNIPs, 9)
	require.Contains(t, info.SupportedNIPs, 45)
}

func TestDisconnectCleanup(t *testing.T) {
	rl, server := startTestRelay(t)
	conn := dial(t, server)

	send(t, conn, nostr.ReqEnvelope{SubscriptionID: "s", Filters: []nostr.Filter{{}}})
	_, isEOSE := recv(t, conn).(*nostr.EOSEEnvelope)
	require.True(t, isEOSE)

	conn.Close()

	require.Eventually(t, func() bool {
		rl.clientsMutex.Lock()
		defer rl.clientsMutex.Unlock()
		return len(rl.clients) == 0
	}, 2*time.Second, 50*time.Millisecond)
}

func TestSupersededReplaceableNotBroadcast(t *testing.T) {
	_, server := startTestRelay(t)
	publisher := dial(t, server)
	subscriber := dial(t, server)

	send(t, subscriber, nostr.ReqEnvelope{SubscriptionID: "all", Filters: []nostr.Filter{{}}})
	_, isEOSE := recv(t, subscriber).(*nostr.EOSEEnvelope)
	require.True(t, isEOSE)

	sk := nostr.Generate()
	newer := signedEventAt(t, sk, 0, `{"name":"after"}`, nostr.Now(), nil)
	older := signedEventAt(t, sk, 0, `{"name":"before"}`, newer.CreatedAt-100, nil)

	send(t, publisher, nostr.EventEnvelope{Event: newer})
	ok := recv(t, publisher).(*nostr.OKEnvelope)
	require.True(t, ok.OK)
	require.Empty(t, ok.Reason)

	got := recv(t, subscriber).(*nostr.EventEnvelope)
	require.Equal(t, newer.ID, got.Event.ID)

	// an older event at the same coordinate loses the tie-break: it is
	// acked as a duplicate and must not reach any subscriber
	send(t, publisher, nostr.EventEnvelope{Event: older})
	ok = recv(t, publisher).(*nostr.OKEnvelope)
	require.True(t, ok.OK)
	require.Contains(t, ok.Reason, "duplicate:")

	// resubmitting the stored winner is flagged the same way
	send(t, publisher, nostr.EventEnvelope{Event: newer})
	ok = recv(t, publisher).(*nostr.OKEnvelope)
	require.True(t, ok.OK)
	require.Contains(t, ok.Reason, "duplicate:")

	// a marker event proves neither of those was broadcast
	marker := signedEvent(t, sk, 1, "marker", nil)
	send(t, publisher, nostr.EventEnvelope{Event: marker})
	recv(t, publisher) // OK

	got = recv(t, subscriber).(*nostr.EventEnvelope)
	require.Equal(t, marker.ID, got.Event.ID)
}

func TestUppercaseHexRejectedOnWire(t *testing.T) {
	_, server := startTestRelay(t)
	publisher := dial(t, server)

	sk := nostr.Generate()
	pkHex := nostr.GetPublicKey(sk).Hex()
	evt := signedEvent(t, sk, 1, "shouting", nil)

	data, err := nostr.EventEnvelope{Event: evt}.MarshalJSON()
	require.NoError(t, err)

	// uppercasing the pubkey survives json decoding but violates the
	// wire-level lowercase-hex rule, so the relay must reject it
	raw := strings.Replace(string(data),
		`"pubkey":"`+pkHex, `"pubkey":"`+strings.ToUpper(pkHex), 1)
	require.NotEqual(t, string(data), raw)
	require.NoError(t, publisher.WriteMessage(websocket.TextMessage, []byte(raw)))

	ok := recv(t, publisher).(*nostr.OKEnvelope)
	require.False(t, ok.OK)
	require.Contains(t, ok.Reason, "invalid:")
}

func TestBroadcastOrderMatchesCommitOrder(t *testing.T) {
	rl, server := startTestRelay(t)
	subscriber := dial(t, server)
	subscriber.SetReadDeadline(time.Now().Add(15 * time.Second))

	send(t, subscriber, nostr.ReqEnvelope{SubscriptionID: "all", Filters: []nostr.Filter{{}}})
	_, isEOSE := recv(t, subscriber).(*nostr.EOSEEnvelope)
	require.True(t, isEOSE)

	var mu sync.Mutex
	committed := make([]nostr.ID, 0, 60)
	rl.OnEventSaved = func(ctx context.Context, evt nostr.Event) {
		mu.Lock()
		committed = append(committed, evt.ID)
		mu.Unlock()
	}

	// several connections publishing at once: every subscriber must
	// still see events in the order the store accepted them
	const publishers = 4
	const perPublisher = 15

	frames := make([][][]byte, publishers)
	conns := make([]*websocket.Conn, publishers)
	for p := range publishers {
		conns[p] = dial(t, server)
		sk := nostr.Generate()
		for i := range perPublisher {
			evt := signedEvent(t, sk, 1, fmt.Sprintf("%d/%d", p, i), nil)
			data, err := nostr.EventEnvelope{Event: evt}.MarshalJSON()
			require.NoError(t, err)
			frames[p] = append(frames[p], data)
		}
	}

	errs := make(chan error, publishers)
	for p := range publishers {
		go func(conn *websocket.Conn, frames [][]byte) {
			for _, frame := range frames {
				if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
					errs <- err
					return
				}
				if _, _, err := conn.ReadMessage(); err != nil { // the OK
					errs <- err
					return
				}
			}
			errs <- nil
		}(conns[p], frames[p])
	}
	for range publishers {
		require.NoError(t, <-errs)
	}

	received := make([]nostr.ID, 0, publishers*perPublisher)
	for range publishers * perPublisher {
		env := recv(t, subscriber)
		got, isEvent := env.(*nostr.EventEnvelope)
		require.True(t, isEvent, "expected EVENT, got %s", env.Label())
		received = append(received, got.Event.ID)
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, committed, received)
}
