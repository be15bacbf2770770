package relay

import (
	"testing"

	"github.com/OpenAgentsInc/pylon"
	"github.com/OpenAgentsInc/pylon/eventstore/slicestore"
	"github.com/stretchr/testify/require"
)

func TestDeleteRequestByID(t *testing.T) {
	_, server := startTestRelay(t)
	conn := dial(t, server)

	sk := nostr.Generate()
	target := signedEvent(t, sk, 1, "regrettable", nil)
	send(t, conn, nostr.EventEnvelope{Event: target})
	ok := recv(t, conn).(*nostr.OKEnvelope)
	require.True(t, ok.OK)

	deletion := signedEvent(t, sk, nostr.KindDeletion, "", nostr.Tags{{"e", target.ID.Hex()}})
	send(t, conn, nostr.EventEnvelope{Event: deletion})
	ok = recv(t, conn).(*nostr.OKEnvelope)
	require.True(t, ok.OK)

	// the target is gone
	send(t, conn, nostr.ReqEnvelope{SubscriptionID: "q", Filters: []nostr.Filter{{IDs: []string{target.ID.Hex()}}}})
	_, isEOSE := recv(t, conn).(*nostr.EOSEEnvelope)
	require.True(t, isEOSE, "expected immediate EOSE after deletion")
}

func TestDeleteRequestWrongAuthor(t *testing.T) {
	_, server := startTestRelay(t)
	conn := dial(t, server)

	author := nostr.Generate()
	target := signedEvent(t, author, 1, "mine", nil)
	send(t, conn, nostr.EventEnvelope{Event: target})
	ok := recv(t, conn).(*nostr.OKEnvelope)
	require.True(t, ok.OK)

	// someone else tries to delete it
	attacker := nostr.Generate()
	deletion := signedEvent(t, attacker, nostr.KindDeletion, "", nostr.Tags{{"e", target.ID.Hex()}})
	send(t, conn, nostr.EventEnvelope{Event: deletion})
	ok = recv(t, conn).(*nostr.OKEnvelope)
	require.False(t, ok.OK)
	require.Contains(t, ok.Reason, "blocked:")

	// the target survives
	send(t, conn, nostr.ReqEnvelope{SubscriptionID: "q", Filters: []nostr.Filter{{IDs: []string{target.ID.Hex()}}}})
	got := recv(t, conn).(*nostr.EventEnvelope)
	require.Equal(t, target.ID, got.Event.ID)
}

func TestDeleteRequestNothingToDelete(t *testing.T) {
	_, server := startTestRelay(t)
	conn := dial(t, server)

	sk := nostr.Generate()
	deletion := signedEvent(t, sk, nostr.KindDeletion, "", nostr.Tags{
		{"e", "5c83da77af1dec6d7289834998ad7aafbd9e2191396d75ec3cc27f5a77226f36"},
	})
	send(t, conn, nostr.EventEnvelope{Event: deletion})
	ok := recv(t, conn).(*nostr.OKEnvelope)
	require.False(t, ok.OK)
	require.Contains(t, ok.Reason, "blocked:")
}

func TestExpirationTagParsing(t *testing.T) {
	require.Equal(t, nostr.Timestamp(1700000000), getExpiration(nostr.Tags{{"expiration", "1700000000"}}))
	require.Equal(t, nostr.Timestamp(-1), getExpiration(nostr.Tags{{"t", "x"}}))
	require.Equal(t, nostr.Timestamp(-1), getExpiration(nostr.Tags{{"expiration", "not a number"}}))
	require.Equal(t, nostr.Timestamp(-1), getExpiration(nil))
}

func TestExpirationManagerDeletesExpired(t *testing.T) {
	store := &slicestore.SliceStore{}
	require.NoError(t, store.Init())

	sk := nostr.Generate()
	expired := nostr.Event{
		CreatedAt: nostr.Now() - 100,
		Kind:      1,
		Tags:      nostr.Tags{{"expiration", "1700000000"}}, // long past
		Content:   "already expired",
	}
	require.NoError(t, expired.Sign(sk))
	require.NoError(t, store.SaveEvent(t.Context(), expired))

	keeper := nostr.Event{
		CreatedAt: nostr.Now(),
		Kind:      1,
		Content:   "no expiration",
	}
	require.NoError(t, keeper.Sign(sk))
	require.NoError(t, store.SaveEvent(t.Context(), keeper))

	em := &expirationManager{
		events:      make(expiringEventHeap, 0),
		queryStored: store.QueryEvents,
		deleteEvent: store.DeleteEvent,
	}
	em.initialScan(t.Context())
	em.checkExpiredEvents(t.Context())

	events, err := store.QueryEvents(t.Context(), nostr.Filter{})
	require.NoError(t, err)
	remaining := make([]nostr.Event, 0)
	for evt := range events {
		remaining = append(remaining, evt)
	}
	require.Len(t, remaining, 1)
	require.Equal(t, keeper.ID, remaining[0].ID)
}
