package slicestore

import (
	"testing"

	"github.com/OpenAgentsInc/pylon"
	"github.com/OpenAgentsInc/pylon/eventstore"
	"github.com/stretchr/testify/require"
)

func makeEvent(t *testing.T, sk nostr.SecretKey, kind nostr.Kind, content string, createdAt nostr.Timestamp, tags nostr.Tags) nostr.Event {
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

func collect(t *testing.T, db *SliceStore, filter nostr.Filter) []nostr.Event {
	t.Helper()
	events, err := db.QueryEvents(t.Context(), filter)
	require.NoError(t, err)
	results := make([]nostr.Event, 0)
	for event := range events {
		results = append(results, event)
	}
	return results
}

func TestBasicStoreAndQuery(t *testing.T) {
	db := &SliceStore{}
	require.NoError(t, db.Init())
	defer db.Close()

	sk := nostr.Generate()
	evt := makeEvent(t, sk, 1, "hello world", 1000, nostr.Tags{})

	require.NoError(t, db.SaveEvent(t.Context(), evt))

	// saving it again fails with ErrDupEvent
	err := db.SaveEvent(t.Context(), evt)
	require.Equal(t, eventstore.ErrDupEvent, err)

	results := collect(t, db, nostr.Filter{IDs: []string{evt.ID.Hex()}})
	require.Len(t, results, 1)
	require.Equal(t, evt.ID, results[0].ID)
	require.Equal(t, evt.Content, results[0].Content)

	// prefix query finds it too
	results = collect(t, db, nostr.Filter{IDs: []string{evt.ID.Hex()[:8]}})
	require.Len(t, results, 1)
}

func TestQueryOrderingAndLimit(t *testing.T) {
	db := &SliceStore{}
	require.NoError(t, db.Init())

	sk := nostr.Generate()
	for i := 0; i < 10; i++ {
		evt := makeEvent(t, sk, 1, "note", nostr.Timestamp(1000+i), nil)
		require.NoError(t, db.SaveEvent(t.Context(), evt))
	}

	// newest first
	results := collect(t, db, nostr.Filter{Kinds: []nostr.Kind{1}})
	require.Len(t, results, 10)
	for i := 1; i < len(results); i++ {
		require.GreaterOrEqual(t, results[i-1].CreatedAt, results[i].CreatedAt)
	}

	// limit truncates from the newest end
	results = collect(t, db, nostr.Filter{Kinds: []nostr.Kind{1}, Limit: 3})
	require.Len(t, results, 3)
	require.Equal(t, nostr.Timestamp(1009), results[0].CreatedAt)

	// since/until are inclusive on both ends
	results = collect(t, db, nostr.Filter{Since: 1003, Until: 1005})
	require.Len(t, results, 3)
	require.Equal(t, nostr.Timestamp(1005), results[0].CreatedAt)
	require.Equal(t, nostr.Timestamp(1003), results[2].CreatedAt)
}

func TestReplaceEvent(t *testing.T) {
	db := &SliceStore{}
	require.NoError(t, db.Init())

	sk := nostr.Generate()

	older := makeEvent(t, sk, 0, `{"name":"before"}`, 1000, nil)
	require.NoError(t, db.ReplaceEvent(t.Context(), older))

	newer := makeEvent(t, sk, 0, `{"name":"after"}`, 2000, nil)
	require.NoError(t, db.ReplaceEvent(t.Context(), newer))

	results := collect(t, db, nostr.Filter{Kinds: []nostr.Kind{0}})
	require.Len(t, results, 1)
	require.Equal(t, newer.ID, results[0].ID)

	// replaying the older event does not bring it back, and the
	// rejection is distinguishable so callers don't re-broadcast
	require.ErrorIs(t, db.ReplaceEvent(t.Context(), older), eventstore.ErrDupEvent)
	results = collect(t, db, nostr.Filter{Kinds: []nostr.Kind{0}})
	require.Len(t, results, 1)
	require.Equal(t, newer.ID, results[0].ID)
}

func TestReplaceAddressableEvent(t *testing.T) {
	db := &SliceStore{}
	require.NoError(t, db.Init())

	sk := nostr.Generate()

	first := makeEvent(t, sk, 30023, "article one", 1000, nostr.Tags{{"d", "one"}})
	second := makeEvent(t, sk, 30023, "article two", 1000, nostr.Tags{{"d", "two"}})
	require.NoError(t, db.ReplaceEvent(t.Context(), first))
	require.NoError(t, db.ReplaceEvent(t.Context(), second))

	// different d-tags coexist
	results := collect(t, db, nostr.Filter{Kinds: []nostr.Kind{30023}})
	require.Len(t, results, 2)

	// same d-tag supersedes
	update := makeEvent(t, sk, 30023, "article one, edited", 2000, nostr.Tags{{"d", "one"}})
	require.NoError(t, db.ReplaceEvent(t.Context(), update))

	results = collect(t, db, nostr.Filter{Kinds: []nostr.Kind{30023}, Tags: nostr.TagMap{"d": {"one"}}})
	require.Len(t, results, 1)
	require.Equal(t, update.ID, results[0].ID)
}

func TestDeleteEvent(t *testing.T) {
	db := &SliceStore{}
	require.NoError(t, db.Init())

	sk := nostr.Generate()
	evt := makeEvent(t, sk, 1, "to be deleted", 1000, nil)
	require.NoError(t, db.SaveEvent(t.Context(), evt))

	require.NoError(t, db.DeleteEvent(t.Context(), evt.ID))
	require.Len(t, collect(t, db, nostr.Filter{}), 0)

	// deleting a missing id is a no-op
	require.NoError(t, db.DeleteEvent(t.Context(), evt.ID))
}

func TestCountEvents(t *testing.T) {
	db := &SliceStore{}
	require.NoError(t, db.Init())

	sk := nostr.Generate()
	for i := 0; i < 5; i++ {
		evt := makeEvent(t, sk, 1, "note", nostr.Timestamp(1000+i), nostr.Tags{{"t", "x"}})
		require.NoError(t, db.SaveEvent(t.Context(), evt))
	}
	other := makeEvent(t, sk, 7, "+", 2000, nil)
	require.NoError(t, db.SaveEvent(t.Context(), other))

	count, err := db.CountEvents(t.Context(), nostr.Filter{Kinds: []nostr.Kind{1}})
	require.NoError(t, err)
	require.Equal(t, int64(5), count)

	count, err = db.CountEvents(t.Context(), nostr.Filter{Tags: nostr.TagMap{"t": {"x"}}})
	require.NoError(t, err)
	require.Equal(t, int64(5), count)
}
