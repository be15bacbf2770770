package eventstore

import (
	"context"
	"errors"
	"iter"

	"github.com/OpenAgentsInc/pylon"
)

var (
	// ErrDupEvent is returned by SaveEvent when an event with the same
	// id is already stored. It is a distinguishable outcome, not a
	// failure: callers use it to skip re-broadcasting.
	ErrDupEvent = errors.New("duplicate: event already exists")

	// ErrPoolExhausted is returned when a connection pool checkout
	// doesn't complete within the store's timeout. It is transient;
	// retrying is the caller's decision.
	ErrPoolExhausted = errors.New("error: connection pool exhausted")
)

// Store is a persistence layer for nostr events handled by a relay.
type Store interface {
	// Init is called once before the store is used, allowing it to
	// initialize its internal resources.
	Init() error

	// Close must be called after you're done using the store, to free up resources and so on.
	Close()

	// QueryEvents returns stored events that match the filter, newest
	// first, honoring the filter's limit. The returned error covers
	// resource acquisition (e.g. pool checkout); it is nil when the
	// iterator is usable.
	QueryEvents(ctx context.Context, filter nostr.Filter) (iter.Seq[nostr.Event], error)

	// DeleteEvent deletes an event atomically by ID.
	DeleteEvent(ctx context.Context, id nostr.ID) error

	// SaveEvent just saves an event, no side-effects. Returns
	// ErrDupEvent when the id is already stored.
	SaveEvent(ctx context.Context, evt nostr.Event) error

	// ReplaceEvent atomically replaces a replaceable or addressable event.
	// Conceptually it is like a Query->Delete->Save, but streamlined.
	ReplaceEvent(ctx context.Context, evt nostr.Event) error

	// CountEvents counts all events that match a given filter.
	CountEvents(ctx context.Context, filter nostr.Filter) (int64, error)
}
