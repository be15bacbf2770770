package slicestore

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"

	"github.com/OpenAgentsInc/pylon"
	"github.com/OpenAgentsInc/pylon/eventstore"
	"github.com/OpenAgentsInc/pylon/eventstore/internal"
)

var _ eventstore.Store = (*SliceStore)(nil)

// SliceStore keeps all events in a slice sorted newest-first. Useful
// for tests and small relays.
type SliceStore struct {
	sync.Mutex
	internal []nostr.Event

	MaxLimit int
}

func (b *SliceStore) Init() error {
	b.internal = make([]nostr.Event, 0, 5000)
	if b.MaxLimit == 0 {
		b.MaxLimit = 500
	}
	return nil
}

func (b *SliceStore) Close() {}

func (b *SliceStore) QueryEvents(ctx context.Context, filter nostr.Filter) (iter.Seq[nostr.Event], error) {
	return func(yield func(nostr.Event) bool) {
		b.Lock()
		snapshot := slices.Clone(b.internal)
		b.Unlock()

		limit := filter.Limit
		if limit > b.MaxLimit || (limit == 0 && !filter.LimitZero) {
			limit = b.MaxLimit
		}

		// efficiently determine where to start and end
		start := 0
		end := len(snapshot)
		if filter.Until != 0 {
			start, _ = slices.BinarySearchFunc(snapshot, filter.Until, eventTimestampComparator)
		}
		if filter.Since != 0 {
			end, _ = slices.BinarySearchFunc(snapshot, filter.Since-1, eventTimestampComparator)
		}

		if end < start {
			return
		}

		count := 0
		for _, event := range snapshot[start:end] {
			if count == limit {
				break
			}

			if filter.Matches(event) {
				if !yield(event) {
					return
				}
				count++
			}
		}
	}, nil
}

func (b *SliceStore) CountEvents(ctx context.Context, filter nostr.Filter) (int64, error) {
	b.Lock()
	defer b.Unlock()

	var val int64
	for _, event := range b.internal {
		if filter.Matches(event) {
			val++
		}
	}
	return val, nil
}

func (b *SliceStore) SaveEvent(ctx context.Context, evt nostr.Event) error {
	b.Lock()
	defer b.Unlock()
	return b.save(evt)
}

func (b *SliceStore) save(evt nostr.Event) error {
	idx, found := slices.BinarySearchFunc(b.internal, evt, eventComparator)
	if found {
		return eventstore.ErrDupEvent
	}
	// insert at the correct place in the array
	b.internal = append(b.internal, evt) // bogus
	copy(b.internal[idx+1:], b.internal[idx:])
	b.internal[idx] = evt

	return nil
}

func (b *SliceStore) DeleteEvent(ctx context.Context, id nostr.ID) error {
	b.Lock()
	defer b.Unlock()
	return b.delete(id)
}

func (b *SliceStore) delete(id nostr.ID) error {
	idx := slices.IndexFunc(b.internal, func(evt nostr.Event) bool { return evt.ID == id })
	if idx == -1 {
		// we don't have this event
		return nil
	}

	// we have it
	copy(b.internal[idx:], b.internal[idx+1:])
	b.internal = b.internal[0 : len(b.internal)-1]
	return nil
}

func (b *SliceStore) ReplaceEvent(ctx context.Context, evt nostr.Event) error {
	b.Lock()
	defer b.Unlock()

	filter := nostr.Filter{Kinds: []nostr.Kind{evt.Kind}, Authors: []string{evt.PubKey.Hex()}}
	if evt.Kind.IsAddressable() {
		filter.Tags = nostr.TagMap{"d": []string{evt.Tags.GetD()}}
	}

	shouldStore := true
	for i := len(b.internal) - 1; i >= 0; i-- {
		previous := b.internal[i]
		if !filter.Matches(previous) {
			continue
		}
		if internal.IsOlder(previous, evt) {
			if err := b.delete(previous.ID); err != nil {
				return fmt.Errorf("failed to delete event for replacing: %w", err)
			}
		} else {
			shouldStore = false
		}
	}

	if !shouldStore {
		// the stored event wins the tie-break, don't store (and don't
		// let callers broadcast) the candidate
		return eventstore.ErrDupEvent
	}

	if err := b.save(evt); err != nil {
		if err == eventstore.ErrDupEvent {
			return err
		}
		return fmt.Errorf("failed to save: %w", err)
	}

	return nil
}

func eventTimestampComparator(e nostr.Event, t nostr.Timestamp) int {
	return int(t) - int(e.CreatedAt)
}

func eventComparator(a nostr.Event, b nostr.Event) int {
	c := cmp.Compare(b.CreatedAt, a.CreatedAt)
	if c != 0 {
		return c
	}
	return bytes.Compare(b.ID[:], a.ID[:])
}
