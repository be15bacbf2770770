package badger

import (
	"context"
	"encoding/binary"
	"fmt"
	"iter"
	"math"

	"github.com/OpenAgentsInc/pylon"
	"github.com/dgraph-io/badger/v4"
)

func (b *BadgerBackend) QueryEvents(_ context.Context, filter nostr.Filter) (iter.Seq[nostr.Event], error) {
	if filter.LimitZero {
		return func(yield func(nostr.Event) bool) {}, nil
	}

	limit := filter.Limit
	if limit <= 0 || limit > b.MaxLimit {
		limit = b.MaxLimit
	}

	var since uint32 = 0
	if filter.Since > 0 {
		since = uint32(filter.Since)
	}
	var until uint32 = math.MaxUint32
	if filter.Until > 0 && filter.Until < math.MaxUint32 {
		until = uint32(filter.Until)
	}

	// walk the created_at index newest-first, load each candidate and
	// post-filter; results are collected inside the transaction so the
	// returned iterator doesn't hold badger resources
	events := make([]nostr.Event, 0, limit)
	err := b.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{
			Reverse: true,
			Prefix:  []byte{indexCreatedAtPrefix},
		})
		defer it.Close()

		start := make([]byte, 1+4+4)
		start[0] = indexCreatedAtPrefix
		binary.BigEndian.PutUint32(start[1:], until)
		copy(start[1+4:], []byte{0xff, 0xff, 0xff, 0xff})

		for it.Seek(start); it.ValidForPrefix([]byte{indexCreatedAtPrefix}); it.Next() {
			key := it.Item().Key()
			createdAt := binary.BigEndian.Uint32(key[1 : 1+4])
			if createdAt < since {
				break
			}

			idx := make([]byte, 5)
			idx[0] = rawEventStorePrefix
			copy(idx[1:], key[1+4:])

			item, err := txn.Get(idx)
			if err != nil {
				return fmt.Errorf("failed to get %x from raw event store: %w", idx, err)
			}

			var evt nostr.Event
			if err := item.Value(func(val []byte) error {
				return evt.UnmarshalJSON(val)
			}); err != nil {
				return fmt.Errorf("failed to decode event %x: %w", idx, err)
			}

			if filter.Matches(evt) {
				events = append(events, evt)
				if len(events) >= limit {
					break
				}
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return func(yield func(nostr.Event) bool) {
		for _, evt := range events {
			if !yield(evt) {
				return
			}
		}
	}, nil
}
